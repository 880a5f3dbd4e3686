// Package capture loads the rendered listing page and returns its candidate
// nodes, one per entry.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrTimeout means no node matched the selector before the timeout. For a
// scan this is an empty listing, not a failure.
var ErrTimeout = errors.New("capture: timed out waiting for candidate nodes")

// DefaultWaitTimeout bounds the wait for the first candidate node.
const DefaultWaitTimeout = 10 * time.Second

// Source observes the listing page.
type Source interface {
	// LoadCandidateNodes returns every node matching selector once at least
	// one is present. The selection belongs to a document parsed for this
	// call and is safe to read until the caller drops it.
	LoadCandidateNodes(ctx context.Context, selector string, timeout time.Duration) (*goquery.Selection, error)
}

func waitTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultWaitTimeout
	}
	return d
}

// redactURL hides the path and query of a page URL for logging.
//
//	https://example.com/browse?session=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "page://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
