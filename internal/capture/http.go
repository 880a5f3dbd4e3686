package capture

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	appLog "partywatch/internal/log"
)

// DefaultPollInterval spaces refetches while waiting for the selector.
const DefaultPollInterval = 2 * time.Second

// cacheEntry holds HTTP cache metadata for the page URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HTTPSource fetches the listing as static HTML. It suits server-rendered
// mirrors of the page, and keeps an ETag / Last-Modified disk cache so that
// polling an unchanged page costs a 304.
type HTTPSource struct {
	URL          string
	PollInterval time.Duration

	client   *resty.Client
	cacheDir string
}

// NewHTTPSource creates a source for pageURL caching under cacheDir, e.g.
// "/var/lib/partywatch/page-cache".
func NewHTTPSource(pageURL, cacheDir string) *HTTPSource {
	if cacheDir == "" {
		// Caller should set this explicitly; fall back to a relative dir so
		// development runs work without root permissions.
		cacheDir = "./var/page-cache"
	}
	client := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("User-Agent", "partywatch/1").
		SetHeader("Accept", "text/html")
	return &HTTPSource{
		URL:          pageURL,
		PollInterval: DefaultPollInterval,
		client:       client,
		cacheDir:     cacheDir,
	}
}

// LoadCandidateNodes refetches the page until selector matches or timeout
// passes.
func (h *HTTPSource) LoadCandidateNodes(ctx context.Context, selector string, timeout time.Duration) (*goquery.Selection, error) {
	deadline := time.Now().Add(waitTimeout(timeout))
	poll := h.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	for {
		body, _, err := h.fetch(ctx)
		if err != nil {
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("capture: parse page failed: %w", err)
		}
		if nodes := doc.Find(selector); nodes.Length() > 0 {
			return nodes, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		timer := time.NewTimer(min(poll, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// fetch GETs the page honoring ETag and Last-Modified, and falls back to the
// cached body on network errors and non-OK responses.
func (h *HTTPSource) fetch(ctx context.Context) ([]byte, bool, error) {
	if h.URL == "" {
		return nil, false, errors.New("capture: URL is required")
	}

	cachePath := h.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, false, err
	}

	meta, _ := h.loadCacheMeta(cachePath)
	cachedBody, _ := h.loadCacheBody(cachePath)

	req := h.client.R().SetContext(ctx)
	// Conditional headers only make sense with a body to fall back on.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.SetHeader("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.SetHeader("If-Modified-Since", meta.LastModified)
		}
	}

	res, err := req.Get(h.URL)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("capture: fetch network error, using cached body", err, "url", redactURL(h.URL))
			return cachedBody, true, nil
		}
		// url.Error repeats the full page URL.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, false, fmt.Errorf("capture: fetch %s: %w", redactURL(h.URL), err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
		body := res.Body()
		newMeta := cacheEntry{
			URL:          h.URL,
			ETag:         res.Header().Get("ETag"),
			LastModified: res.Header().Get("Last-Modified"),
		}
		if err := h.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("capture: cache save failed", err, "url", redactURL(h.URL))
		}
		appLog.Debug("capture: fetch success", "url", redactURL(h.URL), "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, false, errors.New("capture: received 304 Not Modified but no cached body available")
		}
		appLog.Debug("capture: page not modified; using cache", "url", redactURL(h.URL))
		return cachedBody, true, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("capture: fetch non-OK, using cached body", errors.New(res.Status()), "url", redactURL(h.URL), "status", res.StatusCode())
			return cachedBody, true, nil
		}
		return nil, false, fmt.Errorf("capture: fetch %s: %s", redactURL(h.URL), res.Status())
	}
}

func (h *HTTPSource) cachePath() string {
	sum := sha256.Sum256([]byte(h.URL))
	// Use first 16 hex chars as directory name.
	return filepath.Join(h.cacheDir, hex.EncodeToString(sum[:8]))
}

func (h *HTTPSource) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (h *HTTPSource) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.html"))
}

func (h *HTTPSource) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.html"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
