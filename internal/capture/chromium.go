package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	appLog "partywatch/internal/log"
)

// Default browser parameters. The listing is responsive; a desktop viewport
// keeps the card layout the extractor expects.
const (
	DefaultWidth         = 1366
	DefaultHeight        = 900
	DefaultNavigationSec = 30
)

// ChromeSource renders the listing in headless Chromium via chromedp.
type ChromeSource struct {
	// URL is the listing page, e.g. "https://parties.example.com/browse".
	URL string

	// RemoteURL, if set, attaches to a running browser's DevTools websocket
	// instead of launching one (e.g. "ws://127.0.0.1:9222").
	RemoteURL string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// NavigationTimeout bounds page load before the selector wait starts.
	NavigationTimeout time.Duration
}

func NewChromeSource(url, remoteURL string) *ChromeSource {
	return &ChromeSource{URL: url, RemoteURL: remoteURL}
}

// LoadCandidateNodes launches (or attaches to) a browser, navigates to the
// listing, waits until selector matches, then snapshots the DOM and returns
// the matching nodes from the snapshot.
func (c *ChromeSource) LoadCandidateNodes(parentCtx context.Context, selector string, timeout time.Duration) (*goquery.Selection, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	width, height := c.Width, c.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	navTimeout := c.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = time.Duration(DefaultNavigationSec) * time.Second
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if c.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parentCtx, c.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parentCtx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Start the browser on the untimed context; a timeout on the first Run
	// would bound the browser's whole lifetime.
	if err := chromedp.Run(ctx); err != nil {
		return nil, fmt.Errorf("capture: start browser failed: %w", err)
	}

	appLog.Debug("capture: navigate", "url", redactURL(c.URL))

	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	err := chromedp.Run(navCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(c.URL),
	)
	navCancel()
	if err != nil {
		return nil, fmt.Errorf("capture: navigate failed: %w", err)
	}

	// The listing renders client-side; wait for the first entry.
	waitCtx, waitCancel := context.WithTimeout(ctx, waitTimeout(timeout))
	err = chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	waitCancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parentCtx.Err() == nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("capture: wait for %q failed: %w", selector, err)
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("capture: read DOM failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("capture: parse DOM failed: %w", err)
	}
	nodes := doc.Find(selector)
	appLog.Debug("capture: candidate nodes", "count", nodes.Length())
	return nodes, nil
}
