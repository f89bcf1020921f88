// Package capture drives a headless browser to snapshot a public URL:
// a viewport PNG screenshot plus a sanitized, size-capped serialization
// of the live DOM.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	viewportWidth  = 1280
	viewportHeight = 800

	// Hard cap on the serialized DOM. Blind rune cut, may land mid-tag;
	// downstream only needs a structural sample, not valid markup.
	maxHTMLRunes = 50000

	navigationTimeout = 30 * time.Second
)

// Result is one immutable page snapshot. Screenshot is a base64-encoded
// viewport PNG; HTML is capped at maxHTMLRunes and contains no script,
// style, svg, noscript or iframe subtrees.
type Result struct {
	Screenshot string `json:"screenshot"`
	HTML       string `json:"html"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// Service captures pages using an isolated headless browser instance per
// call. Instances are never shared across calls and are torn down on
// every exit path.
type Service struct {
	execPath string
}

// NewService creates a capture service. execPath overrides browser
// binary discovery when non-empty.
func NewService(execPath string) *Service {
	return &Service{execPath: execPath}
}

// Capture loads pageURL in a fresh headless browser, waits for the load
// event plus a network-quiet window, and returns the snapshot. The whole
// call is bounded by navigationTimeout.
func (s *Service) Capture(ctx context.Context, pageURL string) (Result, error) {
	start := time.Now()

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.WindowSize(viewportWidth, viewportHeight),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, navigationTimeout)
	defer cancelRun()

	// The listener must be attached before navigation starts so no
	// request events are missed.
	idle := newIdleWaiter(browserCtx)

	var (
		shot  []byte
		html  string
		title string
	)
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		chromedp.Navigate(pageURL),
		idle.wait(),
		chromedp.Title(&title),
		chromedp.CaptureScreenshot(&shot),
		chromedp.Evaluate(sanitizedDOMScript, &html),
	)
	if err != nil {
		slog.Error("capture failed",
			"url", pageURL,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Result{}, fmt.Errorf("capture %s: %w", pageURL, err)
	}

	capped, truncated, origRunes, hash := truncateRunes(html, maxHTMLRunes)
	if truncated {
		slog.Warn("capture html truncated",
			"url", pageURL, "original_runes", origRunes, "kept_runes", maxHTMLRunes, "sha256", hash)
	}

	slog.Info("capture complete",
		"url", pageURL,
		"title", title,
		"screenshot_bytes", len(shot),
		"html_runes", len([]rune(capped)),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		Screenshot: base64.StdEncoding.EncodeToString(shot),
		HTML:       capped,
		Title:      title,
		URL:        pageURL,
	}, nil
}
