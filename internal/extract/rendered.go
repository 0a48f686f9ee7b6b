package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer is the slow fallback strategy: it drives headless Chrome to
// execute the page's scripts and hands the rendered DOM back for the same
// selector pass as the static strategy.
type ChromeRenderer struct {
	timeout time.Duration
	settle  time.Duration
}

// NewChromeRenderer creates a renderer with a per-page timeout.
func NewChromeRenderer(timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeRenderer{timeout: timeout, settle: 3 * time.Second}
}

func (r *ChromeRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}
	return []byte(html), nil
}

var _ Renderer = (*ChromeRenderer)(nil)
