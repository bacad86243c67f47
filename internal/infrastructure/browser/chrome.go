package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"CatalogPoster/internal/pagefetch"
)

// DefaultClickXPath dismisses the age gate on product detail pages.
const DefaultClickXPath = `//*[@id=":R6:"]/div[2]/div[2]/div[3]/div[1]/a`

// Chrome loads pages in a headless Chrome instance scoped to a single fetch.
type Chrome struct {
	timeout time.Duration
	log     *slog.Logger
}

var _ pagefetch.Strategy = (*Chrome)(nil)

// NewChrome builds a Chrome fetcher. timeout bounds one whole fetch.
func NewChrome(timeout time.Duration, logger *slog.Logger) *Chrome {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chrome{timeout: timeout, log: logger.With("component", "chrome")}
}

func (c *Chrome) Name() string { return pagefetch.StrategyBrowser }

// Fetch navigates, clicks the gate element once if it shows up within the
// page wait, then returns the serialized DOM.
func (c *Chrome) Fetch(ctx context.Context, req pagefetch.Request) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", req.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(defaultUserAgent),
		chromedp.WindowSize(1280, 2000),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, c.timeout)
	defer cancelRun()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	wait := req.PageWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if req.ClickSelector != "" {
		clickCtx, cancelClick := context.WithTimeout(runCtx, wait)
		err := chromedp.Run(clickCtx,
			chromedp.WaitReady(req.ClickSelector, chromedp.BySearch),
			chromedp.Click(req.ClickSelector, chromedp.BySearch),
		)
		cancelClick()
		if err != nil {
			c.log.Debug("gate element not clicked", "url", req.URL, "err", err)
		}
	}

	var html string
	if err := chromedp.Run(runCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("read dom: %w", err)
	}
	return html, nil
}
