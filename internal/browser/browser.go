package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrUnavailable is returned when no browser could be started.
var ErrUnavailable = errors.New("browser unavailable")

// Scroller reads rendered text from pages that need script execution.
type Scroller interface {
	// ScrollTexts loads url, scrolls one viewport height scrolls times and
	// returns the inner texts of every node matching selector.
	ScrollTexts(ctx context.Context, url, selector string, scrolls int) ([]string, error)
	// WaitText loads url and returns the inner text of selector once it no
	// longer reads pending.
	WaitText(ctx context.Context, url, selector, pending string) (string, error)
}

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	ScrollDelay    time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		ScrollDelay:    time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-US",
	}
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Browser) ScrollTexts(ctx context.Context, url, selector string, scrolls int) ([]string, error) {
	page, err := b.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	for i := 0; i < scrolls; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, window.innerHeight)`); err != nil {
			return nil, fmt.Errorf("failed to scroll: %w", err)
		}
		if err := sleep(ctx, b.opts.ScrollDelay); err != nil {
			return nil, err
		}
	}

	texts, err := page.Locator(selector).AllInnerTexts()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", selector, err)
	}
	b.logger.Debug("texts collected", "url", url, "selector", selector, "scrolls", scrolls, "count", len(texts))
	return trimTexts(texts), nil
}

func (b *Browser) WaitText(ctx context.Context, url, selector, pending string) (string, error) {
	page, err := b.open(ctx, url)
	if err != nil {
		return "", err
	}
	defer page.Close()

	_, err = page.WaitForFunction(`([selector, pending]) => {
		const el = document.querySelector(selector);
		return el !== null && el.innerText !== pending;
	}`, []interface{}{selector, pending})
	if err != nil {
		return "", fmt.Errorf("waiting for %s: %w", selector, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := page.Locator(selector).First().InnerText()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (b *Browser) open(ctx context.Context, url string) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return page, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func trimTexts(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Unavailable is a Scroller for deployments without a browser.
type Unavailable struct {
	Reason error
}

func (u Unavailable) err() error {
	if u.Reason == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.Reason)
}

func (u Unavailable) ScrollTexts(context.Context, string, string, int) ([]string, error) {
	return nil, u.err()
}

func (u Unavailable) WaitText(context.Context, string, string, string) (string, error) {
	return "", u.err()
}
