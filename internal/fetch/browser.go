package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserFetcher renders pages in a headless browser before reading their
// HTML, for listings that populate product tiles with JavaScript.
type BrowserFetcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
}

// NewBrowserFetcher launches a browser instance shared by all fetches.
func NewBrowserFetcher(headless bool, timeout time.Duration) (*BrowserFetcher, error) {
	l := launcher.New().Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &BrowserFetcher{browser: b, launcher: l, timeout: timeout}, nil
}

// Fetch navigates a fresh page to url, waits for it to load, and returns the
// rendered HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: defaultUserAgent})

	if err := page.Timeout(f.timeout).Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Timeout(f.timeout).WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to wait for page load: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// Close shuts the browser down and cleans up the launcher.
func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			return err
		}
	}
	if f.launcher != nil {
		f.launcher.Kill()
	}
	return nil
}
