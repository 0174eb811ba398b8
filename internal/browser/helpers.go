package browser

import (
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
)

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// Goto navigates and waits for DOMContentLoaded.
func Goto(page playwright.Page, url string, timeout time.Duration) error {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeout),
	})
	return err
}

// WaitVisible waits for the first match of selector to be visible.
func WaitVisible(page playwright.Page, selector string, timeout time.Duration) error {
	return page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
}

// WaitText waits for an element whose text contains text to be visible.
// With exact set the whole text must match.
func WaitText(page playwright.Page, text string, exact bool, timeout time.Duration) error {
	return page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)}).
		First().
		WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: ms(timeout),
		})
}

// Visible reports whether the first match of selector is visible right now.
func Visible(page playwright.Page, selector string) bool {
	ok, err := page.Locator(selector).First().IsVisible()
	return err == nil && ok
}

// TextVisible reports whether text is visible right now.
func TextVisible(page playwright.Page, text string, exact bool) bool {
	ok, err := page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)}).First().IsVisible()
	return err == nil && ok
}

// WaitForURL waits until the page URL matches pattern.
func WaitForURL(page playwright.Page, pattern *regexp.Regexp, timeout time.Duration) error {
	return page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: ms(timeout),
	})
}

// WaitForNetworkIdle waits for the network to go quiet, up to timeout.
func WaitForNetworkIdle(page playwright.Page, timeout time.Duration) error {
	return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(timeout),
	})
}

// DumpHTML returns the page HTML, or nil when it cannot be read.
func DumpHTML(page playwright.Page) []byte {
	content, err := page.Content()
	if err != nil {
		return nil
	}
	return []byte(content)
}

// Capture returns a full-page screenshot, or nil on failure.
func Capture(page playwright.Page) []byte {
	png, err := page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return nil
	}
	return png
}
