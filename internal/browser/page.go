package browser

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/ssocheck/internal/login"
)

const (
	identitySelector = `input[name="uid"], input[autocomplete="username"]`
	passwordSelector = `input[name="password"], input[autocomplete="current-password"]`

	// probeTimeout caps visibility and readiness probes so a missing element
	// costs little of the round.
	probeTimeout = 2 * time.Second
)

// activeInputScript returns the first input that is displayed, not hidden,
// laid out and enabled, descending into open shadow roots.
const activeInputScript = `() => {
	const visible = (el) => {
		const style = window.getComputedStyle(el);
		return style.display !== 'none' &&
			style.visibility !== 'hidden' &&
			el.offsetParent !== null &&
			!el.disabled;
	};
	const search = (root) => {
		for (const input of root.querySelectorAll('input')) {
			if (visible(input)) {
				return input;
			}
		}
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) {
				const found = search(el.shadowRoot);
				if (found) {
					return found;
				}
			}
		}
		return null;
	};
	const input = search(document);
	if (!input) {
		return null;
	}
	return {
		name: input.name || '',
		type: input.type || '',
		placeholder: input.placeholder || '',
		value: input.value || '',
	};
}`

var (
	textPolicy  = bluemonday.StrictPolicy()
	blankRunsRe = regexp.MustCompile(`\s+`)
)

// PageAdapter implements login.Page over a playwright page.
type PageAdapter struct {
	page  playwright.Page
	probe float64
}

var _ login.Page = (*PageAdapter)(nil)

// NewPageAdapter wraps page.
func NewPageAdapter(page playwright.Page) *PageAdapter {
	return &PageAdapter{page: page, probe: float64(probeTimeout.Milliseconds())}
}

// Page returns the wrapped playwright page.
func (a *PageAdapter) Page() playwright.Page { return a.page }

func (a *PageAdapter) URL() string { return a.page.URL() }

func (a *PageAdapter) WaitForNetworkIdle() error {
	return a.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
}

func (a *PageAdapter) ActiveInput() (*login.Input, error) {
	res, err := a.page.Evaluate(activeInputScript)
	if err != nil {
		return nil, fmt.Errorf("evaluate active input: %w", err)
	}
	return inputFromResult(res), nil
}

func (a *PageAdapter) Text() (string, error) {
	content, err := a.page.Content()
	if err != nil {
		return "", err
	}
	return TextFromHTML(content), nil
}

func (a *PageAdapter) ButtonReady(label string) (bool, error) {
	btn := a.page.Locator(buttonSelector(label)).First()
	visible, err := btn.IsVisible()
	if err != nil || !visible {
		return false, err
	}
	return btn.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: playwright.Float(a.probe)})
}

func (a *PageAdapter) TextVisible(text string) (bool, error) {
	return a.exactText(text).IsVisible()
}

func (a *PageAdapter) Fill(field login.Field, value string) error {
	selector := identitySelector
	if field == login.FieldPassword {
		selector = passwordSelector
	}
	return a.page.Locator(selector).First().Fill(value)
}

func (a *PageAdapter) PressEnter() error {
	return a.page.Keyboard().Press("Enter")
}

func (a *PageAdapter) ClickButton(label string) error {
	return a.page.Locator(buttonSelector(label)).First().Click()
}

func (a *PageAdapter) ClickText(text string) error {
	return a.exactText(text).Click()
}

func (a *PageAdapter) Screenshot() ([]byte, error) {
	return a.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

func (a *PageAdapter) exactText(text string) playwright.Locator {
	return a.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)}).First()
}

func buttonSelector(label string) string {
	return fmt.Sprintf("button:has-text(%q)", label)
}

func inputFromResult(res any) *login.Input {
	m, ok := res.(map[string]any)
	if !ok || m == nil {
		return nil
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return &login.Input{
		Name:        str("name"),
		Type:        str("type"),
		Placeholder: str("placeholder"),
		Value:       str("value"),
	}
}

// TextFromHTML strips markup and collapses whitespace.
func TextFromHTML(content string) string {
	text := html.UnescapeString(textPolicy.Sanitize(content))
	return strings.TrimSpace(blankRunsRe.ReplaceAllString(text, " "))
}
