package checks

import (
	"context"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/ssocheck/internal/browser"
	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/urlutil"
)

var windmillIndicators = []string{"Runs", "Scripts", "Flows", "Schedules", "Home"}

func runWindmill(ctx context.Context, t *Tab) error {
	origin := t.env.Targets.Windmill
	if err := t.open(urlutil.BuildAbsolute(origin, "/")); err != nil {
		return err
	}

	sso := t.Page.Locator("button:has-text('Authentik'), a:has-text('Authentik')").First()
	if err := sso.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(t.env.MarkerTimeout.Milliseconds())),
	}); err != nil {
		t.dump(ctx, "windmill_login_page")
		return errs.Wrap(errs.NotFound, "Authentik SSO button missing on Windmill login page", err)
	}
	if err := sso.Click(); err != nil {
		return errs.Wrap(errs.Unavailable, "click Authentik SSO button", err)
	}
	t.idle()

	if err := t.login(ctx); err != nil {
		return err
	}
	if err := t.waitForHost(origin); err != nil {
		return err
	}
	t.idle()

	found, err := t.anyText(windmillIndicators)
	if err != nil {
		t.dump(ctx, "windmill_post_login")
		return errs.Wrap(errs.NotFound, "Windmill workspace not loaded after login", err)
	}
	t.log.Info("check_marker_found", "marker", found)
	return nil
}

// anyText waits for the first of texts to become visible and returns it.
func (t *Tab) anyText(texts []string) (string, error) {
	var loc playwright.Locator
	for _, text := range texts {
		l := t.Page.GetByText(text)
		if loc == nil {
			loc = l
		} else {
			loc = loc.Or(l)
		}
	}
	if err := loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(t.env.MarkerTimeout.Milliseconds())),
	}); err != nil {
		return "", err
	}
	for _, text := range texts {
		if browser.TextVisible(t.Page, text, false) {
			return text, nil
		}
	}
	return texts[0], nil
}

func runLiteLLM(ctx context.Context, t *Tab) error {
	origin := t.env.Targets.LiteLLM
	if err := t.open(urlutil.BuildAbsolute(origin, "/ui/")); err != nil {
		return err
	}

	if !strings.Contains(t.Page.URL(), "flow/login") && browser.Visible(t.Page, "text=Login") {
		if err := t.Page.Locator("text=Login").First().Click(); err != nil {
			return errs.Wrap(errs.Unavailable, "click LiteLLM Login", err)
		}
	}

	if err := t.login(ctx); err != nil {
		return err
	}
	if err := t.waitForHost(origin); err != nil {
		return err
	}

	if err := browser.WaitText(t.Page, "Virtual Keys", false, t.env.RedirectTimeout); err != nil {
		t.dump(ctx, "litellm_post_login")
		return errs.Wrap(errs.NotFound, "LiteLLM dashboard not loaded after login", err)
	}
	if err := browser.WaitText(t.Page, "Settings", false, t.env.MarkerTimeout); err != nil {
		return errs.Wrap(errs.PermissionDenied, "LiteLLM Settings not visible", ErrNotAdmin)
	}
	return nil
}

const (
	hideSplashCSS = `#splash-screen { display: none !important; } .splash { display: none !important; }`

	removeSplashScript = `() => {
	const splash = document.querySelector('#splash-screen') || document.querySelector('.image');
	if (splash) splash.remove();
	document.documentElement.style.overflowY = 'auto';
	document.body.style.overflowY = 'auto';
}`

	continueWithAuthentik = "button:has-text('Continue with Authentik')"
	okayLetsGo            = `button:has-text("Okay, Let's Go!")`
	closeButton           = "button[aria-label='Close']"

	settleRounds = 5
)

func runOpenWebUI(ctx context.Context, t *Tab) error {
	origin := t.env.Targets.OpenWebUI
	root := urlutil.BuildAbsolute(origin, "/")
	if err := t.open(root); err != nil {
		return err
	}

	if _, err := t.Page.AddStyleTag(playwright.PageAddStyleTagOptions{Content: playwright.String(hideSplashCSS)}); err != nil {
		t.log.Debug("check_splash_style_failed", "error", err)
	}
	t.pause(ctx, t.env.Settle)

	switch {
	case browser.Visible(t.Page, "button[aria-labelledby='get-started']"):
		_ = t.Page.Locator("button[aria-labelledby='get-started']").First().Click()
		t.pause(ctx, t.env.Settle)
	case browser.TextVisible(t.Page, "Get started", true):
		_ = t.Page.GetByText("Get started", playwright.PageGetByTextOptions{Exact: playwright.Bool(true)}).First().Click()
		t.pause(ctx, t.env.Settle)
	}

	if _, err := t.Page.Evaluate(removeSplashScript); err != nil {
		t.log.Debug("check_splash_remove_failed", "error", err)
	}
	t.pause(ctx, t.env.Settle)

	if err := browser.WaitVisible(t.Page, continueWithAuthentik, t.env.MarkerTimeout); err != nil {
		t.dump(ctx, "openwebui_no_auth_button")
		return errs.Wrap(errs.NotFound, "Continue with Authentik button missing", err)
	}
	if err := t.Page.Locator(continueWithAuthentik).First().Click(playwright.LocatorClickOptions{
		Force: playwright.Bool(true),
	}); err != nil {
		return errs.Wrap(errs.Unavailable, "click Continue with Authentik", err)
	}

	if err := t.login(ctx); err != nil {
		return err
	}

	for round := 0; round < settleRounds; round++ {
		if u := t.Page.URL(); strings.Contains(u, "chrome-error") || strings.Contains(u, "chromewebdata") {
			t.log.Warn("check_error_page", "url", u)
			_ = browser.Goto(t.Page, root, t.env.NavTimeout)
			t.idle()
		}
		t.dismissModals(ctx)
		if c := t.content(); strings.Contains(c, "New Chat") || strings.Contains(c, "chat-container") {
			break
		}
		t.pause(ctx, 2*t.env.Settle)
	}
	t.dismissModals(ctx)

	if err := t.open(urlutil.BuildAbsolute(origin, "/admin")); err != nil {
		return err
	}
	if err := browser.WaitText(t.Page, "Users", false, t.env.MarkerTimeout); err == nil {
		return nil
	}

	t.dump(ctx, "openwebui_admin_failure")
	c := t.content()
	switch {
	case strings.Contains(c, "New Chat") || strings.Contains(c, "chat-container"):
		return errs.Wrap(errs.PermissionDenied, "OpenWebUI", ErrNotAdmin)
	case strings.Contains(c, "Get started") || strings.Contains(c, "Sign In"):
		return errs.New(errs.PermissionDenied, "OIDC flow failed: back on the OpenWebUI login page")
	default:
		return errs.New(errs.Unavailable, "OpenWebUI in unknown state at "+t.Page.URL())
	}
}

// dismissModals closes the changelog modal if it is showing.
func (t *Tab) dismissModals(ctx context.Context) {
	for _, sel := range []string{okayLetsGo, closeButton} {
		if browser.Visible(t.Page, sel) {
			if err := t.Page.Locator(sel).First().Click(); err == nil {
				t.log.Debug("check_modal_dismissed", "selector", sel)
				t.pause(ctx, t.env.Settle)
			}
		}
	}
}
