package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/ssocheck/internal/browser"
	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/login"
	"github.com/kuitang/ssocheck/internal/urlutil"
)

// runResources signs into the provider's admin interface and verifies the
// expected applications and providers are configured.
func runResources(ctx context.Context, t *Tab) error {
	admin := urlutil.BuildAbsolute(t.env.Targets.IdP, "/if/admin/")
	if err := t.open(admin); err != nil {
		return err
	}

	u := t.Page.URL()
	if !strings.Contains(u, "/if/admin") || strings.Contains(u, "flow/login") || login.DefaultRules().OnProvider(u) {
		if err := t.login(ctx); err != nil {
			t.dump(ctx, "resource_verification_failure")
			return err
		}
	}

	adminRe := regexp.MustCompile(`^` + regexp.QuoteMeta(admin))
	if err := browser.WaitForURL(t.Page, adminRe, t.env.MarkerTimeout); err != nil {
		t.log.Warn("check_admin_url_mismatch", "url", t.Page.URL())
	}

	for _, section := range []string{"applications", "providers"} {
		if err := t.verifySection(ctx, admin, section); err != nil {
			t.dump(ctx, "resource_verification_failure")
			return err
		}
	}
	return nil
}

func (t *Tab) verifySection(ctx context.Context, admin, section string) error {
	if err := browser.Goto(t.Page, admin+"#/core/"+section, t.env.NavTimeout); err != nil {
		return errs.Wrap(errs.Unavailable, "open admin "+section, err)
	}
	t.idle()
	t.pause(ctx, 2*t.env.Settle)

	if err := browser.WaitVisible(t.Page, "ak-page-header", t.env.MarkerTimeout); err != nil {
		return errs.Wrap(errs.NotFound, "admin "+section+" page did not render", err)
	}

	title := strings.TrimSuffix(strings.ToUpper(section[:1])+section[1:], "s")
	for _, name := range t.env.ExpectedResources {
		n, err := t.Page.GetByText(name, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)}).Count()
		if err != nil || n == 0 {
			return errs.New(errs.NotFound, fmt.Sprintf("%s '%s' missing", title, name))
		}
		t.log.Info("check_resource_found", "section", section, "name", name)
	}
	return nil
}
