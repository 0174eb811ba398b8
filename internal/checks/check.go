// Package checks verifies single sign-on end to end for each application
// behind the identity provider. A check opens the application, follows it to
// the provider, lets the login driver complete the flow, and then asserts the
// application shows a signed-in marker.
package checks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/ssocheck/internal/artifacts"
	"github.com/kuitang/ssocheck/internal/browser"
	"github.com/kuitang/ssocheck/internal/config"
	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/login"
	"github.com/kuitang/ssocheck/internal/obs"
	"github.com/kuitang/ssocheck/internal/urlutil"
)

var (
	// ErrLoginFailed means the driver spent its budget without leaving the provider.
	ErrLoginFailed = errors.New("identity provider login did not complete")
	// ErrNotAdmin means the user signed in but lacks administrator access.
	ErrNotAdmin = errors.New("signed in without admin access")
)

// Targets are the public origins of each service.
type Targets struct {
	Windmill  string
	LiteLLM   string
	OpenWebUI string
	IdP       string
}

// TargetsFromConfig derives the origins from BASE_DOMAIN.
func TargetsFromConfig(cfg *config.Config) Targets {
	return Targets{
		Windmill:  urlutil.ServiceOrigin("windmill", cfg.BaseDomain),
		LiteLLM:   urlutil.ServiceOrigin("llm", cfg.BaseDomain),
		OpenWebUI: urlutil.ServiceOrigin("chat", cfg.BaseDomain),
		IdP:       urlutil.ServiceOrigin("sso", cfg.BaseDomain),
	}
}

// Env is everything a check needs besides its page.
type Env struct {
	Targets     Targets
	Credentials login.Credentials
	// LoginOptions configure the driver; the per-check screenshot sink is
	// added by the check.
	LoginOptions []login.Option
	Recorder     *artifacts.Recorder

	// NavTimeout bounds navigations.
	NavTimeout time.Duration
	// RedirectTimeout bounds the wait for the return to the application.
	RedirectTimeout time.Duration
	// MarkerTimeout bounds each signed-in marker wait.
	MarkerTimeout time.Duration
	// Settle is the short pause between UI steps.
	Settle time.Duration

	// ExpectedResources are the names the admin pages must list.
	ExpectedResources []string
}

// NewEnv builds an Env from cfg.
func NewEnv(cfg *config.Config, rec *artifacts.Recorder) *Env {
	return &Env{
		Targets:     TargetsFromConfig(cfg),
		Credentials: login.Credentials{Identity: cfg.AdminEmail, Secret: cfg.AdminPassword},
		LoginOptions: []login.Option{
			login.WithMaxAttempts(cfg.LoginMaxAttempts),
			login.WithPauses(login.DefaultPauses().Scale(cfg.LoginPauseScale)),
		},
		Recorder:          rec,
		NavTimeout:        cfg.BrowserTimeout,
		RedirectTimeout:   60 * time.Second,
		MarkerTimeout:     15 * time.Second,
		Settle:            cfg.PauseScale(time.Second),
		ExpectedResources: []string{"OpenWebUI", "LiteLLM"},
	}
}

// Check is one named verification.
type Check struct {
	Name string
	// Login reports whether the check is an application login check.
	Login bool
	run   func(ctx context.Context, t *Tab) error
}

var registry = map[string]Check{
	"windmill":  {Name: "windmill", Login: true, run: runWindmill},
	"litellm":   {Name: "litellm", Login: true, run: runLiteLLM},
	"openwebui": {Name: "openwebui", Login: true, run: runOpenWebUI},
	"resources": {Name: "resources", run: runResources},
}

// Names returns every registered check name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves names to checks. "all" expands to every login check.
func Select(names ...string) ([]Check, error) {
	var out []Check
	seen := map[string]bool{}
	add := func(c Check) {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "all" {
			for _, n := range []string{"windmill", "litellm", "openwebui"} {
				add(registry[n])
			}
			continue
		}
		c, ok := registry[name]
		if !ok {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown check %q (want one of %s, all)", raw, strings.Join(Names(), ", ")))
		}
		add(c)
	}
	if len(out) == 0 {
		return nil, errs.New(errs.InvalidArgument, "no checks selected")
	}
	return out, nil
}

// Tab is one check's exclusive page plus its artifact scope.
type Tab struct {
	Page    playwright.Page
	env     *Env
	name    string
	rec     *artifacts.Recorder
	log     *slog.Logger
	outcome *login.Outcome
}

func newTab(ctx context.Context, env *Env, name string, page playwright.Page) *Tab {
	return &Tab{
		Page: page,
		env:  env,
		name: name,
		rec:  env.Recorder.Scope(name),
		log:  obs.From(ctx).With("pkg", "checks"),
	}
}

// open navigates and then waits briefly for the network to settle.
func (t *Tab) open(url string) error {
	t.log.Info("check_navigate", "url", url)
	if err := browser.Goto(t.Page, url, t.env.NavTimeout); err != nil {
		return errs.Wrap(errs.Unavailable, "navigate to "+url, err)
	}
	t.idle()
	return nil
}

// idle waits for network idle; long-polling apps never get there, so
// failures are ignored.
func (t *Tab) idle() {
	if err := browser.WaitForNetworkIdle(t.Page, t.env.NavTimeout); err != nil {
		t.log.Debug("check_network_idle_timeout", "url", t.Page.URL())
	}
}

func (t *Tab) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// login runs the driver on the current page.
func (t *Tab) login(ctx context.Context) error {
	opts := append(append([]login.Option(nil), t.env.LoginOptions...), login.WithScreenshots(t.rec))
	d := login.New(opts...)
	out := d.Run(ctx, browser.NewPageAdapter(t.Page), t.env.Credentials)
	t.outcome = &out
	if out.Err != nil {
		return errs.Wrap(errs.Unavailable, "login interrupted", out.Err)
	}
	if !out.Succeeded {
		return errs.Wrap(errs.PermissionDenied,
			fmt.Sprintf("after %d attempts (last state %s)", out.Attempts, out.Final), ErrLoginFailed)
	}
	return nil
}

// waitForHost waits until the page is back on origin's host.
func (t *Tab) waitForHost(origin string) error {
	host := urlutil.Host(origin)
	if err := browser.WaitForURL(t.Page, urlutil.HostPattern(host), t.env.RedirectTimeout); err != nil {
		return errs.Wrap(errs.Unavailable, "did not return to "+host+" (at "+t.Page.URL()+")", err)
	}
	return nil
}

// dump saves a screenshot and the page HTML under the given stem.
func (t *Tab) dump(ctx context.Context, stem string) {
	t.rec.SaveScreenshot(ctx, stem+".png", browser.Capture(t.Page))
	if html := browser.DumpHTML(t.Page); html != nil {
		t.rec.Save(ctx, stem+".html", html)
	}
}

func (t *Tab) content() string {
	return string(browser.DumpHTML(t.Page))
}
