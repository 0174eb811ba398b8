// Package browser owns the Playwright lifecycle and adapts playwright pages to
// the login driver.
package browser

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/obs"
)

// DefaultTimeout bounds every page action unless overridden.
const DefaultTimeout = 30 * time.Second

// Options configures a Session.
type Options struct {
	Headless bool
	// Timeout is the default for actions and navigations on every page.
	Timeout time.Duration
	// LogRequests logs every request and every failed request at debug level.
	LogRequests bool
	// Install downloads the driver and Chromium when they are missing.
	Install bool
}

// Session is one Playwright driver process with one Chromium instance. Each
// NewPage call gets its own browser context so checks never share cookies.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
}

// Start launches Playwright and Chromium.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := obs.From(ctx).With("pkg", "browser")

	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, errs.Wrap(errs.Unavailable, "install playwright", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "start playwright", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--disable-dev-shm-usage"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "launch chromium", err)
	}

	log.Info("browser_started", "headless", opts.Headless, "version", b.Version(), "timeout", opts.Timeout.String())
	return &Session{pw: pw, browser: b, opts: opts}, nil
}

// Timeout returns the session's default action timeout.
func (s *Session) Timeout() time.Duration { return s.opts.Timeout }

// NewPage opens a page in a fresh context. The returned func closes the
// context and is safe to call more than once.
func (s *Session) NewPage(ctx context.Context) (playwright.Page, func(), error) {
	log := obs.From(ctx).With("pkg", "browser")

	bctx, err := s.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
		Viewport:          &playwright.Size{Width: 1280, Height: 900},
	})
	if err != nil {
		return nil, func() {}, errs.Wrap(errs.Unavailable, "create browser context", err)
	}
	ms := float64(s.opts.Timeout.Milliseconds())
	bctx.SetDefaultTimeout(ms)
	bctx.SetDefaultNavigationTimeout(ms)

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, func() {}, errs.Wrap(errs.Unavailable, "create page", err)
	}

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		log.Debug("browser_console", "type", msg.Type(), "text", msg.Text())
	})
	if s.opts.LogRequests {
		page.OnRequest(func(r playwright.Request) {
			log.Debug("browser_request", "method", r.Method(), "url", r.URL())
		})
		page.OnRequestFailed(func(r playwright.Request) {
			log.Warn("browser_request_failed", "method", r.Method(), "url", r.URL(), "error", r.Failure())
		})
	}

	closed := false
	return page, func() {
		if closed {
			return
		}
		closed = true
		if err := bctx.Close(); err != nil {
			log.Debug("browser_context_close_failed", "error", err)
		}
	}, nil
}

// Close stops Chromium and the driver process.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
