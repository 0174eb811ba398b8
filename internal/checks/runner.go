package checks

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/login"
	"github.com/kuitang/ssocheck/internal/obs"
)

// PageOpener hands out isolated pages. *browser.Session satisfies it.
type PageOpener interface {
	NewPage(ctx context.Context) (playwright.Page, func(), error)
}

// Result is the outcome of one check.
type Result struct {
	Check    string
	Err      error
	Login    *login.Outcome
	Duration time.Duration
}

// Passed reports whether the check succeeded.
func (r Result) Passed() bool { return r.Err == nil }

// Runner executes checks, each on its own page.
type Runner struct {
	pages PageOpener
	env   *Env
	// parallel caps concurrent checks; 1 runs them in order.
	parallel int
	// starts spaces check starts so logins do not hit the IdP at once.
	starts *rate.Limiter
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStartInterval spaces check starts at least d apart. d <= 0 disables pacing.
func WithStartInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d <= 0 {
			r.starts = nil
			return
		}
		r.starts = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewRunner returns a Runner. parallel < 1 is treated as 1.
func NewRunner(pages PageOpener, env *Env, parallel int, opts ...RunnerOption) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	r := &Runner{pages: pages, env: env, parallel: parallel}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes checks and returns one Result per check in input order. A
// failing check never stops the others.
func (r *Runner) Run(ctx context.Context, checks []Check) []Result {
	results := make([]Result, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, c := range checks {
		i, c := i, c
		g.Go(func() error {
			results[i] = r.runOne(gctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, c Check) Result {
	ctx = obs.WithCheck(ctx, c.Name)
	log := obs.From(ctx).With("pkg", "checks")
	start := time.Now()
	res := Result{Check: c.Name}

	if err := ctx.Err(); err != nil {
		res.Err = errs.Wrap(errs.Unavailable, "not started", err)
		return res
	}
	if r.starts != nil {
		if err := r.starts.Wait(ctx); err != nil {
			res.Err = errs.Wrap(errs.Unavailable, "not started", err)
			return res
		}
	}

	log.Info("check_started")
	page, closePage, err := r.pages.NewPage(ctx)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("check_failed", "error", err)
		return res
	}
	defer closePage()

	t := newTab(ctx, r.env, c.Name, page)
	err = c.run(ctx, t)
	res.Login = t.outcome
	res.Duration = time.Since(start)

	if err != nil {
		t.dump(ctx, c.Name+"_failure")
		res.Err = err
		log.Error("check_failed", "error", err, "code", string(errs.CodeOf(err)), "duration_ms", res.Duration.Milliseconds())
		return res
	}
	log.Info("check_passed", "duration_ms", res.Duration.Milliseconds())
	return res
}

// FirstError returns the first failure in results, or nil.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
