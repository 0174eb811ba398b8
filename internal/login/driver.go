package login

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuitang/ssocheck/internal/logutil"
	"github.com/kuitang/ssocheck/internal/obs"
)

// DefaultMaxAttempts is the round budget when none is configured.
const DefaultMaxAttempts = 20

// Pauses are the settle delays after each kind of action.
type Pauses struct {
	AfterFill     time.Duration
	AfterSubmit   time.Duration
	AfterButton   time.Duration
	AfterBubble   time.Duration
	AfterRecovery time.Duration
	Idle          time.Duration
}

// DefaultPauses matches how long Authentik's flow executor takes to swap stages.
func DefaultPauses() Pauses {
	return Pauses{
		AfterFill:     1 * time.Second,
		AfterSubmit:   3 * time.Second,
		AfterButton:   4 * time.Second,
		AfterBubble:   2 * time.Second,
		AfterRecovery: 3 * time.Second,
		Idle:          3 * time.Second,
	}
}

// Scale multiplies every pause by factor. A factor <= 0 disables pauses.
func (p Pauses) Scale(factor float64) Pauses {
	s := func(d time.Duration) time.Duration {
		if factor <= 0 {
			return 0
		}
		return time.Duration(float64(d) * factor)
	}
	return Pauses{
		AfterFill:     s(p.AfterFill),
		AfterSubmit:   s(p.AfterSubmit),
		AfterButton:   s(p.AfterButton),
		AfterBubble:   s(p.AfterBubble),
		AfterRecovery: s(p.AfterRecovery),
		Idle:          s(p.Idle),
	}
}

// ScreenshotSink receives the per-round capture. *artifacts.Recorder satisfies it.
type ScreenshotSink interface {
	SaveScreenshot(ctx context.Context, name string, png []byte)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

// Step records one round of the loop.
type Step struct {
	Attempt int
	URL     string
	State   State
	// Action is a short description of what the driver did, "" for nothing.
	Action string
}

// Outcome is the result of Run.
type Outcome struct {
	Succeeded bool
	Attempts  int
	Final     State
	Trace     []Step
	// Err is set when the loop stopped because ctx was done.
	Err error
}

// Driver runs the login loop. The zero value is not usable; use New.
type Driver struct {
	maxAttempts int
	rules       Rules
	pauses      Pauses
	sink        ScreenshotSink
	sleep       Sleeper
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxAttempts sets the round budget. Values < 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(d *Driver) {
		if n >= 1 {
			d.maxAttempts = n
		}
	}
}

// WithRules replaces the classifier rules.
func WithRules(r Rules) Option {
	return func(d *Driver) { d.rules = r }
}

// WithPauses replaces the settle delays.
func WithPauses(p Pauses) Option {
	return func(d *Driver) { d.pauses = p }
}

// WithScreenshots saves one capture per round to sink.
func WithScreenshots(sink ScreenshotSink) Option {
	return func(d *Driver) { d.sink = sink }
}

// WithSleeper replaces the pause implementation. Tests pass a no-op.
func WithSleeper(s Sleeper) Option {
	return func(d *Driver) {
		if s != nil {
			d.sleep = s
		}
	}
}

// New returns a Driver with Authentik defaults.
func New(opts ...Option) *Driver {
	d := &Driver{
		maxAttempts: DefaultMaxAttempts,
		rules:       DefaultRules(),
		pauses:      DefaultPauses(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxAttempts returns the configured round budget.
func (d *Driver) MaxAttempts() int { return d.maxAttempts }

// Login runs the loop and reports whether the page left the identity provider.
func (d *Driver) Login(ctx context.Context, p Page, creds Credentials) bool {
	return d.Run(ctx, p, creds).Succeeded
}

// Run drives the flow for at most MaxAttempts rounds. It never returns an
// error for page failures; those only cost a round.
func (d *Driver) Run(ctx context.Context, p Page, creds Credentials) Outcome {
	log := obs.From(ctx).With("pkg", "login")
	log.Info("login_started", "identity", creds.Identity, "max_attempts", d.maxAttempts)

	if err := p.WaitForNetworkIdle(); err != nil {
		log.Debug("login_initial_idle_wait_failed", "error", err)
	}

	var out Outcome
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			log.Warn("login_cancelled", "attempts", out.Attempts, "error", err)
			return out
		}
		out.Attempts = attempt

		d.capture(ctx, log, p, attempt)

		o := d.observe(log, p, creds, attempt)
		state := Classify(o, d.rules, attempt)
		out.Final = state

		step := Step{Attempt: attempt, URL: o.URL, State: state}
		if state.Kind == Redirected {
			out.Trace = append(out.Trace, step)
			out.Succeeded = true
			log.Info("login_succeeded", "attempt", attempt, "url", o.URL)
			return out
		}

		step.Action = d.act(ctx, log, p, creds, state)
		out.Trace = append(out.Trace, step)
	}

	log.Warn("login_exhausted", "attempts", out.Attempts, "last_state", out.Final.String())
	return out
}

func (d *Driver) capture(ctx context.Context, log *slog.Logger, p Page, attempt int) {
	if d.sink == nil {
		return
	}
	png, err := p.Screenshot()
	if err != nil {
		log.Debug("login_screenshot_failed", "attempt", attempt, "error", err)
		return
	}
	d.sink.SaveScreenshot(ctx, fmt.Sprintf("auth_attempt_%d.png", attempt), png)
}

// observe gathers the page signal for one round. Probe errors count as
// absence. Once the URL shows a redirect nothing else is probed.
func (d *Driver) observe(log *slog.Logger, p Page, creds Credentials, attempt int) Observation {
	o := Observation{URL: p.URL()}
	log.Debug("login_attempt", "attempt", attempt, "url", o.URL)

	if attempt > 1 && !d.rules.OnProvider(o.URL) {
		return o
	}

	in, err := p.ActiveInput()
	if err != nil {
		log.Debug("login_input_probe_failed", "attempt", attempt, "error", err)
	} else if in != nil {
		o.Input = in
		log.Debug("login_active_input",
			"name", in.Name,
			"type", in.Type,
			"placeholder", in.Placeholder,
			"value", logutil.RedactInputValue(in.Name, in.Type, in.Value),
		)
	}

	for _, label := range d.rules.ButtonLabels {
		if ready, err := p.ButtonReady(label); err == nil && ready {
			o.ReadyButtons = append(o.ReadyButtons, label)
		}
	}

	for _, label := range d.rules.BubbleLabels(creds) {
		if visible, err := p.TextVisible(label); err == nil && visible {
			o.Bubble = label
			break
		}
	}

	if text, err := p.Text(); err == nil {
		o.Text = text
	}

	if d.rules.SwitchAccountText != "" && d.rules.Denied(o.Text) {
		if visible, err := p.TextVisible(d.rules.SwitchAccountText); err == nil {
			o.SwitchAccountVisible = visible
		}
	}
	return o
}

// act performs the single action for state and returns its description.
func (d *Driver) act(ctx context.Context, log *slog.Logger, p Page, creds Credentials, state State) string {
	switch state.Kind {
	case IdentityPrompt:
		return d.fillAndSubmit(ctx, log, p, FieldIdentity, creds.Identity)

	case PasswordPrompt:
		return d.fillAndSubmit(ctx, log, p, FieldPassword, creds.Secret)

	case ConsentPrompt:
		if err := p.ClickButton(state.Label); err != nil {
			log.Debug("login_button_click_failed", "label", state.Label, "error", err)
			d.sleep(ctx, d.pauses.Idle)
			return ""
		}
		log.Info("login_button_clicked", "label", state.Label)
		d.sleep(ctx, d.pauses.AfterButton)
		return "click " + state.Label

	case AccountBubble:
		if err := p.ClickText(state.Label); err != nil {
			log.Debug("login_bubble_click_failed", "label", state.Label, "error", err)
			d.sleep(ctx, d.pauses.Idle)
			return ""
		}
		log.Info("login_account_selected", "label", state.Label)
		d.sleep(ctx, d.pauses.AfterBubble)
		return "select " + state.Label

	case ErrorDenied:
		log.Warn("login_denied", "recoverable", state.Recoverable)
		if !state.Recoverable {
			d.sleep(ctx, d.pauses.Idle)
			return ""
		}
		if err := p.ClickText(d.rules.SwitchAccountText); err != nil {
			log.Debug("login_switch_account_failed", "error", err)
			d.sleep(ctx, d.pauses.Idle)
			return ""
		}
		d.sleep(ctx, d.pauses.AfterRecovery)
		return "click " + d.rules.SwitchAccountText

	default:
		d.sleep(ctx, d.pauses.Idle)
		return ""
	}
}

func (d *Driver) fillAndSubmit(ctx context.Context, log *slog.Logger, p Page, field Field, value string) string {
	if err := p.Fill(field, value); err != nil {
		log.Debug("login_fill_failed", "field", field.String(), "error", err)
		d.sleep(ctx, d.pauses.Idle)
		return ""
	}
	log.Info("login_field_filled", "field", field.String())
	d.sleep(ctx, d.pauses.AfterFill)

	if err := p.PressEnter(); err != nil {
		log.Debug("login_submit_failed", "field", field.String(), "error", err)
	}
	d.sleep(ctx, d.pauses.AfterSubmit)
	return "fill " + field.String()
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
