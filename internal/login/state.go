package login

import (
	"fmt"
	"strings"
)

// Kind names a recognized page state.
type Kind int

const (
	Unknown Kind = iota
	Redirected
	IdentityPrompt
	PasswordPrompt
	ConsentPrompt
	AccountBubble
	ErrorDenied
)

func (k Kind) String() string {
	switch k {
	case Redirected:
		return "redirected"
	case IdentityPrompt:
		return "identity_prompt"
	case PasswordPrompt:
		return "password_prompt"
	case ConsentPrompt:
		return "consent_prompt"
	case AccountBubble:
		return "account_bubble"
	case ErrorDenied:
		return "error_denied"
	default:
		return "unknown"
	}
}

// State is the classification of one observation. Label is the button text
// for ConsentPrompt and the bubble text for AccountBubble. Recoverable is set
// on ErrorDenied when a switch-account affordance is visible.
type State struct {
	Kind        Kind
	Label       string
	Recoverable bool
}

func (s State) String() string {
	switch {
	case s.Label != "":
		return fmt.Sprintf("%s(%q)", s.Kind, s.Label)
	case s.Kind == ErrorDenied:
		return fmt.Sprintf("%s(recoverable=%t)", s.Kind, s.Recoverable)
	default:
		return s.Kind.String()
	}
}

// Observation is the raw page signal gathered once per round.
type Observation struct {
	URL   string
	Input *Input
	Text  string
	// ReadyButtons holds the fallback labels whose button is visible and
	// enabled, in Rules.ButtonLabels order.
	ReadyButtons []string
	// Bubble is the first visible account label, if any.
	Bubble string
	// SwitchAccountVisible reports a visible "Not you?" affordance.
	SwitchAccountVisible bool
}

// Rules holds the markers and labels the classifier matches against.
type Rules struct {
	// ProviderMarkers are matched case-insensitively against the URL; any
	// hit means the page is still on the identity provider.
	ProviderMarkers []string

	IdentityNames            []string
	IdentityTypeHints        []string
	IdentityPlaceholderHints []string
	PasswordNames            []string
	PasswordTypes            []string

	// ButtonLabels are tried in order.
	ButtonLabels []string

	// AdminAccountLabel is offered as an account bubble besides the identity.
	AdminAccountLabel string

	DenialMarkers     []string
	SwitchAccountText string
}

// DefaultRules returns the rules for Authentik's flow executor.
func DefaultRules() Rules {
	return Rules{
		ProviderMarkers:          []string{"authentik", "/if/flow"},
		IdentityNames:            []string{"uid"},
		IdentityTypeHints:        []string{"username"},
		IdentityPlaceholderHints: []string{"Email"},
		PasswordNames:            []string{"password"},
		PasswordTypes:            []string{"password"},
		ButtonLabels:             []string{"Log in", "Continue", "Authorize", "Next"},
		AdminAccountLabel:        "akadmin",
		DenialMarkers:            []string{"Invalid password", "denied"},
		SwitchAccountText:        "Not you?",
	}
}

// OnProvider reports whether url still belongs to the identity provider.
func (r Rules) OnProvider(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range r.ProviderMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// IsIdentityField reports whether in looks like a username or email field.
func (r Rules) IsIdentityField(in *Input) bool {
	if in == nil {
		return false
	}
	for _, name := range r.IdentityNames {
		if in.Name == name {
			return true
		}
	}
	for _, hint := range r.IdentityTypeHints {
		if hint != "" && strings.Contains(in.Type, hint) {
			return true
		}
	}
	for _, hint := range r.IdentityPlaceholderHints {
		if hint != "" && strings.Contains(in.Placeholder, hint) {
			return true
		}
	}
	return false
}

// IsPasswordField reports whether in is a password input.
func (r Rules) IsPasswordField(in *Input) bool {
	if in == nil {
		return false
	}
	for _, name := range r.PasswordNames {
		if in.Name == name {
			return true
		}
	}
	for _, t := range r.PasswordTypes {
		if in.Type == t {
			return true
		}
	}
	return false
}

// Denied reports whether text carries an invalid-credential or access-denial marker.
func (r Rules) Denied(text string) bool {
	for _, marker := range r.DenialMarkers {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// BubbleLabels returns the account labels to look for, identity first.
func (r Rules) BubbleLabels(creds Credentials) []string {
	labels := make([]string, 0, 2)
	if creds.Identity != "" {
		labels = append(labels, creds.Identity)
	}
	if r.AdminAccountLabel != "" && r.AdminAccountLabel != creds.Identity {
		labels = append(labels, r.AdminAccountLabel)
	}
	return labels
}

// Classify maps one observation to a State. The first round never counts as
// redirected, since the flow may not have reached the provider yet.
//
// Precedence: redirect, identity fill, password fill, button (suppressed
// while a visible input is still empty), account bubble, denial, unknown.
func Classify(obs Observation, rules Rules, attempt int) State {
	if attempt > 1 && !rules.OnProvider(obs.URL) {
		return State{Kind: Redirected}
	}

	emptyInput := obs.Input.Empty()
	if emptyInput {
		if rules.IsIdentityField(obs.Input) {
			return State{Kind: IdentityPrompt}
		}
		if rules.IsPasswordField(obs.Input) {
			return State{Kind: PasswordPrompt}
		}
	}

	if !emptyInput && len(obs.ReadyButtons) > 0 {
		return State{Kind: ConsentPrompt, Label: obs.ReadyButtons[0]}
	}

	if obs.Bubble != "" {
		return State{Kind: AccountBubble, Label: obs.Bubble}
	}

	if rules.Denied(obs.Text) {
		return State{Kind: ErrorDenied, Recoverable: obs.SwitchAccountVisible}
	}

	return State{Kind: Unknown}
}
