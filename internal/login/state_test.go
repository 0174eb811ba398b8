package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClassify_Table(t *testing.T) {
	t.Parallel()
	rules := DefaultRules()

	tests := []struct {
		name    string
		obs     Observation
		attempt int
		want    State
	}{
		{
			name:    "first round on app is not a redirect",
			obs:     Observation{URL: appURL},
			attempt: 1,
			want:    State{Kind: Unknown},
		},
		{
			name:    "later round off provider",
			obs:     Observation{URL: appURL, Input: &Input{Name: "uid"}},
			attempt: 2,
			want:    State{Kind: Redirected},
		},
		{
			name:    "uid field",
			obs:     Observation{URL: flowURL, Input: &Input{Name: "uid"}},
			attempt: 1,
			want:    State{Kind: IdentityPrompt},
		},
		{
			name:    "username autocomplete type",
			obs:     Observation{URL: flowURL, Input: &Input{Type: "username"}},
			attempt: 3,
			want:    State{Kind: IdentityPrompt},
		},
		{
			name:    "email placeholder",
			obs:     Observation{URL: flowURL, Input: &Input{Type: "text", Placeholder: "Email or Username"}},
			attempt: 3,
			want:    State{Kind: IdentityPrompt},
		},
		{
			name:    "lowercase email placeholder is not matched",
			obs:     Observation{URL: flowURL, Input: &Input{Type: "text", Placeholder: "email"}},
			attempt: 3,
			want:    State{Kind: Unknown},
		},
		{
			name:    "identity wins over password",
			obs:     Observation{URL: flowURL, Input: &Input{Name: "uid", Type: "password"}},
			attempt: 2,
			want:    State{Kind: IdentityPrompt},
		},
		{
			name:    "password by type",
			obs:     Observation{URL: flowURL, Input: &Input{Name: "secret", Type: "password"}},
			attempt: 2,
			want:    State{Kind: PasswordPrompt},
		},
		{
			name:    "filled password falls through to button",
			obs:     Observation{URL: flowURL, Input: &Input{Name: "password", Value: "x"}, ReadyButtons: []string{"Log in"}},
			attempt: 2,
			want:    State{Kind: ConsentPrompt, Label: "Log in"},
		},
		{
			name:    "button with no input",
			obs:     Observation{URL: flowURL, ReadyButtons: []string{"Authorize"}},
			attempt: 2,
			want:    State{Kind: ConsentPrompt, Label: "Authorize"},
		},
		{
			name:    "empty unknown input blocks buttons",
			obs:     Observation{URL: flowURL, Input: &Input{Name: "code"}, ReadyButtons: []string{"Continue"}},
			attempt: 2,
			want:    State{Kind: Unknown},
		},
		{
			name:    "button beats bubble",
			obs:     Observation{URL: flowURL, ReadyButtons: []string{"Next"}, Bubble: "akadmin"},
			attempt: 2,
			want:    State{Kind: ConsentPrompt, Label: "Next"},
		},
		{
			name:    "bubble",
			obs:     Observation{URL: flowURL, Bubble: "akadmin"},
			attempt: 2,
			want:    State{Kind: AccountBubble, Label: "akadmin"},
		},
		{
			name:    "denied with affordance",
			obs:     Observation{URL: flowURL, Text: "Invalid password", SwitchAccountVisible: true},
			attempt: 2,
			want:    State{Kind: ErrorDenied, Recoverable: true},
		},
		{
			name:    "denied without affordance",
			obs:     Observation{URL: flowURL, Text: "Permission denied."},
			attempt: 2,
			want:    State{Kind: ErrorDenied},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.obs, rules, tt.attempt))
		})
	}
}

func TestRules_OnProviderIgnoresCase(t *testing.T) {
	t.Parallel()
	rules := DefaultRules()

	assert.True(t, rules.OnProvider("https://Authentik.example.com/"))
	assert.True(t, rules.OnProvider("https://sso.example.com/IF/FLOW/x"))
	assert.False(t, rules.OnProvider("https://llm.example.com/ui/"))
	assert.False(t, Rules{}.OnProvider(flowURL))
}

func TestRules_BubbleLabels(t *testing.T) {
	t.Parallel()
	rules := DefaultRules()

	assert.Equal(t, []string{"u@example.com", "akadmin"}, rules.BubbleLabels(Credentials{Identity: "u@example.com"}))
	assert.Equal(t, []string{"akadmin"}, rules.BubbleLabels(Credentials{Identity: "akadmin"}))
	assert.Equal(t, []string{"akadmin"}, rules.BubbleLabels(Credentials{}))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "redirected", State{Kind: Redirected}.String())
	require.Equal(t, `consent_prompt("Authorize")`, State{Kind: ConsentPrompt, Label: "Authorize"}.String())
	require.Equal(t, "error_denied(recoverable=true)", State{Kind: ErrorDenied, Recoverable: true}.String())
	require.Equal(t, "unknown", Kind(99).String())
}

func TestPauses_ScaleZeroDisables(t *testing.T) {
	t.Parallel()

	require.Equal(t, Pauses{}, DefaultPauses().Scale(0))
	require.Equal(t, DefaultPauses(), DefaultPauses().Scale(1))
}

// =============================================================================
// Properties
// =============================================================================

func genObservation(t *rapid.T) Observation {
	o := Observation{
		URL:                  rapid.SampledFrom([]string{flowURL, appURL, "https://authentik.local/", "https://llm.example.com/ui/"}).Draw(t, "url"),
		Text:                 rapid.SampledFrom([]string{"", "Invalid password", "denied", "hello"}).Draw(t, "text"),
		ReadyButtons:         rapid.SliceOfDistinct(rapid.SampledFrom(DefaultRules().ButtonLabels), rapid.ID[string]).Draw(t, "buttons"),
		Bubble:               rapid.SampledFrom([]string{"", "akadmin"}).Draw(t, "bubble"),
		SwitchAccountVisible: rapid.Bool().Draw(t, "switch"),
	}
	if rapid.Bool().Draw(t, "has_input") {
		o.Input = &Input{
			Name:        rapid.SampledFrom([]string{"uid", "password", "otp", ""}).Draw(t, "name"),
			Type:        rapid.SampledFrom([]string{"text", "password", "username", "email"}).Draw(t, "type"),
			Placeholder: rapid.SampledFrom([]string{"", "Email", "Code"}).Draw(t, "placeholder"),
			Value:       rapid.SampledFrom([]string{"", "filled"}).Draw(t, "value"),
		}
	}
	return o
}

func testClassify_FirstRoundNeverRedirected(t *rapid.T) {
	if got := Classify(genObservation(t), DefaultRules(), 1); got.Kind == Redirected {
		t.Fatalf("round 1 classified as redirected")
	}
}

func TestClassify_FirstRoundNeverRedirected(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testClassify_FirstRoundNeverRedirected)
}

func testClassify_OffProviderIsRedirect(t *rapid.T) {
	o := genObservation(t)
	attempt := rapid.IntRange(2, 50).Draw(t, "attempt")
	rules := DefaultRules()

	got := Classify(o, rules, attempt)
	if !rules.OnProvider(o.URL) && got.Kind != Redirected {
		t.Fatalf("off-provider url %q classified as %s", o.URL, got)
	}
	if rules.OnProvider(o.URL) && got.Kind == Redirected {
		t.Fatalf("provider url %q classified as redirected", o.URL)
	}
}

func TestClassify_OffProviderIsRedirect(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testClassify_OffProviderIsRedirect)
}

func testClassify_NoButtonWhileInputEmpty(t *rapid.T) {
	o := genObservation(t)
	got := Classify(o, DefaultRules(), rapid.IntRange(1, 20).Draw(t, "attempt"))
	if o.Input.Empty() && got.Kind == ConsentPrompt {
		t.Fatalf("clicked %q while input %+v is empty", got.Label, *o.Input)
	}
}

func TestClassify_NoButtonWhileInputEmpty(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testClassify_NoButtonWhileInputEmpty)
}

func testClassify_ConsentLabelIsFirstReady(t *rapid.T) {
	o := genObservation(t)
	got := Classify(o, DefaultRules(), 1)
	if got.Kind == ConsentPrompt && got.Label != o.ReadyButtons[0] {
		t.Fatalf("want %q, got %q", o.ReadyButtons[0], got.Label)
	}
}

func TestClassify_ConsentLabelIsFirstReady(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testClassify_ConsentLabelIsFirstReady)
}
