package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/ssocheck/internal/login"
)

func TestTextFromHTML(t *testing.T) {
	t.Parallel()

	got := TextFromHTML(`<html><head><style>.x{}</style><script>var a = "denied";</script></head>
<body><h1>Welcome</h1>
<p>Invalid password &amp; more</p></body></html>`)
	assert.Equal(t, "Welcome Invalid password & more", got)
}

func TestInputFromResult(t *testing.T) {
	t.Parallel()

	assert.Nil(t, inputFromResult(nil))
	assert.Nil(t, inputFromResult("nope"))
	assert.Equal(t,
		&login.Input{Name: "uid", Type: "text", Placeholder: "Email or Username"},
		inputFromResult(map[string]any{"name": "uid", "type": "text", "placeholder": "Email or Username", "value": nil}),
	)
}

func TestButtonSelector(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `button:has-text("Log in")`, buttonSelector("Log in"))
}

// startSession launches Chromium or skips.
func startSession(t *testing.T) *Session {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in -short mode")
	}
	s, err := Start(context.Background(), Options{Headless: true, Timeout: BrowserTestTimeout})
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const shadowPage = `<!doctype html>
<html><body>
<input name="hidden" style="display:none">
<ak-flow-executor id="host"></ak-flow-executor>
<button disabled>Continue</button>
<button>Log in</button>
<span>akadmin</span>
<script>
const root = document.getElementById('host').attachShadow({mode: 'open'});
root.innerHTML = '<form><input name="uid" autocomplete="username" placeholder="Email or Username"></form>';
</script>
</body></html>`

func TestPageAdapter_ShadowRootInput(t *testing.T) {
	s := startSession(t)
	page, closePage, err := s.NewPage(context.Background())
	require.NoError(t, err)
	defer closePage()

	require.NoError(t, page.SetContent(shadowPage))
	a := NewPageAdapter(page)

	in, err := a.ActiveInput()
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, "uid", in.Name)
	assert.Equal(t, "Email or Username", in.Placeholder)
	assert.True(t, in.Empty())

	require.NoError(t, a.Fill(login.FieldIdentity, "user@example.com"))
	in, err = a.ActiveInput()
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", in.Value)

	ready, err := a.ButtonReady("Log in")
	require.NoError(t, err)
	assert.True(t, ready)

	ready, err = a.ButtonReady("Continue")
	require.NoError(t, err)
	assert.False(t, ready)

	ready, _ = a.ButtonReady("Authorize")
	assert.False(t, ready)

	visible, err := a.TextVisible("akadmin")
	require.NoError(t, err)
	assert.True(t, visible)

	png, err := a.Screenshot()
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
