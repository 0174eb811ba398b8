// Package login drives an identity-provider login flow in a browser page.
//
// The Driver runs a bounded loop. Each round it observes the page (URL,
// first visible enabled input, button readiness, visible account bubbles,
// rendered text), classifies the observation into a State, and performs the
// single action that state calls for. It stops when the page has left the
// identity provider or the attempt budget is spent.
package login

// Field selects which credential a Fill call targets.
type Field int

const (
	FieldIdentity Field = iota
	FieldPassword
)

func (f Field) String() string {
	switch f {
	case FieldIdentity:
		return "identity"
	case FieldPassword:
		return "password"
	default:
		return "unknown"
	}
}

// Credentials is the identity/secret pair used for the flow. The driver only
// reads it; Secret is never logged.
type Credentials struct {
	Identity string
	Secret   string
}

// Input describes the first visible, enabled input element on the page.
type Input struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
}

// Empty reports whether the input currently holds no value.
func (i *Input) Empty() bool {
	return i != nil && i.Value == ""
}

// Page is the narrow automation surface the driver needs. Implementations
// bound every call by their own timeouts; the driver treats any error as
// "nothing observed" or "no action taken".
type Page interface {
	// URL returns the current page URL.
	URL() string
	// WaitForNetworkIdle blocks until the page's network is quiet.
	WaitForNetworkIdle() error
	// ActiveInput returns the first visible, enabled input, searching shadow
	// roots too, or nil when there is none.
	ActiveInput() (*Input, error)
	// Text returns the rendered text content of the page.
	Text() (string, error)
	// ButtonReady reports whether a button labelled label is visible and enabled.
	ButtonReady(label string) (bool, error)
	// TextVisible reports whether an element whose text equals text is visible.
	TextVisible(text string) (bool, error)
	// Fill types value into the field's input.
	Fill(field Field, value string) error
	// PressEnter submits the focused form.
	PressEnter() error
	// ClickButton clicks the first button labelled label.
	ClickButton(label string) error
	// ClickText clicks the first element whose text equals text.
	ClickText(text string) error
	// Screenshot captures the page as PNG.
	Screenshot() ([]byte, error)
}
