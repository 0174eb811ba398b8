package login

import (
	"errors"
	"fmt"
	"slices"
)

// frame is one scripted page state.
type frame struct {
	url     string
	input   *Input
	text    string
	buttons []string // ready buttons
	visible []string // visible exact texts
	broken  bool     // every probe fails
}

// fakePage replays frames. In byRound mode the frame is chosen by how many
// times URL was read (one read per driver round); otherwise it advances on
// every submit or click.
type fakePage struct {
	frames  []frame
	byRound bool

	rounds  int
	actions int
	// filled holds the value typed into the current frame's input.
	filled map[int]string

	calls       []string
	screenshots int
	screenErr   error
}

func newFakePage(byRound bool, frames ...frame) *fakePage {
	return &fakePage{frames: frames, byRound: byRound, filled: map[int]string{}}
}

func (f *fakePage) index() int {
	i := f.actions
	if f.byRound {
		i = f.rounds - 1
	}
	if i < 0 {
		i = 0
	}
	if i >= len(f.frames) {
		i = len(f.frames) - 1
	}
	return i
}

func (f *fakePage) cur() frame { return f.frames[f.index()] }

func (f *fakePage) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// mutations returns only the calls that change page state.
func (f *fakePage) mutations() []string {
	var out []string
	for _, c := range f.calls {
		for _, prefix := range []string{"fill", "enter", "click"} {
			if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
				out = append(out, c)
			}
		}
	}
	return out
}

var errProbe = errors.New("probe timed out")

func (f *fakePage) URL() string {
	f.rounds++
	return f.cur().url
}

func (f *fakePage) WaitForNetworkIdle() error {
	f.record("idle")
	return nil
}

func (f *fakePage) ActiveInput() (*Input, error) {
	f.record("input")
	fr := f.cur()
	if fr.broken {
		return nil, errProbe
	}
	if fr.input == nil {
		return nil, nil
	}
	in := *fr.input
	if v, ok := f.filled[f.index()]; ok {
		in.Value = v
	}
	return &in, nil
}

func (f *fakePage) Text() (string, error) {
	if f.cur().broken {
		return "", errProbe
	}
	return f.cur().text, nil
}

func (f *fakePage) ButtonReady(label string) (bool, error) {
	if f.cur().broken {
		return false, errProbe
	}
	return slices.Contains(f.cur().buttons, label), nil
}

func (f *fakePage) TextVisible(text string) (bool, error) {
	if f.cur().broken {
		return false, errProbe
	}
	return slices.Contains(f.cur().visible, text), nil
}

func (f *fakePage) Fill(field Field, value string) error {
	f.record("fill %s %s", field, value)
	if f.cur().broken {
		return errProbe
	}
	f.filled[f.index()] = value
	return nil
}

func (f *fakePage) PressEnter() error {
	f.record("enter")
	f.actions++
	return nil
}

func (f *fakePage) ClickButton(label string) error {
	f.record("click %s", label)
	f.actions++
	return nil
}

func (f *fakePage) ClickText(text string) error {
	f.record("click %s", text)
	f.actions++
	return nil
}

func (f *fakePage) Screenshot() ([]byte, error) {
	f.screenshots++
	if f.screenErr != nil {
		return nil, f.screenErr
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}
