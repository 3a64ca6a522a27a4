package widgets

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// defaultTextField is used when the portal does not name the field.
const defaultTextField = "text"

// TextInput collects one free-text answer.
type TextInput struct {
	base
	props TextInputProps
	field string

	draftMu sync.Mutex
	draft   string
	err     string
}

// NewTextInput builds a text_input.
func NewTextInput(p TextInputProps, ctx Context) Widget {
	t := &TextInput{props: p, field: orDefault(p.Field, defaultTextField)}
	t.init(selection.TypeTextInput, ctx)
	return t
}

// View shows the draft, or the submitted text once frozen.
func (t *TextInput) View() View {
	v := t.view(t.props.Title)
	t.draftMu.Lock()
	value, errMsg := t.draft, t.err
	t.draftMu.Unlock()
	if v.Selected != nil {
		value = v.Selected.String(t.field)
	}
	v.Fields = []Field{{Name: t.field, Label: t.props.Placeholder, Value: value, Required: !t.props.Optional, Error: errMsg}}
	v.Actions = []string{"submit"}
	if t.props.Optional {
		v.Actions = append(v.Actions, "skip")
	}
	return v
}

// SetText replaces the draft.
func (t *TextInput) SetText(text string) {
	t.draftMu.Lock()
	defer t.draftMu.Unlock()
	t.draft = text
	t.err = ""
}

// HandleKey feeds a key press. Enter without Shift submits; Shift+Enter
// inserts a newline in multiline inputs. It reports whether the draft was
// submitted.
func (t *TextInput) HandleKey(key string, shift bool) (bool, error) {
	if key != "Enter" {
		t.draftMu.Lock()
		t.draft += key
		t.draftMu.Unlock()
		return false, nil
	}
	if shift {
		if t.props.Multiline {
			t.draftMu.Lock()
			t.draft += "\n"
			t.draftMu.Unlock()
		}
		return false, nil
	}
	if err := t.Submit(); err != nil {
		return false, err
	}
	return true, nil
}

// Submit trims the draft and emits it. Blank input is rejected.
func (t *TextInput) Submit() error {
	if err := t.guard(); err != nil {
		return err
	}
	t.draftMu.Lock()
	text := strings.TrimSpace(t.draft)
	switch {
	case text == "":
		t.err = "Please enter a response."
	case t.props.MaxLength > 0 && utf8.RuneCountInString(text) > t.props.MaxLength:
		t.err = "Response is too long."
	default:
		t.err = ""
	}
	failed := t.err != ""
	t.draftMu.Unlock()
	if failed {
		return ErrInvalidInput
	}
	return t.emit(selection.Selection{"field": t.field, t.field: text})
}

// Skip declines an optional input.
func (t *TextInput) Skip() error {
	if !t.props.Optional {
		return ErrNotSupported
	}
	return t.emit(selection.Selection{"skip": t.field})
}
