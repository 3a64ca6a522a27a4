// Package selection holds the payload a widget produces when the patient
// answers an embedded component, and the rules for turning it into chat text.
package selection

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// DisplayKey is the field whose value, when present, is the chat label for
// the selection.
const DisplayKey = "display_message"

var (
	// ErrDisabled is returned when a widget receives input while disabled.
	ErrDisabled = errors.New("selection: widget is disabled")
	// ErrAlreadySelected is returned when a widget tries to emit twice.
	ErrAlreadySelected = errors.New("selection: widget already emitted a selection")
)

// Selection is the loosely typed record sent verbatim to the portal as
// user_selection.
type Selection map[string]any

// Choice builds the common {field: id, display_message: label} payload.
func Choice(field, id, label string) Selection {
	sel := Selection{field: id}
	return sel.WithDisplay(label)
}

// WithDisplay sets display_message when label is non-blank.
func (s Selection) WithDisplay(label string) Selection {
	if s == nil {
		s = Selection{}
	}
	if label = strings.TrimSpace(label); label != "" {
		s[DisplayKey] = label
	}
	return s
}

// DisplayMessage returns display_message exactly as set. Blank values count
// as absent.
func (s Selection) DisplayMessage() (string, bool) {
	msg := s.String(DisplayKey)
	return msg, strings.TrimSpace(msg) != ""
}

// Has reports whether key is present with a non-nil value.
func (s Selection) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// String returns the value at key rendered as text. Numbers decoded from
// JSON are formatted without exponent.
func (s Selection) String(key string) string {
	return scalarString(s[key])
}

// Bool returns the boolean at key. Strings "true"/"yes" count as true.
func (s Selection) Bool(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// Strings returns the list at key as strings, skipping non-scalar items.
func (s Selection) Strings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str := scalarString(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// Emitter guards a widget's onSelect callback: it fires at most once and
// never while the widget is disabled.
type Emitter struct {
	mu       sync.Mutex
	onSelect func(Selection)
	disabled bool
	fired    bool
}

// NewEmitter wraps onSelect. A nil callback is allowed (display-only use).
func NewEmitter(onSelect func(Selection), disabled bool) *Emitter {
	return &Emitter{onSelect: onSelect, disabled: disabled}
}

// Disabled reports whether further input must be ignored.
func (e *Emitter) Disabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled || e.fired
}

// Emit delivers sel exactly once.
func (e *Emitter) Emit(sel Selection) error {
	e.mu.Lock()
	if e.disabled {
		e.mu.Unlock()
		return ErrDisabled
	}
	if e.fired {
		e.mu.Unlock()
		return ErrAlreadySelected
	}
	e.fired = true
	cb := e.onSelect
	e.mu.Unlock()

	if cb != nil {
		cb(sel)
	}
	return nil
}
