package booking

import "github.com/wolfman30/careportal-chat/internal/selection"

// WidgetDisabled is the read-only rule for the widget on messages[i]: any
// later message, an existing answer, or an in-flight request freezes it.
// It is always derived from the list, never stored.
func WidgetDisabled(messages []Message, i int, loading bool) bool {
	if i < 0 || i >= len(messages) {
		return true
	}
	hasNext := i < len(messages)-1
	return hasNext || messages[i].Answered() || loading
}

// Interactive reports whether messages[i] shows a widget that still
// accepts input.
func Interactive(messages []Message, i int, loading bool) bool {
	if i < 0 || i >= len(messages) || !messages[i].HasComponent() {
		return false
	}
	return !WidgetDisabled(messages, i, loading)
}

// ActiveIndex returns the index of the single interactive message, or -1.
func ActiveIndex(messages []Message, loading bool) int {
	last := len(messages) - 1
	if Interactive(messages, last, loading) {
		return last
	}
	return -1
}

// MergeMessages applies a server message list on top of the local one.
// A locally answered message never becomes unanswered again, even when the
// incoming copy predates the answer.
func MergeMessages(local, incoming []Message) []Message {
	answered := make(map[string]Message, len(local))
	for _, m := range local {
		if m.ID != "" && m.Answered() {
			answered[m.ID] = m
		}
	}

	out := make([]Message, len(incoming))
	for i, m := range incoming {
		if prev, ok := answered[m.ID]; ok && !m.Answered() {
			m.UserSelection = prev.UserSelection.Clone()
		}
		out[i] = m
	}
	return out
}

// Freeze returns a copy of messages with the message identified by id
// answered with sel. Already-answered messages are left untouched.
func Freeze(messages []Message, id string, sel selection.Selection) ([]Message, bool) {
	if sel == nil {
		sel = selection.Selection{}
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if out[i].Answered() {
			return out, false
		}
		out[i].UserSelection = sel.Clone()
		return out, true
	}
	return out, false
}
