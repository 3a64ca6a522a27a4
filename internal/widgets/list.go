package widgets

import (
	"fmt"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// choice pairs a rendered option with the selection it emits. key names the
// field used to recognise the option in a frozen selection.
type choice struct {
	option Option
	sel    selection.Selection
	key    string
}

func (c choice) matches(sel selection.Selection) bool {
	if sel == nil || !sel.Has(c.key) {
		return false
	}
	return fmt.Sprint(sel[c.key]) == fmt.Sprint(c.sel[c.key])
}

// List is a single-choice widget. Most list-shaped components are a List
// with type-specific choices.
type List struct {
	base
	title    string
	subtitle string
	warning  string
	choices  []choice
}

func newList(typ, title string, ctx Context, choices []choice) *List {
	l := &List{title: title, choices: choices}
	l.init(typ, ctx)
	return l
}

// View lists the options, marking the one already chosen.
func (l *List) View() View {
	v := l.view(l.title)
	v.Subtitle = l.subtitle
	v.Warning = l.warning
	v.Options = make([]Option, 0, len(l.choices))
	for _, c := range l.choices {
		opt := c.option
		opt.Selected = c.matches(v.Selected)
		v.Options = append(v.Options, opt)
	}
	if len(v.Options) == 0 && v.Warning == "" {
		v.Warning = "Nothing to choose from right now."
	}
	return v
}

// Choose emits the selection for option index.
func (l *List) Choose(index int) error {
	if err := l.guard(); err != nil {
		return err
	}
	if index < 0 || index >= len(l.choices) {
		return ErrNoSuchOption
	}
	c := l.choices[index]
	if c.option.Disabled {
		return ErrNoSuchOption
	}
	return l.emit(c.sel.Clone())
}

func choiceOf(key, id, label, detail string) choice {
	return choice{
		option: Option{ID: id, Label: label, Detail: detail},
		sel:    selection.Choice(key, id, label),
		key:    key,
	}
}
