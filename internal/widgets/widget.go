// Package widgets implements the embedded components the booking assistant
// attaches to its messages. Each widget decodes its component_data into a
// typed props struct, exposes a read-only View for presentation and offers
// action methods that validate input and emit exactly one selection.
package widgets

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/careportal-chat/internal/booking"
	"github.com/wolfman30/careportal-chat/internal/payments"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/wizard"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

var (
	// ErrNoSuchOption is returned for an out-of-range option index.
	ErrNoSuchOption = errors.New("widgets: no such option")
	// ErrNothingSelected is returned when confirming an empty multi-select.
	ErrNothingSelected = errors.New("widgets: nothing selected")
	// ErrInvalidInput is returned when local validation fails; details are
	// in the view's field errors.
	ErrInvalidInput = errors.New("widgets: invalid input")
	// ErrNotSupported is returned for actions a widget does not offer in its
	// current configuration.
	ErrNotSupported = errors.New("widgets: action not supported")
)

// Widget is an embedded component bound to one assistant message.
type Widget interface {
	Type() string
	View() View
}

// Chooser picks one of the view's options.
type Chooser interface {
	Choose(index int) error
}

// Confirmer commits a widget's pending input.
type Confirmer interface {
	Confirm() error
}

// MultiChooser toggles options before confirming them together.
type MultiChooser interface {
	Toggle(index int) error
	Confirmer
}

// DateTimeChooser picks a date and a time; the selection is emitted as soon
// as both parts are set.
type DateTimeChooser interface {
	ChooseDate(index int) error
	ChooseTime(index int) error
}

// TextSubmitter accepts free text.
type TextSubmitter interface {
	SetText(text string)
	Submit() error
}

// Skipper declines an optional input.
type Skipper interface {
	Skip() error
}

// FormFiller edits named fields and submits them.
type FormFiller interface {
	SetField(name, value string) error
	Submit() error
}

// Changer asks the assistant to revisit a booking detail.
type Changer interface {
	Change(key string) error
}

// Payer runs the booking payment.
type Payer interface {
	Pay(ctx context.Context) (*payments.Result, error)
}

// WizardHost exposes an embedded member-linking wizard.
type WizardHost interface {
	Wizard() *wizard.Wizard
}

// Option is one choice shown by a widget.
type Option struct {
	ID       string
	Label    string
	Detail   string
	Selected bool
	Disabled bool
}

// Field is one input of a form widget.
type Field struct {
	Name     string
	Label    string
	Value    string
	Required bool
	Error    string
}

// Row is one line of a key/value table.
type Row struct {
	Key       string
	Label     string
	Value     string
	ChangeKey string
}

// View is what a front-end renders for a widget.
type View struct {
	Type     string
	Title    string
	Subtitle string
	Options  []Option
	Dates    []Option
	Times    []Option
	Fields   []Field
	Rows     []Row
	Total    string
	Warning  string
	Error    string
	Selected selection.Selection
	Disabled bool
	Actions  []string
}

// Context carries what a widget needs beyond its props.
type Context struct {
	ConversationID   string
	Disabled         bool
	Selection        selection.Selection
	OnSelect         func(selection.Selection)
	FamilyMembers    []booking.FamilyMember
	DefaultPatientID string
	Payments         *payments.Flow
	NewWizard        func(onComplete func(selection.Selection), onCancel func()) *wizard.Wizard
	Now              func() time.Time
	Logger           *logging.Logger
}

func (c Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Context) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Default()
}

// base carries the emit-once guard and the frozen selection every widget
// shares.
type base struct {
	typ     string
	emitter *selection.Emitter

	mu       sync.Mutex
	selected selection.Selection
}

func (b *base) init(typ string, ctx Context) {
	b.typ = typ
	b.emitter = selection.NewEmitter(ctx.OnSelect, ctx.Disabled)
	b.selected = ctx.Selection.Clone()
}

func (b *base) Type() string { return b.typ }

func (b *base) disabled() bool { return b.emitter.Disabled() }

func (b *base) emit(sel selection.Selection) error {
	if err := b.emitter.Emit(sel); err != nil {
		return err
	}
	b.mu.Lock()
	b.selected = sel.Clone()
	b.mu.Unlock()
	return nil
}

func (b *base) guard() error {
	if b.emitter.Disabled() {
		return selection.ErrDisabled
	}
	return nil
}

func (b *base) view(title string) View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return View{
		Type:     b.typ,
		Title:    title,
		Selected: b.selected.Clone(),
		Disabled: b.emitter.Disabled(),
	}
}
