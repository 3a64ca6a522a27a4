package widgets

import (
	"sync"

	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/wizard"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

var memberSections = []struct {
	typ    wizard.MemberType
	label  string
	detail string
}{
	{wizard.MemberNew, "New Member", "Add a family member to your account"},
	{wizard.MemberExisting, "Existing Patient", "Link a patient who already has a hospital record"},
	{wizard.MemberGuest, "Guest", "Book once without saving to your family"},
}

// MemberTypeSelector hosts the member-linking wizard. Completing any of the
// wizard's paths emits the widget's selection; cancelling discards the
// wizard so the next open starts fresh.
type MemberTypeSelector struct {
	base
	title     string
	initial   wizard.MemberType
	newWizard func(onComplete func(selection.Selection), onCancel func()) *wizard.Wizard
	logger    *logging.Logger

	wizMu sync.Mutex
	wiz   *wizard.Wizard
}

// NewMemberTypeSelector builds a member_type_selector.
func NewMemberTypeSelector(p MemberTypeProps, ctx Context) Widget {
	m := &MemberTypeSelector{
		title:     orDefault(p.Title, "Who is this appointment for?"),
		newWizard: ctx.NewWizard,
		logger:    ctx.logger(),
	}
	if t, ok := wizard.ParseMemberType(p.Initial); ok {
		m.initial = t
	}
	m.init(selection.TypeMemberType, ctx)
	return m
}

// Wizard returns the hosted wizard, creating it on first use. It is nil
// once the widget is frozen or when no wizard factory is configured.
func (m *MemberTypeSelector) Wizard() *wizard.Wizard {
	if m.disabled() || m.newWizard == nil {
		return nil
	}
	m.wizMu.Lock()
	defer m.wizMu.Unlock()
	if m.wiz != nil {
		return m.wiz
	}
	var w *wizard.Wizard
	w = m.newWizard(
		func(sel selection.Selection) {
			if err := m.emit(sel); err != nil {
				m.logger.Warn("member wizard completion dropped", "error", err)
			}
		},
		func() {
			m.wizMu.Lock()
			if m.wiz == w {
				m.wiz = nil
			}
			m.wizMu.Unlock()
		},
	)
	if w != nil && m.initial != "" {
		_ = w.Expand(m.initial)
	}
	m.wiz = w
	return w
}

// View lists the three sections, marking the expanded one.
func (m *MemberTypeSelector) View() View {
	v := m.view(m.title)
	expanded := wizard.MemberType("")
	if !v.Disabled {
		if w := m.Wizard(); w != nil {
			st := w.State()
			expanded = st.Expanded
			v.Error = st.Error
		}
	}
	frozen := v.Selected.String("patient_type")
	for _, s := range memberSections {
		v.Options = append(v.Options, Option{
			ID:       string(s.typ),
			Label:    s.label,
			Detail:   s.detail,
			Selected: s.typ == expanded || frozenSection(frozen) == s.typ,
		})
	}
	return v
}

func frozenSection(patientType string) wizard.MemberType {
	switch patientType {
	case "guest":
		return wizard.MemberGuest
	case "new_member":
		return wizard.MemberNew
	case "linked_member":
		return wizard.MemberExisting
	}
	return ""
}

// Choose expands (or collapses) a wizard section.
func (m *MemberTypeSelector) Choose(index int) error {
	if err := m.guard(); err != nil {
		return err
	}
	if index < 0 || index >= len(memberSections) {
		return ErrNoSuchOption
	}
	w := m.Wizard()
	if w == nil {
		return ErrNotSupported
	}
	return w.Expand(memberSections[index].typ)
}
