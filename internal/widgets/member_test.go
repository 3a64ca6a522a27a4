package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/wizard"
)

func wizardContext(got *captured) Context {
	ctx := got.ctx()
	ctx.NewWizard = func(onComplete func(selection.Selection), onCancel func()) *wizard.Wizard {
		return wizard.New(nil, onComplete, onCancel)
	}
	return ctx
}

func TestMemberTypeSelectorGuestPath(t *testing.T) {
	var got captured
	w := NewMemberTypeSelector(MemberTypeProps{}, wizardContext(&got)).(*MemberTypeSelector)

	v := w.View()
	require.Len(t, v.Options, 3)
	assert.Equal(t, "Guest", v.Options[2].Label)

	require.NoError(t, w.Choose(2))
	assert.True(t, w.View().Options[2].Selected)

	wiz := w.Wizard()
	require.NotNil(t, wiz)
	require.NoError(t, wiz.SetGuestField("name", "Meera"))
	require.NoError(t, wiz.SetGuestField("phone", "+919876543210"))
	require.NoError(t, wiz.SubmitGuest())

	sel := got.last(t)
	assert.Equal(t, "guest", sel["patient_type"])
	assert.Equal(t, "Booking for guest Meera", sel[selection.DisplayKey])

	assert.Nil(t, w.Wizard())
	v = w.View()
	assert.True(t, v.Disabled)
	assert.True(t, v.Options[2].Selected)
}

func TestMemberTypeSelectorInitialSection(t *testing.T) {
	var got captured
	w := NewMemberTypeSelector(MemberTypeProps{Initial: "link"}, wizardContext(&got)).(*MemberTypeSelector)
	require.NotNil(t, w.Wizard())
	assert.Equal(t, wizard.MemberExisting, w.Wizard().State().Expanded)
}

func TestMemberTypeSelectorCancelStartsFresh(t *testing.T) {
	var got captured
	w := NewMemberTypeSelector(MemberTypeProps{}, wizardContext(&got)).(*MemberTypeSelector)
	first := w.Wizard()
	require.NoError(t, first.Expand(wizard.MemberGuest))
	require.NoError(t, first.Cancel())

	second := w.Wizard()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Empty(t, second.State().Expanded)
	assert.Empty(t, got.sels)
}

func TestMemberTypeSelectorWithoutFactory(t *testing.T) {
	var got captured
	w := NewMemberTypeSelector(MemberTypeProps{}, got.ctx()).(*MemberTypeSelector)
	assert.Nil(t, w.Wizard())
	assert.ErrorIs(t, w.Choose(0), ErrNotSupported)
}
