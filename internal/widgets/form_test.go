package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

func TestTextInputTrimsAndSubmitsOnEnter(t *testing.T) {
	var got captured
	w := NewTextInput(TextInputProps{Field: "reason"}, got.ctx()).(*TextInput)

	w.SetText("  chest pain ")
	submitted, err := w.HandleKey("Enter", false)
	require.NoError(t, err)
	assert.True(t, submitted)
	assert.Equal(t, selection.Selection{"field": "reason", "reason": "chest pain"}, got.last(t))
	assert.Equal(t, "chest pain", w.View().Fields[0].Value)
}

func TestTextInputShiftEnterAddsNewline(t *testing.T) {
	var got captured
	w := NewTextInput(TextInputProps{Multiline: true}, got.ctx()).(*TextInput)
	w.SetText("line one")

	submitted, err := w.HandleKey("Enter", true)
	require.NoError(t, err)
	assert.False(t, submitted)
	assert.Empty(t, got.sels)

	_, _ = w.HandleKey("x", false)
	require.NoError(t, w.Submit())
	assert.Equal(t, "line one\nx", got.last(t)[defaultTextField])
}

func TestTextInputRejectsBlankAndLong(t *testing.T) {
	var got captured
	w := NewTextInput(TextInputProps{MaxLength: 5}, got.ctx()).(*TextInput)

	w.SetText("   ")
	assert.ErrorIs(t, w.Submit(), ErrInvalidInput)
	assert.NotEmpty(t, w.View().Fields[0].Error)

	w.SetText("too long")
	assert.ErrorIs(t, w.Submit(), ErrInvalidInput)
	assert.Empty(t, got.sels)
}

func TestTextInputSkip(t *testing.T) {
	var got captured
	required := NewTextInput(TextInputProps{Field: "notes"}, got.ctx()).(*TextInput)
	assert.ErrorIs(t, required.Skip(), ErrNotSupported)

	optional := NewTextInput(TextInputProps{Field: "notes", Optional: true}, got.ctx()).(*TextInput)
	assert.Contains(t, optional.View().Actions, "skip")
	require.NoError(t, optional.Skip())
	assert.Equal(t, selection.Selection{"skip": "notes"}, got.last(t))
}

func TestAddressFormValidation(t *testing.T) {
	var got captured
	w := NewAddressForm(AddressFormProps{Prefill: Address{City: "Pune", State: "MH"}}, got.ctx()).(*AddressForm)

	require.NoError(t, w.SetField("line1", "12 MG Road"))
	require.NoError(t, w.SetField("pincode", "011001"))
	assert.ErrorIs(t, w.Submit(), ErrInvalidInput)

	errs := map[string]string{}
	for _, f := range w.View().Fields {
		if f.Error != "" {
			errs[f.Name] = f.Error
		}
	}
	assert.Equal(t, map[string]string{"pincode": "Enter a valid 6-digit pincode"}, errs)
	assert.Error(t, w.SetField("country", "IN"))

	require.NoError(t, w.SetField("pincode", "411001"))
	require.NoError(t, w.Submit())
	sel := got.last(t)
	assert.Equal(t, "12 MG Road, Pune, MH, 411001", sel[selection.DisplayKey])
	addr, ok := sel["address"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "411001", addr["pincode"])
	assert.NotContains(t, addr, "line2")
}

func TestAddressFormRequiredFields(t *testing.T) {
	var got captured
	w := NewAddressForm(AddressFormProps{}, got.ctx()).(*AddressForm)
	assert.ErrorIs(t, w.Submit(), ErrInvalidInput)
	missing := 0
	for _, f := range w.View().Fields {
		if f.Error != "" {
			missing++
		}
	}
	assert.Equal(t, 4, missing)
}

func TestTestListTotalsAndConfirm(t *testing.T) {
	var got captured
	w := NewTestList(TestListProps{Tests: []LabTest{
		{ID: "t1", Name: "CBC", Price: 300},
		{ID: "t2", Name: "Lipid profile", Price: 700},
		{ID: "t3", Name: "HbA1c", Price: 450},
	}}, got.ctx())
	m := w.(MultiChooser)

	assert.ErrorIs(t, m.Confirm(), ErrNothingSelected)
	require.NoError(t, m.Toggle(0))
	require.NoError(t, m.Toggle(2))
	require.NoError(t, m.Toggle(1))
	require.NoError(t, m.Toggle(1))
	assert.Equal(t, "₹750", w.View().Total)

	require.NoError(t, m.Confirm())
	sel := got.last(t)
	assert.Equal(t, []string{"t1", "t3"}, sel["test_ids"])
	assert.Equal(t, []string{"CBC", "HbA1c"}, sel["test_names"])
}

func TestSymptomSelectorOtherText(t *testing.T) {
	var got captured
	w := NewSymptomSelector(SymptomProps{Symptoms: []string{"Fever", "Cough"}, AllowOther: true}, got.ctx()).(*SymptomSelector)

	w.SetText(" dizziness ")
	require.NoError(t, w.Toggle(1))
	require.NoError(t, w.Confirm())
	assert.Equal(t, selection.Selection{"symptoms": []string{"Cough"}, "other": "dizziness"}, got.last(t))
}

func TestSymptomSelectorFreeTextOnly(t *testing.T) {
	var got captured
	w := NewSymptomSelector(SymptomProps{}, got.ctx()).(*SymptomSelector)
	require.Len(t, w.View().Fields, 1)

	w.SetText("back pain")
	require.NoError(t, w.Submit())
	assert.Equal(t, []string{}, got.last(t)["symptoms"])
}
