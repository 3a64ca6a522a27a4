package widgets

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// ValidPincode reports whether value is a six-digit Indian postal code.
func ValidPincode(value string) bool {
	return pincodePattern.MatchString(value)
}

type formField struct {
	name     string
	label    string
	required bool
}

var addressFields = []formField{
	{"line1", "House / flat, street", true},
	{"line2", "Area, landmark", false},
	{"city", "City", true},
	{"state", "State", true},
	{"pincode", "Pincode", true},
	{"label", "Save as (Home, Work)", false},
}

// AddressForm collects a new address with inline validation.
type AddressForm struct {
	base
	title string

	formMu sync.Mutex
	values map[string]string
	errors map[string]string
}

// NewAddressForm builds an address_form, prefilled from props.
func NewAddressForm(p AddressFormProps, ctx Context) Widget {
	f := &AddressForm{
		title: orDefault(p.Title, "Add a new address"),
		values: map[string]string{
			"line1":   p.Prefill.Line1,
			"line2":   p.Prefill.Line2,
			"city":    p.Prefill.City,
			"state":   p.Prefill.State,
			"pincode": p.Prefill.Pincode,
			"label":   p.Prefill.Label,
		},
		errors: map[string]string{},
	}
	f.init(selection.TypeAddressForm, ctx)
	return f
}

// View lists the fields with their current values and errors.
func (f *AddressForm) View() View {
	v := f.view(f.title)
	f.formMu.Lock()
	defer f.formMu.Unlock()
	frozen, _ := v.Selected["address"].(map[string]any)
	for _, ff := range addressFields {
		value := f.values[ff.name]
		if frozen != nil {
			value = selection.Selection(frozen).String(ff.name)
		}
		v.Fields = append(v.Fields, Field{
			Name:     ff.name,
			Label:    ff.label,
			Value:    value,
			Required: ff.required,
			Error:    f.errors[ff.name],
		})
	}
	v.Actions = []string{"submit"}
	return v
}

// SetField updates one field and clears its error.
func (f *AddressForm) SetField(name, value string) error {
	if err := f.guard(); err != nil {
		return err
	}
	f.formMu.Lock()
	defer f.formMu.Unlock()
	if _, ok := f.values[name]; !ok {
		return fmt.Errorf("widgets: unknown address field %q", name)
	}
	f.values[name] = value
	delete(f.errors, name)
	return nil
}

// Submit validates every field and emits the address.
func (f *AddressForm) Submit() error {
	if err := f.guard(); err != nil {
		return err
	}
	f.formMu.Lock()
	addr := map[string]any{}
	f.errors = map[string]string{}
	for _, ff := range addressFields {
		value := strings.TrimSpace(f.values[ff.name])
		if ff.required && value == "" {
			f.errors[ff.name] = ff.label + " is required"
			continue
		}
		if value != "" {
			addr[ff.name] = value
		}
	}
	if pin, _ := addr["pincode"].(string); pin != "" && !ValidPincode(pin) {
		f.errors["pincode"] = "Enter a valid 6-digit pincode"
	}
	failed := len(f.errors) > 0
	f.formMu.Unlock()
	if failed {
		return ErrInvalidInput
	}

	sel := selection.Selection{"address": addr}
	return f.emit(sel.WithDisplay(selection.FormatAddress(selection.Selection(addr))))
}
