package selection

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var knownTypes = []string{
	TypeUrgency, TypePatient, TypeDoctorList, TypeSpecialty, TypeDateTime, TypeDate,
	TypeMode, TypePackageList, TypeTestList, TypeAddressList, TypeAddressForm,
	TypeCenterList, TypeLocationList, TypeCollectionType, TypeSymptoms, TypeTextInput,
	TypeYesNo, TypeQuickReplies, TypePreviousAppointments, TypeBookingSummary,
	TypeMemberType, TypeBookingConfirmation, "unregistered_widget",
}

var fieldNames = []string{
	"urgency", "doctor_id", "doctor_name", "date", "time", "mode", "package_name",
	"text", "name", "field", "skip", "confirmed", "label", "value", "patient_type",
	"guest_name", "patient_name", "change_doctor", "other", "unrelated",
}

func genSelection() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(4, gen.OneConstOf(anySlice(fieldNames)...)),
		gen.SliceOfN(4, gen.AlphaString()),
	).Map(func(vals []any) Selection {
		keys := vals[0].([]string)
		values := vals[1].([]string)
		sel := Selection{}
		for i := range keys {
			sel[keys[i]] = values[i]
		}
		return sel
	})
}

// Property: formatted text is never empty and never the JSON encoding of the value.
func TestFormatText_NeverEmptyNeverJSON(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("non-empty and not serialized", prop.ForAll(
		func(ct string, sel Selection) bool {
			text := FormatText(ct, sel)
			raw, err := json.Marshal(sel)
			if err != nil {
				return false
			}
			return strings.TrimSpace(text) != "" && text != string(raw)
		},
		gen.OneConstOf(anySlice(knownTypes)...),
		genSelection(),
	))

	properties.TestingRun(t)
}

// Property: a non-blank display_message is returned verbatim for any type.
func TestFormatText_DisplayMessagePrecedence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("display_message wins", prop.ForAll(
		func(ct string, sel Selection, msg string) bool {
			if strings.TrimSpace(msg) == "" {
				return true
			}
			sel[DisplayKey] = msg
			return FormatText(ct, sel) == msg
		},
		gen.OneConstOf(anySlice(knownTypes)...),
		genSelection(),
		gen.OneGenOf(
			gen.AlphaString(),
			gen.AlphaString().Map(func(v string) string { return "  " + v + " " }),
		),
	))

	properties.TestingRun(t)
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
