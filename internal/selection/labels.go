package selection

// Preset is one of the fixed choices a widget offers when the portal does
// not send its own list. Label is the button text, Display the chat text.
type Preset struct {
	Value   string
	Label   string
	Display string
}

// UrgencyPresets are the urgency choices in display order.
var UrgencyPresets = []Preset{
	{Value: "urgent", Label: "Urgent (Today/ASAP)", Display: "Urgent - today/ASAP"},
	{Value: "this_week", Label: "This Week", Display: "Within this week"},
	{Value: "flexible", Label: "Flexible / Routine", Display: "Flexible - any convenient time"},
	{Value: "specific_date", Label: "I have a date in mind", Display: "I have a specific date in mind"},
}

// ModePresets are the consultation modes.
var ModePresets = []Preset{
	{Value: "in_person", Label: "In-person visit", Display: "In-person visit"},
	{Value: "video", Label: "Video consultation", Display: "Video consultation"},
	{Value: "home_visit", Label: "Home visit", Display: "Home visit"},
}

// CollectionPresets are the sample collection options for lab bookings.
var CollectionPresets = []Preset{
	{Value: "home_collection", Label: "Home sample collection", Display: "Home sample collection"},
	{Value: "center_visit", Label: "Visit a collection center", Display: "I'll visit a collection center"},
}

// ChangeTargets maps a booking-summary row key to the selection field that
// asks the assistant to revisit it.
var ChangeTargets = map[string]string{
	"patient":  "change_patient",
	"doctor":   "change_doctor",
	"mode":     "change_mode",
	"date":     "change_datetime",
	"time":     "change_datetime",
	"package":  "change_package",
	"address":  "change_address",
	"center":   "change_center",
	"location": "change_location",
	"tests":    "change_tests",
}

var changeLabels = map[string]string{
	"change_patient":  "Change patient",
	"change_doctor":   "Change doctor",
	"change_mode":     "Change consultation mode",
	"change_datetime": "Change date & time",
	"change_package":  "Change package",
	"change_address":  "Change address",
	"change_center":   "Change center",
	"change_location": "Change location",
	"change_tests":    "Change tests",
}

// PresetDisplay returns the chat text for value within presets.
func PresetDisplay(presets []Preset, value string) (string, bool) {
	for _, p := range presets {
		if p.Value == value {
			return p.Display, true
		}
	}
	return "", false
}
