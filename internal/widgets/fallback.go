package widgets

import (
	"time"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// DefaultDayCount is how many days the date fallback offers.
const DefaultDayCount = 5

// DefaultSlotTimes are offered when the portal sends no slots.
var DefaultSlotTimes = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

// DefaultDates returns the next DefaultDayCount calendar days starting
// today, labelled "Today", "Tomorrow", then the short weekday.
func DefaultDates(now time.Time) []DateOption {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make([]DateOption, 0, DefaultDayCount)
	for i := 0; i < DefaultDayCount; i++ {
		day := start.AddDate(0, 0, i)
		label := day.Format("Mon")
		switch i {
		case 0:
			label = "Today"
		case 1:
			label = "Tomorrow"
		}
		out = append(out, DateOption{Date: day.Format("2006-01-02"), Label: label})
	}
	return out
}

// DefaultSlots returns DefaultSlotTimes as slots.
func DefaultSlots() []Slot {
	out := make([]Slot, 0, len(DefaultSlotTimes))
	for _, t := range DefaultSlotTimes {
		out = append(out, Slot{Time: t, Label: selection.HumanTime(t)})
	}
	return out
}

func presetOptions(presets []selection.Preset) []PresetOption {
	out := make([]PresetOption, 0, len(presets))
	for _, p := range presets {
		out = append(out, PresetOption{Value: p.Value, Label: p.Label, Display: p.Display})
	}
	return out
}

// withPresets returns opts, or the fixed presets when opts is empty.
func withPresets(opts []PresetOption, presets []selection.Preset) []PresetOption {
	if len(opts) > 0 {
		return opts
	}
	return presetOptions(presets)
}

// Fixed lists offered when the portal sends an empty list. They keep the
// widget usable; the portal resolves the IDs or asks again.
var (
	defaultDoctors = []Doctor{
		{ID: "any_doctor", Name: "First available doctor", Specialty: "General Medicine"},
		{ID: "general_physician", Name: "General Physician", Specialty: "General Medicine"},
	}
	defaultSpecialties = []Specialty{
		{ID: "general_medicine", Name: "General Medicine"},
		{ID: "pediatrics", Name: "Pediatrics"},
		{ID: "gynecology", Name: "Obstetrics & Gynecology"},
		{ID: "orthopedics", Name: "Orthopedics"},
		{ID: "cardiology", Name: "Cardiology"},
		{ID: "dermatology", Name: "Dermatology"},
	}
	defaultPackages = []Package{
		{ID: "basic_health_check", Name: "Basic Health Check"},
		{ID: "comprehensive_health_check", Name: "Comprehensive Health Check"},
	}
	defaultLabTests = []LabTest{
		{ID: "cbc", Name: "Complete Blood Count"},
		{ID: "lipid_profile", Name: "Lipid Profile"},
		{ID: "hba1c", Name: "HbA1c"},
		{ID: "thyroid_profile", Name: "Thyroid Profile"},
	}
	defaultCenters = []Center{
		{ID: "nearest_center", Name: "Nearest collection center"},
	}
	defaultLocations = []Location{
		{ID: "main_hospital", Name: "Main hospital"},
	}
	defaultSymptoms = []string{"Fever", "Cough", "Headache", "Body pain", "Stomach pain"}
)

// DefaultDoctors returns the doctor_list fallback.
func DefaultDoctors() []Doctor { return append([]Doctor(nil), defaultDoctors...) }

// DefaultSpecialties returns the specialty_selector fallback.
func DefaultSpecialties() []Specialty { return append([]Specialty(nil), defaultSpecialties...) }

// DefaultPackages returns the package_list fallback.
func DefaultPackages() []Package { return append([]Package(nil), defaultPackages...) }

// DefaultLabTests returns the test_list fallback.
func DefaultLabTests() []LabTest { return append([]LabTest(nil), defaultLabTests...) }

// DefaultCenters returns the center_list fallback.
func DefaultCenters() []Center { return append([]Center(nil), defaultCenters...) }

// DefaultLocations returns the location_list fallback.
func DefaultLocations() []Location { return append([]Location(nil), defaultLocations...) }

// DefaultSymptoms returns the symptom_selector fallback.
func DefaultSymptoms() []string { return append([]string(nil), defaultSymptoms...) }

// orFallback returns items, or fallback() when items is empty.
func orFallback[T any](items []T, fallback func() []T) []T {
	if len(items) > 0 {
		return items
	}
	return fallback()
}
