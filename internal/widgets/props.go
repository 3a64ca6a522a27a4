package widgets

import (
	"encoding/json"
	"strings"
)

// PresetOption is a value/label pair sent by the portal for fixed-choice
// widgets.
type PresetOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Display     string `json:"display_message,omitempty"`
}

// UrgencyProps is the urgency_selector contract.
type UrgencyProps struct {
	Title   string         `json:"title"`
	Options []PresetOption `json:"options"`
}

// Patient is one bookable person.
type Patient struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Age          int    `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
}

// PatientProps is the patient_selector contract.
type PatientProps struct {
	Title            string    `json:"title"`
	Patients         []Patient `json:"patients"`
	DefaultPatientID string    `json:"default_patient_id,omitempty"`
	HideAddMember    bool      `json:"hide_add_member,omitempty"`
}

// Doctor is one doctor_list entry.
type Doctor struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Specialty       string  `json:"specialty,omitempty"`
	Qualification   string  `json:"qualification,omitempty"`
	ExperienceYears int     `json:"experience_years,omitempty"`
	Fee             int     `json:"consultation_fee,omitempty"`
	Rating          float64 `json:"rating,omitempty"`
	NextAvailable   string  `json:"next_available,omitempty"`
}

// DoctorProps is the doctor_list contract.
type DoctorProps struct {
	Title   string   `json:"title"`
	Doctors []Doctor `json:"doctors"`
}

// Specialty is one department.
type Specialty struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SpecialtyProps is the specialty_selector contract.
type SpecialtyProps struct {
	Title       string      `json:"title"`
	Specialties []Specialty `json:"specialties"`
}

// Slot is a bookable time. Available defaults to true when absent.
type Slot struct {
	Time      string `json:"time"`
	Label     string `json:"label,omitempty"`
	Available *bool  `json:"available,omitempty"`
}

func (s Slot) open() bool { return s.Available == nil || *s.Available }

// DateOption is a bookable day, optionally with its own slots.
type DateOption struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Slots []Slot `json:"slots,omitempty"`
}

// DateTimeProps is the date_time_picker contract.
type DateTimeProps struct {
	Title      string       `json:"title"`
	DoctorName string       `json:"doctor_name,omitempty"`
	Dates      []DateOption `json:"available_dates"`
	Slots      []Slot       `json:"time_slots"`
	Warning    string       `json:"warning,omitempty"`
	// SelectedDate and SelectedTime pre-select one half of the pair.
	SelectedDate string `json:"selected_date,omitempty"`
	SelectedTime string `json:"selected_time,omitempty"`
}

// DateProps is the date_picker contract.
type DateProps struct {
	Title        string       `json:"title"`
	Dates        []DateOption `json:"available_dates"`
	Warning      string       `json:"warning,omitempty"`
	SelectedDate string       `json:"selected_date,omitempty"`
}

// ModeProps is the appointment_mode contract.
type ModeProps struct {
	Title string         `json:"title"`
	Modes []PresetOption `json:"modes"`
}

// Package is a health package.
type Package struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int    `json:"price,omitempty"`
	OriginalPrice int    `json:"original_price,omitempty"`
	TestsCount    int    `json:"tests_count,omitempty"`
	Description   string `json:"description,omitempty"`
}

// PackageProps is the package_list contract.
type PackageProps struct {
	Title    string    `json:"title"`
	Packages []Package `json:"packages"`
}

// LabTest is one orderable test.
type LabTest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int    `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
}

// TestListProps is the test_list contract.
type TestListProps struct {
	Title string    `json:"title"`
	Tests []LabTest `json:"tests"`
}

// Address is a saved or newly entered address.
type Address struct {
	ID        string `json:"id,omitempty"`
	Label     string `json:"label,omitempty"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// AddressListProps is the address_list contract.
type AddressListProps struct {
	Title     string    `json:"title"`
	Addresses []Address `json:"addresses"`
}

// AddressFormProps is the address_form contract.
type AddressFormProps struct {
	Title   string  `json:"title"`
	Prefill Address `json:"address"`
}

// Center is a lab or collection center.
type Center struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	DistanceKM float64 `json:"distance_km,omitempty"`
	Timings    string  `json:"timings,omitempty"`
}

// CenterProps is the center_list contract.
type CenterProps struct {
	Title   string   `json:"title"`
	Centers []Center `json:"centers"`
}

// Location is a hospital branch.
type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// LocationProps is the location_list contract.
type LocationProps struct {
	Title     string     `json:"title"`
	Locations []Location `json:"locations"`
}

// CollectionProps is the collection_type contract.
type CollectionProps struct {
	Title   string         `json:"title"`
	Options []PresetOption `json:"options"`
}

// SymptomProps is the symptom_selector contract.
type SymptomProps struct {
	Title      string   `json:"title"`
	Symptoms   []string `json:"symptoms"`
	AllowOther bool     `json:"allow_other,omitempty"`
}

// TextInputProps is the text_input contract.
type TextInputProps struct {
	Title       string `json:"title"`
	Field       string `json:"field"`
	Placeholder string `json:"placeholder,omitempty"`
	Multiline   bool   `json:"multiline,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	MaxLength   int    `json:"max_length,omitempty"`
}

// YesNoProps is the yes_no contract.
type YesNoProps struct {
	Question string `json:"question"`
	YesLabel string `json:"yes_label,omitempty"`
	NoLabel  string `json:"no_label,omitempty"`
}

// QuickReply is a labelled reply. The portal sends either plain strings or
// {label, value} objects.
type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts a bare string as both label and value.
func (q *QuickReply) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		q.Label, q.Value = s, s
		return nil
	}
	type plain QuickReply
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*q = QuickReply(p)
	if q.Value == "" {
		q.Value = q.Label
	}
	if q.Label == "" {
		q.Label = q.Value
	}
	return nil
}

// QuickRepliesProps is the quick_replies contract.
type QuickRepliesProps struct {
	Title   string       `json:"title"`
	Options []QuickReply `json:"options"`
}

// PastAppointment is an earlier visit eligible for follow-up.
type PastAppointment struct {
	ID         string `json:"id"`
	DoctorName string `json:"doctor_name,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Status     string `json:"status,omitempty"`
}

// PreviousAppointmentsProps is the previous_appointments contract.
type PreviousAppointmentsProps struct {
	Title        string            `json:"title"`
	Appointments []PastAppointment `json:"appointments"`
}

// MemberTypeProps is the member_type_selector contract.
type MemberTypeProps struct {
	Title   string `json:"title"`
	Initial string `json:"initial_type,omitempty"`
}

// ConfirmationProps is the booking_confirmation contract.
type ConfirmationProps struct {
	Title     string  `json:"title"`
	Message   string  `json:"message,omitempty"`
	BookingID string  `json:"booking_id,omitempty"`
	Status    string  `json:"status,omitempty"`
	Details   Summary `json:"details,omitempty"`
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
