package selection

// Component types sent by the portal in component_type. Aliases resolve to
// the canonical type listed first in each group.
const (
	TypeUrgency              = "urgency_selector"
	TypePatient              = "patient_selector"
	TypeDoctorList           = "doctor_list"
	TypeSpecialty            = "specialty_selector"
	TypeDateTime             = "date_time_picker"
	TypeDate                 = "date_picker"
	TypeMode                 = "appointment_mode"
	TypePackageList          = "package_list"
	TypeTestList             = "test_list"
	TypeAddressList          = "address_list"
	TypeAddressForm          = "address_form"
	TypeCenterList           = "center_list"
	TypeLocationList         = "location_list"
	TypeCollectionType       = "collection_type"
	TypeSymptoms             = "symptom_selector"
	TypeTextInput            = "text_input"
	TypeYesNo                = "yes_no"
	TypeQuickReplies         = "quick_replies"
	TypePreviousAppointments = "previous_appointments"
	TypeBookingSummary       = "booking_summary"
	TypeMemberType           = "member_type_selector"
	TypeBookingConfirmation  = "booking_confirmation"
)

var aliases = map[string][]string{
	TypePatient:      {"family_member_selector"},
	TypeDoctorList:   {"doctor_selector"},
	TypeSpecialty:    {"department_selector"},
	TypeDateTime:     {"date_time_selector", "slot_picker"},
	TypeMode:         {"consultation_mode", "mode_selector"},
	TypePackageList:  {"package_selector", "health_package_list"},
	TypeTestList:     {"lab_test_selector"},
	TypeAddressList:  {"address_selector"},
	TypeCenterList:   {"lab_center_selector"},
	TypeLocationList: {"location_selector"},
	TypeTextInput:    {"free_text"},
	TypeYesNo:        {"confirmation"},
	TypeQuickReplies: {"options"},
	TypeMemberType:   {"add_family_member"},
}

var canonical = func() map[string]string {
	out := make(map[string]string)
	for c, list := range aliases {
		for _, a := range list {
			out[a] = c
		}
	}
	return out
}()

// Aliases returns the alternate names that resolve to the canonical type.
func Aliases(componentType string) []string {
	list := aliases[componentType]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Canonical maps an alias to its canonical component type. Unknown values
// are returned unchanged.
func Canonical(componentType string) string {
	if c, ok := canonical[componentType]; ok {
		return c
	}
	return componentType
}
