package selection

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fallback is the chat text used when nothing more specific can be derived.
const Fallback = "Selection confirmed"

// FormatText turns a widget's selection into the user-visible chat text.
// display_message always wins. The result is never empty and never a
// serialized form of value.
func FormatText(componentType string, value any) string {
	sel, ok := asSelection(value)
	if ok {
		if msg, has := sel.DisplayMessage(); has {
			return msg
		}
		if text := strings.TrimSpace(formatKnown(Canonical(componentType), sel)); text != "" {
			return text
		}
	}
	return genericText(value)
}

func asSelection(value any) (Selection, bool) {
	switch v := value.(type) {
	case Selection:
		return v, v != nil
	case map[string]any:
		return Selection(v), v != nil
	}
	return nil, false
}

func formatKnown(componentType string, sel Selection) string {
	if target := changeTarget(sel); target != "" {
		return changeLabels[target]
	}
	if sel.Has("skip") {
		return "Skipped"
	}

	switch componentType {
	case TypeUrgency:
		if text, ok := PresetDisplay(UrgencyPresets, sel.String("urgency")); ok {
			return text
		}
	case TypePatient:
		if sel.Bool("add_member") {
			return "Add a family member"
		}
		if name := sel.String("patient_name"); name != "" {
			return "Booking for " + name
		}
		if sel.String("patient_id") != "" {
			return "Patient selected"
		}
	case TypeDoctorList:
		if name := sel.String("doctor_name"); name != "" {
			return name
		}
		if sel.String("doctor_id") != "" {
			return "Doctor selected"
		}
	case TypeSpecialty:
		return firstNonEmpty(sel.String("specialty_name"), sel.String("specialty"))
	case TypeDateTime:
		date, clock := sel.String("date"), sel.String("time")
		switch {
		case date != "" && clock != "":
			return HumanDate(date) + " at " + HumanTime(clock)
		case date != "":
			return HumanDate(date)
		case clock != "":
			return HumanTime(clock)
		}
	case TypeDate:
		if date := sel.String("date"); date != "" {
			return HumanDate(date)
		}
	case TypeMode:
		mode := firstNonEmpty(sel.String("mode"), sel.String("consultation_mode"))
		if text, ok := PresetDisplay(ModePresets, mode); ok {
			return text
		}
	case TypePackageList:
		if name := sel.String("package_name"); name != "" {
			return name
		}
		if sel.String("package_id") != "" {
			return "Package selected"
		}
	case TypeTestList:
		if names := sel.Strings("test_names"); len(names) > 0 {
			return strings.Join(names, ", ")
		}
		if ids := sel.Strings("test_ids"); len(ids) > 0 {
			return fmt.Sprintf("%d tests selected", len(ids))
		}
	case TypeAddressList:
		if sel.Bool("add_new_address") {
			return "Add a new address"
		}
		if label := sel.String("address_label"); label != "" {
			return label
		}
		if sel.String("address_id") != "" {
			return "Address selected"
		}
	case TypeAddressForm:
		if addr, ok := asSelection(sel["address"]); ok {
			return FormatAddress(addr)
		}
	case TypeCenterList:
		return firstNonEmpty(sel.String("center_name"), labelIfSet(sel, "center_id", "Center selected"))
	case TypeLocationList:
		return firstNonEmpty(sel.String("location_name"), labelIfSet(sel, "location_id", "Location selected"))
	case TypeCollectionType:
		if text, ok := PresetDisplay(CollectionPresets, sel.String("collection_type")); ok {
			return text
		}
	case TypeSymptoms:
		symptoms := sel.Strings("symptoms")
		if other := strings.TrimSpace(sel.String("other")); other != "" {
			symptoms = append(symptoms, other)
		}
		if len(symptoms) > 0 {
			return strings.Join(symptoms, ", ")
		}
	case TypeTextInput:
		if field := sel.String("field"); field != "" {
			if text := strings.TrimSpace(sel.String(field)); text != "" {
				return text
			}
		}
		return strings.TrimSpace(sel.String("text"))
	case TypeYesNo:
		if v, ok := sel["confirmed"].(bool); ok {
			if v {
				return "Yes"
			}
			return "No"
		}
	case TypeQuickReplies:
		return firstNonEmpty(sel.String("label"), sel.String("value"))
	case TypePreviousAppointments:
		if sel.String("appointment_id") != "" {
			return "Follow-up for a previous appointment"
		}
	case TypeMemberType:
		switch sel.String("patient_type") {
		case "guest":
			if name := sel.String("guest_name"); name != "" {
				return "Booking for guest " + name
			}
		case "new_member", "linked_member":
			if name := sel.String("patient_name"); name != "" {
				return "Booking for " + name
			}
		}
	}
	return ""
}

func changeTarget(sel Selection) string {
	keys := make([]string, 0, 1)
	for k := range sel {
		if strings.HasPrefix(k, "change_") && sel.Bool(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	if _, ok := changeLabels[keys[0]]; ok {
		return keys[0]
	}
	return ""
}

func genericText(value any) string {
	if str, ok := value.(string); ok {
		if str = strings.TrimSpace(str); str != "" {
			return str
		}
		return Fallback
	}
	if sel, ok := asSelection(value); ok {
		if text := strings.TrimSpace(sel.String("text")); text != "" {
			return text
		}
		if name := strings.TrimSpace(sel.String("name")); name != "" {
			return name
		}
	}
	return Fallback
}

// FormatAddress joins the populated address parts on one line.
func FormatAddress(addr Selection) string {
	parts := make([]string, 0, 5)
	for _, key := range []string{"line1", "line2", "city", "state", "pincode"} {
		if v := strings.TrimSpace(addr.String(key)); v != "" {
			parts = append(parts, v)
		}
	}
	label := strings.TrimSpace(addr.String("label"))
	text := strings.Join(parts, ", ")
	if label != "" && text != "" {
		return label + ": " + text
	}
	return firstNonEmpty(text, label)
}

// HumanDate renders YYYY-MM-DD as "Mon, 20 Oct 2026"; other input is
// returned unchanged.
func HumanDate(value string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return t.Format("Mon, 02 Jan 2006")
}

// HumanTime renders HH:MM (24h) as "2:30 PM"; other input is returned
// unchanged.
func HumanTime(value string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return t.Format("3:04 PM")
}

func labelIfSet(sel Selection, key, label string) string {
	if sel.String(key) != "" {
		return label
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
