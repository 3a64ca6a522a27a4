package widgets

import (
	"fmt"
	"strings"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

func presetChoices(key string, opts []PresetOption) []choice {
	out := make([]choice, 0, len(opts))
	for _, o := range opts {
		display := orDefault(o.Display, o.Label)
		c := choiceOf(key, o.Value, orDefault(o.Label, o.Value), o.Description)
		c.sel = selection.Choice(key, o.Value, display)
		out = append(out, c)
	}
	return out
}

// NewUrgency builds an urgency_selector.
func NewUrgency(p UrgencyProps, ctx Context) Widget {
	opts := withPresets(p.Options, selection.UrgencyPresets)
	return newList(selection.TypeUrgency, orDefault(p.Title, "How soon do you need to be seen?"), ctx, presetChoices("urgency", opts))
}

// NewMode builds an appointment_mode selector.
func NewMode(p ModeProps, ctx Context) Widget {
	opts := withPresets(p.Modes, selection.ModePresets)
	return newList(selection.TypeMode, orDefault(p.Title, "How would you like to consult?"), ctx, presetChoices("mode", opts))
}

// NewCollectionType builds a collection_type selector.
func NewCollectionType(p CollectionProps, ctx Context) Widget {
	opts := withPresets(p.Options, selection.CollectionPresets)
	return newList(selection.TypeCollectionType, orDefault(p.Title, "How should we collect your sample?"), ctx, presetChoices("collection_type", opts))
}

// PatientSelector lists the account holder and family members. The
// default patient is preselected and can be confirmed directly.
type PatientSelector struct {
	*List
	defaultIndex int
}

// NewPatientSelector builds a patient_selector. When the portal sends no
// patients the family members from ctx are offered.
func NewPatientSelector(p PatientProps, ctx Context) Widget {
	patients := p.Patients
	if len(patients) == 0 {
		for _, m := range ctx.FamilyMembers {
			patients = append(patients, Patient{ID: m.ID, Name: m.Name, Relationship: m.Relationship, Age: m.Age, Gender: m.Gender})
		}
	}
	defaultID := orDefault(p.DefaultPatientID, ctx.DefaultPatientID)

	choices := make([]choice, 0, len(patients)+1)
	defaultIndex := -1
	for i, pt := range patients {
		detail := pt.Relationship
		if pt.Age > 0 {
			detail = strings.TrimSpace(fmt.Sprintf("%s, %d yrs", detail, pt.Age))
			detail = strings.TrimPrefix(detail, ", ")
		}
		sel := selection.Selection{"patient_id": pt.ID, "patient_name": pt.Name}
		if pt.Relationship != "" {
			sel["relationship"] = pt.Relationship
		}
		choices = append(choices, choice{
			option: Option{ID: pt.ID, Label: pt.Name, Detail: detail},
			sel:    sel.WithDisplay("Booking for " + pt.Name),
			key:    "patient_id",
		})
		if pt.ID == defaultID {
			defaultIndex = i
		}
	}
	if !p.HideAddMember {
		choices = append(choices, choice{
			option: Option{ID: "add_member", Label: "+ Add family member"},
			sel:    selection.Selection{"add_member": true}.WithDisplay("Add a family member"),
			key:    "add_member",
		})
	}
	return &PatientSelector{
		List:         newList(selection.TypePatient, orDefault(p.Title, "Who is this appointment for?"), ctx, choices),
		defaultIndex: defaultIndex,
	}
}

// View marks the default patient until a choice is made.
func (s *PatientSelector) View() View {
	v := s.List.View()
	if v.Selected == nil && s.defaultIndex >= 0 {
		v.Options[s.defaultIndex].Selected = true
	}
	return v
}

// Confirm books for the preselected patient.
func (s *PatientSelector) Confirm() error {
	if s.defaultIndex < 0 {
		return ErrNothingSelected
	}
	return s.Choose(s.defaultIndex)
}

// NewDoctorList builds a doctor_list. An empty list falls back to
// DefaultDoctors.
func NewDoctorList(p DoctorProps, ctx Context) Widget {
	doctors := orFallback(p.Doctors, DefaultDoctors)
	choices := make([]choice, 0, len(doctors))
	for _, d := range doctors {
		var parts []string
		for _, s := range []string{d.Specialty, d.Qualification} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		if d.ExperienceYears > 0 {
			parts = append(parts, fmt.Sprintf("%d yrs exp", d.ExperienceYears))
		}
		if d.Fee > 0 {
			parts = append(parts, fmt.Sprintf("₹%d", d.Fee))
		}
		if d.NextAvailable != "" {
			parts = append(parts, "next: "+d.NextAvailable)
		}
		c := choiceOf("doctor_id", d.ID, d.Name, strings.Join(parts, " · "))
		c.sel["doctor_name"] = d.Name
		choices = append(choices, c)
	}
	return newList(selection.TypeDoctorList, orDefault(p.Title, "Choose a doctor"), ctx, choices)
}

// NewSpecialty builds a specialty_selector.
func NewSpecialty(p SpecialtyProps, ctx Context) Widget {
	specialties := orFallback(p.Specialties, DefaultSpecialties)
	choices := make([]choice, 0, len(specialties))
	for _, s := range specialties {
		c := choiceOf("specialty_id", s.ID, s.Name, s.Description)
		c.sel["specialty_name"] = s.Name
		choices = append(choices, c)
	}
	return newList(selection.TypeSpecialty, orDefault(p.Title, "Choose a specialty"), ctx, choices)
}

// NewPackageList builds a package_list.
func NewPackageList(p PackageProps, ctx Context) Widget {
	packages := orFallback(p.Packages, DefaultPackages)
	choices := make([]choice, 0, len(packages))
	for _, pk := range packages {
		var parts []string
		if pk.TestsCount > 0 {
			parts = append(parts, fmt.Sprintf("%d tests", pk.TestsCount))
		}
		if pk.Price > 0 {
			price := fmt.Sprintf("₹%d", pk.Price)
			if pk.OriginalPrice > pk.Price {
				price += fmt.Sprintf(" (was ₹%d)", pk.OriginalPrice)
			}
			parts = append(parts, price)
		}
		c := choiceOf("package_id", pk.ID, pk.Name, strings.Join(parts, " · "))
		c.sel["package_name"] = pk.Name
		choices = append(choices, c)
	}
	return newList(selection.TypePackageList, orDefault(p.Title, "Choose a health package"), ctx, choices)
}

// NewAddressList builds an address_list with an "add new" escape.
func NewAddressList(p AddressListProps, ctx Context) Widget {
	choices := make([]choice, 0, len(p.Addresses)+1)
	for _, a := range p.Addresses {
		label := orDefault(a.Label, "Address")
		text := selection.FormatAddress(a.asSelection())
		c := choice{
			option: Option{ID: a.ID, Label: label, Detail: text},
			sel:    selection.Selection{"address_id": a.ID, "address_label": label}.WithDisplay(text),
			key:    "address_id",
		}
		if a.IsDefault {
			c.option.Detail += " (default)"
		}
		choices = append(choices, c)
	}
	choices = append(choices, choice{
		option: Option{ID: "add_new_address", Label: "+ Add a new address"},
		sel:    selection.Selection{"add_new_address": true}.WithDisplay("Add a new address"),
		key:    "add_new_address",
	})
	return newList(selection.TypeAddressList, orDefault(p.Title, "Where should we come?"), ctx, choices)
}

func (a Address) asSelection() selection.Selection {
	sel := selection.Selection{
		"line1":   a.Line1,
		"city":    a.City,
		"state":   a.State,
		"pincode": a.Pincode,
	}
	if a.Line2 != "" {
		sel["line2"] = a.Line2
	}
	if a.Label != "" {
		sel["label"] = a.Label
	}
	return sel
}

// NewCenterList builds a center_list.
func NewCenterList(p CenterProps, ctx Context) Widget {
	centers := orFallback(p.Centers, DefaultCenters)
	choices := make([]choice, 0, len(centers))
	for _, c := range centers {
		var parts []string
		if c.Address != "" {
			parts = append(parts, c.Address)
		}
		if c.DistanceKM > 0 {
			parts = append(parts, fmt.Sprintf("%.1f km", c.DistanceKM))
		}
		if c.Timings != "" {
			parts = append(parts, c.Timings)
		}
		ch := choiceOf("center_id", c.ID, c.Name, strings.Join(parts, " · "))
		ch.sel["center_name"] = c.Name
		choices = append(choices, ch)
	}
	return newList(selection.TypeCenterList, orDefault(p.Title, "Choose a collection center"), ctx, choices)
}

// NewLocationList builds a location_list.
func NewLocationList(p LocationProps, ctx Context) Widget {
	locations := orFallback(p.Locations, DefaultLocations)
	choices := make([]choice, 0, len(locations))
	for _, l := range locations {
		c := choiceOf("location_id", l.ID, l.Name, l.Address)
		c.sel["location_name"] = l.Name
		choices = append(choices, c)
	}
	return newList(selection.TypeLocationList, orDefault(p.Title, "Choose a hospital location"), ctx, choices)
}

// NewYesNo builds a yes_no question.
func NewYesNo(p YesNoProps, ctx Context) Widget {
	yes := orDefault(p.YesLabel, "Yes")
	no := orDefault(p.NoLabel, "No")
	choices := []choice{
		{option: Option{ID: "yes", Label: yes}, sel: selection.Selection{"confirmed": true}.WithDisplay(yes), key: "confirmed"},
		{option: Option{ID: "no", Label: no}, sel: selection.Selection{"confirmed": false}.WithDisplay(no), key: "confirmed"},
	}
	return newList(selection.TypeYesNo, p.Question, ctx, choices)
}

// NewQuickReplies builds a quick_replies list.
func NewQuickReplies(p QuickRepliesProps, ctx Context) Widget {
	choices := make([]choice, 0, len(p.Options))
	for _, o := range p.Options {
		sel := selection.Selection{"value": o.Value, "label": o.Label}.WithDisplay(o.Label)
		choices = append(choices, choice{option: Option{ID: o.Value, Label: o.Label}, sel: sel, key: "value"})
	}
	return newList(selection.TypeQuickReplies, p.Title, ctx, choices)
}

// NewPreviousAppointments builds a previous_appointments list with a
// "new appointment" escape.
func NewPreviousAppointments(p PreviousAppointmentsProps, ctx Context) Widget {
	choices := make([]choice, 0, len(p.Appointments)+1)
	for _, a := range p.Appointments {
		when := strings.TrimSpace(selection.HumanDate(a.Date) + " " + selection.HumanTime(a.Time))
		label := orDefault(a.DoctorName, "Appointment")
		detail := strings.TrimSpace(strings.Join(nonEmpty(a.Specialty, when, a.Status), " · "))
		display := "Follow-up with " + label
		if when != "" {
			display += " (" + when + ")"
		}
		sel := selection.Selection{"appointment_id": a.ID}
		if a.DoctorName != "" {
			sel["doctor_name"] = a.DoctorName
		}
		choices = append(choices, choice{
			option: Option{ID: a.ID, Label: label, Detail: detail},
			sel:    sel.WithDisplay(display),
			key:    "appointment_id",
		})
	}
	choices = append(choices, choice{
		option: Option{ID: "new_appointment", Label: "Book a new appointment"},
		sel:    selection.Selection{"new_appointment": true}.WithDisplay("Book a new appointment"),
		key:    "new_appointment",
	})
	return newList(selection.TypePreviousAppointments, orDefault(p.Title, "Is this a follow-up?"), ctx, choices)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
