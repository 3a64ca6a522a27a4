package dispatch

import (
	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// NewDefault returns a registry with every built-in widget.
func NewDefault(logger *logging.Logger, m *metrics.ClientMetrics) *Registry {
	r := NewRegistry(logger, m)
	Register(r, widgets.NewUrgency, selection.TypeUrgency)
	Register(r, widgets.NewPatientSelector, selection.TypePatient)
	Register(r, widgets.NewDoctorList, selection.TypeDoctorList)
	Register(r, widgets.NewSpecialty, selection.TypeSpecialty)
	Register(r, widgets.NewDateTimePicker, selection.TypeDateTime)
	Register(r, widgets.NewDatePicker, selection.TypeDate)
	Register(r, widgets.NewMode, selection.TypeMode)
	Register(r, widgets.NewPackageList, selection.TypePackageList)
	Register(r, widgets.NewTestList, selection.TypeTestList)
	Register(r, widgets.NewAddressList, selection.TypeAddressList)
	Register(r, widgets.NewAddressForm, selection.TypeAddressForm)
	Register(r, widgets.NewCenterList, selection.TypeCenterList)
	Register(r, widgets.NewLocationList, selection.TypeLocationList)
	Register(r, widgets.NewCollectionType, selection.TypeCollectionType)
	Register(r, widgets.NewSymptomSelector, selection.TypeSymptoms)
	Register(r, widgets.NewTextInput, selection.TypeTextInput)
	Register(r, widgets.NewYesNo, selection.TypeYesNo)
	Register(r, widgets.NewQuickReplies, selection.TypeQuickReplies)
	Register(r, widgets.NewPreviousAppointments, selection.TypePreviousAppointments)
	Register(r, widgets.NewBookingSummary, selection.TypeBookingSummary)
	Register(r, widgets.NewMemberTypeSelector, selection.TypeMemberType)
	Register(r, widgets.NewBookingConfirmation, selection.TypeBookingConfirmation)
	return r
}
