package wizard

import "github.com/wolfman30/careportal-chat/internal/portalapi"

// MemberType names one of the wizard's sections.
type MemberType string

const (
	MemberNew      MemberType = "new"
	MemberExisting MemberType = "existing"
	MemberGuest    MemberType = "guest"
)

// ParseMemberType accepts the section names used by front-ends.
func ParseMemberType(s string) (MemberType, bool) {
	switch MemberType(s) {
	case MemberNew, MemberExisting, MemberGuest:
		return MemberType(s), true
	case "link":
		return MemberExisting, true
	}
	return "", false
}

// GuestForm holds the guest section's inputs.
type GuestForm struct {
	Name   string
	Phone  string
	DOB    string
	Age    string
	Gender string
}

// Detection is the duplicate-prevention card raised when a new member's
// phone already belongs to an unlinked patient record.
type Detection struct {
	Member portalapi.MemberData
}

// NewMemberForm holds the new-member section's inputs.
type NewMemberForm struct {
	Name                  string
	Phone                 string
	Email                 string
	DOB                   string
	Age                   string
	Gender                string
	Relationship          string
	RelationshipTouched   bool
	SuggestedRelationship string
	Detection             *Detection
}

// State is a snapshot of the whole wizard. Front-ends read it; only the
// Wizard mutates it.
type State struct {
	Expanded    MemberType
	Guest       GuestForm
	NewMember   NewMemberForm
	Link        LinkState
	Loading     bool
	Error       string
	FieldErrors map[string]string
	Completed   bool
}

func (s State) clone() State {
	out := s
	if s.FieldErrors != nil {
		out.FieldErrors = make(map[string]string, len(s.FieldErrors))
		for k, v := range s.FieldErrors {
			out.FieldErrors[k] = v
		}
	}
	if s.NewMember.Detection != nil {
		d := *s.NewMember.Detection
		out.NewMember.Detection = &d
	}
	out.Link = s.Link.clone()
	return out
}
