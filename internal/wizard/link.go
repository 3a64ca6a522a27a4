package wizard

import "github.com/wolfman30/careportal-chat/internal/portalapi"

// LinkStep is a step of the link-existing-patient flow.
type LinkStep string

const (
	StepSearch           LinkStep = "search"
	StepContactSelection LinkStep = "contact_selection"
	StepOTP              LinkStep = "otp"
	StepSuccess          LinkStep = "success"
)

// LinkSteps lists every step in flow order.
var LinkSteps = []LinkStep{StepSearch, StepContactSelection, StepOTP, StepSuccess}

// backTo maps a step to its predecessor. Search and success have no back
// action.
var backTo = map[LinkStep]LinkStep{
	StepContactSelection: StepSearch,
	StepOTP:              StepContactSelection,
}

// BackStep returns the step a back action leads to.
func BackStep(step LinkStep) (LinkStep, bool) {
	prev, ok := backTo[step]
	return prev, ok
}

// LinkState is the link flow's state.
type LinkState struct {
	Step              LinkStep
	Query             string
	SearchType        portalapi.SearchType
	Member            *portalapi.MemberData
	AlreadyLinked     bool
	NotFound          bool
	Channel           portalapi.Channel
	OTPSentTo         string
	OTP               string
	AttemptsRemaining *int
	LockedOut         bool
	Relationship      string
	Linked            *portalapi.MemberData
}

func initialLink() LinkState {
	return LinkState{Step: StepSearch}
}

func (s LinkState) clone() LinkState {
	out := s
	if s.Member != nil {
		m := *s.Member
		out.Member = &m
	}
	if s.Linked != nil {
		m := *s.Linked
		out.Linked = &m
	}
	if s.AttemptsRemaining != nil {
		n := *s.AttemptsRemaining
		out.AttemptsRemaining = &n
	}
	return out
}

// CanSendOTP reports whether the send and resend controls are live.
func (s LinkState) CanSendOTP() bool {
	if s.Member == nil || s.AlreadyLinked || s.LockedOut {
		return false
	}
	return s.Step == StepContactSelection || s.Step == StepOTP
}

// Channels lists the delivery channels the found record supports.
func (s LinkState) Channels() []portalapi.Channel {
	if s.Member == nil {
		return nil
	}
	var out []portalapi.Channel
	if s.Member.HasPhone() {
		out = append(out, portalapi.ChannelPhone)
	}
	if s.Member.HasEmail() {
		out = append(out, portalapi.ChannelEmail)
	}
	return out
}

// linkAction is the closed set of inputs to reduceLink.
type linkAction interface {
	isLinkAction()
}

type (
	queryChanged  struct{ query string }
	searchStarted struct {
		searchType portalapi.SearchType
		value      string
	}
	searchFound struct {
		member        portalapi.MemberData
		alreadyLinked bool
	}
	searchNotFound struct{}
	otpSent        struct {
		channel  portalapi.Channel
		sentTo   string
		attempts *int
	}
	otpChanged  struct{ code string }
	otpRejected struct{ attempts *int }
	lockedOut   struct{}
	linked      struct{ member portalapi.MemberData }
	goBack      struct{}
	restart     struct{}
	prefill     struct {
		query      string
		searchType portalapi.SearchType
		member     *portalapi.MemberData
	}
	relationshipChosen struct{ relationship string }
)

func (queryChanged) isLinkAction()       {}
func (searchStarted) isLinkAction()      {}
func (searchFound) isLinkAction()        {}
func (searchNotFound) isLinkAction()     {}
func (otpSent) isLinkAction()            {}
func (otpChanged) isLinkAction()         {}
func (otpRejected) isLinkAction()        {}
func (lockedOut) isLinkAction()          {}
func (linked) isLinkAction()             {}
func (goBack) isLinkAction()             {}
func (restart) isLinkAction()            {}
func (prefill) isLinkAction()            {}
func (relationshipChosen) isLinkAction() {}

// reduceLink is the link flow's transition function. Actions that do not
// apply to the current step leave the state unchanged.
func reduceLink(s LinkState, a linkAction) LinkState {
	if s.Step == StepSuccess {
		if _, ok := a.(restart); !ok {
			return s
		}
	}
	switch a := a.(type) {
	case queryChanged:
		if s.Step != StepSearch {
			return s
		}
		s.Query = a.query
		s.NotFound = false
		s.AlreadyLinked = false
		s.Member = nil
	case searchStarted:
		if s.Step != StepSearch {
			return s
		}
		s.SearchType = a.searchType
		s.Query = a.value
		s.NotFound = false
		s.AlreadyLinked = false
		s.Member = nil
	case searchFound:
		if s.Step != StepSearch {
			return s
		}
		m := a.member
		s.Member = &m
		s.AlreadyLinked = a.alreadyLinked
		if a.alreadyLinked {
			return s
		}
		if s.Relationship == "" {
			s.Relationship = SuggestRelationship(m.Age, m.Gender)
		}
		s.Step = StepContactSelection
	case searchNotFound:
		if s.Step != StepSearch {
			return s
		}
		s.NotFound = true
		s.Member = nil
	case otpSent:
		if s.Step != StepContactSelection && s.Step != StepOTP {
			return s
		}
		s.Channel = a.channel
		s.OTPSentTo = a.sentTo
		s.AttemptsRemaining = a.attempts
		s.OTP = ""
		s.Step = StepOTP
	case otpChanged:
		if s.Step != StepOTP {
			return s
		}
		s.OTP = a.code
	case otpRejected:
		if s.Step != StepOTP {
			return s
		}
		s.OTP = ""
		s.AttemptsRemaining = a.attempts
	case lockedOut:
		s.LockedOut = true
		s.OTP = ""
		zero := 0
		s.AttemptsRemaining = &zero
	case linked:
		if s.Step != StepOTP {
			return s
		}
		m := a.member
		s.Linked = &m
		s.OTP = ""
		s.Step = StepSuccess
	case goBack:
		prev, ok := backTo[s.Step]
		if !ok {
			return s
		}
		s.Step = prev
		s.OTP = ""
		if prev == StepSearch {
			s.Member = nil
			s.AlreadyLinked = false
			s.Channel = ""
			s.OTPSentTo = ""
		}
	case restart:
		return initialLink()
	case prefill:
		next := initialLink()
		next.Query = a.query
		next.SearchType = a.searchType
		if a.member != nil {
			m := *a.member
			next.Member = &m
			next.Relationship = SuggestRelationship(m.Age, m.Gender)
			next.Step = StepContactSelection
		}
		return next
	case relationshipChosen:
		s.Relationship = a.relationship
	}
	return s
}
