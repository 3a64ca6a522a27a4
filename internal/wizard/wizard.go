package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

var (
	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("wizard: request in flight")
	// ErrClosed is returned after the wizard completed or was cancelled.
	ErrClosed = errors.New("wizard: closed")
	// ErrNotAllowed is returned for actions the current step does not offer.
	ErrNotAllowed = errors.New("wizard: action not available")

	errInvalid = errors.New("wizard: invalid input")
)

// DefaultSuccessDelay is how long the success screen shows before the
// wizard completes.
const DefaultSuccessDelay = 1500 * time.Millisecond

// API is the part of the portal client the wizard calls.
type API interface {
	Lookup(ctx context.Context, req portalapi.LookupRequest) (*portalapi.LookupResponse, error)
	SendOTP(ctx context.Context, req portalapi.OTPRequest) (*portalapi.OTPResponse, error)
	VerifyOTP(ctx context.Context, req portalapi.VerifyOTPRequest) (*portalapi.VerifyOTPResponse, error)
	Link(ctx context.Context, req portalapi.LinkRequest) (*portalapi.MemberResponse, error)
	CreateMember(ctx context.Context, req portalapi.CreateMemberRequest) (*portalapi.MemberResponse, error)
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithSuccessDelay overrides DefaultSuccessDelay.
func WithSuccessDelay(d time.Duration) Option {
	return func(w *Wizard) {
		if d >= 0 {
			w.successDelay = d
		}
	}
}

// WithScheduler replaces time.AfterFunc for the success delay.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(w *Wizard) {
		if schedule != nil {
			w.schedule = schedule
		}
	}
}

// WithClock sets the time source used for age calculations.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) {
		if now != nil {
			w.now = now
		}
	}
}

// WithSuggester replaces SuggestRelationship on the new-member form.
func WithSuggester(suggest func(age int, gender string) string) Option {
	return func(w *Wizard) {
		if suggest != nil {
			w.suggest = suggest
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(w *Wizard) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Wizard collects who an appointment is for: a guest, a new family member,
// or an existing patient record linked after OTP verification. Every
// completed path hands a selection to onComplete exactly once.
//
// Navigation bumps a generation counter; responses that arrive for an older
// generation are dropped.
type Wizard struct {
	api          API
	logger       *logging.Logger
	onComplete   func(selection.Selection)
	onCancel     func()
	successDelay time.Duration
	schedule     func(time.Duration, func())
	now          func() time.Time
	suggest      func(age int, gender string) string

	mu     sync.Mutex
	state  State
	gen    uint64
	closed bool
}

// New creates a wizard with every section collapsed.
func New(api API, onComplete func(selection.Selection), onCancel func(), opts ...Option) *Wizard {
	w := &Wizard{
		api:          api,
		logger:       logging.Default(),
		onComplete:   onComplete,
		onCancel:     onCancel,
		successDelay: DefaultSuccessDelay,
		schedule:     func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:          time.Now,
		suggest:      SuggestRelationship,
		state:        State{Link: initialLink()},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns a copy of the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// Notice is the card text for the link flow's search result, if any.
func (s State) Notice() string {
	switch {
	case s.Link.AlreadyLinked:
		return msgAlreadyLinked
	case s.Link.NotFound:
		return msgNotFound
	}
	return ""
}

// navigate applies fn to a copy of the state and commits it on success.
// Committing clears errors, ends any loading phase and invalidates
// in-flight responses.
func (w *Wizard) navigate(fn func(*State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	next := w.state.clone()
	next.Error = ""
	next.FieldErrors = nil
	next.Loading = false
	if err := fn(&next); err != nil {
		return err
	}
	w.state = next
	w.gen++
	return nil
}

// edit applies a field change without touching in-flight requests.
func (w *Wizard) edit(fn func(*State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return fn(&w.state)
}

// start enters the loading phase for a blocking request. prepare runs under
// the lock; returning errInvalid leaves field errors set and skips the
// request.
func (w *Wizard) start(prepare func(*State) error) (uint64, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, false, ErrClosed
	}
	if w.state.Loading {
		return 0, false, ErrBusy
	}
	w.state.Error = ""
	w.state.FieldErrors = nil
	if err := prepare(&w.state); err != nil {
		if errors.Is(err, errInvalid) {
			return 0, false, nil
		}
		return 0, false, err
	}
	w.state.Loading = true
	return w.gen, true, nil
}

// finish applies a response if gen is still current.
func (w *Wizard) finish(gen uint64, apply func(*State)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || gen != w.gen {
		return false
	}
	w.state.Loading = false
	apply(&w.state)
	return true
}

func (w *Wizard) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && gen == w.gen
}

// completeAt closes the wizard and fires onComplete if gen is current.
func (w *Wizard) completeAt(gen uint64, sel selection.Selection) bool {
	w.mu.Lock()
	if w.closed || gen != w.gen {
		w.mu.Unlock()
		return false
	}
	w.closed = true
	w.state.Loading = false
	w.state.Completed = true
	w.mu.Unlock()

	if w.onComplete != nil {
		w.onComplete(sel)
	}
	return true
}

func setFieldError(s *State, field, msg string) {
	if s.FieldErrors == nil {
		s.FieldErrors = make(map[string]string)
	}
	s.FieldErrors[field] = msg
}

// Expand opens a section, or collapses it if it is already open. The
// sections stay put once a link has succeeded.
func (w *Wizard) Expand(t MemberType) error {
	return w.navigate(func(s *State) error {
		if s.Link.Step == StepSuccess {
			return ErrNotAllowed
		}
		if s.Expanded == t {
			s.Expanded = ""
			return nil
		}
		s.Expanded = t
		return nil
	})
}

// Cancel abandons the wizard and fires onCancel.
func (w *Wizard) Cancel() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	w.gen++
	w.mu.Unlock()

	if w.onCancel != nil {
		w.onCancel()
	}
	return nil
}

// SetGuestField updates one guest form input.
func (w *Wizard) SetGuestField(field, value string) error {
	return w.edit(func(s *State) error {
		switch field {
		case "name":
			s.Guest.Name = value
		case "phone":
			s.Guest.Phone = strings.TrimSpace(value)
		case "dob":
			s.Guest.DOB = value
		case "age":
			s.Guest.Age = value
		case "gender":
			s.Guest.Gender = value
		default:
			return fmt.Errorf("wizard: unknown guest field %q", field)
		}
		delete(s.FieldErrors, field)
		return nil
	})
}

// SubmitGuest validates the guest form and completes without a server call.
func (w *Wizard) SubmitGuest() error {
	var sel selection.Selection
	_, ok, err := w.start(func(s *State) error {
		if s.Expanded != MemberGuest {
			return ErrNotAllowed
		}
		built, valid := w.guestSelection(s)
		if !valid {
			return errInvalid
		}
		sel = built
		return nil
	})
	if err != nil || !ok {
		return err
	}
	w.mu.Lock()
	gen := w.gen
	w.mu.Unlock()
	w.completeAt(gen, sel)
	return nil
}

func (w *Wizard) guestSelection(s *State) (selection.Selection, bool) {
	g := s.Guest
	name := strings.TrimSpace(g.Name)
	valid := true
	if name == "" {
		setFieldError(s, "name", msgNameRequired)
		valid = false
	}
	if !ValidPhone(g.Phone) {
		setFieldError(s, "phone", msgPhoneInvalid)
		valid = false
	}

	sel := selection.Selection{
		"patient_type": "guest",
		"guest_name":   name,
		"guest_phone":  g.Phone,
	}
	if strings.TrimSpace(g.DOB) != "" {
		if dob, ok := ParseDOB(g.DOB, w.now()); ok {
			sel["guest_dob"] = dob.Format("2006-01-02")
		} else {
			setFieldError(s, "dob", msgDOBInvalid)
			valid = false
		}
	}
	if strings.TrimSpace(g.Age) != "" {
		if age, ok := ParseAge(g.Age); ok {
			sel["guest_age"] = age
		} else {
			setFieldError(s, "age", msgAgeInvalid)
			valid = false
		}
	}
	if strings.TrimSpace(g.Gender) != "" {
		if gender, ok := NormalizeGender(g.Gender); ok {
			sel["guest_gender"] = gender
		} else {
			setFieldError(s, "gender", msgGenderInvalid)
			valid = false
		}
	}
	if !valid {
		return nil, false
	}
	return sel.WithDisplay("Booking for guest " + name), true
}

// SetNewMemberField updates one new-member input. Age, DOB and gender
// changes refresh the relationship suggestion unless the user already
// picked one.
func (w *Wizard) SetNewMemberField(field, value string) error {
	return w.edit(func(s *State) error {
		f := &s.NewMember
		switch field {
		case "name":
			f.Name = value
		case "phone":
			value = strings.TrimSpace(value)
			if value != f.Phone {
				f.Detection = nil
			}
			f.Phone = value
		case "email":
			f.Email = strings.TrimSpace(value)
		case "dob":
			f.DOB = value
		case "age":
			f.Age = value
		case "gender":
			f.Gender = value
		case "relationship":
			f.Relationship = strings.ToLower(strings.TrimSpace(value))
			f.RelationshipTouched = f.Relationship != ""
		default:
			return fmt.Errorf("wizard: unknown member field %q", field)
		}
		delete(s.FieldErrors, field)
		w.refreshSuggestion(f)
		return nil
	})
}

func (w *Wizard) memberAge(f *NewMemberForm) (int, bool) {
	if age, ok := ParseAge(f.Age); ok {
		return age, true
	}
	if dob, ok := ParseDOB(f.DOB, w.now()); ok {
		return AgeOn(dob, w.now()), true
	}
	return 0, false
}

func (w *Wizard) refreshSuggestion(f *NewMemberForm) {
	age, ok := w.memberAge(f)
	if !ok {
		f.SuggestedRelationship = ""
		return
	}
	f.SuggestedRelationship = w.suggest(age, f.Gender)
	if !f.RelationshipTouched {
		f.Relationship = f.SuggestedRelationship
	}
}

// BlurPhone runs the duplicate check for the new-member phone. It never
// blocks the form and its failures are only logged.
func (w *Wizard) BlurPhone(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	phone := w.state.NewMember.Phone
	gen := w.gen
	w.mu.Unlock()

	if !ValidPhone(phone) {
		return nil
	}
	resp, err := w.api.Lookup(ctx, portalapi.LookupRequest{SearchType: portalapi.SearchPhone, SearchValue: phone})
	if err != nil {
		w.logger.Debug("wizard: duplicate lookup failed", "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || gen != w.gen || w.state.NewMember.Phone != phone {
		return nil
	}
	if resp.Found && !resp.AlreadyLinked && resp.MemberData != nil {
		w.state.NewMember.Detection = &Detection{Member: *resp.MemberData}
	}
	return nil
}

// UseDetection switches from the new-member form to verifying the detected
// record.
func (w *Wizard) UseDetection() error {
	return w.navigate(func(s *State) error {
		d := s.NewMember.Detection
		if d == nil || s.Link.Step == StepSuccess {
			return ErrNotAllowed
		}
		member := d.Member
		s.Expanded = MemberExisting
		s.Link = reduceLink(s.Link, prefill{query: s.NewMember.Phone, searchType: portalapi.SearchPhone, member: &member})
		s.NewMember.Detection = nil
		return nil
	})
}

// DismissDetection hides the duplicate card and keeps the form.
func (w *Wizard) DismissDetection() error {
	return w.edit(func(s *State) error {
		s.NewMember.Detection = nil
		return nil
	})
}

// SubmitNewMember validates the form and registers the member.
func (w *Wizard) SubmitNewMember(ctx context.Context) error {
	var req portalapi.CreateMemberRequest
	gen, ok, err := w.start(func(s *State) error {
		if s.Expanded != MemberNew {
			return ErrNotAllowed
		}
		built, valid := w.newMemberRequest(s)
		if !valid {
			return errInvalid
		}
		req = built
		return nil
	})
	if err != nil || !ok {
		return err
	}

	resp, err := w.api.CreateMember(ctx, req)
	if err != nil {
		w.logger.Warn("wizard: create member failed", "error", err)
		apiErr, _ := portalapi.AsAPIError(err)
		w.finish(gen, func(s *State) {
			switch {
			case apiErr != nil && apiErr.ShouldLink:
				s.Expanded = MemberExisting
				s.Link = reduceLink(s.Link, prefill{query: req.Phone, searchType: portalapi.SearchPhone, member: apiErr.MemberData})
				s.Error = msgShouldLink
				w.gen++
			case apiErr != nil && apiErr.AlreadyLinked:
				s.Error = msgAlreadyLinked
			default:
				s.Error = userMessage(err, msgCreateFailed)
			}
		})
		return nil
	}

	member := portalapi.MemberData{Name: req.Name, Phone: req.Phone, Relationship: req.Relationship}
	if resp.Member != nil {
		member = *resp.Member
	}
	if member.Relationship == "" {
		member.Relationship = req.Relationship
	}
	w.completeAt(gen, memberSelection("new_member", member))
	return nil
}

func (w *Wizard) newMemberRequest(s *State) (portalapi.CreateMemberRequest, bool) {
	f := s.NewMember
	req := portalapi.CreateMemberRequest{
		Name:         strings.TrimSpace(f.Name),
		Phone:        f.Phone,
		Email:        f.Email,
		Relationship: f.Relationship,
	}
	valid := true
	if len(req.Name) < 2 {
		setFieldError(s, "name", msgNameRequired)
		valid = false
	}
	if !ValidPhone(req.Phone) {
		setFieldError(s, "phone", msgPhoneInvalid)
		valid = false
	}
	if req.Email != "" && !ValidEmail(req.Email) {
		setFieldError(s, "email", msgEmailInvalid)
		valid = false
	}
	if strings.TrimSpace(f.DOB) != "" {
		if dob, ok := ParseDOB(f.DOB, w.now()); ok {
			req.DateOfBirth = dob.Format("2006-01-02")
			req.Age = AgeOn(dob, w.now())
		} else {
			setFieldError(s, "dob", msgDOBInvalid)
			valid = false
		}
	}
	if strings.TrimSpace(f.Age) != "" {
		if age, ok := ParseAge(f.Age); ok {
			req.Age = age
		} else {
			setFieldError(s, "age", msgAgeInvalid)
			valid = false
		}
	}
	if strings.TrimSpace(f.Gender) != "" {
		if gender, ok := NormalizeGender(f.Gender); ok {
			req.Gender = gender
		} else {
			setFieldError(s, "gender", msgGenderInvalid)
			valid = false
		}
	}
	if !ValidRelationship(req.Relationship) {
		setFieldError(s, "relationship", msgRelationNeeded)
		valid = false
	}
	return req, valid
}

func memberSelection(patientType string, m portalapi.MemberData) selection.Selection {
	sel := selection.Selection{
		"patient_type": patientType,
		"patient_id":   m.ID,
		"patient_name": m.Name,
	}
	if m.Relationship != "" {
		sel["relationship"] = m.Relationship
	}
	return sel.WithDisplay("Booking for " + m.Name)
}

// SetQuery updates the search box.
func (w *Wizard) SetQuery(q string) error {
	return w.edit(func(s *State) error {
		s.Link = reduceLink(s.Link, queryChanged{query: q})
		delete(s.FieldErrors, "query")
		return nil
	})
}

// Search looks up the query, detecting whether it is a phone number, an
// email or a patient ID.
func (w *Wizard) Search(ctx context.Context) error {
	var req portalapi.LookupRequest
	gen, ok, err := w.start(func(s *State) error {
		if s.Expanded != MemberExisting || s.Link.Step != StepSearch {
			return ErrNotAllowed
		}
		if strings.TrimSpace(s.Link.Query) == "" {
			setFieldError(s, "query", msgQueryRequired)
			return errInvalid
		}
		st, value, valid := DetectSearchType(s.Link.Query)
		if !valid {
			setFieldError(s, "query", msgQueryInvalid)
			return errInvalid
		}
		s.Link = reduceLink(s.Link, searchStarted{searchType: st, value: value})
		req = portalapi.LookupRequest{SearchType: st, SearchValue: value}
		return nil
	})
	if err != nil || !ok {
		return err
	}

	resp, err := w.api.Lookup(ctx, req)
	if err != nil {
		w.logger.Warn("wizard: lookup failed", "search_type", req.SearchType, "error", err)
		apiErr, _ := portalapi.AsAPIError(err)
		w.finish(gen, func(s *State) {
			switch {
			case portalapi.IsNotFound(err):
				s.Link = reduceLink(s.Link, searchNotFound{})
			case apiErr != nil && apiErr.AlreadyLinked:
				var member portalapi.MemberData
				if apiErr.MemberData != nil {
					member = *apiErr.MemberData
				}
				s.Link = reduceLink(s.Link, searchFound{member: member, alreadyLinked: true})
			default:
				s.Error = userMessage(err, msgSearchFailed)
			}
		})
		return nil
	}

	w.finish(gen, func(s *State) {
		if !resp.Found || resp.MemberData == nil {
			s.Link = reduceLink(s.Link, searchNotFound{})
			return
		}
		s.Link = reduceLink(s.Link, searchFound{member: *resp.MemberData, alreadyLinked: resp.AlreadyLinked})
	})
	return nil
}

// AddAsNew leaves a failed search for the new-member form, carrying over
// the phone or email that was searched.
func (w *Wizard) AddAsNew() error {
	return w.navigate(func(s *State) error {
		if !s.Link.NotFound {
			return ErrNotAllowed
		}
		switch s.Link.SearchType {
		case portalapi.SearchPhone:
			s.NewMember.Phone = s.Link.Query
		case portalapi.SearchEmail:
			s.NewMember.Email = s.Link.Query
		}
		s.Expanded = MemberNew
		return nil
	})
}

// ChooseChannel sends a code over the chosen channel.
func (w *Wizard) ChooseChannel(ctx context.Context, ch portalapi.Channel) error {
	return w.sendOTP(ctx, ch)
}

// Resend sends a fresh code, optionally switching channel. An empty channel
// reuses the current one.
func (w *Wizard) Resend(ctx context.Context, ch portalapi.Channel) error {
	return w.sendOTP(ctx, ch)
}

func (w *Wizard) sendOTP(ctx context.Context, ch portalapi.Channel) error {
	var req portalapi.OTPRequest
	gen, ok, err := w.start(func(s *State) error {
		l := s.Link
		if !l.CanSendOTP() {
			return ErrNotAllowed
		}
		if ch == "" {
			ch = l.Channel
		}
		switch ch {
		case portalapi.ChannelPhone:
			if !l.Member.HasPhone() {
				setFieldError(s, "channel", msgChannelMissing)
				return errInvalid
			}
		case portalapi.ChannelEmail:
			if !l.Member.HasEmail() {
				setFieldError(s, "channel", msgChannelMissing)
				return errInvalid
			}
		default:
			return ErrNotAllowed
		}
		req = portalapi.OTPRequest{PatientID: l.Member.ID, Channel: ch}
		return nil
	})
	if err != nil || !ok {
		return err
	}

	resp, err := w.api.SendOTP(ctx, req)
	if err != nil {
		w.logger.Warn("wizard: send otp failed", "channel", req.Channel, "error", err)
		w.finish(gen, func(s *State) {
			if portalapi.IsLockout(err) {
				s.Link = reduceLink(s.Link, lockedOut{})
			}
			s.Error = userMessage(err, msgSendOTPFailed)
		})
		return nil
	}

	w.finish(gen, func(s *State) {
		if !resp.Success {
			s.Error = msgSendOTPFailed
			if resp.Message != "" {
				s.Error = resp.Message
			}
			return
		}
		sentTo := resp.SentTo
		if sentTo == "" && s.Link.Member != nil {
			sentTo = maskedContact(*s.Link.Member, req.Channel)
		}
		s.Link = reduceLink(s.Link, otpSent{channel: req.Channel, sentTo: sentTo, attempts: resp.AttemptsRemaining})
	})
	return nil
}

func maskedContact(m portalapi.MemberData, ch portalapi.Channel) string {
	if ch == portalapi.ChannelEmail {
		if m.MaskedEmail != "" {
			return m.MaskedEmail
		}
		return m.Email
	}
	if m.MaskedPhone != "" {
		return m.MaskedPhone
	}
	return m.Phone
}

// SetOTP updates the code box.
func (w *Wizard) SetOTP(code string) error {
	return w.edit(func(s *State) error {
		s.Link = reduceLink(s.Link, otpChanged{code: strings.TrimSpace(code)})
		delete(s.FieldErrors, "otp")
		return nil
	})
}

// SetLinkRelationship records how the linked patient relates to the user.
func (w *Wizard) SetLinkRelationship(r string) error {
	r = strings.ToLower(strings.TrimSpace(r))
	if !ValidRelationship(r) {
		return fmt.Errorf("wizard: unknown relationship %q", r)
	}
	return w.edit(func(s *State) error {
		s.Link = reduceLink(s.Link, relationshipChosen{relationship: r})
		return nil
	})
}

// VerifyOTP checks the entered code and, once verified, links the record.
// On success the wizard completes after the success delay.
func (w *Wizard) VerifyOTP(ctx context.Context) error {
	var req portalapi.VerifyOTPRequest
	var relationship string
	gen, ok, err := w.start(func(s *State) error {
		l := s.Link
		if l.Step != StepOTP || l.LockedOut || l.Member == nil {
			return ErrNotAllowed
		}
		if !ValidOTP(l.OTP) {
			setFieldError(s, "otp", msgOTPFormat)
			return errInvalid
		}
		req = portalapi.VerifyOTPRequest{PatientID: l.Member.ID, Channel: l.Channel, OTP: l.OTP}
		relationship = l.Relationship
		return nil
	})
	if err != nil || !ok {
		return err
	}

	resp, err := w.api.VerifyOTP(ctx, req)
	if err != nil {
		w.logger.Warn("wizard: verify otp failed", "error", err)
		apiErr, _ := portalapi.AsAPIError(err)
		w.finish(gen, func(s *State) {
			switch {
			case portalapi.IsLockout(err):
				s.Link = reduceLink(s.Link, lockedOut{})
			case apiErr != nil && apiErr.Status < 500:
				s.Link = reduceLink(s.Link, otpRejected{attempts: apiErr.AttemptsRemaining})
			}
			s.Error = userMessage(err, msgVerifyFailed)
		})
		return nil
	}
	if resp.LockedOut || !resp.Verified {
		w.finish(gen, func(s *State) {
			if resp.LockedOut {
				s.Link = reduceLink(s.Link, lockedOut{})
				s.Error = msgLockedOut
				return
			}
			s.Link = reduceLink(s.Link, otpRejected{attempts: resp.AttemptsRemaining})
			s.Error = msgInvalidOTP
			if resp.Error != "" {
				s.Error = resp.Error
			}
		})
		return nil
	}

	if !w.current(gen) {
		return nil
	}
	linkResp, err := w.api.Link(ctx, portalapi.LinkRequest{
		PatientID:         req.PatientID,
		Relationship:      relationship,
		VerificationToken: resp.VerificationToken,
	})
	if err != nil {
		w.logger.Warn("wizard: link failed", "error", err)
		w.finish(gen, func(s *State) {
			if apiErr, ok := portalapi.AsAPIError(err); ok && apiErr.AlreadyLinked {
				s.Error = msgAlreadyLinked
				return
			}
			s.Error = userMessage(err, msgLinkFailed)
		})
		return nil
	}

	var sel selection.Selection
	applied := w.finish(gen, func(s *State) {
		member := *s.Link.Member
		if linkResp.Member != nil {
			member = *linkResp.Member
		}
		if member.Relationship == "" {
			member.Relationship = relationship
		}
		s.Link = reduceLink(s.Link, linked{member: member})
		sel = memberSelection("linked_member", member)
	})
	if !applied {
		return nil
	}
	w.schedule(w.successDelay, func() { w.completeAt(gen, sel) })
	return nil
}

// Back rewinds the link flow one step.
func (w *Wizard) Back() error {
	return w.navigate(func(s *State) error {
		if _, ok := BackStep(s.Link.Step); !ok {
			return ErrNotAllowed
		}
		s.Link = reduceLink(s.Link, goBack{})
		return nil
	})
}

// Restart resets the link flow to an empty search, clearing any lockout.
func (w *Wizard) Restart() error {
	return w.navigate(func(s *State) error {
		s.Link = reduceLink(s.Link, restart{})
		return nil
	})
}
