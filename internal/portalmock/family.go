package portalmock

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/wizard"
)

const (
	purposeLink      = "link"
	verificationTTL  = 10 * time.Minute
	msgNoPatient     = "No patient found with those details."
	msgAlreadyLinked = "This patient is already linked to your account."
	msgLocked        = "Too many attempts. Please try again later."
)

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	var req portalapi.LookupRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.SearchValue) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Enter a phone number, email or patient ID.")
		return
	}
	p, err := s.dir.Find(r.Context(), req.SearchType, strings.TrimSpace(req.SearchValue))
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, msgNoPatient)
		return
	case err != nil:
		s.logger.Error("patient lookup failed", "search_type", req.SearchType, "error", err)
		writeError(w, http.StatusInternalServerError, "Lookup is unavailable right now.")
		return
	}
	writeJSON(w, http.StatusOK, portalapi.LookupResponse{
		Found:         true,
		AlreadyLinked: p.LinkedTo(s.engine.AccountID()),
		MemberData:    MaskedData(*p),
	})
}

func (s *Server) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req portalapi.OTPRequest
	if err := decodeJSON(w, r, &req); err != nil || req.PatientID == "" {
		writeError(w, http.StatusUnprocessableEntity, "Patient is required.")
		return
	}
	p, err := s.dir.Get(r.Context(), req.PatientID)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNoPatient)
		return
	}
	if p.LinkedTo(s.engine.AccountID()) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": msgAlreadyLinked, "already_linked": true})
		return
	}
	var sentTo string
	switch req.Channel {
	case portalapi.ChannelPhone:
		sentTo = MaskPhone(p.Phone)
	case portalapi.ChannelEmail:
		sentTo = MaskEmail(p.Email)
	}
	if sentTo == "" {
		writeError(w, http.StatusUnprocessableEntity, "This contact method is not available for the patient.")
		return
	}

	limit := s.limiter.CheckSend(r.Context(), p.ID)
	if !limit.Allowed {
		s.metrics.ObserveLockout()
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": msgLocked, "locked_out": true})
		return
	}
	code, err := s.codes.issue(p.ID, string(req.Channel))
	if err != nil {
		s.logger.Error("issue otp failed", "patient_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not send the code.")
		return
	}
	s.metrics.ObserveOTPSent(string(req.Channel))
	// Development server: the code is only ever delivered to the log.
	s.logger.Info("otp issued", "patient_id", p.ID, "channel", req.Channel, "sent_to", sentTo, "code", code)

	remaining := limit.Remaining()
	writeJSON(w, http.StatusOK, portalapi.OTPResponse{
		Success:           true,
		Message:           "OTP sent to " + sentTo,
		SentTo:            sentTo,
		AttemptsRemaining: &remaining,
	})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req portalapi.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil || req.PatientID == "" {
		writeError(w, http.StatusUnprocessableEntity, "Patient is required.")
		return
	}
	if !wizard.ValidOTP(req.OTP) {
		writeError(w, http.StatusUnprocessableEntity, "Enter the 6-digit code.")
		return
	}
	patientID := strings.ToUpper(strings.TrimSpace(req.PatientID))

	limit := s.limiter.CheckVerify(r.Context(), patientID)
	if !limit.Allowed {
		s.metrics.ObserveLockout()
		writeJSON(w, http.StatusTooManyRequests, portalapi.VerifyOTPResponse{Error: msgLocked, LockedOut: true})
		return
	}
	if !s.codes.check(patientID, req.OTP) {
		remaining := limit.Remaining()
		writeJSON(w, http.StatusOK, portalapi.VerifyOTPResponse{
			Error:             "Invalid OTP. Please try again.",
			AttemptsRemaining: &remaining,
			LockedOut:         remaining == 0,
		})
		if remaining == 0 {
			s.metrics.ObserveLockout()
		}
		return
	}

	if err := s.limiter.Reset(r.Context(), patientID); err != nil {
		s.logger.Warn("reset otp counters failed", "patient_id", patientID, "error", err)
	}
	token, err := s.signer.Sign(purposeLink, patientID, verificationTTL)
	if err != nil {
		s.logger.Error("issue verification token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Verification is unavailable right now.")
		return
	}
	writeJSON(w, http.StatusOK, portalapi.VerifyOTPResponse{Verified: true, VerificationToken: token})
}

func (s *Server) link(w http.ResponseWriter, r *http.Request) {
	var req portalapi.LinkRequest
	if err := decodeJSON(w, r, &req); err != nil || req.PatientID == "" {
		writeError(w, http.StatusUnprocessableEntity, "Patient is required.")
		return
	}
	subject, err := s.signer.Verify(req.VerificationToken, purposeLink)
	if err != nil || subject != strings.ToUpper(strings.TrimSpace(req.PatientID)) {
		writeError(w, http.StatusUnprocessableEntity, "Verification expired. Please verify again.")
		return
	}
	relationship := strings.ToLower(strings.TrimSpace(req.Relationship))
	if relationship == "" {
		relationship = "other"
	}

	m, err := s.dir.Link(r.Context(), s.engine.AccountID(), subject, relationship)
	switch {
	case errors.Is(err, ErrAlreadyLinked):
		writeJSON(w, http.StatusConflict, map[string]any{"error": msgAlreadyLinked, "already_linked": true})
		return
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, msgNoPatient)
		return
	case err != nil:
		s.logger.Error("link family member failed", "patient_id", req.PatientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not link the family member.")
		return
	}
	s.logger.Info("family member linked", "account_id", s.engine.AccountID(), "patient_id", m.ID)
	writeJSON(w, http.StatusOK, portalapi.MemberResponse{Success: true, Message: "Family member linked", Member: MemberData(*m)})
}

func (s *Server) createNew(w http.ResponseWriter, r *http.Request) {
	var req portalapi.CreateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = "Name is required"
	}
	if !wizard.ValidPhone(req.Phone) {
		errs["phone"] = "Enter a valid mobile number"
	}
	if req.Email != "" && !wizard.ValidEmail(req.Email) {
		errs["email"] = "Enter a valid email"
	}
	if !wizard.ValidRelationship(req.Relationship) {
		errs["relationship"] = "Choose a relationship"
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "Please fix the highlighted fields.", "errors": errs})
		return
	}

	account := s.engine.AccountID()
	existing, err := s.dir.Find(r.Context(), portalapi.SearchPhone, req.Phone)
	switch {
	case err == nil && existing.LinkedTo(account):
		writeJSON(w, http.StatusConflict, map[string]any{"error": msgAlreadyLinked, "already_linked": true})
		return
	case err == nil:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       "A patient with this phone number already exists.",
			"should_link": true,
			"member_data": MaskedData(*existing),
		})
		return
	case !errors.Is(err, ErrNotFound):
		s.logger.Error("phone lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not add the family member.")
		return
	}

	m, err := s.dir.Create(r.Context(), account, Patient{
		Name:        strings.TrimSpace(req.Name),
		Phone:       req.Phone,
		Email:       req.Email,
		DateOfBirth: req.DateOfBirth,
		Age:         req.Age,
		Gender:      req.Gender,
	}, req.Relationship)
	if err != nil {
		s.logger.Error("create family member failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not add the family member.")
		return
	}
	s.logger.Info("family member created", "account_id", account, "patient_id", m.ID)
	writeJSON(w, http.StatusOK, portalapi.MemberResponse{Success: true, Message: "Family member added", Member: MemberData(*m)})
}
