// Package portalmock is a development stand-in for the patient portal: a
// scripted booking assistant, payment orders with a mock mode, and the
// family-member lookup, OTP and link endpoints.
package portalmock

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/careportal-chat/internal/booking"
	httpmiddleware "github.com/wolfman30/careportal-chat/internal/http/middleware"
	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/payments"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

const (
	maxUploadBytes = 20 << 20
	csrfTokenTTL   = 12 * time.Hour
	cannedSpeech   = "I have had a mild fever and a sore throat since yesterday."
)

// Options wires a Server.
type Options struct {
	Engine            *Engine
	Directory         Directory
	Limiter           *OTPLimiter
	Signer            *httpmiddleware.Signer
	RateLimiter       *httpmiddleware.RateLimiter
	Metrics           *metrics.PortalMetrics
	Gatherer          prometheus.Gatherer
	Logger            *logging.Logger
	AllowFakePayments bool
	PaymentKeyID      string
	PaymentSecret     string
	PublicBaseURL     string
	AllowedOrigins    []string
	FixedOTP          string
	Now               func() time.Time
}

// Server serves the portal endpoints.
type Server struct {
	engine   *Engine
	dir      Directory
	limiter  *OTPLimiter
	signer   *httpmiddleware.Signer
	rate     *httpmiddleware.RateLimiter
	metrics  *metrics.PortalMetrics
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	codes    *codeBook
	opts     Options
}

// NewServer fills defaults and returns a server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Directory == nil {
		opts.Directory = NewDemoDirectory()
	}
	if opts.Engine == nil {
		opts.Engine = NewEngine(EngineOptions{Directory: opts.Directory, Now: opts.Now, Logger: opts.Logger})
	}
	if opts.Limiter == nil {
		opts.Limiter = NewOTPLimiter(nil, DefaultLimiterConfig(), opts.Logger)
	}
	if opts.Signer == nil {
		opts.Signer = httpmiddleware.NewSigner(uuid.NewString())
	}
	return &Server{
		engine:   opts.Engine,
		dir:      opts.Directory,
		limiter:  opts.Limiter,
		signer:   opts.Signer,
		rate:     opts.RateLimiter,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		logger:   opts.Logger,
		codes:    newCodeBook(opts.FixedOTP, opts.Now),
		opts:     opts,
	}
}

// HeadlessToken issues a CSRF token bound to no session, for clients that
// cannot load the chat page.
func (s *Server) HeadlessToken(ttl time.Duration) (string, error) {
	return s.signer.Sign(httpmiddleware.PurposeCSRF, "", ttl)
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httpmiddleware.RequestLogger(s.logger))
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(s.opts.AllowedOrigins))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.CSRF(s.signer))

		r.Route("/booking/{id}", func(r chi.Router) {
			r.Get("/", s.getConversation)
			r.Get("/chat", s.chatPage)
			r.Post("/message", s.postMessage)
			r.Post("/transcribe", s.transcribe)
			r.Post("/payment/create-order", s.createOrder)
			r.Post("/payment/verify", s.verifyPayment)
		})

		r.Route("/family-members", func(r chi.Router) {
			if s.rate != nil {
				r.Use(httpmiddleware.RateLimit(s.rate))
			}
			r.Post("/lookup", s.lookup)
			r.Post("/send-otp", s.sendOTP)
			r.Post("/verify-otp", s.verifyOTP)
			r.Post("/link", s.link)
			r.Post("/create-new", s.createNew)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("portalmock: decode body: %w", err)
	}
	return nil
}

var chatPageTemplate = template.Must(template.New("chat").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="csrf-token" content="{{.Token}}">
<title>Book an appointment</title>
</head>
<body data-conversation-id="{{.ConversationID}}">
<div id="booking-chat"></div>
</body>
</html>
`))

// chatPage issues the session cookie and renders the CSRF meta tag.
func (s *Server) chatPage(w http.ResponseWriter, r *http.Request) {
	session := ""
	if c, err := r.Cookie(httpmiddleware.SessionCookie); err == nil && c.Value != "" {
		session = c.Value
	} else {
		session = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     httpmiddleware.SessionCookie,
			Value:    session,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	token, err := s.signer.Sign(httpmiddleware.PurposeCSRF, session, csrfTokenTTL)
	if err != nil {
		s.logger.Error("issue csrf token failed", "error", err)
		http.Error(w, "unable to start session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = chatPageTemplate.Execute(w, struct{ Token, ConversationID string }{token, chi.URLParam(r, "id")})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Conversation(r.Context(), chi.URLParam(r, "id")))
}

type messageBody struct {
	Content       string              `json:"content"`
	ComponentType string              `json:"component_type"`
	UserSelection selection.Selection `json:"user_selection"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in Inbound
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, err := s.parseMultipartMessage(r)
		if err != nil {
			s.logger.Warn("invalid multipart message", "conversation_id", id, "error", err)
			writeError(w, http.StatusUnprocessableEntity, "The attachment could not be read.")
			return
		}
		in = parsed
	} else {
		var body messageBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request.")
			return
		}
		in = Inbound{Content: body.Content, ComponentType: body.ComponentType, UserSelection: body.UserSelection}
	}
	if strings.TrimSpace(in.Content) == "" && in.UserSelection == nil && len(in.Attachments) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "Message cannot be empty.")
		return
	}

	kind := in.ComponentType
	if kind == "" {
		kind = "text"
	}
	s.metrics.ObserveMessage(kind)

	conv, err := s.engine.Post(r.Context(), id, in)
	switch {
	case errors.Is(err, ErrStaleSelection):
		writeError(w, http.StatusConflict, "This question has already been answered.")
		return
	case errors.Is(err, ErrPaymentRequired):
		writeError(w, http.StatusUnprocessableEntity, "Please complete the payment to confirm this booking.")
		return
	case err != nil:
		s.logger.Error("post message failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) parseMultipartMessage(r *http.Request) (Inbound, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return Inbound{}, err
	}
	in := Inbound{
		Content:       r.FormValue("content"),
		ComponentType: r.FormValue("component_type"),
	}
	if raw := r.FormValue("user_selection"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.UserSelection); err != nil {
			return Inbound{}, fmt.Errorf("user_selection: %w", err)
		}
	}
	for _, fh := range r.MultipartForm.File["attachments[]"] {
		in.Attachments = append(in.Attachments, booking.Attachment{
			Name:     fh.Filename,
			Path:     "uploads/" + uuid.NewString() + "/" + fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
		})
	}
	return in, nil
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Audio upload is required.")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Audio upload is required.")
		return
	}
	defer file.Close()
	if header.Size == 0 {
		writeJSON(w, http.StatusOK, portalapi.TranscribeResponse{Success: false, Error: "No speech detected."})
		return
	}
	writeJSON(w, http.StatusOK, portalapi.TranscribeResponse{Success: true, Text: cannedSpeech})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	orderID, amount, currency, err := s.engine.CreateOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "No payment is pending for this booking.")
		return
	}
	s.logger.Info("payment order created", "conversation_id", id, "order_id", orderID, "amount", amount, "mock_mode", s.opts.AllowFakePayments)
	writeJSON(w, http.StatusOK, portalapi.Order{
		OrderID:  orderID,
		Amount:   amount,
		Currency: currency,
		Key:      s.opts.PaymentKeyID,
		MockMode: s.opts.AllowFakePayments,
	})
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var v portalapi.PaymentVerification
	if err := decodeJSON(w, r, &v); err != nil {
		writeJSON(w, http.StatusBadRequest, portalapi.VerifyResponse{Error: "Invalid request."})
		return
	}
	mock := s.opts.AllowFakePayments && payments.IsMockPayment(v.PaymentID)
	if !mock && !validSignature(s.opts.PaymentSecret, v) {
		s.logger.Warn("payment signature rejected", "conversation_id", id, "order_id", v.OrderID)
		writeJSON(w, http.StatusBadRequest, portalapi.VerifyResponse{Error: "Payment verification failed."})
		return
	}
	bookingID, err := s.engine.CompletePayment(r.Context(), id, v.OrderID, v.PaymentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, portalapi.VerifyResponse{Error: "Payment does not match this booking."})
		return
	}
	writeJSON(w, http.StatusOK, portalapi.VerifyResponse{
		Success:  true,
		Redirect: strings.TrimRight(s.opts.PublicBaseURL, "/") + "/booking/" + id + "/confirmation/" + bookingID,
	})
}

// validSignature checks the provider's HMAC-SHA256 of "order_id|payment_id".
func validSignature(secret string, v portalapi.PaymentVerification) bool {
	if secret == "" || v.OrderID == "" || v.PaymentID == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(v.OrderID + "|" + v.PaymentID))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(v.Signature))
}
