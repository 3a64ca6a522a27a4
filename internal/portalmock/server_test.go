package portalmock

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/booking"
	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/payments"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/selection"
)

type testPortal struct {
	server *httptest.Server
	client *portalapi.Client
	engine *Engine
}

func newTestPortal(t *testing.T, mutate func(*Options)) *testPortal {
	t.Helper()
	logger := quietLogger()
	now := func() time.Time { return monday }
	engine := NewEngine(EngineOptions{Now: now, Logger: logger})
	reg := prometheus.NewRegistry()
	opts := Options{
		Engine:            engine,
		Metrics:           metrics.NewPortalMetrics(reg),
		Gatherer:          reg,
		Logger:            logger,
		AllowFakePayments: true,
		PaymentKeyID:      "rzp_test_key",
		PaymentSecret:     "payment-secret",
		PublicBaseURL:     "https://portal.test/",
		FixedOTP:          "123456",
		Now:               now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	if opts.Directory == nil {
		// The engine reads the same family the handlers link into.
		opts.Directory = engine.dir
	}
	srv := NewServer(opts)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	hc := portalapi.NewHTTPClient(5 * time.Second)
	tokens := portalapi.NewMetaTokenSource(ts.URL+"/booking/c1/chat", hc)
	client := portalapi.NewClient(ts.URL, tokens, logger, portalapi.WithHTTPClient(hc))
	return &testPortal{server: ts, client: client, engine: engine}
}

func (p *testPortal) send(t *testing.T, componentType string, sel selection.Selection) *booking.Conversation {
	t.Helper()
	conv, err := p.client.SendMessage(context.Background(), "c1", portalapi.MessageRequest{ComponentType: componentType, UserSelection: sel})
	require.NoError(t, err)
	return conv
}

func TestServerRejectsMissingCSRFToken(t *testing.T) {
	p := newTestPortal(t, nil)
	resp, err := http.Post(p.server.URL+"/booking/c1/message", "application/json", strings.NewReader(`{"content":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 419, resp.StatusCode)
	_, err = p.client.SendMessage(context.Background(), "c1", portalapi.MessageRequest{Content: "hi"})
	assert.NoError(t, err, "the meta page token is accepted")
}

func TestServerChatPageRendersToken(t *testing.T) {
	p := newTestPortal(t, nil)
	resp, err := http.Get(p.server.URL + "/booking/c1/chat")
	require.NoError(t, err)
	defer resp.Body.Close()

	token, err := portalapi.ExtractCSRFToken(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NotEmpty(t, resp.Cookies())
	assert.Equal(t, "careportal_session", resp.Cookies()[0].Name)
}

func TestServerConversationFlow(t *testing.T) {
	p := newTestPortal(t, nil)
	ctx := context.Background()

	conv, err := p.client.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, selection.TypeUrgency, lastMessage(conv).ComponentType)

	conv = p.send(t, selection.TypeUrgency, selection.Selection{"urgency": "urgent"})
	assert.Equal(t, selection.TypeTextInput, lastMessage(conv).ComponentType)
	user := conv.Messages[len(conv.Messages)-2]
	assert.Equal(t, booking.RoleUser, user.Role)
	assert.NotEmpty(t, user.Content)

	_, err = p.client.SendMessage(ctx, "c1", portalapi.MessageRequest{ComponentType: selection.TypeUrgency, UserSelection: selection.Selection{"urgency": "flexible"}})
	apiErr, ok := portalapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestServerRejectsEmptyMessage(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.client.SendMessage(context.Background(), "c1", portalapi.MessageRequest{Content: "   "})
	apiErr, ok := portalapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestServerMultipartAttachments(t *testing.T) {
	p := newTestPortal(t, nil)
	conv, err := p.client.SendMessage(context.Background(), "c1", portalapi.MessageRequest{
		Content:     "my reports",
		Attachments: []portalapi.Upload{{Name: "report.pdf", MimeType: "application/pdf", Body: strings.NewReader("%PDF-1.4")}},
	})
	require.NoError(t, err)

	user := conv.Messages[2]
	require.Len(t, user.Attachments, 1)
	assert.Equal(t, "report.pdf", user.Attachments[0].Name)
	assert.Equal(t, "application/pdf", user.Attachments[0].MimeType)
	assert.Equal(t, int64(8), user.Attachments[0].Size)
}

func TestServerTranscribe(t *testing.T) {
	p := newTestPortal(t, nil)
	ctx := context.Background()

	text, err := p.client.Transcribe(ctx, "c1", portalapi.Upload{Name: "note.webm", MimeType: "audio/webm", Body: strings.NewReader("voice")})
	require.NoError(t, err)
	assert.Equal(t, cannedSpeech, text)

	_, err = p.client.Transcribe(ctx, "c1", portalapi.Upload{Name: "empty.webm", MimeType: "audio/webm", Body: strings.NewReader("")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No speech detected")
}

func walkToPaidSummary(t *testing.T, p *testPortal) {
	t.Helper()
	p.send(t, selection.TypeUrgency, selection.Selection{"urgency": "this_week"})
	p.send(t, selection.TypeTextInput, selection.Selection{"symptoms": "palpitations"})
	p.send(t, selection.TypePatient, selection.Selection{"patient_id": "PT1001", "patient_name": "Rahul Sharma"})
	p.send(t, selection.TypeMode, selection.Selection{"mode": "video"})
	p.send(t, selection.TypeDoctorList, selection.Selection{"doctor_id": "DR-101"})
	conv := p.send(t, selection.TypeDateTime, selection.Selection{"date": "2026-10-13", "time": "16:00"})
	require.Equal(t, selection.TypeBookingSummary, lastMessage(conv).ComponentType)
}

func TestServerMockPayment(t *testing.T) {
	p := newTestPortal(t, nil)
	ctx := context.Background()
	walkToPaidSummary(t, p)

	_, err := p.client.SendMessage(ctx, "c1", portalapi.MessageRequest{ComponentType: selection.TypeBookingSummary, UserSelection: selection.Selection{"confirmed": true}})
	apiErr, ok := portalapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)

	order, err := p.client.CreateOrder(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, order.MockMode)
	assert.Equal(t, int64(80000), order.Amount)
	assert.Equal(t, "rzp_test_key", order.Key)

	v, err := payments.NewFakeCheckout().Open(ctx, *order)
	require.NoError(t, err)
	res, err := p.client.VerifyPayment(ctx, "c1", *v)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Regexp(t, `^https://portal\.test/booking/c1/confirmation/BK-[0-9A-F]{8}$`, res.Redirect)

	conv, err := p.client.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", conv.Status)
}

func TestServerSignedPayment(t *testing.T) {
	p := newTestPortal(t, func(o *Options) { o.AllowFakePayments = false })
	ctx := context.Background()
	walkToPaidSummary(t, p)

	order, err := p.client.CreateOrder(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, order.MockMode)

	mock := portalapi.PaymentVerification{PaymentID: payments.MockPrefix + "1", OrderID: order.OrderID, Signature: "sig"}
	_, err = p.client.VerifyPayment(ctx, "c1", mock)
	apiErr, ok := portalapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	mac := hmac.New(sha256.New, []byte("payment-secret"))
	mac.Write([]byte(order.OrderID + "|pay_live_1"))
	signed := portalapi.PaymentVerification{PaymentID: "pay_live_1", OrderID: order.OrderID, Signature: hex.EncodeToString(mac.Sum(nil))}
	res, err := p.client.VerifyPayment(ctx, "c1", signed)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestServerCreateOrderWithoutPayment(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.client.CreateOrder(context.Background(), "c1")
	apiErr, ok := portalapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestServerHealthAndMetrics(t *testing.T) {
	p := newTestPortal(t, nil)
	p.send(t, selection.TypeUrgency, selection.Selection{"urgency": "urgent"})

	resp, err := http.Get(p.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(p.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `careportal_portal_messages_total{component_type="urgency_selector"} 1`)
}

func TestServerRequestID(t *testing.T) {
	p := newTestPortal(t, nil)
	req, err := http.NewRequest(http.MethodGet, p.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}
