package portalapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

type recorded struct {
	method string
	path   string
	csrf   string
	ctype  string
	body   []byte
}

func newRecordingServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	calls := []recorded{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{
			method: r.Method,
			path:   r.URL.Path,
			csrf:   r.Header.Get(CSRFHeader),
			ctype:  r.Header.Get("Content-Type"),
			body:   body,
		})
		mu.Unlock()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_EveryEndpointCarriesCSRF(t *testing.T) {
	ts, calls := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/booking/c1/transcribe":
			writeJSON(w, 200, map[string]any{"success": true, "text": " hello "})
		default:
			writeJSON(w, 200, map[string]any{"success": true, "messages": []any{}})
		}
	})
	c := NewClient(ts.URL, StaticTokenSource("tok-1"), nil)
	ctx := context.Background()

	_, err := c.GetConversation(ctx, "c1")
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, "c1", MessageRequest{Content: "hi"})
	require.NoError(t, err)
	text, err := c.Transcribe(ctx, "c1", Upload{Name: "a.webm", MimeType: "audio/webm", Body: strings.NewReader("RIFF")})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	_, err = c.CreateOrder(ctx, "c1")
	require.NoError(t, err)
	_, err = c.VerifyPayment(ctx, "c1", PaymentVerification{PaymentID: "p", OrderID: "o", Signature: "s"})
	require.NoError(t, err)
	_, err = c.Lookup(ctx, LookupRequest{SearchType: SearchPhone, SearchValue: "+919876543210"})
	require.NoError(t, err)
	_, err = c.SendOTP(ctx, OTPRequest{PatientID: "p1", Channel: ChannelPhone})
	require.NoError(t, err)
	_, err = c.VerifyOTP(ctx, VerifyOTPRequest{PatientID: "p1", Channel: ChannelPhone, OTP: "123456"})
	require.NoError(t, err)
	_, err = c.Link(ctx, LinkRequest{PatientID: "p1"})
	require.NoError(t, err)
	_, err = c.CreateMember(ctx, CreateMemberRequest{Name: "Asha", Phone: "+919876543210"})
	require.NoError(t, err)

	wantPaths := []string{
		"/booking/c1", "/booking/c1/message", "/booking/c1/transcribe",
		"/booking/c1/payment/create-order", "/booking/c1/payment/verify",
		"/family-members/lookup", "/family-members/send-otp", "/family-members/verify-otp",
		"/family-members/link", "/family-members/create-new",
	}
	require.Len(t, *calls, len(wantPaths))
	for i, call := range *calls {
		assert.Equal(t, wantPaths[i], call.path)
		assert.Equal(t, "tok-1", call.csrf, "missing csrf on %s", call.path)
	}
}

func TestClient_SendMessageJSONBody(t *testing.T) {
	ts, calls := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"id": "c1",
			"messages": []map[string]any{
				{"id": "m1", "role": "assistant", "content": "Pick a date", "component_type": "date_time_picker"},
			},
		})
	})
	c := NewClient(ts.URL, StaticTokenSource("tok"), nil)

	conv, err := c.SendMessage(context.Background(), "c1", MessageRequest{
		Content:       "Dr. Rao",
		ComponentType: selection.TypeDoctorList,
		UserSelection: selection.Selection{"doctor_id": "d1", "display_message": "Dr. Rao"},
	})
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "date_time_picker", conv.Messages[0].ComponentType)

	call := (*calls)[0]
	assert.Equal(t, "application/json", call.ctype)
	assert.JSONEq(t, `{"content":"Dr. Rao","component_type":"doctor_list","user_selection":{"doctor_id":"d1","display_message":"Dr. Rao"}}`, string(call.body))
}

func TestClient_SendMessageMultipart(t *testing.T) {
	var files []string
	var content string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		content = r.FormValue("content")
		for _, fh := range r.MultipartForm.File["attachments[]"] {
			files = append(files, fh.Filename+":"+fh.Header.Get("Content-Type"))
		}
		writeJSON(w, 200, map[string]any{"id": "c1", "messages": []any{}})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, StaticTokenSource("tok"), nil)
	_, err := c.SendMessage(context.Background(), "c1", MessageRequest{
		Content: "my reports",
		Attachments: []Upload{
			{Name: "cbc.pdf", MimeType: "application/pdf", Body: strings.NewReader("%PDF")},
			{Name: "xray.png", Body: strings.NewReader("PNG")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "my reports", content)
	assert.Equal(t, []string{"cbc.pdf:application/pdf", "xray.png:application/octet-stream"}, files)
}

func TestClient_ErrorDecoding(t *testing.T) {
	ts, _ := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/family-members/send-otp":
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "Too many attempts", "locked_out": true, "attempts_remaining": 0})
		case "/family-members/create-new":
			writeJSON(w, http.StatusConflict, map[string]any{"error": "exists", "should_link": true, "member_data": map[string]any{"id": "p9", "name": "Ravi"}})
		case "/family-members/lookup":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>stack trace</html>"))
		}
	})
	c := NewClient(ts.URL, StaticTokenSource("tok"), nil)
	ctx := context.Background()

	_, err := c.SendOTP(ctx, OTPRequest{PatientID: "p1", Channel: ChannelPhone})
	require.Error(t, err)
	assert.True(t, IsLockout(err))
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.NotNil(t, apiErr.AttemptsRemaining)
	assert.Equal(t, 0, *apiErr.AttemptsRemaining)

	_, err = c.CreateMember(ctx, CreateMemberRequest{Name: "Ravi"})
	apiErr, ok = AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.ShouldLink)
	assert.Equal(t, "p9", apiErr.MemberData.ID)
	assert.False(t, IsLockout(err))

	_, err = c.Lookup(ctx, LookupRequest{SearchType: SearchEmail, SearchValue: "a@b.c"})
	apiErr, ok = AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
	assert.NotContains(t, err.Error(), "stack trace")
}

func TestClient_CSRFRejectionInvalidatesToken(t *testing.T) {
	pageHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/booking/c1/chat", func(w http.ResponseWriter, r *http.Request) {
		pageHits++
		_, _ = w.Write([]byte(`<html><head><meta name="csrf-token" content="tok-` + string(rune('0'+pageHits)) + `"></head></html>`))
	})
	mux.HandleFunc("/booking/c1/message", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(CSRFHeader) == "tok-1" {
			writeJSON(w, 419, map[string]any{"error": "CSRF token mismatch"})
			return
		}
		writeJSON(w, 200, map[string]any{"id": "c1", "messages": []any{}})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	hc := NewHTTPClient(0)
	tokens := NewMetaTokenSource(ts.URL+"/booking/c1/chat", hc)
	c := NewClient(ts.URL, tokens, nil, WithHTTPClient(hc))

	_, err := c.SendMessage(context.Background(), "c1", MessageRequest{Content: "hi"})
	require.Error(t, err)
	assert.True(t, IsCSRFRejected(err))

	_, err = c.SendMessage(context.Background(), "c1", MessageRequest{Content: "hi"})
	require.NoError(t, err, "next request fetches a fresh token")
	assert.Equal(t, 2, pageHits)
}

func TestClient_TranscribeFailure(t *testing.T) {
	ts, _ := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": false, "error": "audio too short"})
	})
	c := NewClient(ts.URL, StaticTokenSource("tok"), nil)
	_, err := c.Transcribe(context.Background(), "c1", Upload{Name: "a.webm", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio too short")
}

func TestClient_MissingToken(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", StaticTokenSource(""), nil)
	_, err := c.GetConversation(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNoCSRFToken)
}
