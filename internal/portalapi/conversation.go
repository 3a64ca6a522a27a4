package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/wolfman30/careportal-chat/internal/booking"
)

func bookingPath(conversationID, suffix string) string {
	return "/booking/" + url.PathEscape(conversationID) + suffix
}

// GetConversation loads the current message list.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*booking.Conversation, error) {
	var out booking.Conversation
	if err := c.do(ctx, "conversation", http.MethodGet, bookingPath(conversationID, ""), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts user text or a widget selection. Requests with
// attachments are sent as multipart with one attachments[] part per file.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req MessageRequest) (*booking.Conversation, error) {
	var out booking.Conversation
	path := bookingPath(conversationID, "/message")
	if len(req.Attachments) == 0 {
		if err := c.postJSON(ctx, "message", path, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	body, contentType, err := encodeMessageMultipart(req)
	if err != nil {
		return nil, err
	}
	if err := c.do(ctx, "message", http.MethodPost, path, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func encodeMessageMultipart(req MessageRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("content", req.Content); err != nil {
		return nil, "", fmt.Errorf("portalapi: write content field: %w", err)
	}
	if req.ComponentType != "" {
		if err := mw.WriteField("component_type", req.ComponentType); err != nil {
			return nil, "", fmt.Errorf("portalapi: write component_type field: %w", err)
		}
	}
	if req.UserSelection != nil {
		raw, err := json.Marshal(req.UserSelection)
		if err != nil {
			return nil, "", fmt.Errorf("portalapi: marshal user_selection: %w", err)
		}
		if err := mw.WriteField("user_selection", string(raw)); err != nil {
			return nil, "", fmt.Errorf("portalapi: write user_selection field: %w", err)
		}
	}
	for _, up := range req.Attachments {
		if err := writeFilePart(mw, "attachments[]", up); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("portalapi: close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeFilePart(mw *multipart.Writer, field string, up Upload) error {
	if up.Body == nil {
		return fmt.Errorf("portalapi: upload %q has no body", up.Name)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(up.Name)))
	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("portalapi: create part %q: %w", up.Name, err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return fmt.Errorf("portalapi: copy upload %q: %w", up.Name, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Transcribe uploads recorded audio and returns the recognised text.
func (c *Client) Transcribe(ctx context.Context, conversationID string, audio Upload) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeFilePart(mw, "audio", audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("portalapi: close multipart: %w", err)
	}

	var out TranscribeResponse
	if err := c.do(ctx, "transcribe", http.MethodPost, bookingPath(conversationID, "/transcribe"), &buf, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "transcription failed"
		}
		return "", &APIError{Status: http.StatusOK, Endpoint: "transcribe", Message: msg}
	}
	return strings.TrimSpace(out.Text), nil
}

// CreateOrder starts a payment for the conversation's booking.
func (c *Client) CreateOrder(ctx context.Context, conversationID string) (*Order, error) {
	var out Order
	if err := c.postJSON(ctx, "create_order", bookingPath(conversationID, "/payment/create-order"), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment confirms a completed checkout with the portal.
func (c *Client) VerifyPayment(ctx context.Context, conversationID string, v PaymentVerification) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.postJSON(ctx, "verify_payment", bookingPath(conversationID, "/payment/verify"), v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
