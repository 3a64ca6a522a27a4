// Package portalapi is the single typed client for the patient portal's
// booking-chat and family-member endpoints. Every request passes through one
// place that attaches the session's CSRF token.
package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to the portal backend. It never retries on its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *logging.Logger
	metrics    *metrics.ClientMetrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (and its cookie jar).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewHTTPClient returns an HTTP client with a cookie jar so the session
// cookie and the CSRF page share one session.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	jar, _ := cookiejar.New(nil)
	return &http.Client{Timeout: timeout, Jar: jar}
}

// NewClient creates a portal API client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: NewHTTPClient(defaultTimeout),
		tokens:     tokens,
		logger:     logger,
		tracer:     otel.Tracer("careportal.internal.portalapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client so a MetaTokenSource can share
// its cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("portalapi: marshal %s request: %w", endpoint, err)
	}
	return c.do(ctx, endpoint, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

// do is the single request path: CSRF header, tracing, metrics, and error
// decoding all happen here.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader, contentType string, out any) error {
	ctx, span := c.tracer.Start(ctx, "portalapi."+endpoint)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("portal.endpoint", endpoint),
	)

	if c.tokens == nil {
		return fmt.Errorf("portalapi: %s: %w", endpoint, ErrNoCSRFToken)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("portalapi: %s: csrf token: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("portalapi: build %s request: %w", endpoint, err)
	}
	req.Header.Set(CSRFHeader, token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.Warn("portal request failed", "endpoint", endpoint, "error", err)
		return fmt.Errorf("portalapi: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp, endpoint)
		if IsCSRFRejected(apiErr) {
			if inv, ok := c.tokens.(invalidator); ok {
				inv.Invalidate()
			}
		}
		span.SetStatus(codes.Error, apiErr.Message)
		c.logger.Info("portal request rejected",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"locked_out", apiErr.LockedOut,
		)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("portalapi: decode %s response: %w", endpoint, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, endpoint string) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Endpoint: endpoint}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(bytes.TrimSpace(raw)) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(raw, apiErr); err != nil {
		// Non-JSON error pages are not surfaced verbatim.
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	apiErr.Status = resp.StatusCode
	apiErr.Endpoint = endpoint
	return apiErr
}
