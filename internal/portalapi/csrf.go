package portalapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// CSRFHeader carries the session's CSRF token on every portal request.
const CSRFHeader = "X-CSRF-TOKEN"

// ErrNoCSRFToken is returned when no token could be obtained.
var ErrNoCSRFToken = errors.New("portalapi: csrf token not found")

// TokenSource supplies the CSRF token for the current session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoCSRFToken
	}
	return string(s), nil
}

// MetaTokenSource reads the token from the <meta name="csrf-token"> tag of a
// portal page and caches it until Invalidate is called.
type MetaTokenSource struct {
	pageURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewMetaTokenSource fetches pageURL with httpClient (which should carry the
// session cookie jar shared with the API client).
func NewMetaTokenSource(pageURL string, httpClient *http.Client) *MetaTokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MetaTokenSource{pageURL: pageURL, httpClient: httpClient}
}

func (s *MetaTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("portalapi: build csrf page request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("portalapi: fetch csrf page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("portalapi: fetch csrf page: status %d", resp.StatusCode)
	}

	token, err := ExtractCSRFToken(resp.Body)
	if err != nil {
		return "", err
	}
	s.token = token
	return token, nil
}

// Invalidate drops the cached token so the next call refetches the page.
func (s *MetaTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// ExtractCSRFToken scans an HTML document for <meta name="csrf-token">.
func ExtractCSRFToken(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", ErrNoCSRFToken
			}
			return "", fmt.Errorf("portalapi: parse csrf page: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			for _, attr := range tok.Attr {
				switch strings.ToLower(attr.Key) {
				case "name":
					name = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if strings.EqualFold(name, "csrf-token") && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content), nil
			}
		}
	}
}

type invalidator interface {
	Invalidate()
}
