package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CSRFHeader is where the page's token must be echoed on unsafe requests.
	CSRFHeader = "X-CSRF-TOKEN"
	// SessionCookie identifies the browser session a CSRF token is bound to.
	SessionCookie = "careportal_session"
	// PurposeCSRF is the audience of page tokens.
	PurposeCSRF = "csrf"

	// statusCSRFExpired is the status the portal framework answers for a
	// stale or missing session token.
	statusCSRFExpired = 419
)

// ErrInvalidToken is returned for a token that fails signature, purpose,
// subject or expiry checks.
var ErrInvalidToken = errors.New("middleware: invalid token")

// Signer issues and checks HMAC-signed tokens scoped to a purpose.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a signer using secret. An empty secret yields a signer
// whose tokens never verify.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign returns a token for subject valid for ttl.
func (s *Signer) Sign(purpose, subject string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("middleware: sign %s token: no secret configured", purpose)
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{purpose},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("middleware: sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks token and returns its subject.
func (s *Signer) Verify(token, purpose string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithAudience(purpose), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

// CSRF rejects unsafe requests whose X-CSRF-TOKEN header is missing, badly
// signed, or bound to another session. Tokens issued without a session
// (configured for headless clients) are accepted from any session.
func CSRF(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			subject, err := signer.Verify(r.Header.Get(CSRFHeader), PurposeCSRF)
			if err == nil && subject != "" {
				cookie, cookieErr := r.Cookie(SessionCookie)
				if cookieErr != nil || cookie.Value != subject {
					err = ErrInvalidToken
				}
			}
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(statusCSRFExpired)
				_, _ = w.Write([]byte(`{"error":"CSRF token mismatch."}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
