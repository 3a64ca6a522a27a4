package portalapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the portal. The optional fields carry
// the family-member flow's error contract.
type APIError struct {
	Status            int         `json:"-"`
	Endpoint          string      `json:"-"`
	Message           string      `json:"error"`
	LockedOut         bool        `json:"locked_out,omitempty"`
	AttemptsRemaining *int        `json:"attempts_remaining,omitempty"`
	ShouldLink        bool        `json:"should_link,omitempty"`
	AlreadyLinked     bool        `json:"already_linked,omitempty"`
	Verified          *bool       `json:"verified,omitempty"`
	MemberData        *MemberData `json:"member_data,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("portalapi: %s: %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("portalapi: %s: unexpected status %d", e.Endpoint, e.Status)
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsLockout reports whether the portal refused further attempts.
func IsLockout(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.LockedOut
}

// IsNotFound reports a 404 from the portal.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusNotFound
}

// IsCSRFRejected reports a rejected or expired CSRF token.
func IsCSRFRejected(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && (apiErr.Status == statusCSRFExpired || apiErr.Status == http.StatusForbidden)
}

// statusCSRFExpired is the status the portal framework uses for a stale
// session token.
const statusCSRFExpired = 419
