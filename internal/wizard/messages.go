package wizard

import (
	"net/http"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

// User-facing messages. Transport details are logged, never shown.
const (
	msgSearchFailed   = "Failed to search. Please try again."
	msgSendOTPFailed  = "Failed to send OTP. Please try again."
	msgVerifyFailed   = "Failed to verify OTP. Please try again."
	msgLinkFailed     = "Failed to link member. Please try again."
	msgCreateFailed   = "Failed to add member. Please try again."
	msgInvalidOTP     = "Invalid OTP. Please try again."
	msgLockedOut      = "Too many attempts. Please try again later."
	msgNotFound       = "No patient found with these details."
	msgAlreadyLinked  = "This patient is already linked to your account."
	msgShouldLink     = "This phone number belongs to an existing patient. Verify to link them."
	msgQueryRequired  = "Enter a phone number, email or patient ID."
	msgQueryInvalid   = "Enter a valid phone number, email or patient ID."
	msgOTPFormat      = "Enter the 6-digit code."
	msgNameRequired   = "Name is required."
	msgPhoneInvalid   = "Enter a valid mobile number starting with +91."
	msgEmailInvalid   = "Enter a valid email address."
	msgDOBInvalid     = "Enter a valid date of birth (YYYY-MM-DD)."
	msgAgeInvalid     = "Enter an age between 0 and 120."
	msgGenderInvalid  = "Choose male, female or other."
	msgRelationNeeded = "Choose a relationship."
	msgChannelMissing = "This record has no contact for that channel."
)

// userMessage picks the text to show for a failed call. Client-side errors
// with a server message are shown as-is; everything else gets fallback.
func userMessage(err error, fallback string) string {
	if portalapi.IsLockout(err) {
		return msgLockedOut
	}
	apiErr, ok := portalapi.AsAPIError(err)
	if !ok {
		return fallback
	}
	if apiErr.Status >= http.StatusInternalServerError || apiErr.Message == "" {
		return fallback
	}
	return apiErr.Message
}
