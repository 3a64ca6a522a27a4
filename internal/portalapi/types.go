package portalapi

import (
	"io"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// MessageRequest is the body of POST /booking/{id}/message.
type MessageRequest struct {
	Content       string              `json:"content"`
	ComponentType string              `json:"component_type,omitempty"`
	UserSelection selection.Selection `json:"user_selection,omitempty"`
	Attachments   []Upload            `json:"-"`
}

// Upload is a file streamed as multipart form data.
type Upload struct {
	Name     string
	MimeType string
	Body     io.Reader
}

// TranscribeResponse is returned by POST /booking/{id}/transcribe.
type TranscribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

// Order is returned by POST /booking/{id}/payment/create-order.
type Order struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
	MockMode bool   `json:"mock_mode,omitempty"`
}

// PaymentVerification is the body of POST /booking/{id}/payment/verify.
type PaymentVerification struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyResponse is returned by the payment verification endpoint.
type VerifyResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SearchType tells the portal how to interpret a lookup value.
type SearchType string

const (
	SearchPhone     SearchType = "phone"
	SearchEmail     SearchType = "email"
	SearchPatientID SearchType = "patient_id"
)

// LookupRequest is the body of POST /family-members/lookup.
type LookupRequest struct {
	SearchType  SearchType `json:"search_type"`
	SearchValue string     `json:"search_value"`
}

// MemberData describes a patient record found by lookup or created.
type MemberData struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	MaskedPhone  string `json:"masked_phone,omitempty"`
	MaskedEmail  string `json:"masked_email,omitempty"`
	Age          int    `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// HasPhone reports whether the record can receive an SMS code.
func (m MemberData) HasPhone() bool { return m.Phone != "" || m.MaskedPhone != "" }

// HasEmail reports whether the record can receive an email code.
func (m MemberData) HasEmail() bool { return m.Email != "" || m.MaskedEmail != "" }

// LookupResponse is returned by POST /family-members/lookup.
type LookupResponse struct {
	Found         bool        `json:"found"`
	AlreadyLinked bool        `json:"already_linked,omitempty"`
	MemberData    *MemberData `json:"member_data,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// Channel is where a one-time code is delivered.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// OTPRequest is the body of POST /family-members/send-otp.
type OTPRequest struct {
	PatientID string  `json:"patient_id"`
	Channel   Channel `json:"channel"`
}

// OTPResponse is returned when a code has been sent.
type OTPResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	SentTo            string `json:"sent_to,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

// VerifyOTPRequest is the body of POST /family-members/verify-otp.
type VerifyOTPRequest struct {
	PatientID string  `json:"patient_id"`
	Channel   Channel `json:"channel"`
	OTP       string  `json:"otp"`
}

// VerifyOTPResponse is returned by the verify endpoint.
type VerifyOTPResponse struct {
	Verified          bool   `json:"verified"`
	Error             string `json:"error,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	LockedOut         bool   `json:"locked_out,omitempty"`
}

// LinkRequest is the body of POST /family-members/link.
type LinkRequest struct {
	PatientID         string `json:"patient_id"`
	Relationship      string `json:"relationship,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// CreateMemberRequest is the body of POST /family-members/create-new.
type CreateMemberRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	Age          int    `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Relationship string `json:"relationship"`
}

// MemberResponse is returned by link and create-new.
type MemberResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Member  *MemberData `json:"member,omitempty"`
}
