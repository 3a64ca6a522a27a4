package portalapi

import "context"

// Lookup searches the portal for an existing patient record.
func (c *Client) Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error) {
	var out LookupResponse
	if err := c.postJSON(ctx, "lookup", "/family-members/lookup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendOTP asks the portal to deliver a one-time code to the record's phone
// or email.
func (c *Client) SendOTP(ctx context.Context, req OTPRequest) (*OTPResponse, error) {
	var out OTPResponse
	if err := c.postJSON(ctx, "send_otp", "/family-members/send-otp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP checks a code. A wrong code may come back either as
// verified=false or as an APIError; callers handle both.
func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResponse, error) {
	var out VerifyOTPResponse
	if err := c.postJSON(ctx, "verify_otp", "/family-members/verify-otp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Link attaches a verified patient record to the account.
func (c *Client) Link(ctx context.Context, req LinkRequest) (*MemberResponse, error) {
	var out MemberResponse
	if err := c.postJSON(ctx, "link", "/family-members/link", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMember registers a new family member.
func (c *Client) CreateMember(ctx context.Context, req CreateMemberRequest) (*MemberResponse, error) {
	var out MemberResponse
	if err := c.postJSON(ctx, "create_member", "/family-members/create-new", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
