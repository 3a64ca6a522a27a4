package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

// MockPrefix marks identifiers produced without a payment provider.
const MockPrefix = "pay_mock_"

// FakeCheckout completes an order locally when the portal runs in mock
// mode. The portal accepts its identifiers only when fake payments are
// allowed, so it must never be used against production.
type FakeCheckout struct {
	newID func() string
}

// NewFakeCheckout returns a checkout that mints pay_mock_* identifiers.
func NewFakeCheckout() *FakeCheckout {
	return &FakeCheckout{newID: func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}}
}

// Open returns a verification payload for order without any user
// interaction.
func (f *FakeCheckout) Open(ctx context.Context, order portalapi.Order) (*portalapi.PaymentVerification, error) {
	_ = ctx
	if strings.TrimSpace(order.OrderID) == "" {
		return nil, fmt.Errorf("payments: fake checkout requires order id")
	}
	id := f.newID()
	return &portalapi.PaymentVerification{
		PaymentID: MockPrefix + id,
		OrderID:   order.OrderID,
		Signature: "sig_mock_" + id,
	}, nil
}

// IsMockPayment reports whether paymentID came from FakeCheckout.
func IsMockPayment(paymentID string) bool {
	return strings.HasPrefix(paymentID, MockPrefix)
}
