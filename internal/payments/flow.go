// Package payments drives the booking-summary pay action: create an order,
// complete checkout, verify with the portal and hand back the redirect.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

var tracer = otel.Tracer("careportal.payments")

var (
	// ErrPaymentInProgress is returned while a previous Pay call is running.
	ErrPaymentInProgress = errors.New("payments: payment already in progress")
	// ErrCheckoutDismissed is returned by a Checkout the user closed.
	ErrCheckoutDismissed = errors.New("payments: checkout dismissed")
)

// User-facing alert texts.
const (
	alertOrderFailed    = "Could not start the payment. Please try again."
	alertCheckoutFailed = "The payment could not be completed. Please try again."
	alertVerifyFailed   = "Payment verification failed. If money was deducted it will be refunded; please contact support."
)

// API is the part of the portal client the flow calls.
type API interface {
	CreateOrder(ctx context.Context, conversationID string) (*portalapi.Order, error)
	VerifyPayment(ctx context.Context, conversationID string, v portalapi.PaymentVerification) (*portalapi.VerifyResponse, error)
}

// Checkout collects payment for an order and returns the provider's
// signed confirmation.
type Checkout interface {
	Open(ctx context.Context, order portalapi.Order) (*portalapi.PaymentVerification, error)
}

// Alert is a blocking, user-visible payment failure. The pay action is
// available again once an Alert is returned.
type Alert struct {
	Message string
	Err     error
}

func (a *Alert) Error() string {
	if a.Err != nil {
		return fmt.Sprintf("payments: %s: %v", a.Message, a.Err)
	}
	return "payments: " + a.Message
}

func (a *Alert) Unwrap() error { return a.Err }

// AsAlert unwraps err into an *Alert.
func AsAlert(err error) (*Alert, bool) {
	var alert *Alert
	if errors.As(err, &alert) {
		return alert, true
	}
	return nil, false
}

// Result describes a verified payment.
type Result struct {
	OrderID   string
	PaymentID string
	Redirect  string
	Mock      bool
}

// Flow runs one payment at a time for a booking.
type Flow struct {
	api      API
	checkout Checkout
	fake     Checkout
	mode     string
	logger   *logging.Logger

	mu     sync.Mutex
	paying bool
}

// NewFlow creates a payment flow. checkout may be nil when only mock-mode
// orders are expected.
func NewFlow(api API, checkout Checkout, mode string, logger *logging.Logger) *Flow {
	if logger == nil {
		logger = logging.Default()
	}
	return &Flow{
		api:      api,
		checkout: checkout,
		fake:     NewFakeCheckout(),
		mode:     mode,
		logger:   logger,
	}
}

// Paying reports whether a payment is in flight.
func (f *Flow) Paying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paying
}

// Pay runs create-order, checkout and verify. Failures come back as *Alert
// and are never retried; a dismissed checkout returns ErrCheckoutDismissed.
func (f *Flow) Pay(ctx context.Context, conversationID string) (*Result, error) {
	f.mu.Lock()
	if f.paying {
		f.mu.Unlock()
		return nil, ErrPaymentInProgress
	}
	f.paying = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.paying = false
		f.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "payments.pay")
	defer span.End()
	span.SetAttributes(attribute.String("careportal.conversation_id", conversationID))

	order, err := f.api.CreateOrder(ctx, conversationID)
	if err != nil {
		f.logger.Error("create order failed", "conversation_id", conversationID, "error", err)
		return nil, &Alert{Message: alertOrderFailed, Err: err}
	}

	mock := UseMockCheckout(f.mode, order.MockMode)
	span.SetAttributes(attribute.Bool("payments.mock", mock))
	checkout := f.checkout
	if mock {
		checkout = f.fake
	}
	if checkout == nil {
		return nil, &Alert{Message: alertCheckoutFailed, Err: errors.New("no checkout configured")}
	}

	verification, err := checkout.Open(ctx, *order)
	if errors.Is(err, ErrCheckoutDismissed) {
		f.logger.Info("checkout dismissed", "conversation_id", conversationID, "order_id", order.OrderID)
		return nil, err
	}
	if err != nil {
		f.logger.Error("checkout failed", "conversation_id", conversationID, "order_id", order.OrderID, "error", err)
		return nil, &Alert{Message: alertCheckoutFailed, Err: err}
	}

	resp, err := f.api.VerifyPayment(ctx, conversationID, *verification)
	if err != nil {
		f.logger.Error("payment verification failed", "conversation_id", conversationID, "order_id", order.OrderID, "error", err)
		return nil, &Alert{Message: alertVerifyFailed, Err: err}
	}
	if !resp.Success {
		msg := alertVerifyFailed
		if resp.Error != "" {
			msg = resp.Error
		}
		f.logger.Warn("payment rejected", "conversation_id", conversationID, "order_id", order.OrderID)
		return nil, &Alert{Message: msg}
	}

	f.logger.Info("payment verified", "conversation_id", conversationID, "order_id", order.OrderID, "mock", mock)
	return &Result{
		OrderID:   order.OrderID,
		PaymentID: verification.PaymentID,
		Redirect:  resp.Redirect,
		Mock:      mock,
	}, nil
}
