package payments

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

const (
	timeoutShort = time.Second
	tick         = 5 * time.Millisecond
)

type stubAPI struct {
	mu       sync.Mutex
	order    *portalapi.Order
	orderErr error
	verify   func(portalapi.PaymentVerification) (*portalapi.VerifyResponse, error)
	verified []portalapi.PaymentVerification
	orders   int
	block    chan struct{}
}

func (s *stubAPI) CreateOrder(context.Context, string) (*portalapi.Order, error) {
	s.mu.Lock()
	s.orders++
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	o := *s.order
	return &o, nil
}

func (s *stubAPI) VerifyPayment(_ context.Context, _ string, v portalapi.PaymentVerification) (*portalapi.VerifyResponse, error) {
	s.mu.Lock()
	s.verified = append(s.verified, v)
	s.mu.Unlock()
	return s.verify(v)
}

func okVerify(portalapi.PaymentVerification) (*portalapi.VerifyResponse, error) {
	return &portalapi.VerifyResponse{Success: true, Redirect: "/booking/c1/confirmation"}, nil
}

type providerCheckout struct {
	calls int
	err   error
}

func (p *providerCheckout) Open(_ context.Context, order portalapi.Order) (*portalapi.PaymentVerification, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &portalapi.PaymentVerification{PaymentID: "pay_live_1", OrderID: order.OrderID, Signature: "sig"}, nil
}

func TestFlow_MockModeShortCircuits(t *testing.T) {
	api := &stubAPI{order: &portalapi.Order{OrderID: "order_1", Amount: 50000, Currency: "INR", MockMode: true}, verify: okVerify}
	provider := &providerCheckout{}
	flow := NewFlow(api, provider, "auto", nil)

	res, err := flow.Pay(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, res.Mock)
	assert.Equal(t, "/booking/c1/confirmation", res.Redirect)
	assert.True(t, IsMockPayment(res.PaymentID))
	assert.Zero(t, provider.calls)
	require.Len(t, api.verified, 1)
	assert.Equal(t, "order_1", api.verified[0].OrderID)
}

func TestFlow_ProviderCheckout(t *testing.T) {
	api := &stubAPI{order: &portalapi.Order{OrderID: "order_2", Amount: 50000}, verify: okVerify}
	provider := &providerCheckout{}
	res, err := NewFlow(api, provider, "", nil).Pay(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, res.Mock)
	assert.Equal(t, "pay_live_1", res.PaymentID)
	assert.Equal(t, 1, provider.calls)
}

func TestFlow_VerifyFailureAlertsAndRearms(t *testing.T) {
	api := &stubAPI{order: &portalapi.Order{OrderID: "order_3", MockMode: true}}
	api.verify = func(portalapi.PaymentVerification) (*portalapi.VerifyResponse, error) {
		return nil, &portalapi.APIError{Status: 400, Endpoint: "verify_payment", Message: "signature mismatch"}
	}
	flow := NewFlow(api, nil, "auto", nil)

	_, err := flow.Pay(context.Background(), "c1")
	alert, ok := AsAlert(err)
	require.True(t, ok)
	assert.Equal(t, alertVerifyFailed, alert.Message)
	assert.False(t, flow.Paying(), "pay action is re-armed")
	assert.Len(t, api.verified, 1, "never retried")

	api.verify = func(portalapi.PaymentVerification) (*portalapi.VerifyResponse, error) {
		return &portalapi.VerifyResponse{Success: false, Error: "Payment was declined"}, nil
	}
	_, err = flow.Pay(context.Background(), "c1")
	alert, ok = AsAlert(err)
	require.True(t, ok)
	assert.Equal(t, "Payment was declined", alert.Message)
}

func TestFlow_OrderFailure(t *testing.T) {
	api := &stubAPI{orderErr: errors.New("dial tcp: refused")}
	_, err := NewFlow(api, &providerCheckout{}, "", nil).Pay(context.Background(), "c1")
	alert, ok := AsAlert(err)
	require.True(t, ok)
	assert.Equal(t, alertOrderFailed, alert.Message)
	assert.NotContains(t, alert.Message, "dial tcp")
}

func TestFlow_DismissedCheckoutIsNotAnAlert(t *testing.T) {
	api := &stubAPI{order: &portalapi.Order{OrderID: "order_4"}, verify: okVerify}
	_, err := NewFlow(api, &providerCheckout{err: ErrCheckoutDismissed}, "", nil).Pay(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrCheckoutDismissed)
	_, isAlert := AsAlert(err)
	assert.False(t, isAlert)
	assert.Empty(t, api.verified)
}

func TestFlow_RejectsConcurrentPay(t *testing.T) {
	block := make(chan struct{})
	api := &stubAPI{order: &portalapi.Order{OrderID: "order_5", MockMode: true}, verify: okVerify, block: block}
	flow := NewFlow(api, nil, "", nil)

	done := make(chan error, 1)
	go func() {
		_, err := flow.Pay(context.Background(), "c1")
		done <- err
	}()
	require.Eventually(t, flow.Paying, timeoutShort, tick)

	_, err := flow.Pay(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrPaymentInProgress)
	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.orders)
}

func TestPromptCheckout(t *testing.T) {
	var out bytes.Buffer
	pc := NewPromptCheckout(strings.NewReader("pay_abc\nsig_xyz\n"), &out)
	v, err := pc.Open(context.Background(), portalapi.Order{OrderID: "order_6", Amount: 50000, Currency: "INR", Key: "rzp_test"})
	require.NoError(t, err)
	assert.Equal(t, "pay_abc", v.PaymentID)
	assert.Equal(t, "sig_xyz", v.Signature)
	assert.Equal(t, "order_6", v.OrderID)
	assert.Contains(t, out.String(), "₹500.00")

	_, err = NewPromptCheckout(strings.NewReader("\n"), &out).Open(context.Background(), portalapi.Order{OrderID: "o"})
	assert.ErrorIs(t, err, ErrCheckoutDismissed)
}
