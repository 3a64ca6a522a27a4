package payments

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

// PromptCheckout is the terminal stand-in for the provider's hosted
// checkout: it shows the order and reads back the payment id and signature
// the provider returned. An empty payment id dismisses the checkout.
type PromptCheckout struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptCheckout reads answers from in and writes prompts to out.
func NewPromptCheckout(in io.Reader, out io.Writer) *PromptCheckout {
	return &PromptCheckout{in: bufio.NewReader(in), out: out}
}

// Open prompts for the provider confirmation of order.
func (p *PromptCheckout) Open(ctx context.Context, order portalapi.Order) (*portalapi.PaymentVerification, error) {
	fmt.Fprintf(p.out, "Pay %s for order %s (key %s)\n", FormatAmount(order.Amount, order.Currency), order.OrderID, order.Key)

	paymentID, err := p.ask(ctx, "Payment id (blank to cancel): ")
	if err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, ErrCheckoutDismissed
	}
	signature, err := p.ask(ctx, "Signature: ")
	if err != nil {
		return nil, err
	}
	return &portalapi.PaymentVerification{
		PaymentID: paymentID,
		OrderID:   order.OrderID,
		Signature: signature,
	}, nil
}

func (p *PromptCheckout) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrCheckoutDismissed
		}
		return "", fmt.Errorf("payments: read checkout input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// FormatAmount renders an amount in minor units, e.g. 50000 INR as
// "₹500.00".
func FormatAmount(minor int64, currency string) string {
	symbol := currency + " "
	switch strings.ToUpper(currency) {
	case "INR", "":
		symbol = "₹"
	case "USD":
		symbol = "$"
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, minor/100, minor%100)
}
