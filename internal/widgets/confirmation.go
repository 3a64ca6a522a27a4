package widgets

import (
	"strings"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// BookingConfirmation is the final receipt. It has no actions.
type BookingConfirmation struct {
	base
	props ConfirmationProps
	rows  []Row
}

// NewBookingConfirmation builds a booking_confirmation.
func NewBookingConfirmation(p ConfirmationProps, ctx Context) Widget {
	c := &BookingConfirmation{props: p, rows: SummaryRows(p.Details)}
	// Never interactive.
	ctx.OnSelect = nil
	ctx.Disabled = true
	c.init(selection.TypeBookingConfirmation, ctx)
	return c
}

// View renders the receipt.
func (c *BookingConfirmation) View() View {
	v := c.view(orDefault(c.props.Title, "Booking confirmed"))
	v.Subtitle = c.props.Message
	if c.props.BookingID != "" {
		v.Rows = append(v.Rows, Row{Key: "booking_id", Label: "Booking ID", Value: c.props.BookingID})
	}
	if c.props.Status != "" {
		v.Rows = append(v.Rows, Row{Key: "status", Label: "Status", Value: humanizeKey(strings.ToLower(c.props.Status))})
	}
	for _, r := range c.rows {
		r.ChangeKey = ""
		v.Rows = append(v.Rows, r)
	}
	v.Total = totalText(c.props.Details.Total, "")
	// The receipt is read-only but should not render greyed out.
	v.Disabled = false
	return v
}
