package widgets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wolfman30/careportal-chat/internal/payments"
	"github.com/wolfman30/careportal-chat/internal/selection"
)

// Reserved summary keys rendered outside the row table.
const (
	summaryPaymentKey = "payment"
	summaryTotalKey   = "total_amount"
)

// SummaryField is one key of a summary object, in document order.
type SummaryField struct {
	Key   string
	Value json.RawMessage
}

// PaymentInfo describes what the booking still owes.
type PaymentInfo struct {
	Required bool   `json:"required"`
	Amount   int64  `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Summary is an arbitrary summary object with key order preserved. The
// payment and total_amount keys are split out.
type Summary struct {
	Fields  []SummaryField
	Payment *PaymentInfo
	Total   json.RawMessage
}

// UnmarshalJSON walks the object's tokens to keep key order.
func (s *Summary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("widgets: summary must be an object")
	}
	*s = Summary{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		switch key {
		case summaryPaymentKey:
			var p PaymentInfo
			if err := json.Unmarshal(raw, &p); err == nil {
				s.Payment = &p
			}
		case summaryTotalKey:
			s.Total = raw
		default:
			s.Fields = append(s.Fields, SummaryField{Key: key, Value: raw})
		}
	}
	_, err = dec.Token()
	return err
}

// BookingSummaryProps is the booking_summary contract. The summary may
// arrive wrapped as {"title", "summary"} or as the bare object.
type BookingSummaryProps struct {
	Title   string
	Summary Summary
}

// UnmarshalJSON accepts both the wrapped and the bare form.
func (p *BookingSummaryProps) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Title   string          `json:"title"`
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	p.Title = envelope.Title
	if len(envelope.Summary) > 0 && envelope.Summary[0] == '{' {
		return json.Unmarshal(envelope.Summary, &p.Summary)
	}
	return json.Unmarshal(data, &p.Summary)
}

// SummaryRows renders summary fields as labelled rows. Null values are
// dropped.
func SummaryRows(s Summary) []Row {
	rows := make([]Row, 0, len(s.Fields))
	for _, f := range s.Fields {
		value := rawText(f.Value)
		if value == "" {
			continue
		}
		rows = append(rows, Row{
			Key:       f.Key,
			Label:     humanizeKey(f.Key),
			Value:     value,
			ChangeKey: changeKeyFor(f.Key),
		})
	}
	return rows
}

func humanizeKey(key string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	if len(words) == 0 {
		return key
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}

// changeKeyFor maps a row key such as "doctor_name" or "appointment_date"
// to its change_* selection field.
func changeKeyFor(key string) string {
	base := strings.ToLower(key)
	for _, suffix := range []string{"_name", "_id", "_details", "_info"} {
		base = strings.TrimSuffix(base, suffix)
	}
	base = strings.TrimPrefix(base, "appointment_")
	if target, ok := selection.ChangeTargets[base]; ok {
		return target
	}
	switch {
	case strings.Contains(base, "date"), strings.Contains(base, "time"), base == "slot":
		return selection.ChangeTargets["date"]
	case strings.Contains(base, "address"):
		return selection.ChangeTargets["address"]
	case strings.Contains(base, "test"):
		return selection.ChangeTargets["tests"]
	}
	return ""
}

// rawText renders a JSON value for display.
func rawText(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	return valueText(v)
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if human := selection.HumanDate(s); human != s {
			return human
		}
		return selection.HumanTime(s)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := valueText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		sel := selection.Selection(t)
		if sel.Has("line1") || sel.Has("pincode") {
			return selection.FormatAddress(sel)
		}
		for _, key := range []string{"name", "label", "text", "value"} {
			if s := strings.TrimSpace(sel.String(key)); s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := valueText(t[k]); s != "" {
				parts = append(parts, humanizeKey(k)+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}

// totalText renders total_amount, given in rupees.
func totalText(raw json.RawMessage, currency string) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return payments.FormatAmount(int64(f*100+0.5), currency)
	case string:
		return strings.TrimSpace(t)
	}
	return ""
}

// BookingSummary shows the booking for review, offers per-row change links
// and either a confirm or a pay action.
type BookingSummary struct {
	base
	title          string
	summary        Summary
	rows           []Row
	conversationID string
	flow           *payments.Flow

	payMu  sync.Mutex
	paid   *payments.Result
	alert  string
	paying bool
}

// NewBookingSummary builds a booking_summary.
func NewBookingSummary(p BookingSummaryProps, ctx Context) Widget {
	b := &BookingSummary{
		title:          orDefault(p.Title, "Review your booking"),
		summary:        p.Summary,
		rows:           SummaryRows(p.Summary),
		conversationID: ctx.ConversationID,
		flow:           ctx.Payments,
	}
	b.init(selection.TypeBookingSummary, ctx)
	return b
}

// PaymentRequired reports whether the booking must be paid before it is
// confirmed.
func (b *BookingSummary) PaymentRequired() bool {
	p := b.summary.Payment
	if p == nil || strings.EqualFold(p.Status, "paid") {
		return false
	}
	return p.Required || p.Amount > 0
}

// View renders the rows, total and available actions.
func (b *BookingSummary) View() View {
	v := b.view(b.title)
	v.Rows = append([]Row(nil), b.rows...)
	currency := ""
	if b.summary.Payment != nil {
		currency = b.summary.Payment.Currency
	}
	v.Total = totalText(b.summary.Total, currency)
	if v.Total == "" && b.summary.Payment != nil && b.summary.Payment.Amount > 0 {
		v.Total = payments.FormatAmount(b.summary.Payment.Amount, currency)
	}

	b.payMu.Lock()
	v.Error = b.alert
	paid := b.paid
	paying := b.paying
	b.payMu.Unlock()

	switch {
	case v.Disabled:
	case paid != nil:
		v.Subtitle = "Payment completed"
	case paying:
		v.Subtitle = "Processing payment..."
	case b.PaymentRequired():
		v.Actions = []string{"pay", "change"}
	default:
		v.Actions = []string{"confirm", "change"}
	}
	return v
}

// Change emits the change_* selection for a row key or change field.
func (b *BookingSummary) Change(key string) error {
	if err := b.guard(); err != nil {
		return err
	}
	target := ""
	if strings.HasPrefix(key, "change_") {
		target = key
	} else {
		for _, r := range b.rows {
			if r.Key == key {
				target = r.ChangeKey
				break
			}
		}
		if target == "" {
			target = changeKeyFor(key)
		}
	}
	if target == "" {
		return ErrNoSuchOption
	}
	return b.emit(selection.Selection{target: true})
}

// Confirm accepts a booking that needs no payment.
func (b *BookingSummary) Confirm() error {
	if b.PaymentRequired() {
		return ErrNotSupported
	}
	return b.emit(selection.Selection{"confirmed": true}.WithDisplay("Confirm booking"))
}

// Pay runs the payment flow. A failed verification leaves the pay action
// available and records the alert on the view.
func (b *BookingSummary) Pay(ctx context.Context) (*payments.Result, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	if b.flow == nil || !b.PaymentRequired() {
		return nil, ErrNotSupported
	}
	b.payMu.Lock()
	if b.paid != nil {
		b.payMu.Unlock()
		return nil, selection.ErrAlreadySelected
	}
	b.paying = true
	b.alert = ""
	b.payMu.Unlock()

	res, err := b.flow.Pay(ctx, b.conversationID)

	b.payMu.Lock()
	defer b.payMu.Unlock()
	b.paying = false
	if err != nil {
		if alert, ok := payments.AsAlert(err); ok {
			b.alert = alert.Message
		} else if !errors.Is(err, payments.ErrCheckoutDismissed) && !errors.Is(err, payments.ErrPaymentInProgress) {
			b.alert = "Payment failed. Please try again."
		}
		return nil, err
	}
	b.paid = res
	return res, nil
}
