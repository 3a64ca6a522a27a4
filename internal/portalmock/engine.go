package portalmock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careportal-chat/internal/booking"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

var (
	// ErrStaleSelection is returned when a selection targets a question that
	// is no longer the open one.
	ErrStaleSelection = errors.New("portalmock: selection does not answer the open question")
	// ErrNoPendingPayment is returned when there is nothing to pay for.
	ErrNoPendingPayment = errors.New("portalmock: no payment is pending")
	// ErrOrderMismatch is returned when a verification names another order.
	ErrOrderMismatch = errors.New("portalmock: order does not match")
	// ErrPaymentRequired is returned when a paid booking is confirmed unpaid.
	ErrPaymentRequired = errors.New("portalmock: payment is required before confirming")
)

// Inbound is one user turn.
type Inbound struct {
	Content       string
	ComponentType string
	UserSelection selection.Selection
	Attachments   []booking.Attachment
}

type draft struct {
	urgency     string
	symptoms    string
	patientID   string
	patientName string
	patientType string
	mode        string
	modeLabel   string
	doctor      widgets.Doctor
	date        string
	time        string
}

func (d draft) paymentRequired() bool {
	return d.mode != "" && d.mode != "in_person" && d.doctor.Fee > 0
}

type order struct {
	id       string
	amount   int64
	currency string
	paid     bool
	payment  string
}

type conversation struct {
	id        string
	messages  []booking.Message
	draft     draft
	order     *order
	bookingID string
	status    string
}

func (c *conversation) snapshot() *booking.Conversation {
	out := make([]booking.Message, len(c.messages))
	for i, m := range c.messages {
		m.UserSelection = m.UserSelection.Clone()
		out[i] = m
	}
	return &booking.Conversation{ID: c.id, Status: c.status, Messages: out}
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	AccountID string
	Directory Directory
	Currency  string
	Now       func() time.Time
	Logger    *logging.Logger
}

// Engine runs scripted booking conversations in memory.
type Engine struct {
	account  string
	dir      Directory
	currency string
	now      func() time.Time
	newID    func() string
	logger   *logging.Logger

	mu    sync.Mutex
	convs map[string]*conversation
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		account:  opts.AccountID,
		dir:      opts.Directory,
		currency: opts.Currency,
		now:      opts.Now,
		newID:    uuid.NewString,
		logger:   opts.Logger,
		convs:    make(map[string]*conversation),
	}
	if e.account == "" {
		e.account = DemoAccountID
	}
	if e.dir == nil {
		e.dir = NewDemoDirectory()
	}
	if e.currency == "" {
		e.currency = "INR"
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	return e
}

// AccountID is the account every conversation books for.
func (e *Engine) AccountID() string { return e.account }

// Conversation returns the conversation, starting it on first use.
func (e *Engine) Conversation(ctx context.Context, id string) *booking.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx, id).snapshot()
}

func (e *Engine) load(_ context.Context, id string) *conversation {
	c, ok := e.convs[id]
	if ok {
		return c
	}
	c = &conversation{id: id, status: "active"}
	c.messages = append(c.messages, e.assistant("Hi! I can help you book a doctor's appointment.", nil))
	c.messages = append(c.messages, e.ask(c, selection.TypeUrgency, "How soon do you need to be seen?"))
	e.convs[id] = c
	e.logger.Info("conversation started", "conversation_id", id)
	return c
}

// Post records a user turn and appends the assistant's reply.
func (e *Engine) Post(ctx context.Context, id string, in Inbound) (*booking.Conversation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.load(ctx, id)

	var answered string
	if in.UserSelection != nil {
		i := booking.ActiveIndex(c.messages, false)
		if i < 0 || selection.Canonical(c.messages[i].ComponentType) != selection.Canonical(in.ComponentType) {
			return nil, ErrStaleSelection
		}
		if err := e.checkSelection(c, in); err != nil {
			return nil, err
		}
		c.messages[i].UserSelection = in.UserSelection.Clone()
		answered = selection.Canonical(in.ComponentType)
	}

	content := strings.TrimSpace(in.Content)
	if content == "" && in.UserSelection != nil {
		content = selection.FormatText(answered, in.UserSelection)
	}
	c.messages = append(c.messages, booking.Message{
		ID:          e.newID(),
		Role:        booking.RoleUser,
		Content:     content,
		Attachments: in.Attachments,
		CreatedAt:   e.now(),
	})

	var replies []booking.Message
	if answered != "" {
		replies = e.answer(ctx, c, answered, in.UserSelection)
	} else {
		replies = e.chat(c, content, in.Attachments)
	}
	c.messages = append(c.messages, replies...)
	return c.snapshot(), nil
}

func (e *Engine) checkSelection(c *conversation, in Inbound) error {
	if selection.Canonical(in.ComponentType) == selection.TypeBookingSummary &&
		in.UserSelection.Bool("confirmed") && c.draft.paymentRequired() && (c.order == nil || !c.order.paid) {
		return ErrPaymentRequired
	}
	return nil
}

func (e *Engine) assistant(content string, thinking []string) booking.Message {
	return booking.Message{
		ID:            e.newID(),
		Role:          booking.RoleAssistant,
		Content:       content,
		ThinkingSteps: thinking,
		CreatedAt:     e.now(),
	}
}

// chat answers free text by acknowledging it and re-asking the open
// question so exactly one widget stays interactive.
func (e *Engine) chat(c *conversation, content string, files []booking.Attachment) []booking.Message {
	var reply string
	switch {
	case len(files) > 0:
		reply = fmt.Sprintf("Thanks, I've added %d file(s) to your booking notes.", len(files))
	case c.bookingID != "":
		return []booking.Message{e.assistant("Your booking "+c.bookingID+" is confirmed. Is there anything else I can help with?", nil)}
	default:
		if c.draft.symptoms == "" && content != "" {
			c.draft.symptoms = content
		}
		reply = "Thanks, I've noted that."
	}
	last := lastQuestion(c.messages)
	if last == "" {
		return []booking.Message{e.assistant(reply, nil)}
	}
	return []booking.Message{e.assistant(reply, nil), e.ask(c, last, "Let's continue.")}
}

func lastQuestion(messages []booking.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].HasComponent() {
			if messages[i].ComponentType == selection.TypeBookingConfirmation {
				return ""
			}
			return messages[i].ComponentType
		}
	}
	return ""
}

func (e *Engine) answer(ctx context.Context, c *conversation, componentType string, sel selection.Selection) []booking.Message {
	d := &c.draft
	switch componentType {
	case selection.TypeUrgency:
		d.urgency = sel.String("urgency")
		return []booking.Message{e.ask(c, selection.TypeTextInput, "Got it. Could you briefly describe your symptoms?")}

	case selection.TypeTextInput:
		if text := sel.String("symptoms"); text != "" {
			d.symptoms = text
		}
		return []booking.Message{e.ask(c, selection.TypePatient, "Who is this appointment for?")}

	case selection.TypePatient:
		if sel.Bool("add_member") {
			return []booking.Message{e.ask(c, selection.TypeMemberType, "Let's add a family member.")}
		}
		d.patientID, d.patientName, d.patientType = sel.String("patient_id"), sel.String("patient_name"), "family"
		return e.afterPatient(c)

	case selection.TypeMemberType:
		d.patientType = sel.String("patient_type")
		d.patientID = sel.String("patient_id")
		d.patientName = sel.String("patient_name")
		if d.patientType == "guest" {
			d.patientName = sel.String("guest_name")
		}
		return e.afterPatient(c)

	case selection.TypeMode:
		d.mode = sel.String("mode")
		d.modeLabel, _ = selection.PresetDisplay(selection.ModePresets, d.mode)
		return []booking.Message{e.withThinking(e.ask(c, selection.TypeDoctorList, "Here are the doctors available for you."),
			"Checking doctors for "+strings.ToLower(orDefault(d.modeLabel, "your visit")),
			"Sorting by earliest availability")}

	case selection.TypeDoctorList:
		doc, ok := findDoctor(sel.String("doctor_id"))
		if !ok {
			return []booking.Message{e.assistant("I couldn't find that doctor.", nil), e.ask(c, selection.TypeDoctorList, "Please choose a doctor.")}
		}
		d.doctor = doc
		return []booking.Message{e.ask(c, selection.TypeDateTime, "When would you like to see "+doc.Name+"?")}

	case selection.TypeDateTime:
		date, clock := sel.String("date"), sel.String("time")
		if clock == "" || !slotOpen(e.now(), date, clock) {
			return []booking.Message{e.ask(c, selection.TypeDateTime, "That slot is no longer available. Please pick another time.")}
		}
		d.date, d.time = date, clock
		return []booking.Message{e.withThinking(e.ask(c, selection.TypeBookingSummary, "Please review your booking."),
			"Holding your slot")}

	case selection.TypeBookingSummary:
		if sel.Bool("confirmed") {
			return []booking.Message{e.confirm(ctx, c)}
		}
		if target := changeTarget(sel); target != "" {
			return []booking.Message{e.ask(c, target, "Sure, let's change that.")}
		}
		return []booking.Message{e.ask(c, selection.TypeBookingSummary, "That detail can't be changed here. Please review your booking.")}
	}

	e.logger.Warn("unhandled component answer", "conversation_id", c.id, "component_type", componentType)
	return []booking.Message{e.assistant("Thanks.", nil)}
}

func (e *Engine) afterPatient(c *conversation) []booking.Message {
	if c.draft.mode != "" && c.draft.doctor.ID != "" && c.draft.time != "" {
		return []booking.Message{e.ask(c, selection.TypeBookingSummary, "Updated. Please review your booking.")}
	}
	return []booking.Message{e.ask(c, selection.TypeMode, "How would you like to consult?")}
}

var changeTargets = map[string]string{
	"change_patient":  selection.TypePatient,
	"change_mode":     selection.TypeMode,
	"change_doctor":   selection.TypeDoctorList,
	"change_datetime": selection.TypeDateTime,
}

func changeTarget(sel selection.Selection) string {
	for key, target := range changeTargets {
		if sel.Bool(key) {
			return target
		}
	}
	return ""
}

func (e *Engine) withThinking(m booking.Message, steps ...string) booking.Message {
	m.ThinkingSteps = steps
	return m
}

// ask builds the assistant message carrying componentType with data for
// the conversation's current state.
func (e *Engine) ask(c *conversation, componentType, content string) booking.Message {
	m := e.assistant(content, nil)
	m.ComponentType = componentType
	m.ComponentData = e.componentData(c, componentType)
	return m
}

func (e *Engine) componentData(c *conversation, componentType string) json.RawMessage {
	d := c.draft
	switch componentType {
	case selection.TypeUrgency:
		return mustJSON(widgets.UrgencyProps{Title: "How soon do you need to be seen?"})
	case selection.TypeTextInput:
		return mustJSON(widgets.TextInputProps{
			Title: "Describe your symptoms", Field: "symptoms",
			Placeholder: "e.g. chest pain since yesterday", Multiline: true, Optional: true, MaxLength: 500,
		})
	case selection.TypePatient:
		family, err := e.dir.Family(context.Background(), e.account)
		if err != nil {
			e.logger.Error("load family failed", "account_id", e.account, "error", err)
		}
		props := widgets.PatientProps{Title: "Select patient"}
		for _, m := range family {
			props.Patients = append(props.Patients, widgets.Patient{
				ID: m.ID, Name: m.Name, Relationship: m.Relationship, Age: m.Age, Gender: m.Gender,
			})
			if m.Relationship == "self" {
				props.DefaultPatientID = m.ID
			}
		}
		return mustJSON(props)
	case selection.TypeMemberType:
		return mustJSON(widgets.MemberTypeProps{Title: "Add a family member"})
	case selection.TypeMode:
		return mustJSON(widgets.ModeProps{Title: "How would you like to consult?"})
	case selection.TypeDoctorList:
		return mustJSON(widgets.DoctorProps{Title: "Available doctors", Doctors: doctors})
	case selection.TypeDateTime:
		return mustJSON(widgets.DateTimeProps{Title: "Pick a slot", DoctorName: d.doctor.Name, Dates: bookableDates(e.now(), 6)})
	case selection.TypeBookingSummary:
		return mustJSON(object{{"title", "Review your booking"}, {"summary", e.summary(c)}})
	}
	return nil
}

func (e *Engine) summary(c *conversation) object {
	d := c.draft
	s := object{
		{"patient_name", d.patientName},
		{"appointment_mode", orDefault(d.modeLabel, d.mode)},
		{"doctor_name", d.doctor.Name},
		{"specialty", d.doctor.Specialty},
		{"appointment_date", d.date},
		{"appointment_time", d.time},
	}
	if d.symptoms != "" {
		s = append(s, field{"symptoms", d.symptoms})
	}
	if d.paymentRequired() {
		status := "pending"
		if c.order != nil && c.order.paid {
			status = "paid"
		}
		s = append(s, field{"payment", object{
			{"required", true},
			{"amount", int64(d.doctor.Fee) * 100},
			{"currency", e.currency},
			{"status", status},
		}})
	} else {
		s = append(s, field{"payment_note", "Pay at the centre"})
	}
	return append(s, field{"total_amount", d.doctor.Fee})
}

func (e *Engine) confirm(_ context.Context, c *conversation) booking.Message {
	if c.bookingID == "" {
		c.bookingID = "BK-" + strings.ToUpper(e.newID()[:8])
	}
	c.status = "confirmed"
	m := e.assistant("Your appointment is booked!", nil)
	m.ComponentType = selection.TypeBookingConfirmation
	m.ComponentData = mustJSON(object{
		{"title", "Booking confirmed"},
		{"message", "A confirmation has been sent to your registered phone number."},
		{"booking_id", c.bookingID},
		{"status", "confirmed"},
		{"details", e.summary(c)},
	})
	e.logger.Info("booking confirmed", "conversation_id", c.id, "booking_id", c.bookingID)
	return m
}

// CreateOrder opens a payment order for the pending booking summary.
func (e *Engine) CreateOrder(ctx context.Context, id string) (orderID string, amount int64, currency string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.load(ctx, id)
	if !c.draft.paymentRequired() || c.bookingID != "" {
		return "", 0, "", ErrNoPendingPayment
	}
	if c.order == nil || c.order.paid {
		c.order = &order{
			id:       "order_" + strings.ReplaceAll(e.newID(), "-", "")[:14],
			amount:   int64(c.draft.doctor.Fee) * 100,
			currency: e.currency,
		}
	}
	return c.order.id, c.order.amount, c.order.currency, nil
}

// CompletePayment marks the order paid, confirms the booking and returns
// the booking ID.
func (e *Engine) CompletePayment(ctx context.Context, id, orderID, paymentID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.load(ctx, id)
	if c.order == nil {
		return "", ErrNoPendingPayment
	}
	if c.order.id != orderID {
		return "", ErrOrderMismatch
	}
	if c.order.paid {
		return c.bookingID, nil
	}
	c.order.paid = true
	c.order.payment = paymentID

	if i := booking.ActiveIndex(c.messages, false); i >= 0 && c.messages[i].ComponentType == selection.TypeBookingSummary {
		c.messages[i].UserSelection = selection.Selection{"paid": true, "payment_id": paymentID}.WithDisplay("Payment completed")
	}
	c.messages = append(c.messages, e.confirm(ctx, c))
	return c.bookingID, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
