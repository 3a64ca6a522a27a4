package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/wolfman30/careportal-chat/internal/booking"
	"github.com/wolfman30/careportal-chat/internal/chat"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/internal/wizard"
)

// Renderer writes conversation state as plain text.
type Renderer struct {
	out io.Writer
}

// NewRenderer returns a Renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Message prints one message with its thinking steps and attachments.
func (r *Renderer) Message(m booking.Message) {
	who := "Assistant"
	if m.Role == booking.RoleUser {
		who = "You"
	}
	for _, step := range m.ThinkingSteps {
		r.printf("  · %s\n", step)
	}
	if content := strings.TrimSpace(m.Content); content != "" {
		r.printf("%s: %s\n", who, content)
	}
	for _, a := range m.Attachments {
		r.printf("  [attachment] %s\n", a.Name)
	}
}

// Items prints the whole conversation. Answered widgets are summarised on
// one line; the interactive one is printed in full.
func (r *Renderer) Items(items []chat.Item) {
	for _, it := range items {
		r.Message(it.Message)
		switch {
		case it.Widget == nil:
		case it.Interactive:
			r.View(it.Widget.View())
			if host, ok := it.Widget.(widgets.WizardHost); ok {
				if w := host.Wizard(); w != nil {
					r.Wizard(w.State())
				}
			}
		case it.Message.Answered():
			if msg, ok := it.Message.UserSelection.DisplayMessage(); ok {
				r.printf("  ✓ %s\n", msg)
			} else {
				r.printf("  ✓ answered\n")
			}
		}
	}
}

// View prints a widget view.
func (r *Renderer) View(v widgets.View) {
	if v.Title != "" {
		r.printf("  == %s ==\n", v.Title)
	}
	if v.Subtitle != "" {
		r.printf("  %s\n", v.Subtitle)
	}
	if v.Warning != "" {
		r.printf("  ! %s\n", v.Warning)
	}
	r.options("", v.Options)
	if len(v.Dates) > 0 {
		r.printf("  Dates (/date N):\n")
		r.options("  ", v.Dates)
	}
	if len(v.Times) > 0 {
		r.printf("  Times (/time N):\n")
		r.options("  ", v.Times)
	}
	for _, f := range v.Fields {
		req := ""
		if f.Required {
			req = "*"
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		r.printf("  %s%s [%s]: %s\n", label, req, f.Name, f.Value)
		if f.Error != "" {
			r.printf("    ! %s\n", f.Error)
		}
	}
	for _, row := range v.Rows {
		change := ""
		if row.ChangeKey != "" && !v.Disabled {
			change = fmt.Sprintf("  (/change %s)", row.Key)
		}
		r.printf("  %-18s %s%s\n", row.Label+":", row.Value, change)
	}
	if v.Total != "" {
		r.printf("  Total: %s\n", v.Total)
	}
	if v.Error != "" {
		r.printf("  ! %s\n", v.Error)
	}
	if len(v.Actions) > 0 && !v.Disabled {
		acts := make([]string, 0, len(v.Actions))
		for _, a := range v.Actions {
			acts = append(acts, "/"+a)
		}
		r.printf("  Actions: %s\n", strings.Join(acts, " "))
	}
}

func (r *Renderer) options(indent string, opts []widgets.Option) {
	for i, o := range opts {
		mark := " "
		if o.Selected {
			mark = "x"
		}
		line := fmt.Sprintf("%s  [%s] %d. %s", indent, mark, i+1, o.Label)
		if o.Detail != "" && o.Detail != o.Label {
			line += " - " + o.Detail
		}
		if o.Disabled {
			line += " (unavailable)"
		}
		r.printf("%s\n", line)
	}
}

// Wizard prints the expanded section of the member wizard.
func (r *Renderer) Wizard(s wizard.State) {
	switch s.Expanded {
	case wizard.MemberGuest:
		r.printf("  -- Guest (/field name|phone|dob|age|gender=..., /submit) --\n")
		r.fields(s.FieldErrors,
			[2]string{"name", s.Guest.Name}, [2]string{"phone", s.Guest.Phone},
			[2]string{"dob", s.Guest.DOB}, [2]string{"age", s.Guest.Age}, [2]string{"gender", s.Guest.Gender})
	case wizard.MemberNew:
		f := s.NewMember
		r.printf("  -- New member (/field name|phone|email|dob|age|gender|relationship=..., /submit) --\n")
		r.fields(s.FieldErrors,
			[2]string{"name", f.Name}, [2]string{"phone", f.Phone}, [2]string{"email", f.Email},
			[2]string{"dob", f.DOB}, [2]string{"age", f.Age}, [2]string{"gender", f.Gender},
			[2]string{"relationship", f.Relationship})
		if f.SuggestedRelationship != "" && !f.RelationshipTouched {
			r.printf("    suggested relationship: %s\n", f.SuggestedRelationship)
		}
		if f.Detection != nil {
			r.printf("  ? %s already has a hospital record. /use to link it, /dismiss to continue.\n", f.Detection.Member.Name)
		}
	case wizard.MemberExisting:
		r.link(s.Link)
		if notice := s.Notice(); notice != "" {
			r.printf("  ! %s\n", notice)
		}
	}
	if s.Loading {
		r.printf("  ...\n")
	}
	if s.Error != "" {
		r.printf("  ! %s\n", s.Error)
	}
}

func (r *Renderer) fields(errs map[string]string, kv ...[2]string) {
	for _, f := range kv {
		r.printf("    %s: %s\n", f[0], f[1])
		if msg := errs[f[0]]; msg != "" {
			r.printf("      ! %s\n", msg)
		}
	}
}

func (r *Renderer) link(l wizard.LinkState) {
	switch l.Step {
	case wizard.StepSearch:
		r.printf("  -- Find existing patient (/search phone, email or patient ID) --\n")
		if l.NotFound {
			r.printf("    /addnew to add them as a new member\n")
		}
		if l.AlreadyLinked && l.Member != nil {
			r.printf("    %s is already in your family.\n", l.Member.Name)
		}
	case wizard.StepContactSelection:
		r.printf("  -- Verify %s --\n", l.Member.Name)
		for _, ch := range l.Channels() {
			r.printf("    /channel %s  send code to %s\n", ch, contactFor(l, ch))
		}
	case wizard.StepOTP:
		r.printf("  -- Enter the code sent to %s (/otp CODE, /resend, /back) --\n", l.OTPSentTo)
		if l.AttemptsRemaining != nil {
			r.printf("    attempts remaining: %d\n", *l.AttemptsRemaining)
		}
		if l.Relationship != "" {
			r.printf("    relationship: %s\n", l.Relationship)
		}
	case wizard.StepSuccess:
		name := ""
		if l.Linked != nil {
			name = l.Linked.Name
		}
		r.printf("  -- Linked %s --\n", name)
	}
	if l.LockedOut {
		r.printf("    Sending is disabled. /restart to start over.\n")
	}
}

func contactFor(l wizard.LinkState, ch portalapi.Channel) string {
	if l.Member == nil {
		return ""
	}
	if ch == portalapi.ChannelEmail {
		return firstSet(l.Member.MaskedEmail, l.Member.Email)
	}
	return firstSet(l.Member.MaskedPhone, l.Member.Phone)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Status prints the controller's composer state.
func (r *Renderer) Status(c *chat.Controller) {
	if notice := c.Notice(); notice != "" {
		r.printf("! %s\n", notice)
	}
	if staged := c.Staged(); len(staged) > 0 {
		r.printf("Attached: %s\n", strings.Join(staged, ", "))
	}
	if draft := c.Draft(); draft != "" {
		r.printf("Draft: %s\n", draft)
	}
}

// Line prints a single line.
func (r *Renderer) Line(format string, args ...any) {
	r.printf(format+"\n", args...)
}
