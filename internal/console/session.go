package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfman30/careportal-chat/internal/chat"
	"github.com/wolfman30/careportal-chat/internal/payments"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/internal/wizard"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// ErrNoWidget is returned for a widget command when nothing is interactive.
var ErrNoWidget = errors.New("console: no question is waiting for an answer")

// ErrNotApplicable is returned when the active widget does not support a
// command.
var ErrNotApplicable = errors.New("console: that command does not apply here")

const settleTimeout = 5 * time.Second

// Session drives one conversation from typed commands.
type Session struct {
	ctrl     *chat.Controller
	render   *Renderer
	logger   *logging.Logger
	readFile func(string) ([]byte, error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithFileReader replaces os.ReadFile for /attach and /transcribe.
func WithFileReader(read func(string) ([]byte, error)) SessionOption {
	return func(s *Session) { s.readFile = read }
}

// NewSession creates a session writing to out.
func NewSession(ctrl *chat.Controller, out io.Writer, logger *logging.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Session{ctrl: ctrl, render: NewRenderer(out), logger: logger, readFile: os.ReadFile}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads commands from in until /quit, EOF or ctx is done.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	if err := s.ctrl.Load(ctx); err != nil {
		s.render.Line("! %s", s.ctrl.Notice())
	}
	s.Show(ctx)

	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(s.render.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		cmd, err := Parse(scanner.Text())
		if err != nil {
			s.render.Line("! %v", err)
			continue
		}
		quit, err := s.Apply(ctx, cmd)
		if err != nil {
			s.report(err)
		}
		if quit {
			return nil
		}
		if cmd.Kind != KindHelp {
			s.Show(ctx)
		}
	}
}

// Show prints the conversation and composer state.
func (s *Session) Show(ctx context.Context) {
	s.render.Items(s.ctrl.Widgets(ctx))
	s.render.Status(s.ctrl)
}

func (s *Session) report(err error) {
	switch {
	case errors.Is(err, widgets.ErrInvalidInput):
		s.render.Line("! Please fix the highlighted fields.")
	case errors.Is(err, chat.ErrBusy), errors.Is(err, wizard.ErrBusy):
		s.render.Line("! Still working on the last request.")
	default:
		if alert, ok := payments.AsAlert(err); ok {
			s.render.Line("! %s", alert.Message)
			return
		}
		s.logger.Debug("command failed", "error", err)
		s.render.Line("! %v", err)
	}
}

// Apply runs one command. It reports whether the session should end.
func (s *Session) Apply(ctx context.Context, cmd Command) (bool, error) {
	switch cmd.Kind {
	case KindQuit:
		return true, nil
	case KindHelp:
		s.render.Line("%s", helpText)
		return false, nil
	case KindRefresh:
		return false, s.ctrl.Refresh(ctx)
	case KindAttach:
		return false, s.attach(cmd.Text)
	case KindDetach:
		if !s.ctrl.Unstage(cmd.Indexes[0]) {
			return false, widgets.ErrNoSuchOption
		}
		return false, nil
	case KindTranscribe:
		return false, s.transcribe(ctx, cmd.Text)
	}

	active, ok := s.ctrl.Active(ctx)
	if cmd.Kind == KindText {
		if ok {
			if t, isText := active.(*widgets.TextInput); isText {
				t.SetText(cmd.Text)
				return false, s.selected(ctx, t.Submit())
			}
		}
		return false, s.ctrl.SendText(ctx, cmd.Text)
	}
	if !ok {
		return false, ErrNoWidget
	}
	if host, isHost := active.(widgets.WizardHost); isHost {
		if handled, err := s.applyWizard(ctx, host, cmd); handled {
			return false, err
		}
	}
	return false, s.selected(ctx, s.applyWidget(ctx, active, cmd))
}

// selected surfaces errors from the selection a widget action sent.
func (s *Session) selected(_ context.Context, actionErr error) error {
	if actionErr != nil {
		return actionErr
	}
	return s.ctrl.TakeError()
}

func (s *Session) applyWidget(ctx context.Context, w widgets.Widget, cmd Command) error {
	switch cmd.Kind {
	case KindPick:
		if m, ok := w.(widgets.MultiChooser); ok {
			for _, i := range cmd.Indexes {
				if err := m.Toggle(i); err != nil {
					return err
				}
			}
			return nil
		}
		if len(cmd.Indexes) != 1 {
			return ErrNotApplicable
		}
		if c, ok := w.(widgets.Chooser); ok {
			return c.Choose(cmd.Indexes[0])
		}
	case KindDate:
		if d, ok := w.(widgets.DateTimeChooser); ok {
			return d.ChooseDate(cmd.Indexes[0])
		}
	case KindTime:
		if d, ok := w.(widgets.DateTimeChooser); ok {
			return d.ChooseTime(cmd.Indexes[0])
		}
	case KindSkip:
		if sk, ok := w.(widgets.Skipper); ok {
			return sk.Skip()
		}
	case KindField:
		if f, ok := w.(widgets.FormFiller); ok {
			return f.SetField(cmd.Key, cmd.Value)
		}
		if t, ok := w.(widgets.TextSubmitter); ok {
			t.SetText(cmd.Value)
			return nil
		}
	case KindSubmit:
		switch x := w.(type) {
		case widgets.FormFiller:
			return x.Submit()
		case widgets.TextSubmitter:
			return x.Submit()
		case widgets.Confirmer:
			return x.Confirm()
		}
	case KindConfirm:
		if c, ok := w.(widgets.Confirmer); ok {
			return c.Confirm()
		}
	case KindChange:
		if c, ok := w.(widgets.Changer); ok {
			return c.Change(cmd.Text)
		}
	case KindPay:
		if p, ok := w.(widgets.Payer); ok {
			return s.pay(ctx, p)
		}
	}
	return ErrNotApplicable
}

func (s *Session) pay(ctx context.Context, p widgets.Payer) error {
	s.render.Line("Starting payment...")
	res, err := p.Pay(ctx)
	if err != nil {
		return err
	}
	if res.Mock {
		s.render.Line("Payment recorded (test mode): %s", res.PaymentID)
	} else {
		s.render.Line("Payment successful: %s", res.PaymentID)
	}
	if res.Redirect != "" {
		s.render.Line("Booking details: %s", res.Redirect)
	}
	return s.ctrl.Refresh(ctx)
}

// applyWizard routes wizard commands. It reports false for commands the
// wizard does not handle so they fall through to the widget.
func (s *Session) applyWizard(ctx context.Context, host widgets.WizardHost, cmd Command) (bool, error) {
	w := host.Wizard()
	if w == nil {
		return false, nil
	}
	st := w.State()

	switch cmd.Kind {
	case KindMember:
		t, ok := wizard.ParseMemberType(cmd.Value)
		if !ok {
			return true, fmt.Errorf("console: choose new, existing or guest")
		}
		return true, w.Expand(t)
	case KindCancel:
		return true, w.Cancel()
	case KindField:
		switch st.Expanded {
		case wizard.MemberGuest:
			return true, w.SetGuestField(cmd.Key, cmd.Value)
		case wizard.MemberNew:
			if err := w.SetNewMemberField(cmd.Key, cmd.Value); err != nil {
				return true, err
			}
			if cmd.Key == "phone" {
				return true, w.BlurPhone(ctx)
			}
			return true, nil
		}
	case KindSubmit:
		switch st.Expanded {
		case wizard.MemberGuest:
			return true, s.selected(ctx, w.SubmitGuest())
		case wizard.MemberNew:
			return true, s.selected(ctx, w.SubmitNewMember(ctx))
		case wizard.MemberExisting:
			return true, w.Search(ctx)
		}
	case KindSearch:
		if err := w.SetQuery(cmd.Text); err != nil {
			return true, err
		}
		return true, w.Search(ctx)
	case KindChannel:
		return true, w.ChooseChannel(ctx, portalapi.Channel(cmd.Value))
	case KindOTP:
		if err := w.SetOTP(cmd.Text); err != nil {
			return true, err
		}
		if err := w.VerifyOTP(ctx); err != nil {
			return true, err
		}
		if w.State().Link.Step == wizard.StepSuccess {
			s.Show(ctx)
			s.settle(w)
		}
		return true, s.ctrl.TakeError()
	case KindResend:
		return true, w.Resend(ctx, portalapi.Channel(cmd.Value))
	case KindBack:
		return true, w.Back()
	case KindRestart:
		return true, w.Restart()
	case KindAddNew:
		return true, w.AddAsNew()
	case KindUseDetection:
		return true, w.UseDetection()
	case KindDismiss:
		return true, w.DismissDetection()
	case KindRelationship:
		if st.Expanded == wizard.MemberNew {
			return true, w.SetNewMemberField("relationship", cmd.Text)
		}
		return true, w.SetLinkRelationship(cmd.Text)
	}
	return false, nil
}

// settle waits for a delayed wizard completion to reach the controller.
func (s *Session) settle(w *wizard.Wizard) {
	deadline := time.Now().Add(settleTimeout)
	for time.Now().Before(deadline) {
		if w.State().Completed && !s.ctrl.Loading() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *Session) attach(path string) error {
	data, err := s.readFile(path)
	if err != nil {
		return fmt.Errorf("console: read %s: %w", path, err)
	}
	s.ctrl.Stage(chat.StagedFile{Name: filepath.Base(path), MimeType: mimeFor(path), Data: data})
	return nil
}

func (s *Session) transcribe(ctx context.Context, path string) error {
	data, err := s.readFile(path)
	if err != nil {
		return fmt.Errorf("console: read %s: %w", path, err)
	}
	s.render.Line("Transcribing...")
	_, err = s.ctrl.Transcribe(ctx, chat.StagedFile{Name: filepath.Base(path), MimeType: mimeFor(path), Data: data})
	return err
}

func mimeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
