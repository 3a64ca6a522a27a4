// Package console is the terminal front-end: it renders the conversation
// and the active widget as text and maps typed commands to widget actions.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a parsed command.
type Kind string

const (
	KindText       Kind = "text"
	KindPick       Kind = "pick"
	KindDate       Kind = "date"
	KindTime       Kind = "time"
	KindSkip       Kind = "skip"
	KindField      Kind = "field"
	KindSubmit     Kind = "submit"
	KindConfirm    Kind = "confirm"
	KindPay        Kind = "pay"
	KindChange     Kind = "change"
	KindAttach     Kind = "attach"
	KindDetach     Kind = "detach"
	KindTranscribe Kind = "transcribe"
	KindRefresh    Kind = "refresh"
	KindQuit       Kind = "quit"
	KindHelp       Kind = "help"

	KindMember       Kind = "member"
	KindSearch       Kind = "search"
	KindChannel      Kind = "channel"
	KindOTP          Kind = "otp"
	KindResend       Kind = "resend"
	KindBack         Kind = "back"
	KindRestart      Kind = "restart"
	KindAddNew       Kind = "addnew"
	KindUseDetection Kind = "use"
	KindDismiss      Kind = "dismiss"
	KindRelationship Kind = "relationship"
	KindCancel       Kind = "cancel"
)

// ErrUnknownCommand is returned for an unrecognised slash command.
var ErrUnknownCommand = errors.New("console: unknown command")

// Command is one line of user input.
type Command struct {
	Kind    Kind
	Text    string
	Indexes []int
	Key     string
	Value   string
}

type argRule int

const (
	argNone argRule = iota
	argOptional
	argRequired
)

var commandArgs = map[Kind]argRule{
	KindPick:         argRequired,
	KindDate:         argRequired,
	KindTime:         argRequired,
	KindSkip:         argNone,
	KindField:        argRequired,
	KindSubmit:       argNone,
	KindConfirm:      argNone,
	KindPay:          argNone,
	KindChange:       argRequired,
	KindAttach:       argRequired,
	KindDetach:       argRequired,
	KindTranscribe:   argRequired,
	KindRefresh:      argNone,
	KindQuit:         argNone,
	KindHelp:         argNone,
	KindMember:       argRequired,
	KindSearch:       argRequired,
	KindChannel:      argRequired,
	KindOTP:          argRequired,
	KindResend:       argOptional,
	KindBack:         argNone,
	KindRestart:      argNone,
	KindAddNew:       argNone,
	KindUseDetection: argNone,
	KindDismiss:      argNone,
	KindRelationship: argRequired,
	KindCancel:       argNone,
}

var commandAliases = map[string]Kind{
	"exit":  KindQuit,
	"q":     KindQuit,
	"p":     KindPick,
	"ok":    KindConfirm,
	"?":     KindHelp,
	"link":  KindUseDetection,
	"reset": KindRestart,
}

// Parse maps a line to a command. Lines not starting with "/" are chat
// text; "//" escapes a leading slash.
func Parse(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") {
		return Command{Kind: KindText, Text: strings.TrimPrefix(trimmed, "/")}, nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, "/"), " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)
	kind := Kind(name)
	if alias, ok := commandAliases[name]; ok {
		kind = alias
	}
	rule, ok := commandArgs[kind]
	if !ok {
		return Command{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
	switch {
	case rule == argRequired && arg == "":
		return Command{}, fmt.Errorf("console: /%s needs an argument", name)
	case rule == argNone && arg != "":
		return Command{}, fmt.Errorf("console: /%s takes no argument", name)
	}

	cmd := Command{Kind: kind, Text: arg}
	switch kind {
	case KindPick, KindDate, KindTime, KindDetach:
		idx, err := parseIndexes(arg)
		if err != nil {
			return Command{}, err
		}
		if kind != KindPick && len(idx) != 1 {
			return Command{}, fmt.Errorf("console: /%s takes one number", name)
		}
		cmd.Indexes = idx
	case KindField:
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return Command{}, errors.New("console: use /field name=value")
		}
		cmd.Key, cmd.Value = key, strings.TrimSpace(value)
	case KindMember, KindChannel:
		cmd.Value = strings.ToLower(arg)
	case KindResend:
		cmd.Value = strings.ToLower(arg)
	}
	return cmd, nil
}

// parseIndexes reads "2" or "1,3" as zero-based indexes.
func parseIndexes(arg string) ([]int, error) {
	parts := strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("console: %q is not an option number", p)
		}
		out = append(out, n-1)
	}
	if len(out) == 0 {
		return nil, errors.New("console: option number required")
	}
	return out, nil
}

const helpText = `Type a message and press Enter to chat.
  /pick N        choose option N (/pick 1,3 toggles several)
  /date N        choose date N        /time N   choose time slot N
  /field k=v     fill a form field    /submit   submit the form or text
  /confirm       confirm a selection  /skip     skip an optional question
  /pay           pay for the booking  /change K change a booking detail
  /attach PATH   stage a file         /detach N unstage file N
  /transcribe PATH  transcribe an audio file into the draft
  /member new|existing|guest   open a family member section
  /search Q  /channel phone|email  /otp CODE  /resend [channel]  /back  /restart
  /addnew  /use  /dismiss  /relationship R  /cancel
  /refresh  /help  /quit`
