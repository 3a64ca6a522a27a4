// Package chat holds the conversation controller: the message list, the
// composer state and the single place where widget selections become
// portal requests.
package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careportal-chat/internal/booking"
	"github.com/wolfman30/careportal-chat/internal/dispatch"
	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// ErrBusy is returned while a request is in flight.
var ErrBusy = errors.New("chat: request in progress")

// User-facing notices.
const (
	noticeSendFailed       = "Failed to send message. Please try again."
	noticeSelectFailed     = "Failed to submit your choice. Please try again."
	noticeTranscribeFailed = "Failed to transcribe audio. Please try again."
	noticeLoadFailed       = "Failed to load the conversation. Please try again."
	noticeOffline          = "Showing your last saved conversation. Some messages may be missing."
)

const localIDPrefix = "local-"

// API is the part of the portal client the controller calls.
type API interface {
	GetConversation(ctx context.Context, conversationID string) (*booking.Conversation, error)
	SendMessage(ctx context.Context, conversationID string, req portalapi.MessageRequest) (*booking.Conversation, error)
	Transcribe(ctx context.Context, conversationID string, audio portalapi.Upload) (string, error)
}

// StagedFile is an attachment waiting to be sent with the next message.
type StagedFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Item pairs a message with its resolved widget. Widget is nil for plain
// messages and for unknown component types.
type Item struct {
	Message     booking.Message
	Widget      widgets.Widget
	Interactive bool
}

type cachedWidget struct {
	widget   widgets.Widget
	disabled bool
	answered bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithRegistry overrides the default widget registry.
func WithRegistry(r *dispatch.Registry) Option {
	return func(c *Controller) { c.registry = r }
}

// WithSnapshots enables resume from a snapshot store.
func WithSnapshots(s SnapshotStore) Option {
	return func(c *Controller) { c.snapshots = s }
}

// WithMetrics records selections.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithWidgetContext sets the conversation-wide widget context (family
// members, payments, wizard factory).
func WithWidgetContext(ctx widgets.Context) Option {
	return func(c *Controller) { c.ambient = ctx }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns one booking conversation.
type Controller struct {
	api            API
	conversationID string
	registry       *dispatch.Registry
	snapshots      SnapshotStore
	metrics        *metrics.ClientMetrics
	ambient        widgets.Context
	logger         *logging.Logger

	mu        sync.Mutex
	messages  []booking.Message
	staged    []StagedFile
	draft     string
	loading   bool
	recording bool
	stale     bool
	notice    string
	asyncErr  error
	seq       uint64
	applied   uint64
	cache     map[string]cachedWidget
}

// NewController creates a controller for conversationID.
func NewController(api API, conversationID string, opts ...Option) *Controller {
	c := &Controller{
		api:            api,
		conversationID: conversationID,
		logger:         logging.Default(),
		cache:          make(map[string]cachedWidget),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = dispatch.NewDefault(c.logger, c.metrics)
	}
	c.ambient.ConversationID = conversationID
	if c.ambient.Logger == nil {
		c.ambient.Logger = c.logger
	}
	return c
}

// ConversationID returns the conversation the controller drives.
func (c *Controller) ConversationID() string { return c.conversationID }

// Messages returns a copy of the message list.
func (c *Controller) Messages() []booking.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]booking.Message(nil), c.messages...)
}

// Loading reports whether a send or select is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Recording reports whether a transcription is in flight.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Stale reports whether the message list came from a snapshot.
func (c *Controller) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Notice returns the current user-facing error or status text.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// Draft returns the composer text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the composer text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Stage queues an attachment for the next message.
func (c *Controller) Stage(f StagedFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = append(c.staged, f)
}

// Unstage removes the staged attachment at index.
func (c *Controller) Unstage(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.staged) {
		return false
	}
	c.staged = append(c.staged[:index], c.staged[index+1:]...)
	return true
}

// Staged lists the staged attachment names.
func (c *Controller) Staged() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.staged))
	for _, f := range c.staged {
		names = append(names, f.Name)
	}
	return names
}

// TakeError returns and clears the error from the last selection sent by a
// widget callback.
func (c *Controller) TakeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.asyncErr
	c.asyncErr = nil
	return err
}

// Load fetches the conversation. When the portal is unreachable the last
// snapshot is shown instead and Stale reports true.
func (c *Controller) Load(ctx context.Context) error {
	seq := c.nextSeq()
	conv, err := c.api.GetConversation(ctx, c.conversationID)
	if err == nil {
		c.apply(ctx, seq, conv.Messages)
		return nil
	}

	c.logger.Error("load conversation failed", "conversation_id", c.conversationID, "error", err)
	if c.snapshots != nil {
		msgs, snapErr := c.snapshots.Load(ctx, c.conversationID)
		if snapErr == nil {
			c.mu.Lock()
			if seq > c.applied {
				c.applied = seq
				c.messages = msgs
				c.stale = true
				c.notice = noticeOffline
			}
			c.mu.Unlock()
			c.logger.Warn("resumed from snapshot", "conversation_id", c.conversationID, "messages", len(msgs))
			return nil
		}
		if !errors.Is(snapErr, ErrNoSnapshot) {
			c.logger.Warn("snapshot load failed", "conversation_id", c.conversationID, "error", snapErr)
		}
	}
	c.setNotice(noticeLoadFailed)
	return fmt.Errorf("chat: load conversation: %w", err)
}

// Refresh re-reads the conversation. Responses older than one already
// applied are dropped, and locally answered messages stay answered.
func (c *Controller) Refresh(ctx context.Context) error {
	seq := c.nextSeq()
	conv, err := c.api.GetConversation(ctx, c.conversationID)
	if err != nil {
		c.logger.Warn("refresh failed", "conversation_id", c.conversationID, "error", err)
		return fmt.Errorf("chat: refresh: %w", err)
	}
	c.apply(ctx, seq, conv.Messages)
	return nil
}

// SendText posts the composer text with any staged attachments. Blank text
// with nothing staged is a no-op.
func (c *Controller) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" && len(c.staged) == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	staged := c.staged
	prevDraft := c.draft
	c.staged = nil
	c.draft = ""
	c.loading = true
	c.notice = ""

	local := booking.Message{
		ID:        localIDPrefix + uuid.NewString(),
		Role:      booking.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	uploads := make([]portalapi.Upload, 0, len(staged))
	for _, f := range staged {
		local.Attachments = append(local.Attachments, booking.Attachment{Name: f.Name, MimeType: f.MimeType, Size: int64(len(f.Data))})
		uploads = append(uploads, portalapi.Upload{Name: f.Name, MimeType: f.MimeType, Body: bytes.NewReader(f.Data)})
	}
	c.messages = append(c.messages, local)
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	conv, err := c.api.SendMessage(ctx, c.conversationID, portalapi.MessageRequest{Content: text, Attachments: uploads})

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.messages = removeMessage(c.messages, local.ID)
		c.staged = append(staged, c.staged...)
		c.draft = prevDraft
		if c.draft == "" {
			c.draft = text
		}
		c.notice = noticeSendFailed
		c.mu.Unlock()
		c.logger.Error("send message failed", "conversation_id", c.conversationID, "attachments", len(uploads), "error", err)
		return fmt.Errorf("chat: send message: %w", err)
	}
	c.mu.Unlock()

	c.apply(ctx, seq, conv.Messages)
	return nil
}

// Select sends a widget selection. The active widget's message is frozen
// before the request goes out, so no response can make it interactive
// again.
func (c *Controller) Select(ctx context.Context, componentType string, value selection.Selection) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	frozenID := ""
	if i := booking.ActiveIndex(c.messages, false); i >= 0 {
		frozenID = c.messages[i].ID
		c.messages, _ = booking.Freeze(c.messages, frozenID, value)
	}
	c.loading = true
	c.notice = ""
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	content := selection.FormatText(componentType, value)
	c.metrics.ObserveSelection(componentType)
	conv, err := c.api.SendMessage(ctx, c.conversationID, portalapi.MessageRequest{
		Content:       content,
		ComponentType: componentType,
		UserSelection: value,
	})

	c.mu.Lock()
	c.loading = false
	if err != nil {
		if frozenID != "" {
			c.messages = unfreeze(c.messages, frozenID)
			delete(c.cache, frozenID)
		}
		c.notice = noticeSelectFailed
		c.mu.Unlock()
		c.logger.Error("send selection failed", "conversation_id", c.conversationID, "component_type", componentType, "error", err)
		return fmt.Errorf("chat: send selection: %w", err)
	}
	c.mu.Unlock()

	c.apply(ctx, seq, conv.Messages)
	return nil
}

// Transcribe uploads recorded audio and appends the text to the draft.
func (c *Controller) Transcribe(ctx context.Context, audio StagedFile) (string, error) {
	c.mu.Lock()
	if c.recording || c.loading {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.recording = true
	c.mu.Unlock()

	text, err := c.api.Transcribe(ctx, c.conversationID, portalapi.Upload{
		Name:     audio.Name,
		MimeType: audio.MimeType,
		Body:     bytes.NewReader(audio.Data),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	if err != nil {
		c.notice = noticeTranscribeFailed
		c.logger.Error("transcribe failed", "conversation_id", c.conversationID, "error", err)
		return "", fmt.Errorf("chat: transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text != "" {
		if strings.TrimSpace(c.draft) == "" {
			c.draft = text
		} else {
			c.draft = strings.TrimRight(c.draft, " ") + " " + text
		}
	}
	return text, nil
}

// Widgets resolves every message's widget. Only the last unanswered
// message is interactive, and nothing is while a request is in flight.
// Widgets are reused between calls until their frozen state changes.
func (c *Controller) Widgets(ctx context.Context) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]Item, 0, len(c.messages))
	live := make(map[string]bool, len(c.messages))
	for i, m := range c.messages {
		item := Item{Message: m}
		if !m.HasComponent() {
			items = append(items, item)
			continue
		}
		disabled := booking.WidgetDisabled(c.messages, i, c.loading)
		key := m.ID
		if key == "" {
			key = fmt.Sprintf("#%d", i)
		}
		live[key] = true
		if cached, ok := c.cache[key]; ok && cached.disabled == disabled && cached.answered == m.Answered() {
			item.Widget = cached.widget
		} else {
			w, ok := c.registry.Resolve(dispatch.Props{
				ComponentType: m.ComponentType,
				ComponentData: m.ComponentData,
				Selection:     m.UserSelection,
				Disabled:      disabled,
				OnSelect:      c.onSelect(ctx, m.ComponentType),
				Ambient:       c.ambient,
			})
			if ok {
				c.cache[key] = cachedWidget{widget: w, disabled: disabled, answered: m.Answered()}
				item.Widget = w
			}
		}
		item.Interactive = item.Widget != nil && !disabled
		items = append(items, item)
	}
	for key := range c.cache {
		if !live[key] {
			delete(c.cache, key)
		}
	}
	return items
}

// Active returns the single interactive widget, if any.
func (c *Controller) Active(ctx context.Context) (widgets.Widget, bool) {
	items := c.Widgets(ctx)
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Interactive {
			return items[i].Widget, true
		}
	}
	return nil, false
}

// onSelect routes a widget's selection to Select. Wizard completions can
// fire after a delay, so the request does not inherit ctx's cancellation.
func (c *Controller) onSelect(ctx context.Context, componentType string) func(selection.Selection) {
	detached := context.WithoutCancel(ctx)
	return func(sel selection.Selection) {
		if err := c.Select(detached, componentType, sel); err != nil {
			c.mu.Lock()
			c.asyncErr = err
			c.mu.Unlock()
		}
	}
}

func (c *Controller) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Controller) setNotice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = msg
}

// apply merges a server message list if no newer response has been
// applied, then snapshots the result.
func (c *Controller) apply(ctx context.Context, seq uint64, incoming []booking.Message) {
	c.mu.Lock()
	if seq <= c.applied {
		c.mu.Unlock()
		c.logger.Debug("dropping stale conversation response", "conversation_id", c.conversationID, "seq", seq)
		return
	}
	c.applied = seq
	c.messages = booking.MergeMessages(c.messages, incoming)
	c.stale = false
	if c.notice == noticeOffline {
		c.notice = ""
	}
	snap := append([]booking.Message(nil), c.messages...)
	c.mu.Unlock()

	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Save(ctx, c.conversationID, snap); err != nil {
		c.logger.Warn("snapshot save failed", "conversation_id", c.conversationID, "error", err)
	}
}

func removeMessage(messages []booking.Message, id string) []booking.Message {
	out := messages[:0:0]
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func unfreeze(messages []booking.Message, id string) []booking.Message {
	out := append([]booking.Message(nil), messages...)
	for i := range out {
		if out[i].ID == id {
			out[i].UserSelection = nil
		}
	}
	return out
}
