// Package booking defines the conversation data exchanged with the portal's
// booking assistant.
package booking

import (
	"encoding/json"
	"time"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Attachment is a file sent with a user message. Immutable once sent.
type Attachment struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is one entry of a booking conversation. Ordering is array
// position as returned by the portal.
type Message struct {
	ID            string              `json:"id"`
	Role          Role                `json:"role"`
	Content       string              `json:"content,omitempty"`
	ComponentType string              `json:"component_type,omitempty"`
	ComponentData json.RawMessage     `json:"component_data,omitempty"`
	UserSelection selection.Selection `json:"user_selection,omitempty"`
	ThinkingSteps []string            `json:"thinking_steps,omitempty"`
	Attachments   []Attachment        `json:"attachments,omitempty"`
	CreatedAt     time.Time           `json:"created_at,omitempty"`
}

// HasComponent reports whether the message carries an embedded widget.
func (m Message) HasComponent() bool {
	return m.ComponentType != ""
}

// Answered reports whether the embedded widget has been answered and is
// therefore frozen.
func (m Message) Answered() bool {
	return m.UserSelection != nil
}

// Conversation is the portal's view of a booking chat.
type Conversation struct {
	ID       string    `json:"id"`
	Status   string    `json:"status,omitempty"`
	Messages []Message `json:"messages"`
}

// FamilyMember is a patient the account holder may book for.
type FamilyMember struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Age          int    `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Phone        string `json:"phone,omitempty"`
}
