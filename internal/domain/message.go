package domain

import "time"

// Role tags a conversation message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation history. Immutable once appended;
// ordering within a conversation is chronological and significant.
type Message struct {
	Role     Role              `json:"role"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InboundMessage is a user message arriving from a chat channel.
type InboundMessage struct {
	Channel         string // channel name (e.g. "slack", "cli")
	ChatID          string // platform channel/chat identifier
	ThreadTS        string // thread timestamp, empty outside threads
	ConversationKey string // derived by the channel adapter; ChatID when empty
	SenderID        string
	Text            string
	Timestamp       time.Time
}

// OutboundMessage is a text segment to relay back through a chat channel.
// Aside marks progress notices that should be visually distinguished from
// the model's own replies.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	ThreadTS string
	Text     string
	Aside    bool
}
