package domain

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType tells the client how to render a message.
type MessageType string

const (
	MessageText    MessageType = "text"
	MessageOptions MessageType = "options"
	MessageForm    MessageType = "form"
	MessageMap     MessageType = "map"
	MessageSummary MessageType = "summary"
)

// ValidMessageTypes lists all valid message types.
var ValidMessageTypes = []MessageType{MessageText, MessageOptions, MessageForm, MessageMap, MessageSummary}

// IsValidMessageType reports whether t is a known message type.
func IsValidMessageType(t MessageType) bool {
	for _, valid := range ValidMessageTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// SessionTitleLength is the number of characters of the first message kept
// as a new session's title.
const SessionTitleLength = 50

// SessionTitle derives a chat session title from its first message.
func SessionTitle(message string) string {
	r := []rune(message)
	if len(r) > SessionTitleLength {
		r = r[:SessionTitleLength]
	}
	return string(r) + "..."
}

// ChatSession is a conversation thread, optionally tied to a trip.
type ChatSession struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	TripID    string    `json:"trip_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is a single message in a chat session. Messages are ordered by
// CreatedAt, with Seq breaking ties in insertion order.
type ChatMessage struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Type      MessageType     `json:"message_type"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MessageInput is the input for appending a message. An empty SessionID
// creates a new session owned by the caller and linked to TripID.
type MessageInput struct {
	SessionID string
	TripID    string
	Role      Role
	Content   string
	Type      MessageType
	Metadata  json.RawMessage
}

// ChatSessionWithMessages is a session with its full message history.
type ChatSessionWithMessages struct {
	ChatSession
	Messages []ChatMessage `json:"messages"`
}

// ChatRequest is the input for the chat endpoint.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	TripID    string `json:"trip_id"`
	Message   string `json:"message"`
}
