package voice

import "time"

// MessageState tracks the lifecycle of an optimistic client-side message.
type MessageState string

const (
	StatePending  MessageState = "pending"
	StateResolved MessageState = "resolved"
	StateFailed   MessageState = "failed"
)

// Roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn held by the client conversation manager.
type Message struct {
	ID            string       `json:"id"`
	Role          string       `json:"role"`
	Content       string       `json:"content"`
	Transcription string       `json:"transcription,omitempty"`
	AudioURL      string       `json:"audioUrl,omitempty"`
	State         MessageState `json:"state"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Validation limits shared by the server pipeline and the client manager.
const (
	MaxAudioBytes     = 10 * 1024 * 1024
	MaxHistoryEntries = 10
	MaxMessageLength  = 5000
)
