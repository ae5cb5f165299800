package models

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a single message in a conversation.
// Timestamp is in milliseconds since the Unix epoch. ID is assigned by the
// message store and stays zero until the message has been persisted.
type ChatMessage struct {
	ID        int64  `json:"id,omitempty"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Session is the per-tab chat session.
type Session struct {
	ID                string    `json:"session_id"`
	ClientID          string    `json:"client_id"`
	CreatedAt         time.Time `json:"created_at"`
	NudgeCount        int       `json:"nudge_count"`
	LastUserMessageAt time.Time `json:"last_user_message_at"`
}

// HandOff carries the summary and deep links for continuing on WhatsApp.
type HandOff struct {
	Summary    string `json:"summary"`
	MobileURL  string `json:"mobile_url"`
	DesktopURL string `json:"desktop_url"`
}

// ChatSessionRequest is the payload sent to create a chat session token.
type ChatSessionRequest struct {
	ClientID string `json:"client_id"`
}

// ChatSessionResponse is returned when a chat session token is issued.
type ChatSessionResponse struct {
	SessionID string    `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
