package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatAudit struct {
	ID          uuid.UUID `json:"id"`
	SessionID   string    `json:"session_id"`
	UserRequest string    `json:"user_request"`
	BotResponse string    `json:"bot_response"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditEntry is the queue payload for one request/response pair.
type AuditEntry struct {
	SessionID   string    `json:"session_id"`
	UserRequest string    `json:"user_request"`
	BotResponse string    `json:"bot_response"`
	RecordedAt  time.Time `json:"recorded_at"`
}
