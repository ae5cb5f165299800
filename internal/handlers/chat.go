package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"belgaum-backend/internal/models"
)

type sessionTokenIssuer interface {
	GenerateSessionToken(sessionID, clientID string) (string, time.Time, error)
}

// ChatHandler issues the session tokens the widget presents when it opens its
// WebSocket.
type ChatHandler struct {
	tokens sessionTokenIssuer
}

func NewChatHandler(tokens sessionTokenIssuer) *ChatHandler {
	return &ChatHandler{tokens: tokens}
}

// CreateSession starts a new chat session. The client id names the browser's
// history scope; a missing or malformed one is replaced.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.ChatSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", msgInvalidBody, r))
		return
	}

	clientID := req.ClientID
	if _, err := uuid.Parse(clientID); err != nil {
		clientID = uuid.NewString()
	}
	sessionID := uuid.NewString()

	token, expiresAt, err := h.tokens.GenerateSessionToken(sessionID, clientID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.ChatSessionResponse{
		SessionID: sessionID,
		ClientID:  clientID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
