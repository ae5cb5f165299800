package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"belgaum-backend/internal/middleware"
	"belgaum-backend/internal/models"
)

type failingIssuer struct{}

func (failingIssuer) GenerateSessionToken(sessionID, clientID string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("boom")
}

func createSession(t *testing.T, h *ChatHandler, body string) (*httptest.ResponseRecorder, models.ChatSessionResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/session", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSession(rr, req)

	var resp models.ChatSessionResponse
	if rr.Code == http.StatusCreated {
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return rr, resp
}

func TestCreateSession_KeepsClientID(t *testing.T) {
	auth := middleware.NewJWTAuth("secret")
	h := NewChatHandler(auth)
	clientID := uuid.NewString()

	rr, resp := createSession(t, h, `{"client_id":"`+clientID+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rr.Code)
	}
	if resp.ClientID != clientID {
		t.Errorf("Expected client id %s, got %s", clientID, resp.ClientID)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("Expected uuid session id, got %q", resp.SessionID)
	}

	claims, err := auth.ParseSessionToken(resp.Token)
	if err != nil {
		t.Fatalf("Issued token did not parse: %v", err)
	}
	if claims.SessionID != resp.SessionID || claims.ClientID != clientID {
		t.Errorf("Token claims mismatch: %+v", claims)
	}
}

func TestCreateSession_ReplacesBadClientID(t *testing.T) {
	h := NewChatHandler(middleware.NewJWTAuth("secret"))

	for _, body := range []string{"", `{}`, `{"client_id":"not-a-uuid"}`} {
		rr, resp := createSession(t, h, body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("body %q: expected 201, got %d", body, rr.Code)
		}
		if _, err := uuid.Parse(resp.ClientID); err != nil {
			t.Errorf("body %q: expected generated client id, got %q", body, resp.ClientID)
		}
		if resp.ClientID == "not-a-uuid" {
			t.Error("Malformed client id was kept")
		}
	}
}

func TestCreateSession_Errors(t *testing.T) {
	rr, _ := createSession(t, NewChatHandler(middleware.NewJWTAuth("secret")), "{bad")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rr.Code)
	}

	rr, _ = createSession(t, NewChatHandler(failingIssuer{}), `{}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when signing fails, got %d", rr.Code)
	}
}
