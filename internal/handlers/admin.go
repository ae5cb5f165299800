package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

type adminAuthenticator interface {
	Login(req models.AdminLoginRequest) (*models.AdminLoginResponse, error)
}

type contactLister interface {
	List(ctx context.Context, limit, offset int) ([]*models.ContactRequest, int, error)
}

type auditLister interface {
	List(ctx context.Context, sessionID string, limit, offset int) ([]*models.ChatAudit, int, error)
}

// AdminHandler exposes the contact requests and chat audits to operators.
type AdminHandler struct {
	auth     adminAuthenticator
	contacts contactLister
	audits   auditLister
	logger   *zap.Logger
}

func NewAdminHandler(auth adminAuthenticator, contacts contactLister, audits auditLister, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, contacts: contacts, audits: audits, logger: logger}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", msgInvalidBody, r))
		return
	}

	resp, err := h.auth.Login(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	items, total, err := h.contacts.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list contacts failed", zap.Error(err))
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.ContactRequest{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *AdminHandler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	items, total, err := h.audits.List(r.Context(), sessionID, limit, offset)
	if err != nil {
		h.logger.Error("list audits failed", zap.Error(err))
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.ChatAudit{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
