package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"belgaum-backend/internal/models"
	"belgaum-backend/internal/services"
)

const (
	msgContactThanks   = "Thank you for contacting us! We will get back to you soon."
	msgInvalidBody     = "Invalid request body"
	msgContactInternal = "An error occurred. Please try again later."
)

type contactSubmitter interface {
	Submit(ctx context.Context, sub models.ContactSubmission, remoteIP string) (*models.ContactRequest, error)
}

// ContactHandler serves the public contact form. Its responses use the
// {success, message|error} shape the site's form expects rather than the
// structured API error envelope.
type ContactHandler struct {
	contacts contactSubmitter
	logger   *zap.Logger
}

func NewContactHandler(contacts contactSubmitter, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, logger: logger}
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub models.ContactSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ContactResponse{Error: msgInvalidBody})
		return
	}

	c, err := h.contacts.Submit(r.Context(), sub, clientIP(r))
	if err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			writeJSON(w, http.StatusBadRequest, models.ContactResponse{Error: validation.Error()})
			return
		}
		h.logger.Error("contact submission failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ContactResponse{Error: msgContactInternal})
		return
	}

	writeJSON(w, http.StatusOK, models.ContactResponse{
		Success: true,
		Message: msgContactThanks,
		ID:      &c.ID,
	})
}
