package models

import (
	"time"

	"github.com/google/uuid"
)

type ContactRequest struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContactSubmission is the JSON body posted by the contact form.
type ContactSubmission struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Description  string `json:"description"`
	CaptchaToken string `json:"captchaToken"`
}

// ContactResponse is the contact endpoint's reply for both outcomes.
type ContactResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
	ID      *uuid.UUID `json:"id,omitempty"`
}
