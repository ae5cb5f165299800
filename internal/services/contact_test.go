package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

type stubContactRepo struct {
	created []*models.ContactRequest
	err     error
}

func (r *stubContactRepo) Create(_ context.Context, c *models.ContactRequest) error {
	if r.err != nil {
		return r.err
	}
	c.ID = uuid.New()
	r.created = append(r.created, c)
	return nil
}

type stubCaptcha struct {
	ok     bool
	tokens []string
}

func (c *stubCaptcha) Verify(_ context.Context, token, _ string) bool {
	c.tokens = append(c.tokens, token)
	return c.ok
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []*models.ContactRequest
}

func (n *stubNotifier) SendContactNotification(c *models.ContactRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return nil
}

func validSubmission() models.ContactSubmission {
	return models.ContactSubmission{
		FullName:     "  Asha Patil ",
		Email:        " Asha@Example.COM ",
		Phone:        "+91 98455-07313",
		Description:  " RAG for our college library ",
		CaptchaToken: "token",
	}
}

func TestContactService_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *models.ContactSubmission)
		captcha bool
		wantMsg string
	}{
		{"missing name", func(s *models.ContactSubmission) { s.FullName = "" }, true, msgFieldsRequired},
		{"blank description", func(s *models.ContactSubmission) { s.Description = "   " }, true, msgFieldsRequired},
		{"missing fields win over bad email", func(s *models.ContactSubmission) { s.Phone = ""; s.Email = "bad" }, true, msgFieldsRequired},
		{"bad email", func(s *models.ContactSubmission) { s.Email = "asha@example" }, true, msgInvalidEmail},
		{"email with space", func(s *models.ContactSubmission) { s.Email = "asha patil@example.com" }, true, msgInvalidEmail},
		{"bad email wins over bad phone", func(s *models.ContactSubmission) { s.Email = "x"; s.Phone = "12" }, true, msgInvalidEmail},
		{"short phone", func(s *models.ContactSubmission) { s.Phone = "12345" }, true, msgInvalidPhone},
		{"letters in phone", func(s *models.ContactSubmission) { s.Phone = "98455O7313" }, true, msgInvalidPhone},
		{"long phone", func(s *models.ContactSubmission) { s.Phone = "123456789012345678901" }, true, msgInvalidPhone},
		{"missing captcha", func(s *models.ContactSubmission) { s.CaptchaToken = "" }, true, msgCaptchaRequired},
		{"rejected captcha", func(s *models.ContactSubmission) {}, false, msgCaptchaFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubContactRepo{}
			svc := NewContactService(repo, &stubCaptcha{ok: tc.captcha}, nil, zap.NewNop())

			sub := validSubmission()
			tc.mutate(&sub)

			_, err := svc.Submit(context.Background(), sub, "")
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Message != tc.wantMsg {
				t.Errorf("Expected %q, got %q", tc.wantMsg, ve.Message)
			}
			if len(repo.created) != 0 {
				t.Error("Invalid submission must not be stored")
			}
		})
	}
}

func TestContactService_CaptchaNotCalledBeforeFieldChecks(t *testing.T) {
	captcha := &stubCaptcha{ok: true}
	svc := NewContactService(&stubContactRepo{}, captcha, nil, zap.NewNop())

	sub := validSubmission()
	sub.Email = "nope"
	svc.Submit(context.Background(), sub, "")

	if len(captcha.tokens) != 0 {
		t.Errorf("Expected captcha to be skipped, got %d calls", len(captcha.tokens))
	}
}

func TestContactService_StoresNormalizedFields(t *testing.T) {
	repo := &stubContactRepo{}
	notifier := &stubNotifier{}
	svc := NewContactService(repo, &stubCaptcha{ok: true}, notifier, zap.NewNop())

	c, err := svc.Submit(context.Background(), validSubmission(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	svc.Wait()

	if c.ID == uuid.Nil {
		t.Error("Expected id to be assigned")
	}
	if c.FullName != "Asha Patil" {
		t.Errorf("Expected trimmed name, got %q", c.FullName)
	}
	if c.Email != "asha@example.com" {
		t.Errorf("Expected lower-cased email, got %q", c.Email)
	}
	if c.Description != "RAG for our college library" {
		t.Errorf("Expected trimmed description, got %q", c.Description)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("Expected one notification, got %d", len(notifier.sent))
	}
}

func TestContactService_StorageFailure(t *testing.T) {
	svc := NewContactService(&stubContactRepo{err: errors.New("db down")}, &stubCaptcha{ok: true}, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), validSubmission(), "")
	if err == nil {
		t.Fatal("Expected error")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Error("Storage failure must not be reported as a validation error")
	}
}

// Padding around the email and phone is trimmed before the format checks, so
// values pasted with stray spaces are accepted and stored clean.
func TestContactService_PaddedEmailAndPhoneAccepted(t *testing.T) {
	repo := &stubContactRepo{}
	svc := NewContactService(repo, &stubCaptcha{ok: true}, nil, zap.NewNop())

	sub := validSubmission()
	sub.Email = " a@b.co"
	sub.Phone = "  9845507313\t"

	c, err := svc.Submit(context.Background(), sub, "10.0.0.1")
	if err != nil {
		t.Fatalf("Expected padded email and phone to be accepted, got %v", err)
	}
	if c.Email != "a@b.co" {
		t.Errorf("Expected trimmed email, got %q", c.Email)
	}
	if c.Phone != "9845507313" {
		t.Errorf("Expected trimmed phone, got %q", c.Phone)
	}
	if len(repo.created) != 1 {
		t.Errorf("Expected one stored request, got %d", len(repo.created))
	}
}

func TestContactService_InnerWhitespaceInEmailRejected(t *testing.T) {
	svc := NewContactService(&stubContactRepo{}, &stubCaptcha{ok: true}, nil, zap.NewNop())

	sub := validSubmission()
	sub.Email = "a @b.co"

	_, err := svc.Submit(context.Background(), sub, "10.0.0.1")
	var validation *ValidationError
	if !errors.As(err, &validation) || validation.Message != msgInvalidEmail {
		t.Errorf("Expected invalid email error, got %v", err)
	}
}
