package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s+\-()]{10,20}$`)
)

const (
	msgFieldsRequired  = "All fields are required"
	msgInvalidEmail    = "Invalid email format"
	msgInvalidPhone    = "Invalid phone number format"
	msgCaptchaRequired = "Please complete the captcha verification"
	msgCaptchaFailed   = "Captcha verification failed. Please try again."
)

type contactStore interface {
	Create(ctx context.Context, c *models.ContactRequest) error
}

type captchaChecker interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

type contactNotifier interface {
	SendContactNotification(c *models.ContactRequest) error
}

type ContactService struct {
	repo     contactStore
	captcha  captchaChecker
	notifier contactNotifier
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewContactService(repo contactStore, captcha captchaChecker, notifier contactNotifier, logger *zap.Logger) *ContactService {
	return &ContactService{
		repo:     repo,
		captcha:  captcha,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit validates a contact form submission, verifies its captcha and stores
// it. Validation failures return *ValidationError; the checks run in a fixed
// order and only the first failure is reported.
func (s *ContactService) Submit(ctx context.Context, sub models.ContactSubmission, remoteIP string) (*models.ContactRequest, error) {
	c := &models.ContactRequest{
		FullName:    strings.TrimSpace(sub.FullName),
		Email:       strings.ToLower(strings.TrimSpace(sub.Email)),
		Phone:       strings.TrimSpace(sub.Phone),
		Description: strings.TrimSpace(sub.Description),
	}

	if c.FullName == "" || c.Email == "" || c.Phone == "" || c.Description == "" {
		return nil, &ValidationError{Message: msgFieldsRequired}
	}
	if !emailPattern.MatchString(c.Email) {
		return nil, &ValidationError{Message: msgInvalidEmail, Fields: map[string]string{"email": msgInvalidEmail}}
	}
	if !phonePattern.MatchString(c.Phone) {
		return nil, &ValidationError{Message: msgInvalidPhone, Fields: map[string]string{"phone": msgInvalidPhone}}
	}
	if strings.TrimSpace(sub.CaptchaToken) == "" {
		return nil, &ValidationError{Message: msgCaptchaRequired}
	}
	if !s.captcha.Verify(ctx, sub.CaptchaToken, remoteIP) {
		return nil, &ValidationError{Message: msgCaptchaFailed}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store contact request: %w", err)
	}
	s.logger.Info("contact request stored", zap.String("contact_id", c.ID.String()))

	if s.notifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.notifier.SendContactNotification(c); err != nil {
				s.logger.Warn("contact notification failed", zap.String("contact_id", c.ID.String()), zap.Error(err))
			}
		}()
	}

	return c, nil
}

// Wait blocks until pending notification emails have been handed off.
func (s *ContactService) Wait() {
	s.wg.Wait()
}
