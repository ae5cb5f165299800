package services

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

type EmailService struct {
	host     string
	port     string
	user     string
	pass     string
	from     string
	notifyTo string
	devMode  bool
	logger   *zap.Logger
}

// NewEmailService returns a sender that logs instead of sending when SMTP is
// not configured.
func NewEmailService(host, port, user, pass, from, notifyTo string, logger *zap.Logger) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		logger.Warn("email service running in dev mode, messages are logged only")
	}
	return &EmailService{
		host:     host,
		port:     port,
		user:     user,
		pass:     pass,
		from:     from,
		notifyTo: notifyTo,
		devMode:  devMode,
		logger:   logger,
	}
}

// SendContactNotification tells the sales inbox about a new contact request.
func (s *EmailService) SendContactNotification(c *models.ContactRequest) error {
	if s.notifyTo == "" {
		s.logger.Debug("contact notification skipped, no recipient configured", zap.String("contact_id", c.ID.String()))
		return nil
	}

	subject := fmt.Sprintf("New Belgaum.ai enquiry from %s", c.FullName)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 560px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: #0f172a; padding: 24px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 22px; font-weight: 700;">Belgaum.ai</h1>
      <p style="color: rgba(255,255,255,0.75); margin: 6px 0 0; font-size: 13px;">New contact request</p>
    </div>
    <div style="padding: 28px; color: #1e293b; font-size: 14px; line-height: 1.6;">
      <p style="margin: 0 0 8px;"><strong>Name:</strong> %s</p>
      <p style="margin: 0 0 8px;"><strong>Email:</strong> %s</p>
      <p style="margin: 0 0 8px;"><strong>Phone:</strong> %s</p>
      <p style="margin: 16px 0 4px;"><strong>Requirement:</strong></p>
      <p style="margin: 0; white-space: pre-wrap; color: #475569;">%s</p>
      <p style="color: #94a3b8; font-size: 12px; margin: 24px 0 0;">Request %s received %s</p>
    </div>
  </div>
</body>
</html>`,
		html.EscapeString(c.FullName),
		html.EscapeString(c.Email),
		html.EscapeString(c.Phone),
		html.EscapeString(c.Description),
		c.ID.String(),
		c.CreatedAt.UTC().Format("2006-01-02 15:04 MST"),
	)

	return s.sendHTML(s.notifyTo, subject, body)
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		s.logger.Info("dev email", zap.String("to", to), zap.String("subject", subject))
		s.logger.Debug("dev email body", zap.String("body", htmlBody))
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
