package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"net/url"
	"text/template"
	"time"

	"github.com/rs/zerolog"
)

// ErrEmailNotConfigured is returned when no SMTP host is set.
var ErrEmailNotConfigured = errors.New("email service not configured")

// Mailer sends account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error
}

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FrontendURL  string
}

// EmailService sends mail through an SMTP relay.
type EmailService struct {
	cfg    EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger zerolog.Logger
}

// NewEmailService creates an email service.
func NewEmailService(cfg EmailConfig, logger zerolog.Logger) *EmailService {
	return &EmailService{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logger.With().Str("component", "email").Logger(),
	}
}

var resetTemplate = template.Must(template.New("reset").Parse(`Subject: Reset your ZART Quizzer password
MIME-Version: 1.0
Content-Type: text/plain; charset="utf-8"

Hello,

We received a request to reset the password for your ZART Quizzer account.

Open the link below to choose a new password:
{{.ResetURL}}

This link expires in {{.Expiry}} and can be used once.

If you did not request this, you can ignore this email.
`))

// SendPasswordReset mails a reset link pointing at the frontend.
func (e *EmailService) SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error {
	if e.cfg.SMTPHost == "" || e.cfg.SMTPPort == 0 {
		return ErrEmailNotConfigured
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", e.cfg.FrontendURL, url.QueryEscape(token))
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, map[string]string{
		"ResetURL": resetURL,
		"Expiry":   ttl.String(),
	}); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	var auth smtp.Auth
	if e.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", e.cfg.SMTPUsername, e.cfg.SMTPPassword, e.cfg.SMTPHost)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\n%s", e.cfg.FromEmail, to, body.String()))

	if err := e.send(addr, auth, e.cfg.FromEmail, []string{to}, msg); err != nil {
		e.logger.Error().Err(err).Str("to", to).Msg("failed to send password reset email")
		return fmt.Errorf("send email: %w", err)
	}
	e.logger.Info().Str("to", to).Msg("password reset email sent")
	return nil
}
