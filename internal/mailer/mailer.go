// Package mailer sends transactional emails through an SMTP relay.
//
// It is used when the storefront delivers verification and password-reset links itself
// instead of relying on the auth provider's stock templates.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// SendFunc matches smtp.SendMail so tests can capture messages.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers messages through one relay.
type Mailer struct {
	cfg  Config
	send SendFunc
}

// New creates a Mailer that sends with net/smtp.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// NewWithSender creates a Mailer with a custom transport.
func NewWithSender(cfg Config, send SendFunc) *Mailer {
	return &Mailer{cfg: cfg, send: send}
}

// SendEmail sends one message. The content type is inferred from simple HTML markers.
func (m *Mailer) SendEmail(recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("recipient email address cannot be empty")
	}
	if m.cfg.Sender == "" {
		return fmt.Errorf("sender email address cannot be empty")
	}
	if subject == "" {
		return fmt.Errorf("email subject cannot be empty")
	}
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return fmt.Errorf("SMTP username and password must be provided")
	}

	contentType := "text/plain; charset=UTF-8"
	lower := strings.ToLower(body)
	if strings.Contains(lower, "<html>") || strings.Contains(lower, "<p>") {
		contentType = "text/html; charset=UTF-8"
	}

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: %s\r\n"+
		"\r\n"+
		"%s\r\n", recipient, m.cfg.Sender, subject, contentType, body))

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := m.send(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.Sender, []string{recipient}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendVerificationLink mails an email-verification link.
func (m *Mailer) SendVerificationLink(_ context.Context, email, link string) error {
	body := fmt.Sprintf("<html><p>Welcome! Please confirm your email address:</p><p><a href=\"%s\">Verify email</a></p></html>", link)
	return m.SendEmail(email, "Verify your email address", body)
}

// SendPasswordResetLink mails a password-reset link.
func (m *Mailer) SendPasswordResetLink(_ context.Context, email, link string) error {
	body := fmt.Sprintf("<html><p>We received a request to reset your password.</p><p><a href=\"%s\">Reset password</a></p><p>If you did not ask for this, ignore this email.</p></html>", link)
	return m.SendEmail(email, "Reset your password", body)
}
