// Package mail sends transactional email for account activation and
// password reset. When mail is disabled in config the mailer logs the
// message instead, which keeps local development flowing without an
// SMTP server.
package mail

import (
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// Config holds SMTP settings.
type Config struct {
	Enabled     bool
	SMTPHost    string
	SMTPPort    string
	From        string
	FrontendURL string
}

// Mailer sends transactional mail over SMTP.
type Mailer struct {
	config Config
	logger *slog.Logger
}

// New creates a mailer.
func New(config Config, logger *slog.Logger) *Mailer {
	return &Mailer{config: config, logger: logger}
}

// SendActivation sends the account activation link to a new user.
func (m *Mailer) SendActivation(to, name, token string) error {
	link := fmt.Sprintf("%s/activate?token=%s", strings.TrimRight(m.config.FrontendURL, "/"), token)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nWelcome to PageTurn. Activate your account:\r\n\r\n%s\r\n\r\nThe link expires in 48 hours.\r\n",
		name, link,
	)
	return m.send(to, "Activate your PageTurn account", body)
}

// SendPasswordReset sends a password reset link.
func (m *Mailer) SendPasswordReset(to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(m.config.FrontendURL, "/"), token)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nA password reset was requested for your account:\r\n\r\n%s\r\n\r\nIf this wasn't you, ignore this message.\r\n",
		name, link,
	)
	return m.send(to, "Reset your PageTurn password", body)
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.config.Enabled {
		m.logger.Info("mail disabled, logging instead",
			"to", to,
			"subject", subject,
		)
		m.logger.Debug("mail body", "body", body)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + m.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := net.JoinHostPort(m.config.SMTPHost, m.config.SMTPPort)
	if err := smtp.SendMail(addr, nil, m.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	m.logger.Info("mail sent", "to", to, "subject", subject)
	return nil
}
