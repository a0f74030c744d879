// Package mail delivers password-reset and email-verification links. The
// core treats delivery as fire-and-forget: a failed send is logged, never
// surfaced to the request that triggered it.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"authgrid/api/internal/config"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendVerification(ctx context.Context, email, token string) error
}

// New returns an SMTP mailer when mail is enabled, otherwise a mailer that
// only logs the links. The log mailer is what development and tests run on.
func New(cfg config.MailConfig, log zerolog.Logger) Mailer {
	if cfg.Enabled {
		return &smtpMailer{cfg: cfg}
	}
	return &logMailer{cfg: cfg, log: log}
}

type smtpMailer struct {
	cfg config.MailConfig
}

func (m *smtpMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.cfg.LinkBase, token)
	body := "A password reset was requested for your account.\r\n\r\n" +
		"Reset your password here: " + link + "\r\n\r\n" +
		"If you did not request this, you can ignore this message."
	return m.send(email, "Password reset", body)
}

func (m *smtpMailer) SendVerification(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.cfg.LinkBase, token)
	body := "Confirm your email address here: " + link
	return m.send(email, "Verify your email", body)
}

func (m *smtpMailer) send(to, subject, body string) error {
	from := m.cfg.FromEmail
	msg := strings.Join([]string{
		"From: " + m.cfg.FromName + " <" + from + ">",
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

type logMailer struct {
	cfg config.MailConfig
	log zerolog.Logger
}

func (m *logMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.log.Info().
		Str("email", email).
		Str("link", fmt.Sprintf("%s/reset-password?token=%s", m.cfg.LinkBase, token)).
		Msg("password reset link (mail disabled)")
	return nil
}

func (m *logMailer) SendVerification(ctx context.Context, email, token string) error {
	m.log.Info().
		Str("email", email).
		Str("link", fmt.Sprintf("%s/verify-email?token=%s", m.cfg.LinkBase, token)).
		Msg("verification link (mail disabled)")
	return nil
}
