package quickauth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// Mailer delivers password reset emails. Implementations should honour
// ctx cancellation where the transport allows it.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// ConsoleMailer logs emails instead of sending them. Meant for development.
type ConsoleMailer struct {
	Logger *slog.Logger
	// Prefix for the reset link, e.g. https://example.com/reset?token=
	LinkPrefix string
}

func (c *ConsoleMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "password reset email",
		"to", to,
		"subject", "Reset your password",
		"link", c.LinkPrefix+token)
	return nil
}

// SMTPMailer sends plain text mail through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Prefix for the reset link; the token is appended.
	LinkPrefix string

	// Replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.Host, fmt.Sprint(m.Port))
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	send := m.send
	if send == nil {
		send = smtp.SendMail
	}

	done := make(chan error, 1)
	go func() {
		done <- send(addr, auth, m.From, []string{to}, m.resetMessage(to, token))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) resetMessage(to, token string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Reset your password\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString("We received a request to reset your password.\r\n\r\n")
	fmt.Fprintf(&b, "Reset it here (valid for one hour): %s%s\r\n\r\n", m.LinkPrefix, token)
	b.WriteString("If you did not ask for this, you can ignore this email.\r\n")
	return []byte(b.String())
}
