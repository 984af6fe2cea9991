package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// MailSender is the outbound delivery collaborator. Implementations must
// respect ctx deadlines: delivery is bounded by a short timeout and its
// failure never fails the enclosing operation beyond degrading a message.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer delivers over an SMTP submission port with STARTTLS.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, password: password, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := net.JoinHostPort(m.host, fmt.Sprintf("%d", m.port))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		htmlBody,
	}, "\r\n")
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// DevMailSender logs instead of sending; the development stand-in when no
// SMTP credentials are configured.
type DevMailSender struct {
	logger *slog.Logger
}

func NewDevMailSender(logger *slog.Logger) *DevMailSender {
	return &DevMailSender{logger: logger}
}

func (m *DevMailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.InfoContext(ctx, "mail delivery skipped (dev mode)",
		"to", to,
		"subject", subject,
	)
	return nil
}

func verificationEmailBody(code, link string, ttl time.Duration) (subject, body string) {
	subject = "Verify your email"
	if link != "" {
		body = fmt.Sprintf(
			`<p>Confirm your email address by following the link below.</p>`+
				`<p><a href="%s">Verify email</a></p>`+
				`<p>Or copy the link: %s</p>`+
				`<p>The link is valid for %d hours.</p>`,
			link, link, int(ttl.Hours()))
		return subject, body
	}
	body = fmt.Sprintf(
		`<p>Your email verification code:</p><h2>%s</h2>`+
			`<p>The code is valid for %d hours.</p>`,
		code, int(ttl.Hours()))
	return subject, body
}

func resetEmailBody(code, link string, ttl time.Duration) (subject, body string) {
	subject = "Password reset"
	mins := int(ttl.Minutes())
	if link != "" {
		body = fmt.Sprintf(
			`<p>You requested a password reset.</p>`+
				`<p><a href="%s">Reset password</a></p>`+
				`<p>Or copy the link: %s</p>`+
				`<p>The link is valid for %d minutes. If you did not request a reset, ignore this message.</p>`,
			link, link, mins)
		return subject, body
	}
	body = fmt.Sprintf(
		`<p>Your password reset code:</p><h2>%s</h2>`+
			`<p>The code is valid for %d minutes. If you did not request a reset, ignore this message.</p>`,
		code, mins)
	return subject, body
}
