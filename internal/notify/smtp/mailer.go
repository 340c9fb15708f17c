// Package smtp delivers notifications as plain-text mail.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"provisor/internal/notify"
	"provisor/internal/platform/config"
)

// Mailer sends notifications through the configured SMTP relay. It
// implements the notify.Sender contract.
type Mailer struct {
	cfg config.SMTPConfig
}

// NewMailer constructs a mailer from SMTP configuration.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send composes and delivers one message. With UseTLS set the connection
// is implicit TLS (SMTPS); otherwise smtp.SendMail upgrades via STARTTLS
// when the server offers it.
func (m *Mailer) Send(ctx context.Context, n notify.Notification) error {
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n",
		m.cfg.From, strings.Join(n.Recipients, ", "), n.Subject,
	)
	if n.Priority == notify.PriorityHigh {
		headers += "X-Priority: 1\r\n"
	}
	headers += "Content-Type: text/plain; charset=utf-8\r\n\r\n"
	msg := []byte(headers + n.Body + "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if m.cfg.UseTLS {
		return m.sendTLS(ctx, addr, auth, n.Recipients, msg)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, n.Recipients, msg)
}

// sendTLS connects with implicit TLS (port 465 pattern). If the dial fails
// we fall back to smtp.SendMail, which handles the STARTTLS upgrade for
// servers on 587.
func (m *Mailer) sendTLS(ctx context.Context, addr string, auth smtp.Auth, to []string, msg []byte) error {
	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return smtp.SendMail(addr, auth, m.cfg.From, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
