package notify

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
)

// SMTPConfig configures email delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

// Configured reports whether the minimum fields for sending are set.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// EmailSender delivers messages over SMTP. The recipient is the
// destination address.
type EmailSender struct {
	cfg SMTPConfig
	log logger.Interface
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(cfg SMTPConfig, log logger.Interface) *EmailSender {
	return &EmailSender{cfg: cfg, log: log.WithComponent("email")}
}

// Channel returns the channel identifier.
func (s *EmailSender) Channel() string { return ChannelEmail }

// Send formats and sends one message. STARTTLS and authentication are
// applied when configured.
func (s *EmailSender) Send(ctx context.Context, to string, msg Message) error {
	if !s.cfg.Configured() {
		return fmt.Errorf("smtp host and from address are not configured")
	}

	subject, body := formatEmail(msg)
	payload := buildMIME(s.cfg.From, to, subject, body)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.deliver(ctx, addr, auth, to, payload); err != nil {
		return fmt.Errorf("smtp delivery to %s failed: %w", to, err)
	}

	s.log.Debug("email notification delivered", "to", to, "items", len(msg.Items))
	return nil
}

// deliver runs the SMTP conversation. net/smtp has no context support,
// so the dial honors the context and the rest rides the connection
// deadline.
func (s *EmailSender) deliver(ctx context.Context, addr string, auth smtp.Auth, to string, payload []byte) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if s.cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(payload); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildMIME assembles a UTF-8 plain-text message with an encoded-word
// subject so Japanese text survives transport.
func buildMIME(from, to, subject, body string) []byte {
	encodedSubject := "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?="
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + encodedSubject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"Content-Transfer-Encoding: base64",
		"",
		base64.StdEncoding.EncodeToString([]byte(body)),
	}
	return []byte(strings.Join(headers, "\r\n"))
}
