package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
)

const defaultSMTPTimeout = 30 * time.Second

var errHeaderInjection = errors.New("mail: header contains invalid characters")

// SMTPMailer delivers recovery email through an SMTP relay. The connection is
// upgraded with STARTTLS when the server offers it, and AUTH is refused on
// cleartext connections.
type SMTPMailer struct {
	cfg      config.SMTPSettings
	subjects config.MailSettings
	log      *zap.Logger
}

// NewSMTPMailer constructs the mailer. From address and host must be set.
func NewSMTPMailer(cfg config.SMTPSettings, subjects config.MailSettings, log *zap.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: smtp host not configured")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: from address not configured")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid from address: %w", err)
	}
	return &SMTPMailer{cfg: cfg, subjects: subjects, log: log}, nil
}

// SendPasswordReset delivers reset instructions with the link and raw token.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, msg port.PasswordResetEmail) error {
	body, err := renderPasswordReset(msg)
	if err != nil {
		return err
	}
	return m.send(ctx, msg.To, m.subjects.SubjectPasswordReset, body)
}

// SendPasswordChangedNotice delivers the post-reset notification.
func (m *SMTPMailer) SendPasswordChangedNotice(ctx context.Context, msg port.PasswordChangedEmail) error {
	body, err := renderPasswordChanged(msg)
	if err != nil {
		return err
	}
	return m.send(ctx, msg.To, m.subjects.SubjectPasswordChanged, body)
}

// SendUsernameRecovery delivers the username reminder.
func (m *SMTPMailer) SendUsernameRecovery(ctx context.Context, msg port.UsernameRecoveryEmail) error {
	body, err := renderUsernameRecovery(msg)
	if err != nil {
		return err
	}
	return m.send(ctx, msg.To, m.subjects.SubjectUsernameRecovery, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if containsHeaderInjection(to) || containsHeaderInjection(subject) {
		return errHeaderInjection
	}

	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	fromAddr, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return fmt.Errorf("mail: invalid from address: %w", err)
	}

	message := buildMessage(fromAddr, toAddr, subject, body)
	if err := m.deliver(ctx, fromAddr, toAddr, message); err != nil {
		return err
	}

	m.log.Info("email delivered",
		zap.String("to", logger.MaskEmail(toAddr.Address)),
		zap.String("subject", subject),
	)
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, fromAddr, toAddr *mail.Address, message string) error {
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mail: dial smtp server: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("mail: create smtp client: %w", err)
	}
	defer client.Quit()

	tlsActive := false
	if m.cfg.RequireTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("mail: smtp server %s does not support STARTTLS", m.cfg.Host)
		}
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("mail: start TLS: %w", err)
		}
		tlsActive = true
	} else if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("mail: start optional TLS: %w", err)
		}
		tlsActive = true
	}

	if m.cfg.Username != "" {
		if m.cfg.Password == "" {
			return fmt.Errorf("mail: smtp password not configured")
		}
		if !tlsActive {
			return fmt.Errorf("mail: smtp auth refused without TLS")
		}
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mail: smtp auth: %w", err)
		}
	}

	if err := client.Mail(fromAddr.Address); err != nil {
		return fmt.Errorf("mail: smtp mail: %w", err)
	}
	if err := client.Rcpt(toAddr.Address); err != nil {
		return fmt.Errorf("mail: smtp rcpt: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(message)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("mail: smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("mail: smtp data close: %w", err)
	}

	return client.Quit()
}

func buildMessage(fromAddr, toAddr *mail.Address, subject, body string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("From: %s\r\n", fromAddr.String()))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", toAddr.Address))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	return builder.String()
}

func containsHeaderInjection(value string) bool {
	return strings.ContainsAny(value, "\r\n")
}
