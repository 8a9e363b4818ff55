package mail

import (
	"context"
	"net/mail"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
)

func TestPasswordResetTemplateContainsLinkAndToken(t *testing.T) {
	msg := port.PasswordResetEmail{
		To:        "matt@lp.com",
		Link:      "http://localhost:8080/reset/abc123token",
		Token:     "abc123token",
		ExpiresIn: "1 hour",
	}

	body, err := renderPasswordReset(msg)
	if err != nil {
		t.Fatalf("renderPasswordReset returned error: %v", err)
	}

	if !strings.Contains(body, msg.Link) {
		t.Fatalf("reset body missing link: %s", body)
	}
	if !strings.Contains(body, "\n"+msg.Token+"\n") {
		t.Fatalf("reset body missing raw token on its own line: %s", body)
	}
	if !strings.Contains(body, msg.To) {
		t.Fatalf("reset body missing recipient greeting: %s", body)
	}
	if !strings.Contains(body, "1 hour") {
		t.Fatalf("reset body missing expiry hint: %s", body)
	}
}

func TestUsernameRecoveryTemplateContainsUsernameLine(t *testing.T) {
	body, err := renderUsernameRecovery(port.UsernameRecoveryEmail{
		To:       "matt@lp.com",
		Username: "matt",
	})
	if err != nil {
		t.Fatalf("renderUsernameRecovery returned error: %v", err)
	}

	if !strings.Contains(body, "Your username is: matt") {
		t.Fatalf("username body missing reminder line: %s", body)
	}
}

func TestPasswordChangedTemplateMentionsReset(t *testing.T) {
	body, err := renderPasswordChanged(port.PasswordChangedEmail{To: "matt@lp.com"})
	if err != nil {
		t.Fatalf("renderPasswordChanged returned error: %v", err)
	}

	if !strings.Contains(body, "Your password has been reset") {
		t.Fatalf("changed notice missing confirmation line: %s", body)
	}
}

func TestLoggingMailerRejectsHeaderInjection(t *testing.T) {
	m := NewLoggingMailer(zaptest.NewLogger(t))

	err := m.SendPasswordReset(context.Background(), port.PasswordResetEmail{
		To: "victim@example.com\r\nBcc: attacker@example.com",
	})
	if err == nil {
		t.Fatal("expected error for recipient containing CRLF")
	}
}

func TestBuildMessageAssemblesHeaders(t *testing.T) {
	from := mustParseAddress(t, "no-reply@accounts.local")
	to := mustParseAddress(t, "matt@lp.com")

	message := buildMessage(from, to, "Password reset instructions", "body text\n")

	for _, want := range []string{
		"From: <no-reply@accounts.local>\r\n",
		"To: matt@lp.com\r\n",
		"Subject: Password reset instructions\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
	} {
		if !strings.Contains(message, want) {
			t.Fatalf("message missing header %q: %s", want, message)
		}
	}

	headerEnd := strings.Index(message, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatalf("message missing blank line between headers and body: %s", message)
	}
	if got := message[headerEnd+4:]; got != "body text\n" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestSMTPMailerRequiresFromAddress(t *testing.T) {
	_, err := NewSMTPMailer(smtpSettings(""), mailSettings(), zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected error for missing from address")
	}

	if _, err := NewSMTPMailer(smtpSettings("no-reply@accounts.local"), mailSettings(), zaptest.NewLogger(t)); err != nil {
		t.Fatalf("expected mailer to construct, got %v", err)
	}
}

func mustParseAddress(t *testing.T, raw string) *mail.Address {
	t.Helper()
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		t.Fatalf("parse address %q: %v", raw, err)
	}
	return addr
}

func smtpSettings(from string) config.SMTPSettings {
	return config.SMTPSettings{
		Host: "smtp.example.com",
		Port: 587,
		From: from,
	}
}

func mailSettings() config.MailSettings {
	return config.MailSettings{
		SubjectPasswordReset:    "Password reset instructions",
		SubjectPasswordChanged:  "Your password has been reset",
		SubjectUsernameRecovery: "Your requested username",
	}
}
