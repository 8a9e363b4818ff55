package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
)

// LoggingMailer writes mail to the log instead of the wire. It stands in for
// SMTP in development; recipients are masked, the link and token are logged
// at debug level only.
type LoggingMailer struct {
	log *zap.Logger
}

// NewLoggingMailer constructs the log-backed mailer.
func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	return &LoggingMailer{log: log}
}

func (m *LoggingMailer) SendPasswordReset(_ context.Context, msg port.PasswordResetEmail) error {
	if containsHeaderInjection(msg.To) {
		return errHeaderInjection
	}
	m.log.Info("password reset email (not sent, smtp disabled)",
		zap.String("to", logger.MaskEmail(msg.To)),
	)
	m.log.Debug("password reset email contents",
		zap.String("link", msg.Link),
		zap.String("token", msg.Token),
	)
	return nil
}

func (m *LoggingMailer) SendPasswordChangedNotice(_ context.Context, msg port.PasswordChangedEmail) error {
	if containsHeaderInjection(msg.To) {
		return errHeaderInjection
	}
	m.log.Info("password changed notice (not sent, smtp disabled)",
		zap.String("to", logger.MaskEmail(msg.To)),
	)
	return nil
}

func (m *LoggingMailer) SendUsernameRecovery(_ context.Context, msg port.UsernameRecoveryEmail) error {
	if containsHeaderInjection(msg.To) {
		return errHeaderInjection
	}
	m.log.Info("username recovery email (not sent, smtp disabled)",
		zap.String("to", logger.MaskEmail(msg.To)),
	)
	m.log.Debug("username recovery email contents",
		zap.String("username", msg.Username),
	)
	return nil
}

// NoopMailer drops all mail. Used in tests and in deployments that disable
// outbound email entirely.
type NoopMailer struct{}

func (NoopMailer) SendPasswordReset(context.Context, port.PasswordResetEmail) error {
	return nil
}

func (NoopMailer) SendPasswordChangedNotice(context.Context, port.PasswordChangedEmail) error {
	return nil
}

func (NoopMailer) SendUsernameRecovery(context.Context, port.UsernameRecoveryEmail) error {
	return nil
}
