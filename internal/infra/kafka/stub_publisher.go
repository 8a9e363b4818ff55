package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments where no broker is running.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, event any) {
	if at.IsZero() {
		at = time.Now()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("event", event),
	)
}

// PublishPasswordResetRequested logs user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(eventTypePasswordResetRequested, event.UserID, event.RequestedAt, event)
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(eventTypePasswordChanged, event.UserID, event.ChangedAt, event)
	return nil
}

// PublishUsernameRecoveryRequested logs user.username.recovery_requested events.
func (p *StubPublisher) PublishUsernameRecoveryRequested(_ context.Context, event domain.UsernameRecoveryRequestedEvent) error {
	p.logEvent(eventTypeUsernameRecoveryRequested, event.UserID, event.RequestedAt, event)
	return nil
}

// PublishSessionRevoked logs user.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent(eventTypeSessionRevoked, event.UserID, event.RevokedAt, event)
	return nil
}

// PublishTokenRevoked logs token.revoked events.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	p.logEvent(eventTypeTokenRevoked, event.SubjectID, event.RevokedAt, event)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
