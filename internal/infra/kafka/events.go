package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, prefixed with the configured topic prefix on publish.
const (
	eventTypePasswordResetRequested    = "user.password.reset_requested"
	eventTypePasswordChanged           = "user.password.changed"
	eventTypeUsernameRecoveryRequested = "user.username.recovery_requested"
	eventTypeSessionRevoked            = "user.session.revoked"
	eventTypeTokenRevoked              = "token.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// newEnvelope wraps a payload with identity and provenance. A zero timestamp
// or empty event id gets generated here so every published record carries both.
func (p *EventPublisher) newEnvelope(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) eventEnvelope {
	if ts.IsZero() {
		ts = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	return eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}
}

func (p *EventPublisher) publish(ctx context.Context, envelope eventEnvelope) error {
	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(envelope.EventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type passwordResetRequestedPayload struct {
	UserID            string         `json:"user_id"`
	RequestID         string         `json:"request_id"`
	RequestedAt       time.Time      `json:"requested_at"`
	DeliveryMethod    string         `json:"delivery_method"`
	MaskedDestination string         `json:"masked_destination,omitempty"`
	IPAddress         *string        `json:"ip_address,omitempty"`
	ExpiresAt         time.Time      `json:"expires_at"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// PublishPasswordResetRequested publishes user.password.reset_requested events.
// The payload carries only the masked destination; raw addresses never reach the bus.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := passwordResetRequestedPayload{
		UserID:            event.UserID,
		RequestID:         event.RequestID,
		RequestedAt:       event.RequestedAt.UTC(),
		DeliveryMethod:    event.DeliveryMethod,
		MaskedDestination: event.MaskedDestination,
		IPAddress:         event.IPAddress,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}

	envelope := p.newEnvelope(ctx, event.EventID, eventTypePasswordResetRequested, event.UserID, event.RequestedAt, payload)
	return p.publish(ctx, envelope)
}

type passwordChangedPayload struct {
	UserID           string         `json:"user_id"`
	ChangedAt        time.Time      `json:"changed_at"`
	ChangedBy        string         `json:"changed_by"`
	SessionsRevoked  int            `json:"sessions_revoked"`
	NotificationSent bool           `json:"notification_sent"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// PublishPasswordChanged publishes user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := passwordChangedPayload{
		UserID:           event.UserID,
		ChangedAt:        event.ChangedAt.UTC(),
		ChangedBy:        event.ChangedBy,
		SessionsRevoked:  event.SessionsRevoked,
		NotificationSent: event.NotificationSent,
		Metadata:         event.Metadata,
	}

	envelope := p.newEnvelope(ctx, event.EventID, eventTypePasswordChanged, event.UserID, event.ChangedAt, payload)
	return p.publish(ctx, envelope)
}

type usernameRecoveryRequestedPayload struct {
	UserID            string         `json:"user_id"`
	RequestedAt       time.Time      `json:"requested_at"`
	MaskedDestination string         `json:"masked_destination,omitempty"`
	DeliverySucceeded bool           `json:"delivery_succeeded"`
	IPAddress         *string        `json:"ip_address,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// PublishUsernameRecoveryRequested publishes user.username.recovery_requested events.
func (p *EventPublisher) PublishUsernameRecoveryRequested(ctx context.Context, event domain.UsernameRecoveryRequestedEvent) error {
	payload := usernameRecoveryRequestedPayload{
		UserID:            event.UserID,
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		DeliverySucceeded: event.DeliverySucceeded,
		IPAddress:         event.IPAddress,
		Metadata:          event.Metadata,
	}

	envelope := p.newEnvelope(ctx, event.EventID, eventTypeUsernameRecoveryRequested, event.UserID, event.RequestedAt, payload)
	return p.publish(ctx, envelope)
}

type sessionRevokedPayload struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	DeviceLabel   *string        `json:"device_label,omitempty"`
	RevokedAt     time.Time      `json:"revoked_at"`
	RevokedBy     string         `json:"revoked_by"`
	Reason        string         `json:"reason"`
	TokensRevoked int            `json:"tokens_revoked"`
	IPAddress     *string        `json:"ip_address,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PublishSessionRevoked publishes user.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := sessionRevokedPayload{
		SessionID:     event.SessionID,
		UserID:        event.UserID,
		DeviceLabel:   event.DeviceLabel,
		RevokedAt:     event.RevokedAt.UTC(),
		RevokedBy:     event.RevokedBy,
		Reason:        event.Reason,
		TokensRevoked: event.TokensRevoked,
		IPAddress:     event.IPAddress,
		Metadata:      event.Metadata,
	}

	envelope := p.newEnvelope(ctx, event.EventID, eventTypeSessionRevoked, event.UserID, event.RevokedAt, payload)
	return p.publish(ctx, envelope)
}

type tokenRevokedPayload struct {
	JTI       string         `json:"jti"`
	SubjectID string         `json:"subject_id"`
	SessionID *string        `json:"session_id,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
	Reason    string         `json:"reason"`
	Actor     string         `json:"actor,omitempty"`
	RevokedAt time.Time      `json:"revoked_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PublishTokenRevoked publishes token.revoked events. Every running instance
// consumes these to denylist the JTI until its natural expiry.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := tokenRevokedPayload{
		JTI:       event.JTI,
		SubjectID: event.SubjectID,
		SessionID: event.SessionID,
		ExpiresAt: event.ExpiresAt.UTC(),
		Reason:    event.Reason,
		Actor:     event.Actor,
		RevokedAt: event.RevokedAt.UTC(),
		Metadata:  event.Metadata,
	}

	envelope := p.newEnvelope(ctx, event.EventID, eventTypeTokenRevoked, event.SubjectID, event.RevokedAt, payload)
	return p.publish(ctx, envelope)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
