package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, asyncProducer *fakeAsyncProducer) *EventPublisher {
	t.Helper()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "accounts",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	return NewEventPublisher(producer, config.AppSettings{
		Name: "accounts",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func TestPublishPasswordResetRequested(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	requestedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	ip := "203.0.113.9"
	event := domain.PasswordResetRequestedEvent{
		EventID:           "event-123",
		UserID:            "user-789",
		RequestID:         "req-456",
		RequestedAt:       requestedAt,
		DeliveryMethod:    "email",
		MaskedDestination: "mat***@lp.com",
		IPAddress:         &ip,
		ExpiresAt:         requestedAt.Add(time.Hour),
		Metadata:          map[string]any{"source": "unit-test"},
	}

	if err := publisher.PublishPasswordResetRequested(context.Background(), event); err != nil {
		t.Fatalf("PublishPasswordResetRequested returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "accounts.user.password.reset_requested" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_type"]; got != "user.password.reset_requested" {
			t.Fatalf("unexpected event_type: %v", got)
		}
		if got := envelope["user_id"]; got != event.UserID {
			t.Fatalf("unexpected user_id: %v", got)
		}
		if got := envelope["version"]; got != "1.0" {
			t.Fatalf("unexpected envelope version: %v", got)
		}

		timestamp, ok := envelope["timestamp"].(string)
		if !ok {
			t.Fatalf("timestamp not a string: %T", envelope["timestamp"])
		}
		if timestamp != requestedAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected timestamp: %s", timestamp)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}

		if got := payload["request_id"]; got != event.RequestID {
			t.Fatalf("unexpected request_id: %v", got)
		}
		if got := payload["masked_destination"]; got != event.MaskedDestination {
			t.Fatalf("unexpected masked_destination: %v", got)
		}
		if _, exists := payload["destination"]; exists {
			t.Fatal("payload must not carry the raw destination address")
		}
		if got := payload["ip_address"]; got != ip {
			t.Fatalf("unexpected ip_address: %v", got)
		}

		envelopeMetadata, ok := envelope["metadata"].(map[string]any)
		if !ok {
			t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
		}
		if envelopeMetadata["service"] != "accounts" {
			t.Fatalf("unexpected metadata service: %v", envelopeMetadata["service"])
		}
		if envelopeMetadata["environment"] != "test" {
			t.Fatalf("unexpected metadata environment: %v", envelopeMetadata["environment"])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}

func TestPublishTokenRevoked(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	revokedAt := time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)
	sessionID := "session-456"
	event := domain.TokenRevokedEvent{
		EventID:   "evt-001",
		JTI:       "jti-abc",
		SubjectID: "user-789",
		SessionID: &sessionID,
		ExpiresAt: revokedAt.Add(15 * time.Minute),
		Reason:    "password_reset",
		Actor:     "user-789",
		RevokedAt: revokedAt,
	}

	if err := publisher.PublishTokenRevoked(context.Background(), event); err != nil {
		t.Fatalf("PublishTokenRevoked returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "accounts.token.revoked" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}

		if got := payload["jti"]; got != event.JTI {
			t.Fatalf("unexpected jti: %v", got)
		}
		if got := payload["subject_id"]; got != event.SubjectID {
			t.Fatalf("unexpected subject_id: %v", got)
		}
		if got := payload["session_id"]; got != sessionID {
			t.Fatalf("unexpected session_id: %v", got)
		}
		if got := payload["reason"]; got != event.Reason {
			t.Fatalf("unexpected reason: %v", got)
		}

		expires, ok := payload["expires_at"].(string)
		if !ok {
			t.Fatalf("expires_at not a string: %T", payload["expires_at"])
		}
		if expires != event.ExpiresAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected expires_at: %s", expires)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}

func TestTopicNamePrefixing(t *testing.T) {
	cases := []struct {
		prefix    string
		eventType string
		want      string
	}{
		{"accounts", "token.revoked", "accounts.token.revoked"},
		{"accounts", "accounts.token.revoked", "accounts.token.revoked"},
		{"", "token.revoked", "token.revoked"},
	}

	for _, tc := range cases {
		if got := topicName(tc.prefix, tc.eventType); got != tc.want {
			t.Fatalf("topicName(%q, %q) = %q, want %q", tc.prefix, tc.eventType, got, tc.want)
		}
	}
}
