package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
)

const (
	defaultReplayTolerance   = 5 * time.Minute
	defaultDenylistRetention = 24 * time.Hour
)

// TokenRevocationConsumer subscribes to token.revoked and denylists each JTI
// until the token's natural expiry. Access tokens minted before a password
// reset die on every instance this way, not just the one that handled the reset.
type TokenRevocationConsumer struct {
	group           sarama.ConsumerGroup
	topics          []string
	denylist        port.JTIDenylist
	logger          *zap.Logger
	replayTolerance time.Duration
	now             func() time.Time
}

// NewTokenRevocationConsumer joins the configured consumer group.
func NewTokenRevocationConsumer(cfg config.KafkaSettings, denylist port.JTIDenylist, logger *zap.Logger) (*TokenRevocationConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	consumer := newTokenRevocationHandler(denylist, logger)
	consumer.group = group
	consumer.topics = []string{topicName(cfg.TopicPrefix, eventTypeTokenRevoked)}

	logger.Info("Kafka revocation consumer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group", cfg.ConsumerGroup),
		zap.Strings("topics", consumer.topics),
	)

	return consumer, nil
}

func newTokenRevocationHandler(denylist port.JTIDenylist, logger *zap.Logger) *TokenRevocationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenRevocationConsumer{
		denylist:        denylist,
		logger:          logger,
		replayTolerance: defaultReplayTolerance,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the consumer clock for deterministic testing.
func (c *TokenRevocationConsumer) WithClock(clock func() time.Time) *TokenRevocationConsumer {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Run consumes until the context is cancelled. Consume returns on every
// rebalance, so it is re-entered in a loop.
func (c *TokenRevocationConsumer) Run(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consumer group session failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (c *TokenRevocationConsumer) Close() error {
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *TokenRevocationConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *TokenRevocationConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler. Decode failures are
// logged and the offset advanced; a poison message must not wedge the group.
func (c *TokenRevocationConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.HandleMessage(session.Context(), msg); err != nil {
			c.logger.Error("handle token revocation", zap.Error(err))
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

type incomingEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type incomingTokenRevokedPayload struct {
	JTI       string    `json:"jti"`
	SubjectID string    `json:"subject_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}

// HandleMessage decodes one token.revoked envelope and applies the revocation.
func (c *TokenRevocationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope incomingEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}

	var payload incomingTokenRevokedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("decode token revoked payload: %w", err)
	}

	return c.applyRevocation(ctx, payload)
}

func (c *TokenRevocationConsumer) applyRevocation(ctx context.Context, payload incomingTokenRevokedPayload) error {
	if payload.JTI == "" {
		return fmt.Errorf("token revoked event missing jti")
	}

	now := c.now()
	if !payload.ExpiresAt.IsZero() && c.replayTolerance > 0 {
		if !payload.ExpiresAt.After(now.Add(-c.replayTolerance)) {
			c.logger.Debug("skip expired revocation", zap.String("jti", payload.JTI))
			return nil
		}
	}

	until := payload.ExpiresAt.UTC()
	if until.IsZero() {
		until = now.Add(defaultDenylistRetention)
	}

	if err := c.denylist.Deny(ctx, payload.JTI, payload.Reason, until); err != nil {
		return fmt.Errorf("denylist jti: %w", err)
	}

	c.logger.Info("token revocation applied",
		zap.String("jti", payload.JTI),
		zap.String("reason", payload.Reason),
		zap.Time("until", until),
	)
	return nil
}
