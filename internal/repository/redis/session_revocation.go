package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-accounts/internal/core/port"
)

const (
	defaultSessionRevocationPrefix = "accounts:sess:revoked"
	defaultRevocationReason        = "session_revoked"
)

// SessionRevocationStore flags revoked sessions in Redis so token checks see
// a password reset before the database row would be consulted. The flag's TTL
// matches the access-token lifetime; once every token minted for the session
// has expired the flag serves no purpose.
type SessionRevocationStore struct {
	client *red.Client
	prefix string
}

func NewSessionRevocationStore(client *red.Client, keyPrefix string) *SessionRevocationStore {
	return &SessionRevocationStore{
		client: client,
		prefix: prefixOrDefault(keyPrefix, defaultSessionRevocationPrefix),
	}
}

// MarkSessionRevoked flags the session with a reason for the audit trail.
func (s *SessionRevocationStore) MarkSessionRevoked(ctx context.Context, sessionID string, reason string, ttl time.Duration) error {
	key, err := scopedKey(s.prefix, sessionID, "session id")
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if strings.TrimSpace(reason) == "" {
		reason = defaultRevocationReason
	}
	if err := s.client.Set(ctx, key, reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session revocation: %w", err)
	}
	return nil
}

// IsSessionRevoked reports the flag and its reason. A missing key means the
// session was never flagged or the flag has aged out.
func (s *SessionRevocationStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, string, error) {
	key, err := scopedKey(s.prefix, sessionID, "session id")
	if err != nil {
		return false, "", err
	}

	reason, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("redis get session revocation: %w", err)
	}
	return true, reason, nil
}

// ClearSessionRevocation drops the flag without waiting for the TTL.
func (s *SessionRevocationStore) ClearSessionRevocation(ctx context.Context, sessionID string) error {
	key, err := scopedKey(s.prefix, sessionID, "session id")
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete session revocation: %w", err)
	}
	return nil
}

func prefixOrDefault(prefix, fallback string) string {
	if trimmed := strings.TrimSpace(prefix); trimmed != "" {
		return trimmed
	}
	return fallback
}

func scopedKey(prefix, id, what string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return prefix + ":" + trimmed, nil
}

var _ port.SessionRevocationStore = (*SessionRevocationStore)(nil)
