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

const defaultJTIDenylistPrefix = "accounts:jti:denied"

// JTIDenylistRepository stores revoked access-token identifiers in Redis.
// Entries carry a TTL matching the token's natural expiry, so the denylist
// never grows beyond the set of tokens that could still verify.
type JTIDenylistRepository struct {
	client *red.Client
	prefix string
}

// NewJTIDenylistRepository wires a Redis client into a JTI denylist.
func NewJTIDenylistRepository(client *red.Client, keyPrefix string) *JTIDenylistRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultJTIDenylistPrefix
	}

	return &JTIDenylistRepository{client: client, prefix: prefix}
}

// Deny records the JTI as revoked until the supplied moment. A deadline in the
// past means the token can no longer verify anyway, so nothing is stored.
func (r *JTIDenylistRepository) Deny(ctx context.Context, jti string, reason string, until time.Time) error {
	key := r.key(jti)
	if key == "" {
		return errors.New("jti must not be empty")
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	value := strings.TrimSpace(reason)
	if value == "" {
		value = "revoked"
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set denied jti: %w", err)
	}

	return nil
}

// IsDenied reports whether the JTI has been revoked.
func (r *JTIDenylistRepository) IsDenied(ctx context.Context, jti string) (bool, error) {
	key := r.key(jti)
	if key == "" {
		return false, errors.New("jti must not be empty")
	}

	if err := r.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get denied jti: %w", err)
	}

	return true, nil
}

func (r *JTIDenylistRepository) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.JTIDenylist = (*JTIDenylistRepository)(nil)
