package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const defaultSessionVersionPrefix = "accounts:session_version"

// SessionVersionRepository caches the per-session version counter so token
// checks can spot a stale `sv` claim without a database round trip. A cache
// miss surfaces repository.ErrNotFound and the caller falls back to postgres.
type SessionVersionRepository struct {
	client *red.Client
	prefix string
}

func NewSessionVersionRepository(client *red.Client, keyPrefix string) *SessionVersionRepository {
	return &SessionVersionRepository{
		client: client,
		prefix: prefixOrDefault(keyPrefix, defaultSessionVersionPrefix),
	}
}

// GetSessionVersion returns the cached counter or repository.ErrNotFound.
func (r *SessionVersionRepository) GetSessionVersion(ctx context.Context, sessionID string) (int64, error) {
	key, err := scopedKey(r.prefix, sessionID, "session id")
	if err != nil {
		return 0, err
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis get session version: %w", err)
	}

	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached session version: %w", err)
	}
	return version, nil
}

// SetSessionVersion caches the counter for ttl. Versions start at 1, so zero
// or negative values indicate a caller bug rather than a state to store.
func (r *SessionVersionRepository) SetSessionVersion(ctx context.Context, sessionID string, version int64, ttl time.Duration) error {
	key, err := scopedKey(r.prefix, sessionID, "session id")
	if err != nil {
		return err
	}
	if version <= 0 {
		return errors.New("version must be positive")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := r.client.Set(ctx, key, strconv.FormatInt(version, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set session version: %w", err)
	}
	return nil
}

// DeleteSessionVersion evicts the cached counter.
func (r *SessionVersionRepository) DeleteSessionVersion(ctx context.Context, sessionID string) error {
	key, err := scopedKey(r.prefix, sessionID, "session id")
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete session version: %w", err)
	}
	return nil
}

var _ port.SessionVersionStore = (*SessionVersionRepository)(nil)
