package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/port"
)

const (
	passwordResetRateLimitScope    = "password_reset"
	usernameRecoveryRateLimitScope = "username_recovery"
	loginRateLimitScope            = "login"
)

// RateLimitExceededError signals a recovery scope hit its sliding-window cap.
// RetryAfter tells callers when the oldest attempt falls out of the window.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry in %s", e.Scope, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Scope)
}

// enforceSlidingLimit counts recent attempts under key and records the current
// one when the limit has headroom. Store failures are logged and the request
// allowed through: an unavailable limiter must not take recovery down with it.
func enforceSlidingLimit(ctx context.Context, store port.RateLimitStore, log *zap.Logger, now time.Time, scope, key string, limit int, window time.Duration) error {
	if store == nil || limit <= 0 || window <= 0 {
		return nil
	}

	if err := store.TrimWindow(ctx, key, window, now); err != nil {
		log.Warn("trim rate limit window", zap.String("scope", scope), zap.Error(err))
	}

	count, err := store.CountAttempts(ctx, key, window, now)
	if err != nil {
		log.Warn("count rate limit attempts", zap.String("scope", scope), zap.Error(err))
		return nil
	}

	if count >= limit {
		retryAfter := window
		if oldest, ok, oldestErr := store.OldestAttempt(ctx, key, window, now); oldestErr == nil && ok {
			if remaining := oldest.Add(window).Sub(now); remaining > 0 {
				retryAfter = remaining
			}
		}
		return &RateLimitExceededError{Scope: scope, RetryAfter: retryAfter}
	}

	if err := store.RecordAttempt(ctx, key, now); err != nil {
		log.Warn("record rate limit attempt", zap.String("scope", scope), zap.Error(err))
	}
	return nil
}
