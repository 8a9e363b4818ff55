package port

import (
	"context"
	"time"
)

// RateLimitStore records attempts per identifier and answers sliding-window
// queries about them. The recovery and login flows lean on it for their
// per-email and per-IP abuse limits.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
