package port

import (
	"context"
	"time"
)

// SessionRevocationStore caches session revocation flags for rapid access-token checks.
type SessionRevocationStore interface {
	MarkSessionRevoked(ctx context.Context, sessionID string, reason string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, string, error)
	ClearSessionRevocation(ctx context.Context, sessionID string) error
}

// SessionVersionStore caches per-session version counters so stale access
// tokens die without a database round trip.
type SessionVersionStore interface {
	GetSessionVersion(ctx context.Context, sessionID string) (int64, error)
	SetSessionVersion(ctx context.Context, sessionID string, version int64, ttl time.Duration) error
	DeleteSessionVersion(ctx context.Context, sessionID string) error
}

// JTIDenylist stores revoked access-token identifiers until their natural expiry.
type JTIDenylist interface {
	Deny(ctx context.Context, jti string, reason string, until time.Time) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}
