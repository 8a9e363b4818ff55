package domain

import "time"

func timePtr(at time.Time) *time.Time {
	copied := at
	return &copied
}

// PasswordResetToken is a single-use credential recovery token. Only the
// SHA-256 hash of the emailed value is stored; the plaintext never touches
// the database.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	RevokedAt *time.Time
	Metadata  map[string]any
}

// IsExpired reports whether the token's redemption window has elapsed.
func (t PasswordResetToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRedeemable reports whether the token is unused, unrevoked, and inside
// its window. Callers that need to distinguish "expired" from "spent" check
// IsExpired first.
func (t PasswordResetToken) IsRedeemable(at time.Time) bool {
	return t.UsedAt == nil && t.RevokedAt == nil && !t.IsExpired(at)
}

// Consume marks the token as used. Returns false when it was already spent.
func (t *PasswordResetToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	t.UsedAt = timePtr(at)
	return true
}

// Revoke voids the token. Returns false when it was already revoked.
func (t *PasswordResetToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	t.RevokedAt = timePtr(at)
	return true
}

// RefreshToken is a long-lived session credential with rotation support.
type RefreshToken struct {
	ID        string
	UserID    string
	SessionID *string
	TokenHash string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	Metadata  map[string]any
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRevoked reports whether the token has been explicitly revoked.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the token can still be presented for rotation.
func (t RefreshToken) IsActive(at time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(at)
}

// Revoke marks the token as revoked. Returns false when it already was.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	t.RevokedAt = timePtr(at)
	return true
}
