package domain

import "time"

// Session is a persisted login session bound to a device and refresh token.
// IPFirst keeps the address the session was created from; IPLast follows the
// most recent activity.
type Session struct {
	ID             string
	UserID         string
	RefreshTokenID *string
	DeviceLabel    *string
	IPFirst        *string
	IPLast         *string
	UserAgent      *string
	Version        int64
	CreatedAt      time.Time
	LastSeen       time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RevokeReason   *string
}

// IsActive reports whether the session is neither revoked nor expired at the
// supplied moment.
func (s Session) IsActive(at time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(at)
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

// Touch records activity on the session, stamping last-seen and tracking the
// client address and user agent.
func (s *Session) Touch(at time.Time, ip, userAgent *string) {
	s.LastSeen = at
	if ip != nil {
		if s.IPFirst == nil {
			s.IPFirst = cloneStringPtr(ip)
		}
		s.IPLast = cloneStringPtr(ip)
	}
	if userAgent != nil {
		s.UserAgent = cloneStringPtr(userAgent)
	}
}

// Revoke marks the session as revoked with the given reason. Returns false
// when the session was already revoked, so callers can make revocation
// idempotent.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	return true
}
