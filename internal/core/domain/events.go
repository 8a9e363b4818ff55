package domain

import "time"

// PasswordResetRequestedEvent represents the payload for accounts.user.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestID         string
	RequestedAt       time.Time
	DeliveryMethod    string
	MaskedDestination string
	IPAddress         *string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// PasswordChangedEvent represents the payload for accounts.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID          string
	UserID           string
	ChangedAt        time.Time
	ChangedBy        string
	SessionsRevoked  int
	NotificationSent bool
	Metadata         map[string]any
}

// UsernameRecoveryRequestedEvent represents the payload for accounts.user.username.recovery_requested messages.
type UsernameRecoveryRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	DeliverySucceeded bool
	IPAddress         *string
	Metadata          map[string]any
}

// SessionRevokedEvent represents the payload for accounts.user.session.revoked messages.
type SessionRevokedEvent struct {
	EventID       string
	SessionID     string
	UserID        string
	DeviceLabel   *string
	RevokedAt     time.Time
	RevokedBy     string
	Reason        string
	TokensRevoked int
	IPAddress     *string
	Metadata      map[string]any
}

// TokenRevokedEvent represents the payload for accounts.token.revoked messages.
// Consumed by every instance to denylist the JTI until its natural expiry.
type TokenRevokedEvent struct {
	EventID   string
	JTI       string
	SubjectID string
	SessionID *string
	ExpiresAt time.Time
	Reason    string
	Actor     string
	RevokedAt time.Time
	Metadata  map[string]any
}
