package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusLocked   UserStatus = "locked"
	UserStatusDisabled UserStatus = "disabled"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID                 string
	Username           string
	Email              string
	Phone              *string
	PasswordHash       string
	PasswordAlgo       string
	Status             UserStatus
	IsActive           bool
	RegisteredAt       time.Time
	LastLogin          *time.Time
	LastPasswordChange *time.Time
}

// IsDisabled reports whether the account is administratively unusable.
func (u User) IsDisabled() bool {
	if !u.IsActive {
		return true
	}
	return u.Status == UserStatusDisabled || u.Status == UserStatusLocked
}

// HasUsablePassword reports whether a credential is set. Invited accounts may
// exist without one until recovery establishes it.
func (u User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// CanLogin reports whether password authentication may proceed for the account.
func (u User) CanLogin() bool {
	return !u.IsDisabled() && u.Status == UserStatusActive && u.HasUsablePassword()
}

// CanRecover reports whether credential recovery may proceed. Pending and
// passwordless accounts recover; disabled and locked ones do not.
func (u User) CanRecover() bool {
	return !u.IsDisabled()
}

// UserPasswordHistory tracks historical password hashes for reuse prevention.
type UserPasswordHistory struct {
	ID           string
	UserID       string
	PasswordHash string
	SetAt        time.Time
}
