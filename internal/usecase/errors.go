package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUserNotFound indicates no account matches the supplied identifier.
	// Recovery handlers running in generic mode must not surface it to callers.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidEmail indicates the supplied address failed syntax validation.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrAccountDisabled indicates the account is locked or administratively disabled.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrAccountPending indicates the account has not completed confirmation.
	ErrAccountPending = errors.New("account is pending confirmation")

	// ErrInvalidCredentials covers unknown identifiers and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPasswordMissing indicates the confirm request carried no new password.
	ErrPasswordMissing = errors.New("password not provided")

	// ErrPasswordMismatch indicates the password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrPasswordReused indicates the new password matches the current one or a
	// recent entry in the account's password history.
	ErrPasswordReused = errors.New("new password matches a previous password")

	// ErrResetTokenInvalid covers unknown, consumed, and revoked reset tokens.
	ErrResetTokenInvalid = errors.New("password reset token is invalid")

	// ErrDeliveryFailed indicates the recovery email could not be handed to the mailer.
	ErrDeliveryFailed = errors.New("recovery email could not be delivered")

	// ErrUsernameRecoveryDisabled indicates the deployment does not expose username recovery.
	ErrUsernameRecoveryDisabled = errors.New("username recovery is disabled")

	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionForbidden      = errors.New("session does not belong to the authenticated user")
	ErrSessionAlreadyRevoked = errors.New("session is already revoked")
	ErrSessionRevoked        = errors.New("session has been revoked")
	ErrSessionExpired        = errors.New("session has expired")

	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrExpiredRefreshToken = errors.New("refresh token has expired")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrExpiredAccessToken  = errors.New("access token has expired")
)

// TokenExpiredError reports a reset token presented after its validity window.
// By the time a caller sees this error the service has already issued a fresh
// token and mailed new instructions to the account holder.
type TokenExpiredError struct {
	Within string
	Email  string
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("You did not reset your password within %s. New instructions have been sent to %s.", e.Within, e.Email)
}

func stringPtr(value string) *string {
	return &value
}

func stringPtrOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return stringPtr(trimmed)
}

func metadataCopy(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func normalizeIdentifierKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// humanizeDuration renders a validity window the way the mail templates speak:
// "45 minutes", "1 hour", "3 days".
func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0 minutes"
	}
	if d < time.Minute {
		return "less than a minute"
	}
	if d < time.Hour {
		minutes := int(d.Round(time.Minute) / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Round(time.Hour) / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Round(24*time.Hour) / (24 * time.Hour))
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
