package port

import "context"

// PasswordResetEmail carries everything the reset-instructions template needs.
type PasswordResetEmail struct {
	To        string
	Link      string
	Token     string
	ExpiresIn string
}

// PasswordChangedEmail is the notice delivered after a successful reset.
type PasswordChangedEmail struct {
	To string
}

// UsernameRecoveryEmail reminds the account holder of their username.
type UsernameRecoveryEmail struct {
	To       string
	Username string
}

// Mailer delivers account-recovery email. Implementations must reject
// addresses or subjects containing header-injection sequences.
type Mailer interface {
	SendPasswordReset(ctx context.Context, msg PasswordResetEmail) error
	SendPasswordChangedNotice(ctx context.Context, msg PasswordChangedEmail) error
	SendUsernameRecovery(ctx context.Context, msg UsernameRecoveryEmail) error
}
