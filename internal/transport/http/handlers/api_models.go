package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// ErrorResponse is the standard error envelope. FieldErrors is populated only
// for validation failures where the client can repair a specific input.
type ErrorResponse struct {
	Error       string              `json:"error"`
	TraceID     string              `json:"trace_id,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

// NewErrorResponse builds an ErrorResponse enriched with the request trace id.
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	resp := ErrorResponse{Error: message}
	if raw, ok := c.Get("trace_id"); ok {
		if traceID, ok := raw.(string); ok {
			resp.TraceID = traceID
		}
	}
	return resp
}

// MessageResponse carries a single informational message.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the public projection of an account.
type UserSummary struct {
	ID       string  `json:"id"`
	Username string  `json:"username,omitempty"`
	Status   string  `json:"status"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

func newUserSummary(user domain.User) UserSummary {
	summary := UserSummary{
		ID:       user.ID,
		Username: user.Username,
		Status:   string(user.Status),
	}
	if user.Email != "" {
		email := user.Email
		summary.Email = &email
	}
	if user.Phone != nil && *user.Phone != "" {
		phone := *user.Phone
		summary.Phone = &phone
	}
	return summary
}

// AuthLoginRequest is accepted as JSON or as an HTML form post. Next is only
// meaningful for form clients and names the page to return to after login.
type AuthLoginRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
	Next       string `json:"-" form:"next"`
}

// AuthLoginResponse returns the issued token pair with account context.
type AuthLoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	SessionID    string      `json:"session_id"`
	User         UserSummary `json:"user"`
}

// TokenRefreshRequest carries the refresh token being rotated.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRefreshResponse returns the rotated token pair.
type TokenRefreshResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *UserSummary `json:"user,omitempty"`
}

// SessionPayload describes one of the caller's sessions.
type SessionPayload struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	DeviceLabel  *string    `json:"device_label,omitempty"`
	IPFirst      *string    `json:"ip_first,omitempty"`
	IPLast       *string    `json:"ip_last,omitempty"`
	UserAgent    *string    `json:"user_agent,omitempty"`
	Version      int64      `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeen     time.Time  `json:"last_seen"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
	IsCurrent    bool       `json:"is_current,omitempty"`
}

func newSessionPayload(session domain.Session) SessionPayload {
	return SessionPayload{
		ID:           session.ID,
		UserID:       session.UserID,
		DeviceLabel:  session.DeviceLabel,
		IPFirst:      session.IPFirst,
		IPLast:       session.IPLast,
		UserAgent:    session.UserAgent,
		Version:      session.Version,
		CreatedAt:    session.CreatedAt,
		LastSeen:     session.LastSeen,
		ExpiresAt:    session.ExpiresAt,
		RevokedAt:    session.RevokedAt,
		RevokeReason: session.RevokeReason,
	}
}

// SessionListResponse wraps the caller's sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionBulkRevokeResponse reports how much a bulk revocation removed.
type SessionBulkRevokeResponse struct {
	RevokedCount  int `json:"revoked_count"`
	TokensRevoked int `json:"tokens_revoked"`
}

// PasswordResetRequestBody asks for reset instructions by email. Accepted as
// JSON or as an HTML form post.
type PasswordResetRequestBody struct {
	Email string `json:"email" form:"email"`
}

// PasswordResetRequestedResponse acknowledges a reset request. In generic
// mode the message is identical whether or not the account exists; RequestID
// is fabricated for unknown accounts so the shape never differs. DevToken is
// populated only outside production.
type PasswordResetRequestedResponse struct {
	Message   string  `json:"message"`
	RequestID string  `json:"request_id"`
	ExpiresAt *string `json:"expires_at,omitempty"`
	DevToken  *string `json:"dev_token,omitempty"`
}

// PasswordResetConfirmBody redeems a reset token against a new password. The
// token itself travels in the URL path.
type PasswordResetConfirmBody struct {
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

// AuthTokensPayload carries a freshly established session's tokens, used when
// a reset redemption logs the user in automatically.
type AuthTokensPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	SessionID    string `json:"session_id"`
}

func newAuthTokensPayload(tokens usecase.AuthTokens) AuthTokensPayload {
	return AuthTokensPayload{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresInSeconds(tokens.AccessTokenExpiresAt),
		SessionID:    tokens.SessionID,
	}
}

// PasswordResetConfirmedResponse reports a successful redemption. Auth is set
// only when the redemption also established a session.
type PasswordResetConfirmedResponse struct {
	Message         string             `json:"message"`
	SessionsRevoked int                `json:"sessions_revoked"`
	TokensRevoked   int                `json:"tokens_revoked"`
	User            *UserSummary       `json:"user,omitempty"`
	Auth            *AuthTokensPayload `json:"auth,omitempty"`
}

// UsernameRecoveryRequestBody asks for the username reminder email.
type UsernameRecoveryRequestBody struct {
	Email string `json:"email" form:"email"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse reports dependency readiness per check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// JWKSKey is a single JSON Web Key.
type JWKSKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse is the JSON Web Key Set document.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

func expiresInSeconds(expiresAt time.Time) int {
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds())
}
