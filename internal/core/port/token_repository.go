package port

import (
	"context"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

// TokenRepository manages password reset and refresh token records.
type TokenRepository interface {
	CreatePasswordReset(ctx context.Context, token domain.PasswordResetToken) error
	GetPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	ConsumePasswordReset(ctx context.Context, id string) error
	RevokePasswordResetsForUser(ctx context.Context, userID string) (int, error)
	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, refreshTokenID string) error
	RevokeRefreshTokensForUser(ctx context.Context, userID string) (int, error)
}
