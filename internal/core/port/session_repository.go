package port

import (
	"context"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Touch(ctx context.Context, sessionID string, ip *string, userAgent *string) error
	Revoke(ctx context.Context, sessionID string, reason string) error
	RevokeAllForUser(ctx context.Context, userID string, reason string) ([]domain.Session, error)
	BumpVersion(ctx context.Context, sessionID string) (int64, error)
}
