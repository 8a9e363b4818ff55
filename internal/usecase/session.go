package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const (
	defaultRevocationFlagTTL = time.Hour
	defaultSessionVersionTTL = 10 * time.Minute

	reasonUserAction    = "user_action"
	reasonPasswordReset = "password_reset"
	reasonLogout        = "logout"
)

// SessionService revokes sessions and keeps the caches that guard access
// tokens in step with the database: the per-session version counter and the
// revocation flag other instances consult on every request.
type SessionService struct {
	sessions port.SessionRepository
	tokens   port.TokenRepository
	events   port.EventPublisher
	logger   *zap.Logger

	revocations   port.SessionRevocationStore
	versions      port.SessionVersionStore
	revocationTTL time.Duration
	versionTTL    time.Duration
	now           func() time.Time
}

func NewSessionService(sessions port.SessionRepository, tokens port.TokenRepository, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:      sessions,
		tokens:        tokens,
		logger:        logger,
		revocationTTL: defaultRevocationFlagTTL,
		versionTTL:    defaultSessionVersionTTL,
		now:           time.Now,
	}
}

// WithClock overrides the time source, primarily for tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithEventPublisher enables session.revoked events on the message bus.
func (s *SessionService) WithEventPublisher(events port.EventPublisher) {
	s.events = events
}

// WithRevocationCache flags revoked sessions in a shared cache so peers reject
// their access tokens without a database round trip. The TTL only needs to
// outlive the longest-lived access token still in flight.
func (s *SessionService) WithRevocationCache(store port.SessionRevocationStore, ttl time.Duration) {
	s.revocations = store
	if ttl > 0 {
		s.revocationTTL = ttl
	}
}

// WithVersionCache propagates version bumps to the shared cache.
func (s *SessionService) WithVersionCache(store port.SessionVersionStore, ttl time.Duration) {
	s.versions = store
	if ttl > 0 {
		s.versionTTL = ttl
	}
}

// ListSessions returns the user's active sessions, most recently seen first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession loads one session and enforces ownership.
func (s *SessionService) GetSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !strings.EqualFold(session.UserID, userID) {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// RevokeSession ends a single session on behalf of its owner and revokes the
// refresh token bound to it.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID, reason, revokedBy string) error {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.RevokedAt != nil {
		return ErrSessionAlreadyRevoked
	}

	normalized := normalizeRevocationReason(reason, reasonUserAction)
	if err := s.sessions.Revoke(ctx, session.ID, normalized); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionAlreadyRevoked
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	tokensRevoked := 0
	if session.RefreshTokenID != nil {
		switch err := s.tokens.RevokeRefreshToken(ctx, *session.RefreshTokenID); {
		case err == nil:
			tokensRevoked = 1
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("revoke session refresh token",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	if revokedBy == "" {
		revokedBy = userID
	}
	s.invalidate(ctx, *session, normalized, revokedBy, tokensRevoked)
	return nil
}

// RevokeAllForUser ends every active session and refresh token the user
// holds, and returns how many of each fell. A password reset calls this
// unconditionally; a session that survives a credential change defeats the
// point of changing it.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID, reason, revokedBy string) (int, int, error) {
	normalized := normalizeRevocationReason(reason, reasonUserAction)

	revoked, err := s.sessions.RevokeAllForUser(ctx, userID, normalized)
	if err != nil {
		return 0, 0, fmt.Errorf("revoke sessions: %w", err)
	}

	tokensRevoked, err := s.tokens.RevokeRefreshTokensForUser(ctx, userID)
	if err != nil {
		return len(revoked), 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if revokedBy == "" {
		revokedBy = userID
	}
	for _, session := range revoked {
		s.invalidate(ctx, session, normalized, revokedBy, tokensRevoked)
	}
	return len(revoked), tokensRevoked, nil
}

// invalidate finishes a revocation: bump the version counter, flag the session
// in the shared cache, and announce it on the bus. The row update preceding
// this call is the source of truth, so failures here are logged, not returned.
func (s *SessionService) invalidate(ctx context.Context, session domain.Session, reason, revokedBy string, tokensRevoked int) {
	version, err := s.sessions.BumpVersion(ctx, session.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("bump session version",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
		version = session.Version + 1
	}

	if s.versions != nil {
		if err := s.versions.SetSessionVersion(ctx, session.ID, version, s.versionTTL); err != nil {
			s.logger.Warn("cache session version",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	if s.revocations != nil {
		if err := s.revocations.MarkSessionRevoked(ctx, session.ID, reason, s.revocationTTL); err != nil {
			s.logger.Warn("flag revoked session",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	if s.events != nil {
		event := domain.SessionRevokedEvent{
			EventID:       uuid.NewString(),
			SessionID:     session.ID,
			UserID:        session.UserID,
			DeviceLabel:   session.DeviceLabel,
			RevokedAt:     s.now().UTC(),
			RevokedBy:     revokedBy,
			Reason:        reason,
			TokensRevoked: tokensRevoked,
			IPAddress:     session.IPLast,
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish session revoked",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}
}

func normalizeRevocationReason(reason, fallback string) string {
	trimmed := strings.ToLower(strings.TrimSpace(reason))
	if trimmed == "" {
		trimmed = fallback
	}
	return strings.ReplaceAll(trimmed, " ", "_")
}
