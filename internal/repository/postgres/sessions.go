package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"refresh_token_id",
	"device_label",
	"ip_first",
	"ip_last",
	"user_agent",
	"session_version",
	"created_at",
	"last_seen",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	version := session.Version
	if version <= 0 {
		version = 1
	}

	sqlStmt, args, err := r.builder.Insert("accounts.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			optionalString(session.RefreshTokenID),
			optionalString(session.DeviceLabel),
			optionalString(session.IPFirst),
			optionalString(session.IPLast),
			optionalString(session.UserAgent),
			version,
			session.CreatedAt,
			session.LastSeen,
			session.ExpiresAt,
			optionalTime(session.RevokedAt),
			optionalString(session.RevokeReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID fetches a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("accounts.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// ListActiveByUser retrieves non-revoked, non-expired sessions ordered by last activity.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("accounts.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": time.Now().UTC()}).
		OrderBy("last_seen DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Touch refreshes last_seen, ip metadata, and user agent when activity is detected.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, ip *string, userAgent *string) error {
	now := time.Now().UTC()
	ipValue := optionalString(ip)
	userAgentValue := optionalString(userAgent)

	stmt := `
        UPDATE accounts.sessions
           SET last_seen = $2,
               ip_last = CASE WHEN $3::inet IS NULL THEN ip_last ELSE $3::inet END,
               ip_first = CASE WHEN $3::inet IS NULL THEN ip_first ELSE COALESCE(ip_first, $3::inet) END,
               user_agent = CASE WHEN $4::text IS NULL OR $4::text = '' THEN user_agent ELSE $4::text END
         WHERE id = $1
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, now, ipValue, userAgentValue)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Revoke marks the session as revoked. Already-revoked sessions are left untouched.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, reason string) error {
	stmt := `
        UPDATE accounts.sessions
           SET revoked_at = now(),
               revoke_reason = $2
         WHERE id = $1
           AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, normalizeReason(reason, "manual_revoke"))
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeAllForUser revokes every active session for the user and returns the
// sessions that changed state, so callers can invalidate whatever was issued
// against them.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, reason string) ([]domain.Session, error) {
	stmt := fmt.Sprintf(`
        UPDATE accounts.sessions
           SET revoked_at = now(),
               revoke_reason = $2
         WHERE user_id = $1
           AND revoked_at IS NULL
     RETURNING %s
    `, strings.Join(sessionColumns, ", "))

	rows, err := r.exec.Query(ctx, stmt, userID, normalizeReason(reason, "global_signout"))
	if err != nil {
		return nil, fmt.Errorf("revoke sessions for user: %w", err)
	}
	defer rows.Close()

	revoked := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revoked session: %w", err)
		}
		revoked = append(revoked, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked sessions: %w", err)
	}

	return revoked, nil
}

// BumpVersion atomically increments the session version counter and returns
// the new value. Tokens carrying an older version no longer verify.
func (r *SessionRepository) BumpVersion(ctx context.Context, sessionID string) (int64, error) {
	var version int64
	stmt := `
        UPDATE accounts.sessions
           SET session_version = session_version + 1
         WHERE id = $1
     RETURNING session_version
    `

	if err := r.exec.QueryRow(ctx, stmt, sessionID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("bump session version: %w", err)
	}

	return version, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session        domain.Session
		refreshTokenID sql.NullString
		deviceLabel    sql.NullString
		ipFirst        sql.NullString
		ipLast         sql.NullString
		userAgent      sql.NullString
		revokedAt      sql.NullTime
		revokeReason   sql.NullString
	)

	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&refreshTokenID,
		&deviceLabel,
		&ipFirst,
		&ipLast,
		&userAgent,
		&session.Version,
		&session.CreatedAt,
		&session.LastSeen,
		&session.ExpiresAt,
		&revokedAt,
		&revokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	session.RefreshTokenID = nullableStringPtr(refreshTokenID)
	session.DeviceLabel = nullableStringPtr(deviceLabel)
	session.IPFirst = nullableStringPtr(ipFirst)
	session.IPLast = nullableStringPtr(ipLast)
	session.UserAgent = nullableStringPtr(userAgent)
	session.RevokedAt = nullableTimePtr(revokedAt)
	session.RevokeReason = nullableStringPtr(revokeReason)

	return &session, nil
}

func normalizeReason(candidate string, fallback string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

var _ port.SessionRepository = (*SessionRepository)(nil)
