package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const (
	passwordResetTable = "accounts.password_reset_tokens"
	refreshTokenTable  = "accounts.refresh_tokens"
)

var passwordResetColumns = []string{
	"id",
	"user_id",
	"token_hash",
	"ip",
	"user_agent",
	"created_at",
	"expires_at",
	"used_at",
	"revoked_at",
	"metadata",
}

var refreshTokenColumns = []string{
	"id",
	"user_id",
	"session_id",
	"token_hash",
	"ip",
	"user_agent",
	"created_at",
	"expires_at",
	"revoked_at",
	"metadata",
}

// TokenRepository persists password reset and refresh tokens. Only hashes
// are stored; plaintext tokens never reach these tables.
type TokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository builds a repository over a pool or an open transaction.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	repo := &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx scopes the repository to the supplied transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// CreatePasswordReset stores a freshly issued reset token.
func (r *TokenRepository) CreatePasswordReset(ctx context.Context, token domain.PasswordResetToken) error {
	metadata, err := marshalMetadata(token.Metadata)
	if err != nil {
		return fmt.Errorf("prepare password reset metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(passwordResetTable).
		Columns(passwordResetColumns...).
		Values(
			token.ID,
			token.UserID,
			token.TokenHash,
			optionalString(token.IP),
			optionalString(token.UserAgent),
			token.CreatedAt,
			token.ExpiresAt,
			optionalTime(token.UsedAt),
			optionalTime(token.RevokedAt),
			metadata,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password reset sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password reset token: %w", err)
	}
	return nil
}

// GetPasswordResetByHash looks up a reset token by the hash of the value
// presented in the link.
func (r *TokenRepository) GetPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.Select(passwordResetColumns...).
		From(passwordResetTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password reset sql: %w", err)
	}

	var (
		token     domain.PasswordResetToken
		ip        sql.NullString
		userAgent sql.NullString
		usedAt    sql.NullTime
		revokedAt sql.NullTime
		metadata  []byte
	)

	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&ip,
		&userAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&usedAt,
		&revokedAt,
		&metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan password reset token: %w", err)
	}

	token.IP = nullableStringPtr(ip)
	token.UserAgent = nullableStringPtr(userAgent)
	token.UsedAt = nullableTimePtr(usedAt)
	token.RevokedAt = nullableTimePtr(revokedAt)
	if token.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, fmt.Errorf("unmarshal password reset metadata: %w", err)
	}

	return &token, nil
}

// execGuarded runs an update that targets exactly one live row; zero rows
// affected means the row is gone, already consumed, or already revoked.
func (r *TokenRepository) execGuarded(ctx context.Context, query squirrel.UpdateBuilder, op string) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", op, err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// execCounted runs a bulk update and reports affected rows; zero is not an error.
func (r *TokenRepository) execCounted(ctx context.Context, query squirrel.UpdateBuilder, op string) (int, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s sql: %w", op, err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(ct.RowsAffected()), nil
}

// ConsumePasswordReset marks a reset token as used. The guard on used_at makes
// consumption single-shot: a concurrent second redeem sees zero rows affected
// and gets ErrNotFound.
func (r *TokenRepository) ConsumePasswordReset(ctx context.Context, id string) error {
	query := r.builder.Update(passwordResetTable).
		Set("used_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Where("used_at IS NULL").
		Where("revoked_at IS NULL")
	return r.execGuarded(ctx, query, "consume password reset token")
}

// RevokePasswordResetsForUser voids every outstanding reset token for the user
// and reports how many were revoked.
func (r *TokenRepository) RevokePasswordResetsForUser(ctx context.Context, userID string) (int, error) {
	query := r.builder.Update(passwordResetTable).
		Set("revoked_at", time.Now().UTC()).
		Where(squirrel.Eq{"user_id": userID}).
		Where("used_at IS NULL").
		Where("revoked_at IS NULL")
	return r.execCounted(ctx, query, "revoke password resets")
}

// CreateRefreshToken stores a refresh token issued at login or rotation.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	metadata, err := marshalMetadata(token.Metadata)
	if err != nil {
		return fmt.Errorf("prepare refresh token metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(refreshTokenTable).
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.UserID,
			optionalString(token.SessionID),
			token.TokenHash,
			optionalString(token.IP),
			optionalString(token.UserAgent),
			token.CreatedAt,
			token.ExpiresAt,
			optionalTime(token.RevokedAt),
			metadata,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenByHash looks up a refresh token by the hash of the
// presented credential.
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From(refreshTokenTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	var (
		token     domain.RefreshToken
		sessionID sql.NullString
		ip        sql.NullString
		userAgent sql.NullString
		revokedAt sql.NullTime
		metadata  []byte
	)

	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&sessionID,
		&token.TokenHash,
		&ip,
		&userAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&revokedAt,
		&metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	token.SessionID = nullableStringPtr(sessionID)
	token.IP = nullableStringPtr(ip)
	token.UserAgent = nullableStringPtr(userAgent)
	token.RevokedAt = nullableTimePtr(revokedAt)
	if token.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, fmt.Errorf("unmarshal refresh metadata: %w", err)
	}

	return &token, nil
}

// RevokeRefreshToken marks a single refresh token as revoked.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, refreshTokenID string) error {
	query := r.builder.Update(refreshTokenTable).
		Set("revoked_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": refreshTokenID}).
		Where("revoked_at IS NULL")
	return r.execGuarded(ctx, query, "revoke refresh token")
}

// RevokeRefreshTokensForUser revokes all active refresh tokens for a user and
// reports how many were touched.
func (r *TokenRepository) RevokeRefreshTokensForUser(ctx context.Context, userID string) (int, error) {
	query := r.builder.Update(refreshTokenTable).
		Set("revoked_at", time.Now().UTC()).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL")
	return r.execCounted(ctx, query, "revoke refresh tokens")
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return payload, nil
}

func unmarshalMetadata(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var meta map[string]any
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
