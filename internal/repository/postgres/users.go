package postgres

import (
	"context"
	"database/sql"
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

const (
	usersTable           = "accounts.users"
	passwordHistoryTable = "accounts.user_password_history"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"phone",
	"password_hash",
	"password_algo",
	"status",
	"is_active",
	"registered_at",
	"last_login",
	"last_password_change",
}

// UserRepository persists accounts and their password history in PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository builds a repository over a pool or an open transaction.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx scopes the repository to the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

func (r *UserRepository) selectUsers() squirrel.SelectBuilder {
	return r.builder.Select(userColumns...).From(usersTable)
}

// nullableText maps empty strings to NULL so unique indexes on optional
// columns stay usable.
func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Create stores a new account row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var phone string
	if user.Phone != nil {
		phone = *user.Phone
	}

	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			nullableText(user.Email),
			nullableText(phone),
			user.PasswordHash,
			user.PasswordAlgo,
			user.Status,
			user.IsActive,
			user.RegisteredAt,
			user.LastLogin,
			user.LastPasswordChange,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID loads an account by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := r.selectUsers().Where(squirrel.Eq{"id": id})
	return r.fetchUser(ctx, query, "select user")
}

// GetByEmail retrieves a user by email address. Matching ignores case so a
// reset requested with a differently-cased spelling still reaches the account.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := r.selectUsers().
		Where(squirrel.Expr("LOWER(email) = LOWER(?)", email)).
		Limit(1)
	return r.fetchUser(ctx, query, "select user by email")
}

// GetByIdentifier resolves a login identifier, matching username exactly,
// email case-insensitively, and phone exactly.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := r.selectUsers().
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Expr("LOWER(email) = LOWER(?)", identifier),
			squirrel.Eq{"phone": identifier},
		}).
		Limit(1)
	return r.fetchUser(ctx, query, "select user by identifier")
}

func (r *UserRepository) fetchUser(ctx context.Context, query squirrel.SelectBuilder, op string) (*domain.User, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s sql: %w", op, err)
	}

	var (
		user      domain.User
		email     sql.NullString
		phone     sql.NullString
		lastLogin *time.Time
	)

	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.Username,
		&email,
		&phone,
		&user.PasswordHash,
		&user.PasswordAlgo,
		&user.Status,
		&user.IsActive,
		&user.RegisteredAt,
		&lastLogin,
		&user.LastPasswordChange,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.LastLogin = lastLogin
	if email.Valid {
		user.Email = email.String
	}
	if phone.Valid {
		value := phone.String
		user.Phone = &value
	}

	return &user, nil
}

// updateUser executes an update builder and maps zero affected rows to
// repository.ErrNotFound.
func (r *UserRepository) updateUser(ctx context.Context, query squirrel.UpdateBuilder, op string) error {
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

// UpdateStatus moves an account to a new lifecycle status.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	query := r.builder.Update(usersTable).
		Set("status", status).
		Where(squirrel.Eq{"id": id})
	return r.updateUser(ctx, query, "update user status")
}

// UpdatePassword swaps in a new hash and algorithm and stamps the change time.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, passwordAlgo string, changedAt time.Time) error {
	query := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("password_algo", passwordAlgo).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{"id": id})
	return r.updateUser(ctx, query, "update password")
}

// UpdateLastLogin stamps the most recent successful authentication.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := r.builder.Update(usersTable).
		Set("last_login", at).
		Where(squirrel.Eq{"id": id})
	return r.updateUser(ctx, query, "update last login")
}

// ListPasswordHistory returns the newest stored hashes, most recent first,
// for reuse checks during a password change.
func (r *UserRepository) ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.UserPasswordHistory, error) {
	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	query := r.builder.Select("id", "user_id", "password_hash", "set_at").
		From(passwordHistoryTable).
		Where(squirrel.Eq{"user_id": trimmedID}).
		OrderBy("set_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.UserPasswordHistory, 0)
	for rows.Next() {
		var record domain.UserPasswordHistory
		if err := rows.Scan(&record.ID, &record.UserID, &record.PasswordHash, &record.SetAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return history, nil
}

// AddPasswordHistory records a superseded hash so it cannot be reused.
func (r *UserRepository) AddPasswordHistory(ctx context.Context, entry domain.UserPasswordHistory) error {
	userID := strings.TrimSpace(entry.UserID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(entry.PasswordHash) == "" {
		return fmt.Errorf("password hash is required")
	}

	setAt := entry.SetAt
	if setAt.IsZero() {
		setAt = time.Now().UTC()
	}

	query := r.builder.Insert(passwordHistoryTable)
	if entry.ID != "" {
		query = query.Columns("id", "user_id", "password_hash", "set_at").
			Values(entry.ID, userID, entry.PasswordHash, setAt)
	} else {
		query = query.Columns("user_id", "password_hash", "set_at").
			Values(userID, entry.PasswordHash, setAt)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}
	return nil
}

// TrimPasswordHistory drops history beyond the newest maxEntries rows.
func (r *UserRepository) TrimPasswordHistory(ctx context.Context, userID string, maxEntries int) error {
	if maxEntries <= 0 {
		return nil
	}

	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return fmt.Errorf("user id is required")
	}

	stmt := `
		DELETE FROM accounts.user_password_history
		 WHERE user_id = $1
		   AND id NOT IN (
				SELECT id
				  FROM accounts.user_password_history
				 WHERE user_id = $1
				 ORDER BY set_at DESC
				 LIMIT $2
		   )
	`

	if _, err := r.exec.Exec(ctx, stmt, trimmedID, maxEntries); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}
	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
