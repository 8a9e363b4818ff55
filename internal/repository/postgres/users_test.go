package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

func TestUserRepository_GetByEmail_MatchesCaseInsensitively(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	registered := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(userColumns).
		AddRow("user-1", "matt", "Matt@lp.com", nil, "$argon2id$hash", "argon2id",
			domain.UserStatusActive, true, registered, nil, nil)

	mock.ExpectQuery(`LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("matt@LP.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "matt@LP.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("expected user-1, got %q", user.ID)
	}
	if user.Email != "Matt@lp.com" {
		t.Fatalf("expected stored spelling to be preserved, got %q", user.Email)
	}
	if user.Phone != nil {
		t.Fatalf("expected nil phone, got %v", user.Phone)
	}
	if user.LastLogin != nil {
		t.Fatalf("expected nil last login, got %v", user.LastLogin)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`FROM accounts\.users`).
		WithArgs("user-404").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "user-404"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	changedAt := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE accounts\.users`).
		WithArgs("$argon2id$newhash", "argon2id", changedAt, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdatePassword(context.Background(), "user-1", "$argon2id$newhash", "argon2id", changedAt); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdatePassword_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	changedAt := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE accounts\.users`).
		WithArgs("$argon2id$newhash", "argon2id", changedAt, "user-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdatePassword(context.Background(), "user-404", "$argon2id$newhash", "argon2id", changedAt)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ListPasswordHistory_OrdersByRecency(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	newest := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "user_id", "password_hash", "set_at"}).
		AddRow("h-2", "user-1", "$argon2id$hash2", newest).
		AddRow("h-1", "user-1", "$argon2id$hash1", newest.Add(-24*time.Hour))

	mock.ExpectQuery(`FROM accounts\.user_password_history`).
		WithArgs("user-1").
		WillReturnRows(rows)

	history, err := repo.ListPasswordHistory(context.Background(), "user-1", 5)
	if err != nil {
		t.Fatalf("ListPasswordHistory returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].ID != "h-2" {
		t.Fatalf("expected newest entry first, got %q", history[0].ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_TrimPasswordHistory_NoopWithoutLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	if err := repo.TrimPasswordHistory(context.Background(), "user-1", 0); err != nil {
		t.Fatalf("TrimPasswordHistory returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
