package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{
			Name:    "accounts",
			Env:     "test",
			BaseURL: "https://accounts.example.com",
		},
		HTTP: config.HTTPSettings{
			ResetPath:            "/reset",
			UsernameRecoveryPath: "/recover-username",
			LoginPath:            "/login",
		},
		Recovery: config.RecoverySettings{
			ResetTTL:                  time.Hour,
			ResetTokenLength:          32,
			SendPasswordChangedNotice: true,
			UsernameRecoveryEnabled:   true,
			PasswordHistoryLimit:      3,
		},
		Security: config.SecuritySettings{
			PasswordMinLength:         8,
			PasswordNormalizationForm: "NFKD",
		},
		JWT: config.JWTSettings{
			Issuer:          "accounts-test",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			SessionTTL:      48 * time.Hour,
		},
		RateLimit: config.RateLimitSettings{
			ResetEmailLimit:       3,
			ResetEmailWindow:      time.Hour,
			ResetIPLimit:          10,
			ResetIPWindow:         time.Hour,
			UsernameRecoveryLimit: 2,
		},
	}
}

func activeUser(id, username, email, passwordHash string) *domain.User {
	return &domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		PasswordAlgo: "argon2id",
		Status:       domain.UserStatusActive,
		IsActive:     true,
		RegisteredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type resetFixture struct {
	cfg      *config.AppConfig
	users    *userRepoStub
	tokens   *tokenRepoStub
	sessions *sessionRepoStub
	mailer   *mailerStub
	events   *eventsStub
	flags    *revocationStoreStub
	versions *versionStoreStub
	svc      *PasswordResetService
	fixed    time.Time
}

func newResetFixture(users ...*domain.User) *resetFixture {
	f := &resetFixture{
		cfg:      testConfig(),
		users:    newUserRepoStub(users...),
		tokens:   newTokenRepoStub(),
		sessions: newSessionRepoStub(),
		mailer:   &mailerStub{},
		events:   &eventsStub{},
		flags:    newRevocationStoreStub(),
		versions: newVersionStoreStub(),
		fixed:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 8})
	f.svc = NewPasswordResetService(f.cfg, f.users, f.tokens, f.mailer, policy, zap.NewNop())
	f.svc.WithClock(func() time.Time { return f.fixed })
	f.svc.WithEventPublisher(f.events)

	manager := NewSessionService(f.sessions, f.tokens, zap.NewNop())
	manager.WithClock(func() time.Time { return f.fixed })
	manager.WithEventPublisher(f.events)
	manager.WithRevocationCache(f.flags, time.Hour)
	manager.WithVersionCache(f.versions, 10*time.Minute)
	f.svc.WithSessionService(manager)

	return f
}

// seedResetToken stores a redeemable token record and returns the raw secret.
func (f *resetFixture) seedResetToken(id, userID string, expiresAt time.Time) string {
	raw := "raw-" + id
	record := domain.PasswordResetToken{
		ID:        id,
		UserID:    userID,
		TokenHash: security.HashToken(raw),
		CreatedAt: f.fixed.Add(-10 * time.Minute),
		ExpiresAt: expiresAt,
	}
	f.tokens.resetsByHash[record.TokenHash] = &record
	return raw
}

func TestPasswordResetService_RequestIssuesTokenAndMails(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)

	res, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{
		Email:     "Casey@Example.COM",
		IP:        "203.0.113.9",
		UserAgent: "cli/1.0",
	})
	if err != nil {
		t.Fatalf("RequestPasswordReset returned error: %v", err)
	}

	if res.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", res.UserID)
	}
	if res.Token == "" {
		t.Fatalf("expected raw token in result")
	}
	if !res.ExpiresAt.Equal(f.fixed.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", f.fixed.Add(time.Hour), res.ExpiresAt)
	}
	if res.MaskedDestination == "" || strings.Contains(res.MaskedDestination, "casey@example.com") {
		t.Fatalf("expected masked destination, got %q", res.MaskedDestination)
	}

	if len(f.tokens.created) != 1 {
		t.Fatalf("expected one stored token, got %d", len(f.tokens.created))
	}
	stored := f.tokens.created[0]
	if stored.TokenHash != security.HashToken(res.Token) {
		t.Fatalf("stored hash does not match issued token")
	}
	if stored.TokenHash == res.Token {
		t.Fatalf("raw token must not be persisted")
	}

	if len(f.mailer.resets) != 1 {
		t.Fatalf("expected one reset email, got %d", len(f.mailer.resets))
	}
	mailMsg := f.mailer.resets[0]
	if mailMsg.To != "casey@example.com" {
		t.Fatalf("expected instructions for casey@example.com, got %s", mailMsg.To)
	}
	if !strings.Contains(mailMsg.Link, res.Token) {
		t.Fatalf("expected link to carry the raw token, got %s", mailMsg.Link)
	}
	if !strings.HasPrefix(mailMsg.Link, "https://accounts.example.com/reset/") {
		t.Fatalf("unexpected link shape: %s", mailMsg.Link)
	}
	if mailMsg.ExpiresIn != "1 hour" {
		t.Fatalf("expected validity text 1 hour, got %s", mailMsg.ExpiresIn)
	}

	if len(f.events.resetRequested) != 1 {
		t.Fatalf("expected one reset_requested event, got %d", len(f.events.resetRequested))
	}
	event := f.events.resetRequested[0]
	if event.UserID != "user-1" || event.DeliveryMethod != "email" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
	if strings.Contains(event.MaskedDestination, "casey@example.com") {
		t.Fatalf("event must not carry the full address: %s", event.MaskedDestination)
	}
}

func TestPasswordResetService_RequestUnknownEmail(t *testing.T) {
	f := newResetFixture()

	_, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "ghost@example.com"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if len(f.mailer.resets) != 0 {
		t.Fatalf("no mail may leave for unknown addresses")
	}
	if len(f.tokens.created) != 0 {
		t.Fatalf("no token may be stored for unknown addresses")
	}
}

func TestPasswordResetService_RequestInvalidEmail(t *testing.T) {
	f := newResetFixture()

	for _, email := range []string{"", "not-an-email", "a@", "@example.com", "Jane Doe <jane@example.com>"} {
		if _, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: email}); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("email %q: expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestPasswordResetService_RequestDisabledAccount(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	user.Status = domain.UserStatusLocked
	f := newResetFixture(user)

	_, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "casey@example.com"})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if len(f.mailer.resets) != 0 {
		t.Fatalf("disabled accounts get no reset mail")
	}
}

func TestPasswordResetService_RequestPendingAccountMayReset(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	user.Status = domain.UserStatusPending
	f := newResetFixture(user)

	if _, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "casey@example.com"}); err != nil {
		t.Fatalf("pending accounts recover; got %v", err)
	}
	if len(f.mailer.resets) != 1 {
		t.Fatalf("expected reset mail for pending account")
	}
}

func TestPasswordResetService_RequestRateLimited(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	f.cfg.RateLimit.ResetEmailLimit = 2
	f.svc.WithRateLimiter(newRateLimitStub())

	for i := 0; i < 2; i++ {
		if _, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "casey@example.com"}); err != nil {
			t.Fatalf("request %d returned error: %v", i+1, err)
		}
	}

	_, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "casey@example.com"})
	var rateErr *RateLimitExceededError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if rateErr.Scope != "password_reset" {
		t.Fatalf("expected scope password_reset, got %s", rateErr.Scope)
	}
	if rateErr.RetryAfter <= 0 || rateErr.RetryAfter > time.Hour {
		t.Fatalf("unexpected RetryAfter %v", rateErr.RetryAfter)
	}
	if len(f.mailer.resets) != 2 {
		t.Fatalf("throttled request must not send mail")
	}
}

func TestPasswordResetService_RequestMailFailure(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	f.mailer.resetErr = errors.New("smtp down")

	_, err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "casey@example.com"})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestPasswordResetService_ConfirmRotatesCredentialAndKillsSessions(t *testing.T) {
	oldHash, err := security.HashPassword("OldPassword1")
	if err != nil {
		t.Fatalf("hash old password: %v", err)
	}
	user := activeUser("user-1", "casey", "casey@example.com", oldHash)
	f := newResetFixture(user)

	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(50*time.Minute))
	f.seedResetToken("reset-2", "user-1", f.fixed.Add(55*time.Minute))

	refreshID := "rt-1"
	f.sessions.byID["sess-1"] = &domain.Session{
		ID: "sess-1", UserID: "user-1", RefreshTokenID: &refreshID,
		Version: 1, CreatedAt: f.fixed.Add(-time.Hour), LastSeen: f.fixed, ExpiresAt: f.fixed.Add(24 * time.Hour),
	}
	f.sessions.byID["sess-2"] = &domain.Session{
		ID: "sess-2", UserID: "user-1",
		Version: 1, CreatedAt: f.fixed.Add(-2 * time.Hour), LastSeen: f.fixed, ExpiresAt: f.fixed.Add(24 * time.Hour),
	}
	f.tokens.refreshByHash["h1"] = &domain.RefreshToken{ID: "rt-1", UserID: "user-1", TokenHash: "h1", ExpiresAt: f.fixed.Add(24 * time.Hour)}
	f.tokens.refreshByHash["h2"] = &domain.RefreshToken{ID: "rt-2", UserID: "user-1", TokenHash: "h2", ExpiresAt: f.fixed.Add(24 * time.Hour)}

	outcome, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{
		Token:           raw,
		NewPassword:     "BrandNewSecret9",
		PasswordConfirm: "BrandNewSecret9",
		IP:              "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("ConfirmPasswordReset returned error: %v", err)
	}

	if outcome.UserID != "user-1" {
		t.Fatalf("expected outcome for user-1, got %s", outcome.UserID)
	}
	if outcome.SessionsRevoked != 2 {
		t.Fatalf("expected 2 sessions revoked, got %d", outcome.SessionsRevoked)
	}
	if outcome.TokensRevoked != 2 {
		t.Fatalf("expected 2 refresh tokens revoked, got %d", outcome.TokensRevoked)
	}
	if !outcome.NotificationSent {
		t.Fatalf("expected changed notice to be sent")
	}

	if f.users.updatedAlgo != "argon2id" || !f.users.updatedAt.Equal(f.fixed) {
		t.Fatalf("unexpected credential update: algo=%s at=%v", f.users.updatedAlgo, f.users.updatedAt)
	}
	match, err := security.VerifyPassword("BrandNewSecret9", f.users.updatedHash)
	if err != nil || !match {
		t.Fatalf("new hash does not verify the new password")
	}

	if len(f.tokens.consumedIDs) != 1 || f.tokens.consumedIDs[0] != "reset-1" {
		t.Fatalf("expected reset-1 consumed, got %v", f.tokens.consumedIDs)
	}
	if f.tokens.userResetsRevoked != 1 {
		t.Fatalf("expected the outstanding token voided, got %d", f.tokens.userResetsRevoked)
	}

	for _, id := range []string{"sess-1", "sess-2"} {
		session := f.sessions.byID[id]
		if session.RevokedAt == nil {
			t.Fatalf("session %s still active after reset", id)
		}
		if session.RevokeReason == nil || *session.RevokeReason != "password_reset" {
			t.Fatalf("session %s carries wrong reason", id)
		}
		if flagged, reason, _ := f.flags.IsSessionRevoked(context.Background(), id); !flagged || reason != "password_reset" {
			t.Fatalf("session %s missing revocation flag", id)
		}
		if version := f.versions.versions[id]; version != 2 {
			t.Fatalf("session %s version not bumped: %d", id, version)
		}
	}

	if len(f.mailer.notices) != 1 || f.mailer.notices[0].To != "casey@example.com" {
		t.Fatalf("expected changed notice to casey@example.com")
	}
	if len(f.events.passwordChanged) != 1 {
		t.Fatalf("expected one password_changed event")
	}
	changed := f.events.passwordChanged[0]
	if changed.SessionsRevoked != 2 || !changed.NotificationSent {
		t.Fatalf("unexpected password_changed payload: %+v", changed)
	}
	if len(f.events.sessionRevoked) != 2 {
		t.Fatalf("expected two session_revoked events, got %d", len(f.events.sessionRevoked))
	}
	if len(f.users.history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(f.users.history))
	}
}

func TestPasswordResetService_ConfirmValidationErrors(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw}); !errors.Is(err, ErrPasswordMissing) {
		t.Fatalf("expected ErrPasswordMissing, got %v", err)
	}
	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{
		Token: raw, NewPassword: "BrandNewSecret9", PasswordConfirm: "SomethingElse9",
	}); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{
		Token: "", NewPassword: "BrandNewSecret9",
	}); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid for empty token, got %v", err)
	}
	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{
		Token: "no-such-token", NewPassword: "BrandNewSecret9",
	}); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid for unknown token, got %v", err)
	}
}

func TestPasswordResetService_ConfirmWeakPasswordKeepsToken(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	_, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "short"})
	var policyErr *security.PasswordValidationError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if !strings.Contains(policyErr.Error(), "Password must be at least 8 characters") {
		t.Fatalf("unexpected policy message: %s", policyErr.Error())
	}
	if len(f.tokens.consumedIDs) != 0 {
		t.Fatalf("a rejected password must not burn the token")
	}

	// The same token still redeems once the password passes policy.
	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "LongEnoughNow1"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestPasswordResetService_ConfirmIsSingleUse(t *testing.T) {
	oldHash, err := security.HashPassword("OldPassword1")
	if err != nil {
		t.Fatalf("hash old password: %v", err)
	}
	user := activeUser("user-1", "casey", "casey@example.com", oldHash)
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "BrandNewSecret9"}); err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "AnotherSecret42"}); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("second redemption must fail with ErrResetTokenInvalid, got %v", err)
	}
}

func TestPasswordResetService_ConfirmLostRaceIsInvalid(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	// Another instance consumed the token between our read and our update.
	f.tokens.consumeErr = repository.ErrNotFound

	_, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "BrandNewSecret9"})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid on lost race, got %v", err)
	}
	if f.users.updatedHash != "" {
		t.Fatalf("the losing confirm must not touch the credential")
	}
}

func TestPasswordResetService_ConfirmExpiredSendsFreshInstructions(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(-time.Minute))

	_, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "BrandNewSecret9"})
	var expiredErr *TokenExpiredError
	if !errors.As(err, &expiredErr) {
		t.Fatalf("expected TokenExpiredError, got %v", err)
	}
	if expiredErr.Within != "1 hour" {
		t.Fatalf("expected validity text 1 hour, got %s", expiredErr.Within)
	}
	if expiredErr.Email != "casey@example.com" {
		t.Fatalf("expected the destination address in the error, got %s", expiredErr.Email)
	}
	if !strings.Contains(expiredErr.Error(), "You did not reset your password within 1 hour.") {
		t.Fatalf("unexpected message: %s", expiredErr.Error())
	}

	if len(f.mailer.resets) != 1 {
		t.Fatalf("expected fresh instructions to be mailed")
	}
	if f.mailer.resets[0].Token == raw {
		t.Fatalf("replacement token must differ from the expired one")
	}
	if len(f.tokens.created) != 1 {
		t.Fatalf("expected a replacement token to be stored")
	}
	if len(f.tokens.consumedIDs) != 0 {
		t.Fatalf("an expired token is reissued, not consumed")
	}
	if f.users.updatedHash != "" {
		t.Fatalf("an expired token must not change the credential")
	}
}

func TestPasswordResetService_ConfirmDisabledOwner(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	user.IsActive = false
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "BrandNewSecret9"}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestPasswordResetService_InspectLeavesTokenRedeemable(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	record, err := f.svc.InspectResetToken(context.Background(), raw, ClientInfo{IP: "198.51.100.7"})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if record.ID != "reset-1" {
		t.Fatalf("expected the seeded record, got %s", record.ID)
	}
	if len(f.tokens.consumedIDs) != 0 {
		t.Fatalf("inspection must not consume the token")
	}

	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "BrandNewSecret9"}); err != nil {
		t.Fatalf("redemption after inspection failed: %v", err)
	}
}

func TestPasswordResetService_InspectExpiredReissues(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(-time.Minute))

	_, err := f.svc.InspectResetToken(context.Background(), raw, ClientInfo{})
	var expiredErr *TokenExpiredError
	if !errors.As(err, &expiredErr) {
		t.Fatalf("expected TokenExpiredError, got %v", err)
	}
	if len(f.mailer.resets) != 1 {
		t.Fatalf("expected fresh instructions to be mailed")
	}

	if _, err := f.svc.InspectResetToken(context.Background(), "no-such-token", ClientInfo{}); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid for unknown token, got %v", err)
	}
}

func TestPasswordResetService_ConfirmRejectsCurrentPassword(t *testing.T) {
	currentHash, err := security.HashPassword("CurrentSecret1")
	if err != nil {
		t.Fatalf("hash current password: %v", err)
	}
	user := activeUser("user-1", "casey", "casey@example.com", currentHash)
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	_, err = f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "CurrentSecret1"})
	if !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused, got %v", err)
	}
	if len(f.tokens.consumedIDs) != 0 {
		t.Fatalf("a rejected reuse must not burn the token")
	}
}

func TestPasswordResetService_ConfirmRejectsHistoricalPassword(t *testing.T) {
	historicalHash, err := security.HashPassword("RetiredSecret1")
	if err != nil {
		t.Fatalf("hash historical password: %v", err)
	}
	user := activeUser("user-1", "casey", "casey@example.com", "unrelated-hash")
	f := newResetFixture(user)
	f.users.history = []domain.UserPasswordHistory{
		{ID: "h1", UserID: "user-1", PasswordHash: historicalHash, SetAt: f.fixed.Add(-24 * time.Hour)},
	}
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "RetiredSecret1"}); !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused from history, got %v", err)
	}
}

func TestPasswordResetService_ConfirmNormalizesUnicode(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	// Composed spelling at reset time; the decomposed spelling must verify
	// against the stored hash after NFKD.
	composed := "p\u00e4ssword123"
	decomposed := "pa\u0308ssword123"

	if _, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: composed}); err != nil {
		t.Fatalf("ConfirmPasswordReset returned error: %v", err)
	}

	match, err := security.VerifyPassword(norm.NFKD.String(decomposed), f.users.updatedHash)
	if err != nil || !match {
		t.Fatalf("decomposed spelling does not verify after normalization")
	}
}

func TestPasswordResetService_ConfirmAutoLogin(t *testing.T) {
	oldHash, err := security.HashPassword("OldPassword1")
	if err != nil {
		t.Fatalf("hash old password: %v", err)
	}
	user := activeUser("user-1", "casey", "casey@example.com", oldHash)
	f := newResetFixture(user)
	f.cfg.Recovery.AutoLoginAfterReset = true
	raw := f.seedResetToken("reset-1", "user-1", f.fixed.Add(time.Hour))

	establisher := &establisherStub{tokens: &AuthTokens{SessionID: "sess-new", AccessToken: "jwt", RefreshToken: "refresh"}}
	f.svc.WithAuthenticator(establisher)

	outcome, err := f.svc.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{Token: raw, NewPassword: "BrandNewSecret9"})
	if err != nil {
		t.Fatalf("ConfirmPasswordReset returned error: %v", err)
	}
	if outcome.Auth == nil || outcome.Auth.SessionID != "sess-new" {
		t.Fatalf("expected auto-login tokens in the outcome")
	}
	if len(establisher.calls) != 1 || establisher.calls[0] != "user-1" {
		t.Fatalf("expected one auto-login for user-1, got %v", establisher.calls)
	}
}

func TestPasswordResetService_InitiateResetSkipsMail(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	f := newResetFixture(user)

	res, err := f.svc.InitiateReset(context.Background(), "casey@example.com")
	if err != nil {
		t.Fatalf("InitiateReset returned error: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected raw token for the development flow")
	}
	if len(f.mailer.resets) != 0 {
		t.Fatalf("InitiateReset must not send mail")
	}
	if len(f.tokens.created) != 1 {
		t.Fatalf("expected the token to be stored")
	}
}

type establisherStub struct {
	calls  []string
	tokens *AuthTokens
	err    error
}

func (m *establisherStub) EstablishSession(_ context.Context, user domain.User, _ ClientInfo) (*AuthTokens, error) {
	m.calls = append(m.calls, user.ID)
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens, nil
}
