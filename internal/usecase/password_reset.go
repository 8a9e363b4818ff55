package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/infra/telemetry"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const (
	resetDeliveryEmail = "email"

	defaultResetTTL               = time.Hour
	defaultResetTokenLength       = 32
	defaultPasswordHistoryEntries = 5
	defaultResetEmailLimit        = 3
	defaultResetIPLimit           = 10
	defaultRateLimitWindow        = time.Hour

	passwordAlgoArgon2id = "argon2id"

	resetTriggerUserRequest = "user_request"
	resetTriggerExpired     = "expired_resend"
	resetTriggerManual      = "manual"
)

// SessionEstablisher signs a user in without re-checking credentials. The
// reset flow uses it for post-reset auto-login; AuthService implements it.
type SessionEstablisher interface {
	EstablishSession(ctx context.Context, user domain.User, client ClientInfo) (*AuthTokens, error)
}

// ClientInfo carries per-request network attribution into the usecases.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// PasswordResetRequest asks for reset instructions to be mailed.
type PasswordResetRequest struct {
	Email     string
	IP        string
	UserAgent string
}

// PasswordResetRequestResult reports an issued token. Token holds the raw
// secret; handlers expose it only in development builds, everywhere else it
// travels exclusively inside the email.
type PasswordResetRequestResult struct {
	UserID            string
	RequestID         string
	Token             string
	ExpiresAt         time.Time
	MaskedDestination string
}

// PasswordResetConfirm redeems a reset token against a new password.
type PasswordResetConfirm struct {
	Token            string
	NewPassword      string
	PasswordConfirm  string
	IncludeAuthToken bool
	IP               string
	UserAgent        string
}

// PasswordResetOutcome summarises a completed reset. Auth is non-nil when
// auto-login ran and carries the freshly issued token pair.
type PasswordResetOutcome struct {
	UserID           string
	Email            string
	User             domain.User
	SessionsRevoked  int
	TokensRevoked    int
	NotificationSent bool
	Auth             *AuthTokens
}

// PasswordResetService issues single-use reset tokens, redeems them against a
// new credential, and tears down every session the old credential opened.
type PasswordResetService struct {
	cfg           *config.AppConfig
	users         port.UserRepository
	tokens        port.TokenRepository
	mailer        port.Mailer
	policy        port.PasswordPolicyValidator
	rateLimits    port.RateLimitStore
	events        port.EventPublisher
	sessions      *SessionService
	authenticator SessionEstablisher
	metrics       *telemetry.Provider
	logger        *zap.Logger

	now          func() time.Time
	resetTTL     time.Duration
	tokenLength  int
	historyLimit int
}

func NewPasswordResetService(cfg *config.AppConfig, users port.UserRepository, tokens port.TokenRepository, mailer port.Mailer, policy port.PasswordPolicyValidator, log *zap.Logger) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &PasswordResetService{
		cfg:          cfg,
		users:        users,
		tokens:       tokens,
		mailer:       mailer,
		policy:       policy,
		logger:       log,
		now:          time.Now,
		resetTTL:     defaultResetTTL,
		tokenLength:  defaultResetTokenLength,
		historyLimit: defaultPasswordHistoryEntries,
	}
	if cfg != nil {
		if cfg.Recovery.ResetTTL > 0 {
			service.resetTTL = cfg.Recovery.ResetTTL
		}
		if cfg.Recovery.ResetTokenLength > 0 {
			service.tokenLength = cfg.Recovery.ResetTokenLength
		}
		if cfg.Recovery.PasswordHistoryLimit > 0 {
			service.historyLimit = cfg.Recovery.PasswordHistoryLimit
		}
	}
	return service
}

// WithClock overrides the time source, primarily for tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithRateLimiter enables sliding-window limits per address and per client IP.
func (s *PasswordResetService) WithRateLimiter(store port.RateLimitStore) {
	s.rateLimits = store
}

// WithEventPublisher enables reset lifecycle events on the message bus.
func (s *PasswordResetService) WithEventPublisher(events port.EventPublisher) {
	s.events = events
}

// WithSessionService wires the session teardown a completed reset triggers.
func (s *PasswordResetService) WithSessionService(sessions *SessionService) {
	s.sessions = sessions
}

// WithAuthenticator enables post-reset auto-login.
func (s *PasswordResetService) WithAuthenticator(auth SessionEstablisher) {
	s.authenticator = auth
}

// WithMetrics enables reset counters.
func (s *PasswordResetService) WithMetrics(provider *telemetry.Provider) {
	s.metrics = provider
}

// WithTTL overrides the token validity window.
func (s *PasswordResetService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.resetTTL = ttl
	}
}

// WithHistoryLimit overrides how many prior hashes the reuse check consults.
func (s *PasswordResetService) WithHistoryLimit(limit int) {
	if limit >= 0 {
		s.historyLimit = limit
	}
}

// RequestPasswordReset issues a reset token for the account behind email and
// mails the instructions. Callers decide how much of the returned detail to
// expose; in generic mode the HTTP layer answers identically whether this
// succeeds or returns ErrUserNotFound.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (*PasswordResetRequestResult, error) {
	email := security.CanonicalizeEmail(req.Email)
	if !validEmailAddress(email) {
		return nil, ErrInvalidEmail
	}

	now := s.now().UTC()
	key := passwordResetRateLimitScope + ":email:" + normalizeIdentifierKey(email)
	if err := enforceSlidingLimit(ctx, s.rateLimits, s.logger, now, passwordResetRateLimitScope, key, s.emailLimit(), s.emailWindow()); err != nil {
		return nil, err
	}
	if ip := strings.TrimSpace(req.IP); ip != "" {
		key := passwordResetRateLimitScope + ":ip:" + ip
		if err := enforceSlidingLimit(ctx, s.rateLimits, s.logger, now, passwordResetRateLimitScope, key, s.ipLimit(), s.ipWindow()); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user by email: %w", err)
	}
	if !user.CanRecover() {
		return nil, ErrAccountDisabled
	}

	issued, err := s.issueResetToken(ctx, user, req.IP, req.UserAgent, resetTriggerUserRequest)
	if err != nil {
		return nil, err
	}
	if err := s.deliverResetMail(ctx, user.Email, issued); err != nil {
		return nil, err
	}

	s.publishResetRequested(ctx, user, issued, req.IP)
	if s.metrics != nil {
		s.metrics.ObserveResetRequested()
	}
	s.logger.Info("password reset requested",
		zap.String("user_id", user.ID),
		zap.String("request_id", issued.record.ID),
		zap.String("destination", logger.MaskEmail(user.Email)))

	return &PasswordResetRequestResult{
		UserID:            user.ID,
		RequestID:         issued.record.ID,
		Token:             issued.raw,
		ExpiresAt:         issued.record.ExpiresAt,
		MaskedDestination: logger.MaskEmail(user.Email),
	}, nil
}

// InitiateReset issues a reset token without mailing it. It backs the
// development-only endpoint and integration tests that need the raw token.
func (s *PasswordResetService) InitiateReset(ctx context.Context, email string) (*PasswordResetRequestResult, error) {
	canonical := security.CanonicalizeEmail(email)
	if !validEmailAddress(canonical) {
		return nil, ErrInvalidEmail
	}

	user, err := s.users.GetByEmail(ctx, canonical)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user by email: %w", err)
	}
	if !user.CanRecover() {
		return nil, ErrAccountDisabled
	}

	issued, err := s.issueResetToken(ctx, user, "", "", resetTriggerManual)
	if err != nil {
		return nil, err
	}

	return &PasswordResetRequestResult{
		UserID:            user.ID,
		RequestID:         issued.record.ID,
		Token:             issued.raw,
		ExpiresAt:         issued.record.ExpiresAt,
		MaskedDestination: logger.MaskEmail(user.Email),
	}, nil
}

// ConfirmPasswordReset redeems a token against a new password. On success the
// account's sessions and refresh tokens are gone, outstanding reset tokens are
// void, and the change is announced on the bus. An expired token triggers an
// automatic resend and surfaces as *TokenExpiredError.
func (s *PasswordResetService) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirm) (*PasswordResetOutcome, error) {
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		s.rejectReset("missing_token")
		return nil, ErrResetTokenInvalid
	}
	if req.NewPassword == "" {
		return nil, ErrPasswordMissing
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.NewPassword {
		return nil, ErrPasswordMismatch
	}

	record, err := s.tokens.GetPasswordResetByHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.rejectReset("invalid_token")
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("load reset token: %w", err)
	}
	if record.UsedAt != nil || record.RevokedAt != nil {
		s.rejectReset("reused_token")
		return nil, ErrResetTokenInvalid
	}

	now := s.now().UTC()
	// Expiry comes before any account-status verdict so an expired link never
	// doubles as an account probe.
	if record.IsExpired(now) {
		return nil, s.expireAndReissue(ctx, record, req)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.rejectReset("orphaned_token")
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	if !user.CanRecover() {
		s.rejectReset("account_disabled")
		return nil, ErrAccountDisabled
	}

	normalized := security.NormalizePassword(s.normalizationForm(), req.NewPassword)
	phone := ""
	if user.Phone != nil {
		phone = *user.Phone
	}
	if err := s.policy.Validate(normalized, domain.PasswordContext{
		Username: user.Username,
		Email:    user.Email,
		Phone:    phone,
	}); err != nil {
		s.rejectReset("weak_password")
		return nil, err
	}
	if err := s.rejectPasswordReuse(ctx, user, normalized); err != nil {
		return nil, err
	}

	// Consume before applying anything. The repository guards the update on
	// used_at, so of two concurrent confirms exactly one proceeds past here.
	if err := s.tokens.ConsumePasswordReset(ctx, record.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.rejectReset("concurrent_use")
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.applyNewPassword(ctx, user, normalized, now); err != nil {
		return nil, err
	}

	if _, err := s.tokens.RevokePasswordResetsForUser(ctx, user.ID); err != nil {
		s.logger.Warn("revoke outstanding reset tokens",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	outcome := &PasswordResetOutcome{UserID: user.ID, Email: user.Email, User: *user}
	outcome.User.PasswordHash = ""
	if s.sessions != nil {
		sessionsRevoked, tokensRevoked, err := s.sessions.RevokeAllForUser(ctx, user.ID, reasonPasswordReset, user.ID)
		if err != nil {
			return nil, fmt.Errorf("invalidate sessions: %w", err)
		}
		outcome.SessionsRevoked = sessionsRevoked
		outcome.TokensRevoked = tokensRevoked
	}

	outcome.NotificationSent = s.sendChangedNotice(ctx, user.Email)
	s.publishPasswordChanged(ctx, user.ID, now, outcome.SessionsRevoked, outcome.NotificationSent)
	if s.metrics != nil {
		s.metrics.ObserveResetCompleted()
	}
	s.logger.Info("password reset completed",
		zap.String("user_id", user.ID),
		zap.Int("sessions_revoked", outcome.SessionsRevoked),
		zap.Int("tokens_revoked", outcome.TokensRevoked))

	if s.authenticator != nil && (s.autoLogin() || req.IncludeAuthToken) {
		auth, err := s.authenticator.EstablishSession(ctx, *user, ClientInfo{IP: req.IP, UserAgent: req.UserAgent})
		if err != nil {
			s.logger.Warn("auto login after reset",
				zap.String("user_id", user.ID),
				zap.Error(err))
		} else {
			outcome.Auth = auth
		}
	}

	return outcome, nil
}

// InspectResetToken reports whether a raw token is still redeemable without
// consuming it. It backs the browser landing page, so an expired token
// triggers the same automatic resend a redemption attempt would.
func (s *PasswordResetService) InspectResetToken(ctx context.Context, raw string, client ClientInfo) (*domain.PasswordResetToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		s.rejectReset("missing_token")
		return nil, ErrResetTokenInvalid
	}

	record, err := s.tokens.GetPasswordResetByHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.rejectReset("invalid_token")
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("load reset token: %w", err)
	}
	if record.UsedAt != nil || record.RevokedAt != nil {
		s.rejectReset("reused_token")
		return nil, ErrResetTokenInvalid
	}
	if record.IsExpired(s.now().UTC()) {
		return nil, s.expireAndReissue(ctx, record, PasswordResetConfirm{IP: client.IP, UserAgent: client.UserAgent})
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.rejectReset("orphaned_token")
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	if !user.CanRecover() {
		s.rejectReset("account_disabled")
		return nil, ErrAccountDisabled
	}

	return record, nil
}

type issuedResetToken struct {
	record domain.PasswordResetToken
	raw    string
}

func (s *PasswordResetService) issueResetToken(ctx context.Context, user *domain.User, ip, userAgent, trigger string) (*issuedResetToken, error) {
	raw, err := security.GenerateSecureToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	record := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		IP:        stringPtrOrNil(ip),
		UserAgent: stringPtrOrNil(userAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
		Metadata: map[string]any{
			"delivery": resetDeliveryEmail,
			"trigger":  trigger,
		},
	}
	if err := s.tokens.CreatePasswordReset(ctx, record); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}
	return &issuedResetToken{record: record, raw: raw}, nil
}

func (s *PasswordResetService) deliverResetMail(ctx context.Context, to string, issued *issuedResetToken) error {
	if s.mailer == nil {
		return ErrDeliveryFailed
	}
	msg := port.PasswordResetEmail{
		To:        to,
		Link:      s.resetLink(issued.raw),
		Token:     issued.raw,
		ExpiresIn: humanizeDuration(s.resetTTL),
	}
	if err := s.mailer.SendPasswordReset(ctx, msg); err != nil {
		s.logger.Error("send reset instructions",
			zap.String("destination", logger.MaskEmail(to)),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// expireAndReissue handles a token presented after its window: issue a fresh
// one, mail new instructions, and report the expiry. The returned error is
// *TokenExpiredError unless the account itself can no longer recover.
func (s *PasswordResetService) expireAndReissue(ctx context.Context, record *domain.PasswordResetToken, req PasswordResetConfirm) error {
	s.rejectReset("expired_token")

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("load token owner: %w", err)
	}
	if !user.CanRecover() {
		return ErrAccountDisabled
	}

	issued, err := s.issueResetToken(ctx, user, req.IP, req.UserAgent, resetTriggerExpired)
	if err != nil {
		return err
	}
	if err := s.deliverResetMail(ctx, user.Email, issued); err != nil {
		return err
	}
	s.publishResetRequested(ctx, user, issued, req.IP)

	return &TokenExpiredError{Within: humanizeDuration(s.resetTTL), Email: user.Email}
}

func (s *PasswordResetService) rejectPasswordReuse(ctx context.Context, user *domain.User, normalized string) error {
	if user.PasswordHash != "" {
		same, err := security.VerifyPassword(normalized, user.PasswordHash)
		if err == nil && same {
			s.rejectReset("password_reused")
			return ErrPasswordReused
		}
	}
	if s.historyLimit <= 0 {
		return nil
	}

	history, err := s.users.ListPasswordHistory(ctx, user.ID, s.historyLimit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load password history: %w", err)
	}
	for _, entry := range history {
		match, err := security.VerifyPassword(normalized, entry.PasswordHash)
		if err != nil {
			continue
		}
		if match {
			s.rejectReset("password_reused")
			return ErrPasswordReused
		}
	}
	return nil
}

func (s *PasswordResetService) applyNewPassword(ctx context.Context, user *domain.User, normalized string, now time.Time) error {
	hash, err := security.HashPassword(normalized)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, passwordAlgoArgon2id, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	entry := domain.UserPasswordHistory{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		PasswordHash: hash,
		SetAt:        now,
	}
	if err := s.users.AddPasswordHistory(ctx, entry); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("store password history: %w", err)
	}
	if s.historyLimit > 0 {
		if err := s.users.TrimPasswordHistory(ctx, user.ID, s.historyLimit); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("trim password history: %w", err)
		}
	}

	user.PasswordHash = hash
	changedAt := now
	user.LastPasswordChange = &changedAt
	return nil
}

func (s *PasswordResetService) sendChangedNotice(ctx context.Context, to string) bool {
	if s.mailer == nil {
		return false
	}
	if s.cfg != nil && !s.cfg.Recovery.SendPasswordChangedNotice {
		return false
	}
	if err := s.mailer.SendPasswordChangedNotice(ctx, port.PasswordChangedEmail{To: to}); err != nil {
		s.logger.Warn("send password changed notice",
			zap.String("destination", logger.MaskEmail(to)),
			zap.Error(err))
		return false
	}
	return true
}

func (s *PasswordResetService) publishResetRequested(ctx context.Context, user *domain.User, issued *issuedResetToken, ip string) {
	if s.events == nil {
		return
	}
	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestID:         issued.record.ID,
		RequestedAt:       issued.record.CreatedAt,
		DeliveryMethod:    resetDeliveryEmail,
		MaskedDestination: logger.MaskEmail(user.Email),
		IPAddress:         stringPtrOrNil(ip),
		ExpiresAt:         issued.record.ExpiresAt,
		Metadata:          metadataCopy(issued.record.Metadata),
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID string, changedAt time.Time, sessionsRevoked int, notified bool) {
	if s.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:          uuid.NewString(),
		UserID:           userID,
		ChangedAt:        changedAt,
		ChangedBy:        reasonPasswordReset,
		SessionsRevoked:  sessionsRevoked,
		NotificationSent: notified,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *PasswordResetService) rejectReset(reason string) {
	if s.metrics != nil {
		s.metrics.ObserveResetRejected(reason)
	}
}

// resetLink renders the URL emailed to the account holder. With a SPA
// configured the link targets the front end; otherwise it points at the
// built-in reset page under the configured path.
func (s *PasswordResetService) resetLink(token string) string {
	if s.cfg == nil {
		return ""
	}
	if s.cfg.SPA.Enabled {
		scheme := s.cfg.SPA.RedirectScheme
		if scheme == "" {
			scheme = "https"
		}
		view := url.URL{
			Scheme:   scheme,
			Host:     s.cfg.SPA.RedirectHost,
			Path:     s.cfg.SPA.ResetView,
			RawQuery: url.Values{"token": {token}}.Encode(),
		}
		return view.String()
	}

	base := strings.TrimRight(s.cfg.App.BaseURL, "/")
	resetPath := s.cfg.HTTP.ResetPath
	if resetPath == "" {
		resetPath = "/reset"
	}
	return base + strings.TrimRight(resetPath, "/") + "/" + url.PathEscape(token)
}

func (s *PasswordResetService) normalizationForm() string {
	if s.cfg != nil && s.cfg.Security.PasswordNormalizationForm != "" {
		return s.cfg.Security.PasswordNormalizationForm
	}
	return "NFKD"
}

func (s *PasswordResetService) autoLogin() bool {
	return s.cfg != nil && s.cfg.Recovery.AutoLoginAfterReset
}

func (s *PasswordResetService) emailLimit() int {
	if s.cfg != nil && s.cfg.RateLimit.ResetEmailLimit > 0 {
		return s.cfg.RateLimit.ResetEmailLimit
	}
	return defaultResetEmailLimit
}

func (s *PasswordResetService) emailWindow() time.Duration {
	if s.cfg != nil && s.cfg.RateLimit.ResetEmailWindow > 0 {
		return s.cfg.RateLimit.ResetEmailWindow
	}
	return defaultRateLimitWindow
}

func (s *PasswordResetService) ipLimit() int {
	if s.cfg != nil && s.cfg.RateLimit.ResetIPLimit > 0 {
		return s.cfg.RateLimit.ResetIPLimit
	}
	return defaultResetIPLimit
}

func (s *PasswordResetService) ipWindow() time.Duration {
	if s.cfg != nil && s.cfg.RateLimit.ResetIPWindow > 0 {
		return s.cfg.RateLimit.ResetIPWindow
	}
	return defaultRateLimitWindow
}

// validEmailAddress applies a light syntax check: one parseable address with
// no display name and a non-empty domain part.
func validEmailAddress(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1
}
