package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const (
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultSessionTTL      = 30 * 24 * time.Hour
	refreshTokenByteLength = 32
)

// AuthTokens is the access/refresh pair bound to one session.
type AuthTokens struct {
	SessionID             string
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// LoginInput carries a password login attempt.
type LoginInput struct {
	Identifier string
	Password   string
	IP         string
	UserAgent  string
}

// LoginResult carries the sanitized account and its new token pair.
type LoginResult struct {
	User   domain.User
	Tokens AuthTokens
}

// LogoutInput identifies the session and the presented access token to kill.
type LogoutInput struct {
	UserID       string
	SessionID    string
	JTI          string
	TokenExpires time.Time
	Reason       string
}

// AuthService authenticates users, issues and validates the session-bound
// token pair, and tears tokens down on logout.
type AuthService struct {
	cfg         *config.AppConfig
	users       port.UserRepository
	tokens      port.TokenRepository
	sessions    port.SessionRepository
	manager     *SessionService
	jwtManager  *security.JWTManager
	tokenGen    *security.TokenGenerator
	denylist    port.JTIDenylist
	revocations port.SessionRevocationStore
	versions    port.SessionVersionStore
	rateLimits  port.RateLimitStore
	events      port.EventPublisher
	degradation domain.DegradationPolicy
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(cfg *config.AppConfig, users port.UserRepository, tokens port.TokenRepository, sessions port.SessionRepository, manager *SessionService, jwtManager *security.JWTManager, tokenGen *security.TokenGenerator, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &AuthService{
		cfg:        cfg,
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		manager:    manager,
		jwtManager: jwtManager,
		tokenGen:   tokenGen,
		logger:     log,
		now:        time.Now,
	}
	if cfg != nil {
		service.degradation = domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Recovery.RevocationDegradationPolicy))
	}
	return service
}

// WithClock overrides the time source, primarily for tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithJTIDenylist enables per-token revocation checks.
func (s *AuthService) WithJTIDenylist(denylist port.JTIDenylist) {
	s.denylist = denylist
}

// WithRevocationCache enables the session revocation flag check.
func (s *AuthService) WithRevocationCache(store port.SessionRevocationStore) {
	s.revocations = store
}

// WithVersionCache consults the shared version counter before the database.
func (s *AuthService) WithVersionCache(store port.SessionVersionStore) {
	s.versions = store
}

// WithRateLimiter throttles login attempts per identifier and per client IP.
func (s *AuthService) WithRateLimiter(store port.RateLimitStore) {
	s.rateLimits = store
}

// WithEventPublisher enables token.revoked events on logout.
func (s *AuthService) WithEventPublisher(events port.EventPublisher) {
	s.events = events
}

// WithDegradationPolicy overrides how validation behaves when revocation
// caches are unreachable.
func (s *AuthService) WithDegradationPolicy(policy domain.DegradationPolicy) {
	s.degradation = policy
}

// Authenticate verifies an identifier/password pair and opens a session.
// Unknown identifiers burn the same hashing cost as real ones so response
// timing does not reveal which accounts exist.
func (s *AuthService) Authenticate(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if strings.Contains(identifier, "@") {
		identifier = security.CanonicalizeEmail(identifier)
	}

	now := s.now().UTC()
	key := loginRateLimitScope + ":id:" + normalizeIdentifierKey(identifier)
	if err := enforceSlidingLimit(ctx, s.rateLimits, s.logger, now, loginRateLimitScope, key, s.loginLimit(), s.loginWindow()); err != nil {
		return nil, err
	}
	if ip := strings.TrimSpace(input.IP); ip != "" {
		key := loginRateLimitScope + ":ip:" + ip
		if err := enforceSlidingLimit(ctx, s.rateLimits, s.logger, now, loginRateLimitScope, key, s.loginLimit(), s.loginWindow()); err != nil {
			return nil, err
		}
	}

	normalized := security.NormalizePassword(s.normalizationForm(), input.Password)

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			security.DummyVerify(normalized)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.HasUsablePassword() {
		security.DummyVerify(normalized)
		return nil, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(normalized, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if user.IsDisabled() {
		return nil, ErrAccountDisabled
	}
	if user.Status == domain.UserStatusPending {
		return nil, ErrAccountPending
	}

	tokens, err := s.EstablishSession(ctx, *user, ClientInfo{IP: input.IP, UserAgent: input.UserAgent})
	if err != nil {
		return nil, err
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &LoginResult{User: sanitized, Tokens: *tokens}, nil
}

// EstablishSession opens a session for an already-authenticated user and
// issues the access/refresh pair bound to it. The reset flow calls this for
// post-reset auto-login.
func (s *AuthService) EstablishSession(ctx context.Context, user domain.User, client ClientInfo) (*AuthTokens, error) {
	now := s.now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IPFirst:   stringPtrOrNil(client.IP),
		IPLast:    stringPtrOrNil(client.IP),
		UserAgent: stringPtrOrNil(client.UserAgent),
		Version:   1,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(s.sessionTTL()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	access, accessExpiry, err := s.issueAccessToken(user.ID, session.ID, session.Version, now)
	if err != nil {
		return nil, err
	}
	refresh, refreshRecord, err := s.issueRefreshToken(ctx, user.ID, session.ID, client, now)
	if err != nil {
		return nil, err
	}

	if s.versions != nil {
		if err := s.versions.SetSessionVersion(ctx, session.ID, session.Version, s.versionTTL()); err != nil {
			s.logger.Debug("warm session version cache",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("update last login",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	return &AuthTokens{
		SessionID:             session.ID,
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshRecord.ExpiresAt,
	}, nil
}

// ParseAccessToken verifies signature, issuer, audience, and lifetime. It
// performs no revocation checks; pair it with ValidateAccess.
func (s *AuthService) ParseAccessToken(tokenString string) (*security.AccessTokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &security.AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, security.ErrKeyIDMissing
		}
		return s.jwtManager.GetVerificationKey(kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer()),
		jwt.WithAudience(s.audience()),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// ValidateAccess layers the revocation checks a signature cannot carry: the
// JTI denylist, the session revocation flag, and the session version counter.
// A token minted before the session's current version no longer verifies.
func (s *AuthService) ValidateAccess(ctx context.Context, claims *security.AccessTokenClaims) error {
	if claims == nil {
		return ErrInvalidAccessToken
	}

	if s.denylist != nil && claims.ID != "" {
		denied, err := s.denylist.IsDenied(ctx, claims.ID)
		switch {
		case err != nil:
			if !s.degradation.Allow(domain.DegradationReasonRevocationCacheUnavailable) {
				return ErrSessionRevoked
			}
			s.logger.Warn("jti denylist unavailable", zap.Error(err))
		case denied:
			return ErrSessionRevoked
		}
	}

	if s.revocations != nil && claims.SessionID != "" {
		revoked, reason, err := s.revocations.IsSessionRevoked(ctx, claims.SessionID)
		switch {
		case err != nil:
			if !s.degradation.Allow(domain.DegradationReasonRevocationCacheUnavailable) {
				return ErrSessionRevoked
			}
			s.logger.Warn("session revocation cache unavailable", zap.Error(err))
		case revoked:
			s.logger.Debug("rejected token for flagged session",
				zap.String("session_id", claims.SessionID),
				zap.String("reason", reason))
			return ErrSessionRevoked
		}
	}

	version, err := s.currentSessionVersion(ctx, claims.SessionID)
	if err != nil {
		return err
	}
	if claims.SessionVersion < version {
		return ErrSessionRevoked
	}
	return nil
}

// RefreshAccessToken rotates a refresh token: the presented one is revoked
// and a new pair is issued inside the same session, so device history and the
// version counter survive the exchange.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	raw := strings.TrimSpace(refreshToken)
	if raw == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.tokens.GetRefreshTokenByHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	now := s.now().UTC()
	if record.IsRevoked() {
		return nil, ErrInvalidRefreshToken
	}
	if record.IsExpired(now) {
		return nil, ErrExpiredRefreshToken
	}
	if record.SessionID == nil {
		return nil, ErrInvalidRefreshToken
	}

	session, err := s.sessions.GetByID(ctx, *record.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsActive(now) {
		return nil, ErrSessionRevoked
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.IsDisabled() {
		return nil, ErrAccountDisabled
	}

	access, accessExpiry, err := s.issueAccessToken(user.ID, session.ID, session.Version, now)
	if err != nil {
		return nil, err
	}
	newRefresh, newRecord, err := s.issueRefreshToken(ctx, user.ID, session.ID, client, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeRefreshToken(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("revoke rotated refresh token: %w", err)
	}

	if err := s.sessions.Touch(ctx, session.ID, stringPtrOrNil(client.IP), stringPtrOrNil(client.UserAgent)); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("touch session",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &LoginResult{
		User: sanitized,
		Tokens: AuthTokens{
			SessionID:             session.ID,
			AccessToken:           access,
			AccessTokenExpiresAt:  accessExpiry,
			RefreshToken:          newRefresh,
			RefreshTokenExpiresAt: newRecord.ExpiresAt,
		},
	}, nil
}

// Logout ends the caller's session and denylists the presented access token
// so it dies before its natural expiry, on every instance.
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	if strings.TrimSpace(input.SessionID) == "" {
		return ErrSessionNotFound
	}
	reason := normalizeRevocationReason(input.Reason, reasonLogout)

	if err := s.manager.RevokeSession(ctx, input.UserID, input.SessionID, reason, input.UserID); err != nil {
		if errors.Is(err, ErrSessionAlreadyRevoked) {
			// Repeated logout is not an error worth surfacing.
			s.logger.Debug("logout of already revoked session",
				zap.String("session_id", input.SessionID))
		} else {
			return err
		}
	}

	if input.JTI == "" {
		return nil
	}
	until := input.TokenExpires
	if until.IsZero() {
		until = s.now().UTC().Add(s.accessTokenTTL())
	}
	if s.denylist != nil {
		if err := s.denylist.Deny(ctx, input.JTI, reason, until); err != nil {
			s.logger.Warn("denylist access token",
				zap.String("jti", input.JTI),
				zap.Error(err))
		}
	}
	if s.events != nil {
		event := domain.TokenRevokedEvent{
			EventID:   uuid.NewString(),
			JTI:       input.JTI,
			SubjectID: input.UserID,
			SessionID: stringPtrOrNil(input.SessionID),
			ExpiresAt: until,
			Reason:    reason,
			Actor:     input.UserID,
			RevokedAt: s.now().UTC(),
		}
		if err := s.events.PublishTokenRevoked(ctx, event); err != nil {
			s.logger.Warn("publish token revoked",
				zap.String("jti", input.JTI),
				zap.Error(err))
		}
	}
	return nil
}

// CurrentUser loads the authenticated account without its credential hash.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	sanitized := *user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

func (s *AuthService) issueAccessToken(userID, sessionID string, version int64, now time.Time) (string, time.Time, error) {
	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:         userID,
		SessionID:      sessionID,
		SessionVersion: version,
		Issuer:         s.issuer(),
		Audience:       []string{s.audience()},
		Subject:        userID,
		TTL:            s.accessTokenTTL(),
		IssuedAt:       now,
		JTI:            uuid.NewString(),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build access claims: %w", err)
	}
	signed, err := s.jwtManager.SignAccessToken(s.tokenGen.GetKID(), claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, userID, sessionID string, client ClientInfo, now time.Time) (string, *domain.RefreshToken, error) {
	raw, err := security.GenerateSecureToken(refreshTokenByteLength)
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	record := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: stringPtr(sessionID),
		TokenHash: security.HashToken(raw),
		IP:        stringPtrOrNil(client.IP),
		UserAgent: stringPtrOrNil(client.UserAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTokenTTL()),
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	return raw, &record, nil
}

// currentSessionVersion resolves the version counter, preferring the shared
// cache and falling back to the session row. The database answer is cached
// for the next caller.
func (s *AuthService) currentSessionVersion(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, ErrInvalidAccessToken
	}

	if s.versions != nil {
		version, err := s.versions.GetSessionVersion(ctx, sessionID)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			if !s.degradation.Allow(domain.DegradationReasonRevocationCacheUnavailable) {
				return 0, ErrSessionRevoked
			}
			s.logger.Warn("session version cache unavailable", zap.Error(err))
		}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrSessionRevoked
		}
		if !s.degradation.Allow(domain.DegradationReasonCacheMiss) {
			return 0, ErrSessionRevoked
		}
		s.logger.Warn("session lookup failed during validation",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return 0, nil
	}

	now := s.now().UTC()
	if session.RevokedAt != nil {
		return 0, ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt) {
		return 0, ErrSessionExpired
	}

	if s.versions != nil {
		if err := s.versions.SetSessionVersion(ctx, sessionID, session.Version, s.versionTTL()); err != nil {
			s.logger.Debug("cache session version",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}
	return session.Version, nil
}

func (s *AuthService) normalizationForm() string {
	if s.cfg != nil && s.cfg.Security.PasswordNormalizationForm != "" {
		return s.cfg.Security.PasswordNormalizationForm
	}
	return "NFKD"
}

func (s *AuthService) issuer() string {
	if s.cfg != nil && s.cfg.JWT.Issuer != "" {
		return s.cfg.JWT.Issuer
	}
	return "accounts"
}

func (s *AuthService) audience() string {
	if s.cfg != nil && s.cfg.App.Name != "" {
		return s.cfg.App.Name
	}
	return "accounts"
}

func (s *AuthService) accessTokenTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.AccessTokenTTL > 0 {
		return s.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (s *AuthService) refreshTokenTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.RefreshTokenTTL > 0 {
		return s.cfg.JWT.RefreshTokenTTL
	}
	return defaultRefreshTokenTTL
}

func (s *AuthService) sessionTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.SessionTTL > 0 {
		return s.cfg.JWT.SessionTTL
	}
	return defaultSessionTTL
}

func (s *AuthService) versionTTL() time.Duration {
	if s.cfg != nil && s.cfg.Redis.SessionVersionTTL > 0 {
		return s.cfg.Redis.SessionVersionTTL
	}
	return defaultSessionVersionTTL
}

func (s *AuthService) loginLimit() int {
	if s.cfg != nil && s.cfg.RateLimit.LoginLimit > 0 {
		return s.cfg.RateLimit.LoginLimit
	}
	return 0
}

func (s *AuthService) loginWindow() time.Duration {
	if s.cfg != nil && s.cfg.RateLimit.LoginWindow > 0 {
		return s.cfg.RateLimit.LoginWindow
	}
	return defaultRateLimitWindow
}

var _ SessionEstablisher = (*AuthService)(nil)
