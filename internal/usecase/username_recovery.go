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
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/infra/telemetry"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

const defaultUsernameRecoveryLimit = 3

// UsernameRecoveryRequest asks for a username reminder to be mailed.
type UsernameRecoveryRequest struct {
	Email string
	IP    string
}

// UsernameRecoveryResult reports delivery for logs and metrics only. Handlers
// must answer the caller identically whether Sent is true or false; the
// Reason field explains a skipped send to the audit log, never to the client.
type UsernameRecoveryResult struct {
	Sent              bool
	MaskedDestination string
	Reason            string
}

// UsernameRecoveryService mails the account's username to its address of
// record. The operation deliberately has no observable failure mode for
// unknown addresses.
type UsernameRecoveryService struct {
	cfg        *config.AppConfig
	users      port.UserRepository
	mailer     port.Mailer
	rateLimits port.RateLimitStore
	events     port.EventPublisher
	metrics    *telemetry.Provider
	logger     *zap.Logger
	now        func() time.Time
}

func NewUsernameRecoveryService(cfg *config.AppConfig, users port.UserRepository, mailer port.Mailer, log *zap.Logger) *UsernameRecoveryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UsernameRecoveryService{
		cfg:    cfg,
		users:  users,
		mailer: mailer,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the time source, primarily for tests.
func (s *UsernameRecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithRateLimiter enables the per-address sliding window.
func (s *UsernameRecoveryService) WithRateLimiter(store port.RateLimitStore) {
	s.rateLimits = store
}

// WithEventPublisher enables recovery events on the message bus.
func (s *UsernameRecoveryService) WithEventPublisher(events port.EventPublisher) {
	s.events = events
}

// WithMetrics enables recovery counters.
func (s *UsernameRecoveryService) WithMetrics(provider *telemetry.Provider) {
	s.metrics = provider
}

// RequestUsernameRecovery mails the username tied to email when such an
// account exists and may recover. Every skipped send lands in the result, not
// in the error: an attacker reading responses learns nothing about the address.
func (s *UsernameRecoveryService) RequestUsernameRecovery(ctx context.Context, req UsernameRecoveryRequest) (*UsernameRecoveryResult, error) {
	if s.cfg != nil && !s.cfg.Recovery.UsernameRecoveryEnabled {
		return nil, ErrUsernameRecoveryDisabled
	}

	email := security.CanonicalizeEmail(req.Email)
	if !validEmailAddress(email) {
		return nil, ErrInvalidEmail
	}

	now := s.now().UTC()
	key := usernameRecoveryRateLimitScope + ":email:" + normalizeIdentifierKey(email)
	if err := enforceSlidingLimit(ctx, s.rateLimits, s.logger, now, usernameRecoveryRateLimitScope, key, s.limit(), s.window()); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveUsernameRecoveryRequested()
	}

	result := &UsernameRecoveryResult{MaskedDestination: logger.MaskEmail(email)}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			result.Reason = "unknown_email"
			return result, nil
		}
		return nil, fmt.Errorf("load user by email: %w", err)
	}
	if !user.CanRecover() {
		result.Reason = "account_disabled"
		return result, nil
	}
	if strings.TrimSpace(user.Username) == "" {
		result.Reason = "no_username"
		return result, nil
	}

	msg := port.UsernameRecoveryEmail{To: user.Email, Username: user.Username}
	if err := s.mailer.SendUsernameRecovery(ctx, msg); err != nil {
		s.logger.Error("send username recovery mail",
			zap.String("user_id", user.ID),
			zap.String("destination", result.MaskedDestination),
			zap.Error(err))
		result.Reason = "delivery_failed"
		return result, nil
	}

	result.Sent = true
	s.publishRecoveryRequested(ctx, user, req.IP, now)
	s.logger.Info("username recovery mail sent",
		zap.String("user_id", user.ID),
		zap.String("destination", result.MaskedDestination))
	return result, nil
}

func (s *UsernameRecoveryService) publishRecoveryRequested(ctx context.Context, user *domain.User, ip string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.UsernameRecoveryRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestedAt:       at,
		MaskedDestination: logger.MaskEmail(user.Email),
		DeliverySucceeded: true,
		IPAddress:         stringPtrOrNil(ip),
	}
	if err := s.events.PublishUsernameRecoveryRequested(ctx, event); err != nil {
		s.logger.Warn("publish username recovery requested",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}
}

func (s *UsernameRecoveryService) limit() int {
	if s.cfg != nil && s.cfg.RateLimit.UsernameRecoveryLimit > 0 {
		return s.cfg.RateLimit.UsernameRecoveryLimit
	}
	return defaultUsernameRecoveryLimit
}

// window reuses the reset address window; the two scopes throttle the same
// kind of outbound mail.
func (s *UsernameRecoveryService) window() time.Duration {
	if s.cfg != nil && s.cfg.RateLimit.ResetEmailWindow > 0 {
		return s.cfg.RateLimit.ResetEmailWindow
	}
	return defaultRateLimitWindow
}
