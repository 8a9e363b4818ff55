package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/repository"
)

type userRepoStub struct {
	byID map[string]*domain.User

	updatedID   string
	updatedHash string
	updatedAlgo string
	updatedAt   time.Time
	lastLoginAt *time.Time
	history     []domain.UserPasswordHistory
	trimmedKeep int
	historyErr  error
}

func newUserRepoStub(users ...*domain.User) *userRepoStub {
	stub := &userRepoStub{byID: make(map[string]*domain.User)}
	for _, user := range users {
		stub.byID[user.ID] = user
	}
	return stub
}

func (m *userRepoStub) Create(context.Context, domain.User) error {
	return errors.New("unexpected call: Create")
}

func (m *userRepoStub) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoStub) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m.byID {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoStub) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	for _, user := range m.byID {
		if user.Username == identifier || strings.EqualFold(user.Email, identifier) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoStub) UpdateStatus(context.Context, string, domain.UserStatus) error {
	return errors.New("unexpected call: UpdateStatus")
}

func (m *userRepoStub) UpdatePassword(_ context.Context, id string, hash string, algo string, changedAt time.Time) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	m.updatedID = id
	m.updatedHash = hash
	m.updatedAlgo = algo
	m.updatedAt = changedAt
	m.byID[id].PasswordHash = hash
	return nil
}

func (m *userRepoStub) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	m.lastLoginAt = &at
	return nil
}

func (m *userRepoStub) ListPasswordHistory(_ context.Context, userID string, limit int) ([]domain.UserPasswordHistory, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	out := make([]domain.UserPasswordHistory, 0, len(m.history))
	for _, entry := range m.history {
		if entry.UserID != userID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *userRepoStub) AddPasswordHistory(_ context.Context, entry domain.UserPasswordHistory) error {
	m.history = append(m.history, entry)
	return nil
}

func (m *userRepoStub) TrimPasswordHistory(_ context.Context, _ string, keep int) error {
	m.trimmedKeep = keep
	return nil
}

type tokenRepoStub struct {
	resetsByHash map[string]*domain.PasswordResetToken
	created      []domain.PasswordResetToken
	consumedIDs  []string
	consumeErr   error

	refreshByHash     map[string]*domain.RefreshToken
	createdRefresh    []domain.RefreshToken
	revokedRefreshIDs []string
	userResetsRevoked int
	userTokensRevoked int
}

func newTokenRepoStub() *tokenRepoStub {
	return &tokenRepoStub{
		resetsByHash:  make(map[string]*domain.PasswordResetToken),
		refreshByHash: make(map[string]*domain.RefreshToken),
	}
}

func (m *tokenRepoStub) CreatePasswordReset(_ context.Context, token domain.PasswordResetToken) error {
	copied := token
	m.resetsByHash[token.TokenHash] = &copied
	m.created = append(m.created, token)
	return nil
}

func (m *tokenRepoStub) GetPasswordResetByHash(_ context.Context, hash string) (*domain.PasswordResetToken, error) {
	if token, ok := m.resetsByHash[hash]; ok {
		copied := *token
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *tokenRepoStub) ConsumePasswordReset(_ context.Context, id string) error {
	if m.consumeErr != nil {
		return m.consumeErr
	}
	for _, token := range m.resetsByHash {
		if token.ID != id {
			continue
		}
		if token.UsedAt != nil || token.RevokedAt != nil {
			return repository.ErrNotFound
		}
		used := time.Now().UTC()
		token.UsedAt = &used
		m.consumedIDs = append(m.consumedIDs, id)
		return nil
	}
	return repository.ErrNotFound
}

func (m *tokenRepoStub) RevokePasswordResetsForUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, token := range m.resetsByHash {
		if token.UserID != userID || token.UsedAt != nil || token.RevokedAt != nil {
			continue
		}
		revoked := time.Now().UTC()
		token.RevokedAt = &revoked
		count++
	}
	m.userResetsRevoked += count
	return count, nil
}

func (m *tokenRepoStub) CreateRefreshToken(_ context.Context, token domain.RefreshToken) error {
	copied := token
	m.refreshByHash[token.TokenHash] = &copied
	m.createdRefresh = append(m.createdRefresh, token)
	return nil
}

func (m *tokenRepoStub) GetRefreshTokenByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	if token, ok := m.refreshByHash[hash]; ok {
		copied := *token
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *tokenRepoStub) RevokeRefreshToken(_ context.Context, refreshTokenID string) error {
	for _, token := range m.refreshByHash {
		if token.ID != refreshTokenID || token.RevokedAt != nil {
			continue
		}
		revoked := time.Now().UTC()
		token.RevokedAt = &revoked
		m.revokedRefreshIDs = append(m.revokedRefreshIDs, refreshTokenID)
		return nil
	}
	return repository.ErrNotFound
}

func (m *tokenRepoStub) RevokeRefreshTokensForUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, token := range m.refreshByHash {
		if token.UserID != userID || token.RevokedAt != nil {
			continue
		}
		revoked := time.Now().UTC()
		token.RevokedAt = &revoked
		count++
	}
	m.userTokensRevoked += count
	return count, nil
}

type sessionRepoStub struct {
	byID    map[string]*domain.Session
	created []domain.Session
	touched []string
}

func newSessionRepoStub(sessions ...*domain.Session) *sessionRepoStub {
	stub := &sessionRepoStub{byID: make(map[string]*domain.Session)}
	for _, session := range sessions {
		stub.byID[session.ID] = session
	}
	return stub
}

func (m *sessionRepoStub) Create(_ context.Context, session domain.Session) error {
	copied := session
	m.byID[session.ID] = &copied
	m.created = append(m.created, session)
	return nil
}

func (m *sessionRepoStub) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	if session, ok := m.byID[sessionID]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *sessionRepoStub) ListActiveByUser(_ context.Context, userID string) ([]domain.Session, error) {
	var out []domain.Session
	for _, session := range m.byID {
		if session.UserID == userID && session.RevokedAt == nil {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (m *sessionRepoStub) Touch(_ context.Context, sessionID string, _ *string, _ *string) error {
	if _, ok := m.byID[sessionID]; !ok {
		return repository.ErrNotFound
	}
	m.touched = append(m.touched, sessionID)
	return nil
}

func (m *sessionRepoStub) Revoke(_ context.Context, sessionID string, reason string) error {
	session, ok := m.byID[sessionID]
	if !ok || session.RevokedAt != nil {
		return repository.ErrNotFound
	}
	revoked := time.Now().UTC()
	session.RevokedAt = &revoked
	session.RevokeReason = &reason
	return nil
}

func (m *sessionRepoStub) RevokeAllForUser(_ context.Context, userID string, reason string) ([]domain.Session, error) {
	var out []domain.Session
	for _, session := range m.byID {
		if session.UserID != userID || session.RevokedAt != nil {
			continue
		}
		revoked := time.Now().UTC()
		session.RevokedAt = &revoked
		session.RevokeReason = &reason
		out = append(out, *session)
	}
	return out, nil
}

func (m *sessionRepoStub) BumpVersion(_ context.Context, sessionID string) (int64, error) {
	session, ok := m.byID[sessionID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	session.Version++
	return session.Version, nil
}

type mailerStub struct {
	resets    []port.PasswordResetEmail
	notices   []port.PasswordChangedEmail
	reminders []port.UsernameRecoveryEmail

	resetErr    error
	noticeErr   error
	reminderErr error
}

func (m *mailerStub) SendPasswordReset(_ context.Context, msg port.PasswordResetEmail) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets = append(m.resets, msg)
	return nil
}

func (m *mailerStub) SendPasswordChangedNotice(_ context.Context, msg port.PasswordChangedEmail) error {
	if m.noticeErr != nil {
		return m.noticeErr
	}
	m.notices = append(m.notices, msg)
	return nil
}

func (m *mailerStub) SendUsernameRecovery(_ context.Context, msg port.UsernameRecoveryEmail) error {
	if m.reminderErr != nil {
		return m.reminderErr
	}
	m.reminders = append(m.reminders, msg)
	return nil
}

type eventsStub struct {
	resetRequested    []domain.PasswordResetRequestedEvent
	passwordChanged   []domain.PasswordChangedEvent
	usernameRecovered []domain.UsernameRecoveryRequestedEvent
	sessionRevoked    []domain.SessionRevokedEvent
	tokenRevoked      []domain.TokenRevokedEvent
}

func (m *eventsStub) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	m.resetRequested = append(m.resetRequested, event)
	return nil
}

func (m *eventsStub) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.passwordChanged = append(m.passwordChanged, event)
	return nil
}

func (m *eventsStub) PublishUsernameRecoveryRequested(_ context.Context, event domain.UsernameRecoveryRequestedEvent) error {
	m.usernameRecovered = append(m.usernameRecovered, event)
	return nil
}

func (m *eventsStub) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	m.sessionRevoked = append(m.sessionRevoked, event)
	return nil
}

func (m *eventsStub) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	m.tokenRevoked = append(m.tokenRevoked, event)
	return nil
}

// rateLimitStub keeps the sliding window in memory with the same semantics as
// the redis-backed store.
type rateLimitStub struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newRateLimitStub() *rateLimitStub {
	return &rateLimitStub{attempts: make(map[string][]time.Time)}
}

func (m *rateLimitStub) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := reference.Add(-window)
	var kept []time.Time
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	m.attempts[identifier] = kept
	return nil
}

func (m *rateLimitStub) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := reference.Add(-window)
	count := 0
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *rateLimitStub) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *rateLimitStub) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range m.attempts[identifier] {
		if !at.After(cutoff) {
			continue
		}
		if !found || at.Before(oldest) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

type revocationStoreStub struct {
	flagged map[string]string
	err     error
}

func newRevocationStoreStub() *revocationStoreStub {
	return &revocationStoreStub{flagged: make(map[string]string)}
}

func (m *revocationStoreStub) MarkSessionRevoked(_ context.Context, sessionID string, reason string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.flagged[sessionID] = reason
	return nil
}

func (m *revocationStoreStub) IsSessionRevoked(_ context.Context, sessionID string) (bool, string, error) {
	if m.err != nil {
		return false, "", m.err
	}
	reason, ok := m.flagged[sessionID]
	return ok, reason, nil
}

func (m *revocationStoreStub) ClearSessionRevocation(_ context.Context, sessionID string) error {
	delete(m.flagged, sessionID)
	return nil
}

type versionStoreStub struct {
	versions map[string]int64
	err      error
}

func newVersionStoreStub() *versionStoreStub {
	return &versionStoreStub{versions: make(map[string]int64)}
}

func (m *versionStoreStub) GetSessionVersion(_ context.Context, sessionID string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	version, ok := m.versions[sessionID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return version, nil
}

func (m *versionStoreStub) SetSessionVersion(_ context.Context, sessionID string, version int64, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.versions[sessionID] = version
	return nil
}

func (m *versionStoreStub) DeleteSessionVersion(_ context.Context, sessionID string) error {
	delete(m.versions, sessionID)
	return nil
}

type denylistStub struct {
	denied map[string]time.Time
	err    error
}

func newDenylistStub() *denylistStub {
	return &denylistStub{denied: make(map[string]time.Time)}
}

func (m *denylistStub) Deny(_ context.Context, jti string, _ string, until time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.denied[jti] = until
	return nil
}

func (m *denylistStub) IsDenied(_ context.Context, jti string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.denied[jti]
	return ok, nil
}
