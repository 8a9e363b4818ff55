package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// ErrKeyIDMissing indicates no kid is associated with the supplied key.
var ErrKeyIDMissing = errors.New("jwt: missing key identifier")

// ErrKeyNotRegistered indicates a supplied kid is unknown to the JWT manager.
var ErrKeyNotRegistered = errors.New("jwt: key not registered")

const defaultAccessTokenTTL = 15 * time.Minute

// JWTManager signs access tokens and publishes the verification keys it
// knows about as a JWKS document.
type JWTManager struct {
	KeyProvider KeyProvider

	mu         sync.RWMutex
	publicKeys map[string]*rsa.PublicKey
}

// NewJWTManager wraps a key provider. Providers that can enumerate their
// public keys get them registered for JWKS publication immediately.
func NewJWTManager(provider KeyProvider) *JWTManager {
	mgr := &JWTManager{
		KeyProvider: provider,
		publicKeys:  make(map[string]*rsa.PublicKey),
	}

	type keyEnumerator interface {
		ListVerificationKeys() map[string]*rsa.PublicKey
	}
	if enumerator, ok := provider.(keyEnumerator); ok {
		for kid, key := range enumerator.ListVerificationKeys() {
			_ = mgr.RegisterPublicKey(kid, key)
		}
	}

	return mgr
}

// RegisterPublicKey adds a public key under the given kid.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	m.publicKeys[kid] = key
	m.mu.Unlock()
	return nil
}

// UnregisterPublicKey drops a kid from the JWKS catalogue.
func (m *JWTManager) UnregisterPublicKey(kid string) {
	m.mu.Lock()
	delete(m.publicKeys, strings.TrimSpace(kid))
	m.mu.Unlock()
}

// GetSigningKey returns the provider's active signing key.
func (m *JWTManager) GetSigningKey() (*rsa.PrivateKey, error) {
	if m.KeyProvider == nil {
		return nil, fmt.Errorf("jwt: key provider not configured")
	}
	return m.KeyProvider.GetSigningKey()
}

// GetVerificationKey resolves a kid, falling back to the provider for keys
// that were not registered up front and caching whatever it returns.
func (m *JWTManager) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.publicKeys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.KeyProvider != nil {
		fetched, err := m.KeyProvider.GetVerificationKey(kid)
		if err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

type jwk struct {
	KeyType   string `json:"kty"`
	Use       string `json:"use"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	Modulus   string `json:"n"`
	Exponent  string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

func newJWK(kid string, key *rsa.PublicKey) jwk {
	return jwk{
		KeyType:   "RSA",
		Use:       "sig",
		Algorithm: "RS256",
		KeyID:     kid,
		Modulus:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		Exponent:  base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

// JWKS serializes every registered public key as an RFC 7517 key set.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := jwkSet{Keys: make([]jwk, 0, len(m.publicKeys))}
	for kid, key := range m.publicKeys {
		if key == nil {
			continue
		}
		set.Keys = append(set.Keys, newJWK(kid, key))
	}

	return json.Marshal(set)
}

// AccessTokenClaims augments registered claims with session context. The
// session id and version let verifiers reject tokens from sessions revoked
// after issuance, e.g. by a password reset.
type AccessTokenClaims struct {
	UserID         string `json:"uid"`
	SessionID      string `json:"sid,omitempty"`
	SessionVersion int64  `json:"sv,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	UserID         string
	SessionID      string
	SessionVersion int64
	Issuer         string
	Audience       []string
	Subject        string
	TTL            time.Duration
	IssuedAt       time.Time
	NotBefore      time.Time
	JTI            string
}

// NewAccessTokenClaims builds claims from the options, filling issued-at,
// not-before, TTL, and jti with sane defaults when unset.
func NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, fmt.Errorf("jwt: user id is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	issuedAt := utcOrNow(opts.IssuedAt)
	notBefore := opts.NotBefore.UTC()
	if opts.NotBefore.IsZero() {
		notBefore = issuedAt
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	return &AccessTokenClaims{
		UserID:         userID,
		SessionID:      strings.TrimSpace(opts.SessionID),
		SessionVersion: opts.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(opts.Subject),
			Issuer:    issuer,
			Audience:  opts.Audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(notBefore),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        jti,
		},
	}, nil
}

func utcOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// SignAccessToken signs the claims with RS256, stamping the kid into the
// token header so verifiers can pick the matching JWKS entry.
func (m *JWTManager) SignAccessToken(kid string, claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return "", ErrKeyIDMissing
	}

	signingKey, err := m.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}
