package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrSigningKeyNotImplemented = errors.New("signing key not implemented in production mode")
	ErrKeyNotFound              = errors.New("key not found")
)

// KeyProvider supplies the RSA material behind access-token signing and
// JWKS publication.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
}

// DevKeyProvider loads PEM keys from a local directory. The file name minus
// its extension becomes the kid; the first private key found signs tokens.
type DevKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
}

func NewDevKeyProvider(keyDir string) (*DevKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	provider := &DevKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(keyDir, file.Name())
		if err := provider.loadKeyFile(path, keyID(file.Name())); err != nil {
			return nil, err
		}
	}

	if provider.signingKey == nil {
		return nil, errors.New("no private key found for signing")
	}
	return provider, nil
}

// loadKeyFile accepts PKCS#1 or PKCS#8 private keys and PKCS#1 or PKIX
// public keys; anything else in the directory is an error.
func (p *DevKeyProvider) loadKeyFile(path, kid string) error {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block from %s", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		p.adoptPrivate(kid, key)
		return nil
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if key, ok := parsed.(*rsa.PrivateKey); ok {
			p.adoptPrivate(kid, key)
			return nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		p.keys[kid] = key
		return nil
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if key, ok := parsed.(*rsa.PublicKey); ok {
			p.keys[kid] = key
			return nil
		}
	}

	return fmt.Errorf("failed to parse key from file %s", path)
}

func (p *DevKeyProvider) adoptPrivate(kid string, key *rsa.PrivateKey) {
	if p.signingKey == nil {
		p.signingKey = key
	}
	p.keys[kid] = &key.PublicKey
}

func keyID(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// GetSigningKey returns the private key used to sign access tokens.
func (p *DevKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// GetVerificationKey returns the public key registered under kid.
func (p *DevKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// ListVerificationKeys enumerates the loaded public keys so the JWT manager
// can publish them through JWKS at startup.
func (p *DevKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// ProdKeyProvider sources key material from the deployment's secret store.
// Until that wiring lands, signing is disabled in production builds.
type ProdKeyProvider struct{}

func NewProdKeyProvider() (*ProdKeyProvider, error) {
	return &ProdKeyProvider{}, nil
}

func (p *ProdKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return nil, ErrSigningKeyNotImplemented
}

func (p *ProdKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	return nil, fmt.Errorf("verification for kid %s not implemented", kid)
}

// NewKeyProvider picks the provider by environment; anything other than
// production loads PEM keys from the local key directory.
func NewKeyProvider(env, keyDir string) (KeyProvider, error) {
	if strings.EqualFold(env, "production") {
		return NewProdKeyProvider()
	}
	return NewDevKeyProvider(keyDir)
}
