//go:build pkcs11

package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/ThalesGroup/crypto11"
)

// PKCS11Crypto implements Crypto using a PKCS#11 token (HSM/smart card).
// Aliases are key and certificate labels on the token.
type PKCS11Crypto struct {
	ctx          *crypto11.Context
	defaultLabel string

	mu   sync.RWMutex
	keys map[string]crypto.Signer
}

// NewPKCS11Crypto creates a new PKCS#11 provider
func NewPKCS11Crypto(cfg *PKCS11Config) (*PKCS11Crypto, error) {
	config := &crypto11.Config{
		Path: cfg.ModulePath,
		Pin:  cfg.PIN,
	}

	if cfg.SlotID != nil {
		slotID := int(*cfg.SlotID)
		config.SlotNumber = &slotID
	}
	if cfg.SlotLabel != "" {
		config.TokenLabel = cfg.SlotLabel
	}

	ctx, err := crypto11.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}

	return &PKCS11Crypto{
		ctx:          ctx,
		defaultLabel: cfg.DefaultLabel,
		keys:         make(map[string]crypto.Signer),
	}, nil
}

// DefaultIdentifier returns the configured default label.
func (p *PKCS11Crypto) DefaultIdentifier() string { return p.defaultLabel }

// Certificates returns the certificate stored under alias
func (p *PKCS11Crypto) Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error) {
	cert, err := p.ctx.FindCertificate(nil, []byte(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, alias)
	}
	return []*x509.Certificate{cert}, nil
}

// PrivateKey returns the key pair stored under alias. The token PIN was
// supplied at login, so password is not consulted.
func (p *PKCS11Crypto) PrivateKey(ctx context.Context, alias, password string) (crypto.Signer, error) {
	p.mu.RLock()
	if key, ok := p.keys[alias]; ok {
		p.mu.RUnlock()
		return key, nil
	}
	p.mu.RUnlock()

	key, err := p.ctx.FindKeyPair(nil, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("finding key pair: %w", err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}

	p.mu.Lock()
	p.keys[alias] = key
	p.mu.Unlock()

	return key, nil
}

// Close releases PKCS#11 resources
func (p *PKCS11Crypto) Close() error {
	return p.ctx.Close()
}
