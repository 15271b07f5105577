// Package keystore provides the key material a security binding signs and
// encrypts with.
//
// This package defines a unified interface over the supported backends:
//
//   - File: PEM keys and certificates in a directory (development only)
//   - PKCS#12: a single keystore file with one private key and its chain
//   - PKCS#11: keys stored in hardware security modules (HSM) or smart cards
//
// Providers are looked up by alias. A Resolver caches one provider per
// distinct configuration so that endpoints sharing a keystore share it.
package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrKeyNotFound         = errors.New("key not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrUnknownProvider     = errors.New("unknown keystore provider")
)

// Provider names
const (
	ProviderFile   = "file"
	ProviderPKCS12 = "pkcs12"
	ProviderPKCS11 = "pkcs11"
)

// Crypto gives access to named keys and certificates.
//
// Implementations must be safe for concurrent use.
type Crypto interface {
	// DefaultIdentifier returns the alias used when none is configured.
	DefaultIdentifier() string

	// Certificates returns the certificate for alias followed by its chain.
	Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error)

	// PrivateKey returns the private key for alias. password unlocks the key
	// where the backend needs one.
	PrivateKey(ctx context.Context, alias, password string) (crypto.Signer, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Properties configures a Crypto provider.
type Properties struct {
	Provider string `yaml:"provider"`

	// DefaultAlias overrides the provider's own default identifier.
	DefaultAlias string `yaml:"defaultAlias"`

	// Dir holds {alias}.key and {alias}.crt for the file provider.
	Dir string `yaml:"dir"`

	// File and Password locate and unlock a PKCS#12 keystore.
	File     string `yaml:"file"`
	Password string `yaml:"password"`

	PKCS11 PKCS11Config `yaml:"pkcs11"`
}

// Identity returns a key that is equal for configurations that resolve to
// the same provider.
func (p Properties) Identity() string {
	parts := []string{p.Provider, p.DefaultAlias}
	switch p.Provider {
	case ProviderFile:
		parts = append(parts, p.Dir)
	case ProviderPKCS12:
		parts = append(parts, p.File)
	case ProviderPKCS11:
		slot := ""
		if p.PKCS11.SlotID != nil {
			slot = fmt.Sprint(*p.PKCS11.SlotID)
		}
		parts = append(parts, p.PKCS11.ModulePath, p.PKCS11.SlotLabel, slot)
	}
	return strings.Join(parts, "|")
}

// New creates the provider described by props.
func New(props Properties) (Crypto, error) {
	var (
		c   Crypto
		err error
	)
	switch props.Provider {
	case ProviderFile:
		c, err = NewFileCrypto(props.Dir, props.DefaultAlias)
	case ProviderPKCS12:
		c, err = NewPKCS12Crypto(props.File, props.Password, props.DefaultAlias)
	case ProviderPKCS11:
		cfg := props.PKCS11
		if cfg.DefaultLabel == "" {
			cfg.DefaultLabel = props.DefaultAlias
		}
		c, err = NewPKCS11Crypto(&cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, props.Provider)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SignatureAlgorithm returns the XML signature algorithm URI matching key.
func SignatureAlgorithm(key crypto.PublicKey) string {
	switch key.(type) {
	case *ecdsa.PublicKey:
		return "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	case *rsa.PublicKey:
		return "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	default:
		return "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	}
}
