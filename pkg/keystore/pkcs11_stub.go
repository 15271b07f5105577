//go:build !pkcs11

package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
)

// PKCS11Crypto is a stub that returns an error when PKCS#11 support is not compiled in.
type PKCS11Crypto struct{}

// ErrPKCS11NotSupported is returned when PKCS#11 operations are attempted
// but the binary was not compiled with PKCS#11 support.
var ErrPKCS11NotSupported = errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")

// NewPKCS11Crypto returns an error because PKCS#11 is not compiled in.
func NewPKCS11Crypto(cfg *PKCS11Config) (*PKCS11Crypto, error) {
	return nil, ErrPKCS11NotSupported
}

// DefaultIdentifier returns "".
func (p *PKCS11Crypto) DefaultIdentifier() string { return "" }

// Certificates returns an error because PKCS#11 is not compiled in.
func (p *PKCS11Crypto) Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error) {
	return nil, ErrPKCS11NotSupported
}

// PrivateKey returns an error because PKCS#11 is not compiled in.
func (p *PKCS11Crypto) PrivateKey(ctx context.Context, alias, password string) (crypto.Signer, error) {
	return nil, ErrPKCS11NotSupported
}

// Close is a no-op.
func (p *PKCS11Crypto) Close() error {
	return nil
}
