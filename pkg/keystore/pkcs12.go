package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// PKCS12Crypto implements Crypto over a PKCS#12 keystore holding a single
// private key and its certificate. The key is addressed by the configured
// alias or, when none is set, by the certificate's subject common name.
type PKCS12Crypto struct {
	alias string
	key   crypto.Signer
	cert  *x509.Certificate
}

// NewPKCS12Crypto decodes the keystore at path.
func NewPKCS12Crypto(path, password, alias string) (*PKCS12Crypto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}
	return ParsePKCS12(data, password, alias)
}

// ParsePKCS12 decodes a PKCS#12 keystore.
func ParsePKCS12(data []byte, password, alias string) (*PKCS12Crypto, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12 keystore: %w", err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("keystore key of type %T is not a signer", priv)
	}
	if alias == "" {
		alias = cert.Subject.CommonName
	}
	return &PKCS12Crypto{alias: alias, key: signer, cert: cert}, nil
}

// DefaultIdentifier returns the alias of the stored key.
func (p *PKCS12Crypto) DefaultIdentifier() string { return p.alias }

// Certificates returns the stored certificate.
func (p *PKCS12Crypto) Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error) {
	if alias != p.alias {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, alias)
	}
	return []*x509.Certificate{p.cert}, nil
}

// PrivateKey returns the stored key. The keystore password already unlocked
// it, so password is not consulted.
func (p *PKCS12Crypto) PrivateKey(ctx context.Context, alias, password string) (crypto.Signer, error) {
	if alias != p.alias {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}
	return p.key, nil
}

// Close is a no-op.
func (p *PKCS12Crypto) Close() error { return nil }
