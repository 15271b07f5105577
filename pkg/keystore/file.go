package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileCrypto implements Crypto using PEM files on disk
//
// This is intended for development and testing only. In production,
// use PKCS#11 or a PKCS#12 keystore.
//
// Key files are expected at: {dir}/{alias}.key
// Certificate files at: {dir}/{alias}.crt (leaf first, then the chain)
type FileCrypto struct {
	dir          string
	defaultAlias string

	mu   sync.RWMutex
	keys map[string]crypto.Signer
}

// NewFileCrypto creates a new file-based provider
func NewFileCrypto(dir, defaultAlias string) (*FileCrypto, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking key directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("key directory is not a directory: %s", dir)
	}

	return &FileCrypto{
		dir:          dir,
		defaultAlias: defaultAlias,
		keys:         make(map[string]crypto.Signer),
	}, nil
}

// DefaultIdentifier returns the configured default alias or, if there is a
// single key in the directory, its alias.
func (p *FileCrypto) DefaultIdentifier() string {
	if p.defaultAlias != "" {
		return p.defaultAlias
	}
	matches, err := filepath.Glob(filepath.Join(p.dir, "*.key"))
	if err != nil || len(matches) != 1 {
		return ""
	}
	name := filepath.Base(matches[0])
	return name[:len(name)-len(".key")]
}

// Certificates returns the certificate chain stored for alias
func (p *FileCrypto) Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error) {
	certs, err := loadCertificates(filepath.Join(p.dir, alias+".crt"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, alias)
		}
		return nil, err
	}
	return certs, nil
}

// PrivateKey returns the key stored for alias
func (p *FileCrypto) PrivateKey(ctx context.Context, alias, password string) (crypto.Signer, error) {
	// Check cache first
	p.mu.RLock()
	if key, ok := p.keys[alias]; ok {
		p.mu.RUnlock()
		return key, nil
	}
	p.mu.RUnlock()

	keyPEM, err := os.ReadFile(filepath.Join(p.dir, alias+".key"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	p.mu.Lock()
	p.keys[alias] = key
	p.mu.Unlock()

	return key, nil
}

// Close releases resources
func (p *FileCrypto) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = make(map[string]crypto.Signer)
	return nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key is not a signer")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

func loadCertificates(path string) ([]*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, certPEM = pem.Decode(certPEM)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}
	return certs, nil
}
