package keystore

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/ocsp"
)

var (
	// ErrCertificateExpired is returned when a certificate has expired
	ErrCertificateExpired = errors.New("certificate has expired")
	// ErrCertificateNotYetValid is returned when a certificate is not yet valid
	ErrCertificateNotYetValid = errors.New("certificate is not yet valid")
	// ErrCertificateUntrusted is returned when a certificate is not trusted
	ErrCertificateUntrusted = errors.New("certificate is not trusted")
	// ErrCertificateRevoked is returned when a certificate has been revoked
	ErrCertificateRevoked = errors.New("certificate has been revoked")
)

// Certificate purposes
const (
	PurposeSigning    = "signing"
	PurposeEncryption = "encryption"
)

// CertificateValidator decides whether a certificate may be used for a
// purpose before a binding signs with it or encrypts to it.
type CertificateValidator interface {
	ValidateCertificate(ctx context.Context, chain []*x509.Certificate, purpose string) error
}

// PKIValidator implements traditional PKI validation against a root pool.
// A nil pool only checks the validity period.
type PKIValidator struct {
	roots *x509.CertPool
	now   func() time.Time
}

// NewPKIValidator creates a validator trusting roots.
func NewPKIValidator(roots *x509.CertPool) *PKIValidator {
	return &PKIValidator{roots: roots, now: time.Now}
}

// ValidateCertificate checks the leaf's validity period and, with a root
// pool, that the chain verifies for the purpose.
func (v *PKIValidator) ValidateCertificate(ctx context.Context, chain []*x509.Certificate, purpose string) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrCertificateUntrusted)
	}
	cert := chain[0]
	now := v.now()
	if now.Before(cert.NotBefore) {
		return ErrCertificateNotYetValid
	}
	if now.After(cert.NotAfter) {
		return ErrCertificateExpired
	}
	if v.roots == nil {
		return nil
	}

	opts := x509.VerifyOptions{
		Roots:         v.roots,
		CurrentTime:   now,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	for _, intermediate := range chain[1:] {
		opts.Intermediates.AddCert(intermediate)
	}
	switch purpose {
	case PurposeSigning:
		opts.KeyUsages = []x509.ExtKeyUsage{x509.ExtKeyUsageAny, x509.ExtKeyUsageCodeSigning, x509.ExtKeyUsageEmailProtection}
	case PurposeEncryption:
		opts.KeyUsages = []x509.ExtKeyUsage{x509.ExtKeyUsageAny, x509.ExtKeyUsageEmailProtection}
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrCertificateUntrusted, err)
	}
	return nil
}

// OCSPConfig configures OCSP checking behavior
type OCSPConfig struct {
	// HTTPClient for OCSP requests (optional)
	HTTPClient *http.Client
	// Timeout for OCSP requests
	Timeout time.Duration
	// CacheTimeout for caching OCSP responses
	CacheTimeout time.Duration
	// StrictMode fails if revocation status cannot be determined
	StrictMode bool
}

// RevocationValidator wraps a validator with an OCSP revocation check of
// the leaf certificate. Responses are cached per serial number.
type RevocationValidator struct {
	base       CertificateValidator
	config     OCSPConfig
	httpClient *http.Client
	cache      *cache.Cache
}

// NewRevocationValidator creates a validator that runs base and then checks
// revocation.
func NewRevocationValidator(base CertificateValidator, config OCSPConfig) *RevocationValidator {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CacheTimeout == 0 {
		config.CacheTimeout = time.Hour
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &RevocationValidator{
		base:       base,
		config:     config,
		httpClient: client,
		cache:      cache.New(config.CacheTimeout, 2*config.CacheTimeout),
	}
}

type ocspResult struct {
	err error
}

// ValidateCertificate validates the chain and checks the leaf against the
// OCSP responder named in it. The issuer is the second chain element.
func (v *RevocationValidator) ValidateCertificate(ctx context.Context, chain []*x509.Certificate, purpose string) error {
	if v.base != nil {
		if err := v.base.ValidateCertificate(ctx, chain, purpose); err != nil {
			return err
		}
	}
	if len(chain) < 2 {
		if v.config.StrictMode {
			return fmt.Errorf("revocation check requires the issuer certificate")
		}
		return nil
	}

	err := v.checkOCSP(ctx, chain[0], chain[1])
	if err == nil || errors.Is(err, ErrCertificateRevoked) || v.config.StrictMode {
		return err
	}
	return nil
}

func (v *RevocationValidator) checkOCSP(ctx context.Context, cert, issuer *x509.Certificate) error {
	key := issuer.Subject.String() + "/" + cert.SerialNumber.String()
	if cached, ok := v.cache.Get(key); ok {
		return cached.(ocspResult).err
	}

	if len(cert.OCSPServer) == 0 {
		return fmt.Errorf("no OCSP server URL in certificate")
	}
	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cert.OCSPServer[0], bytes.NewReader(request))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")
	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("OCSP request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading OCSP response: %w", err)
	}

	ocspResp, err := ocsp.ParseResponseForCert(body, cert, issuer)
	if err != nil {
		return fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	var result error
	switch ocspResp.Status {
	case ocsp.Good:
	case ocsp.Revoked:
		result = ErrCertificateRevoked
	default:
		result = fmt.Errorf("OCSP status unknown")
	}
	v.cache.Set(key, ocspResult{err: result}, cache.DefaultExpiration)
	return result
}
