package binding

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wspolicy/pkg/keystore"
	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

const soap12Envelope = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Header><wsa:To xmlns:wsa="http://www.w3.org/2005/08/addressing">urn:recipient</wsa:To><wsa:Action xmlns:wsa="http://www.w3.org/2005/08/addressing">urn:order</wsa:Action></soap:Header><soap:Body><m:Order xmlns:m="urn:example:orders"><m:Item>widget</m:Item></m:Order></soap:Body></soap:Envelope>`

const nsAddressing = "http://www.w3.org/2005/08/addressing"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testCert    *x509.Certificate
	testKeyErr  error
)

// generateTestCert returns a self-signed RSA certificate with a
// SubjectKeyIdentifier extension. The key pair is generated once per test
// binary.
func generateTestCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
		if testKeyErr != nil {
			return
		}
		template := &x509.Certificate{
			SerialNumber: big.NewInt(4711),
			Subject: pkix.Name{
				Organization: []string{"Test Org"},
				CommonName:   "test.example.com",
			},
			NotBefore:             time.Now().Add(-time.Hour),
			NotAfter:              time.Now().Add(365 * 24 * time.Hour),
			KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			BasicConstraintsValid: true,
			SubjectKeyId:          []byte("01234567890123456789"),
		}
		var der []byte
		der, testKeyErr = x509.CreateCertificate(rand.Reader, template, template, &testKey.PublicKey, testKey)
		if testKeyErr != nil {
			return
		}
		testCert, testKeyErr = x509.ParseCertificate(der)
	})
	require.NoError(t, testKeyErr)
	return testKey, testCert
}

// otherCert returns a self-signed certificate for a fresh ECDSA key, unrelated
// to the key served by stubCrypto.
func otherCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(4712),
		Subject:      pkix.Name{CommonName: "issuer.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// stubCrypto serves a single key pair under one alias.
type stubCrypto struct {
	alias string
	key   crypto.Signer
	certs []*x509.Certificate

	mu        sync.Mutex
	passwords []string
}

func newStubCrypto(t *testing.T, alias string) *stubCrypto {
	key, cert := generateTestCert(t)
	return &stubCrypto{alias: alias, key: key, certs: []*x509.Certificate{cert}}
}

func (s *stubCrypto) DefaultIdentifier() string { return s.alias }

func (s *stubCrypto) Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error) {
	if alias != s.alias {
		return nil, keystore.ErrCertificateNotFound
	}
	return s.certs, nil
}

func (s *stubCrypto) PrivateKey(ctx context.Context, alias, password string) (crypto.Signer, error) {
	if alias != s.alias {
		return nil, keystore.ErrKeyNotFound
	}
	s.mu.Lock()
	s.passwords = append(s.passwords, password)
	s.mu.Unlock()
	return s.key, nil
}

func (s *stubCrypto) Close() error { return nil }

type rejectValidator struct {
	purpose string
}

func (v rejectValidator) ValidateCertificate(ctx context.Context, chain []*x509.Certificate, purpose string) error {
	if purpose == v.purpose {
		return keystore.ErrCertificateNotFound
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEnvelope(t *testing.T) *security.Envelope {
	t.Helper()
	env, err := security.ParseEnvelope([]byte(soap12Envelope))
	require.NoError(t, err)
	return env
}

func testEndpoint(t *testing.T, opts ...Option) *Endpoint {
	t.Helper()
	c := newStubCrypto(t, "alice")
	base := []Option{
		WithRequestor(true),
		WithLogger(discardLogger()),
		WithSignatureCrypto(c, ""),
		WithEncryptionCrypto(c, ""),
	}
	return NewEndpoint(append(base, opts...)...)
}

// testPass returns a pass over a fresh envelope.
func testPass(t *testing.T, ep *Endpoint, p *policy.Policy) *pass {
	t.Helper()
	ps, err := NewHandler(ep, p).newPass(context.Background(), testEnvelope(t), &Exchange{})
	require.NoError(t, err)
	return ps
}

// childTags returns the local names of el's child elements.
func childTags(el *etree.Element) []string {
	var tags []string
	for _, c := range el.ChildElements() {
		tags = append(tags, c.Tag)
	}
	return tags
}

func signedURIs(sig *etree.Element) []string {
	var uris []string
	for _, ref := range sig.FindElements("./SignedInfo/Reference") {
		uris = append(uris, ref.SelectAttrValue("URI", ""))
	}
	return uris
}

func x509Token(inclusion policy.Inclusion) *policy.Token {
	return &policy.Token{Kind: policy.KindX509, Inclusion: inclusion, X509TokenType: policy.X509V3Token10}
}

func asymmetricPolicy(extra ...policy.Assertion) *policy.Policy {
	b := &policy.Binding{
		Type:             policy.BindingAsymmetric,
		InitiatorToken:   x509Token(policy.IncludeAlwaysToRecipient),
		RecipientToken:   x509Token(policy.IncludeNever),
		Layout:           &policy.Layout{Type: policy.LayoutStrict},
		IncludeTimestamp: &policy.IncludeTimestamp{},
	}
	return policy.New(append([]policy.Assertion{b}, extra...)...)
}
