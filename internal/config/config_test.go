package config

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wspolicy/pkg/binding"
	"github.com/sirosfoundation/go-wspolicy/pkg/keystore"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

const transportPolicy = `
binding:
  type: transport
  includeTimestamp: true
  layout: LaxTimestampFirst
supportingTokens:
  - category: SignedSupportingTokens
    tokens:
      - kind: UsernameToken
        inclusion: AlwaysToRecipient
`

const message = `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Header/><soap:Body><Ping xmlns="urn:example"/></soap:Body></soap:Envelope>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("WSP_TEST_PASSWORD", "s3cret")
	path := writeFile(t, "config.yaml", `
endpoint:
  requestor: true
security:
  username: alice
  password: ${WSP_TEST_PASSWORD}
  timestampTTL: 2m
signatureCrypto:
  provider: pkcs12
  file: /etc/wsp/alice.p12
  password: $WSP_TEST_PASSWORD
tokenStore:
  type: redis
  defaultTTL: 1h
  redis:
    addr: localhost:6379
policy: /etc/wsp/policy.yaml
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Endpoint.Requestor)
	assert.Equal(t, "s3cret", cfg.Security.Password)
	assert.Equal(t, 2*time.Minute, cfg.Security.TimestampTTL)
	require.NotNil(t, cfg.SignatureCrypto)
	assert.Equal(t, keystore.ProviderPKCS12, cfg.SignatureCrypto.Provider)
	assert.Equal(t, "s3cret", cfg.SignatureCrypto.Password)
	assert.Nil(t, cfg.EncryptionCrypto)
	assert.Equal(t, StoreRedis, cfg.TokenStore.Type)
	assert.Equal(t, time.Hour, cfg.TokenStore.Redis.DefaultTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("policy: p.yaml\nsecurity:\n  username: bob\n  saml:\n    issuer: urn:idp\n"))
	require.NoError(t, err)

	assert.Equal(t, security.DefaultTimestampTTL, cfg.Security.TimestampTTL)
	require.NotNil(t, cfg.Security.AlwaysEncryptUsernameToken)
	assert.True(t, *cfg.Security.AlwaysEncryptUsernameToken)
	assert.Equal(t, "bob", cfg.Security.SAML.Subject)
	assert.Equal(t, 5*time.Minute, cfg.Security.SAML.TTL)
	assert.Equal(t, StoreMemory, cfg.TokenStore.Type)
	assert.Equal(t, "wspolicy", cfg.TokenStore.MongoDB.Database)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Trust.OCSP.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing policy", "endpoint:\n  requestor: true\n", "policy is required"},
		{"negative ttl", "policy: p\nsecurity:\n  timestampTTL: -1s\n", "security.timestampTTL must not be negative"},
		{"unknown store", "policy: p\ntokenStore:\n  type: etcd\n", "tokenStore.type must be"},
		{"mongodb without uri", "policy: p\ntokenStore:\n  type: mongodb\n", "tokenStore.mongodb.uri is required"},
		{"redis without addr", "policy: p\ntokenStore:\n  type: redis\n", "tokenStore.redis.addr is required"},
		{"unknown provider", "policy: p\nsignatureCrypto:\n  provider: jks\n", "signatureCrypto.provider must be"},
		{"file without dir", "policy: p\nencryptionCrypto:\n  provider: file\n", "encryptionCrypto.dir is required"},
		{"pkcs12 without file", "policy: p\nsignatureCrypto:\n  provider: pkcs12\n", "signatureCrypto.file is required"},
		{"pkcs11 without module", "policy: p\nsignatureCrypto:\n  provider: pkcs11\n", "signatureCrypto.pkcs11.modulePath is required"},
		{"ocsp without roots", "policy: p\ntrust:\n  ocsp:\n    enabled: true\n", "trust.rootsFile is required"},
		{"bad level", "policy: p\nlogging:\n  level: trace\n", "logging.level must be"},
		{"bad yaml", "policy: [", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "INFO": "INFO", "warning": "WARN", "error": "ERROR"} {
		level, err := parseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, level.String())
	}
}

type fakeCrypto struct {
	alias string
}

func (f *fakeCrypto) DefaultIdentifier() string { return f.alias }

func (f *fakeCrypto) Certificates(context.Context, string) ([]*x509.Certificate, error) {
	return nil, keystore.ErrCertificateNotFound
}

func (f *fakeCrypto) PrivateKey(context.Context, string, string) (crypto.Signer, error) {
	return nil, keystore.ErrKeyNotFound
}

func (f *fakeCrypto) Close() error { return nil }

func TestEndpointOptions(t *testing.T) {
	var created []keystore.Properties
	resolver := keystore.NewResolver(keystore.WithFactory(func(p keystore.Properties) (keystore.Crypto, error) {
		created = append(created, p)
		return &fakeCrypto{alias: p.DefaultAlias}, nil
	}))
	defer resolver.Close()

	registry := binding.NewCallbackRegistry()
	registry.Register("keystore", binding.StaticPasswords{"alice": "changeit"})

	cfg, err := Parse([]byte(`
policy: p.yaml
security:
  callback: keystore
signatureCrypto:
  provider: pkcs12
  file: alice.p12
  defaultAlias: alice
encryptionCrypto:
  provider: pkcs12
  file: alice.p12
  defaultAlias: alice
`))
	require.NoError(t, err)

	opts, err := cfg.EndpointOptions(resolver, registry)
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
	// Both sections describe the same keystore, so it is created once.
	assert.Len(t, created, 1)

	cfg.Security.Callback = "missing"
	_, err = cfg.EndpointOptions(resolver, registry)
	assert.ErrorContains(t, err, `unknown password callback "missing"`)

	_, err = cfg.EndpointOptions(resolver, nil)
	assert.Error(t, err)
}

func TestEndpointOptionsWithoutDefaults(t *testing.T) {
	resolver := keystore.NewResolver()
	defer resolver.Close()

	cfg := &Config{Policy: "p.yaml"}
	var opts []binding.Option
	require.NotPanics(t, func() {
		var err error
		opts, err = cfg.EndpointOptions(resolver, nil)
		require.NoError(t, err)
	})
	ep := binding.NewEndpoint(opts...)
	assert.False(t, ep.IsRequestor())
	assert.NotNil(t, ep.TokenStore())
}

func TestCertificateValidator(t *testing.T) {
	cfg := &Config{}
	v, err := cfg.CertificateValidator()
	require.NoError(t, err)
	assert.Nil(t, v)

	cfg.Trust.RootsFile = writeFile(t, "roots.pem", string(selfSignedPEM(t)))
	v, err = cfg.CertificateValidator()
	require.NoError(t, err)
	assert.IsType(t, &keystore.PKIValidator{}, v)

	cfg.Trust.OCSP.Enabled = true
	v, err = cfg.CertificateValidator()
	require.NoError(t, err)
	assert.IsType(t, &keystore.RevocationValidator{}, v)

	cfg.Trust.RootsFile = writeFile(t, "empty.pem", "not a certificate")
	_, err = cfg.CertificateValidator()
	assert.ErrorContains(t, err, "no certificates found")
}

func selfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestOpen(t *testing.T) {
	cfg, err := Parse([]byte(`
endpoint:
  requestor: true
security:
  username: alice
  password: secret
  alwaysEncryptUsernameToken: false
policy: ` + writeFile(t, "policy.yaml", transportPolicy) + `
logging:
  level: error
`))
	require.NoError(t, err)

	ctx := context.Background()
	rt, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer rt.Close(ctx)

	assert.True(t, rt.Endpoint.IsRequestor())
	require.NotNil(t, rt.Policy.Binding())

	env, err := security.ParseEnvelope([]byte(message))
	require.NoError(t, err)
	res, err := rt.Handler().Secure(ctx, env, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Ledger.Unsatisfied())

	var tags []string
	for _, el := range env.SecurityHeader().ChildElements() {
		tags = append(tags, el.Tag)
	}
	assert.Equal(t, []string{"Timestamp", "UsernameToken"}, tags)
}

func TestOpenMissingPolicy(t *testing.T) {
	cfg, err := Parse([]byte("policy: " + filepath.Join(t.TempDir(), "none.yaml") + "\n"))
	require.NoError(t, err)
	_, err = Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "reading policy file")
}
