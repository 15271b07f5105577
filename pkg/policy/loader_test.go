package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicy = `
binding:
  type: asymmetric
  algorithmSuite: Basic256GCMSha256
  layout: LaxTimestampFirst
  includeTimestamp: true
  protectTokens: true
  initiatorToken:
    kind: X509Token
    inclusion: AlwaysToRecipient
    requireIssuerSerialReference: true
  recipientToken:
    kind: X509Token
    inclusion: Never
supportingTokens:
  - category: SignedSupportingTokens
    tokens:
      - kind: UsernameToken
        hashPassword: true
  - category: EndorsingEncryptedSupportingTokens
    optional: true
    tokens:
      - kind: X509Token
signedParts:
  body: true
  headers:
    - name: To
      namespace: http://www.w3.org/2005/08/addressing
encryptedElements:
  namespaces:
    s: http://www.w3.org/2003/05/soap-envelope
  xpaths:
    - //s:Body/*
wss11:
  mustSupportRefThumbprint: true
  requireSignatureConfirmation: true
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(samplePolicy))
	require.NoError(t, err)

	b := p.Binding()
	require.NotNil(t, b)
	assert.Equal(t, BindingAsymmetric, b.Type)
	assert.Equal(t, "Basic256GCMSha256", b.AlgorithmSuite.Suite)
	assert.Equal(t, EncAES256GCM, b.AlgorithmSuite.Encryption)
	require.NotNil(t, b.Layout)
	assert.Equal(t, LayoutLaxTimestampFirst, b.Layout.Type)
	assert.NotNil(t, b.IncludeTimestamp)
	assert.True(t, b.ProtectTokens)
	require.NotNil(t, b.InitiatorToken)
	assert.Equal(t, KindX509, b.InitiatorToken.Kind)
	assert.Equal(t, X509V3Token10, b.InitiatorToken.X509TokenType)
	assert.True(t, b.InitiatorToken.RequireIssuerSerialReference)
	assert.Equal(t, IncludeNever, b.RecipientToken.Inclusion)

	sts := p.SupportingTokens()
	require.Len(t, sts, 2)
	assert.Equal(t, SignedSupporting, sts[0].Category)
	assert.True(t, sts[0].Tokens[0].HashPassword)
	assert.Equal(t, IncludeAlways, sts[0].Tokens[0].Inclusion)
	assert.Equal(t, EndorsingEncryptedSupporting, sts[1].Category)
	assert.True(t, sts[1].Optional)
	assert.True(t, sts[1].Category.IsEndorsing())
	assert.True(t, sts[1].Category.IsEncrypted())
	assert.False(t, sts[1].Category.IsSigned())

	l := NewLedger(p)
	require.Len(t, l.Get(QNameSignedParts), 1)
	parts := l.Get(QNameSignedParts)[0].Assertion().(*Parts)
	assert.True(t, parts.Body)
	require.Len(t, parts.Headers, 1)
	assert.Equal(t, "To", parts.Headers[0].Name)

	require.Len(t, l.Get(QNameEncryptedElements), 1)
	elems := l.Get(QNameEncryptedElements)[0].Assertion().(*Elements)
	require.Len(t, elems.XPaths, 1)
	assert.Equal(t, "//s:Body/*", elems.XPaths[0].Expression)
	assert.Equal(t, "http://www.w3.org/2003/05/soap-envelope", elems.XPaths[0].Namespaces["s"])

	require.Len(t, l.Get(QNameWss11), 1)
	wss := l.Get(QNameWss11)[0].Assertion().(*Wss)
	assert.True(t, wss.RequireSignatureConfirmation)
	assert.True(t, wss.MustSupportRefThumbprint)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown binding", "binding:\n  type: quantum\n"},
		{"unknown suite", "binding:\n  algorithmSuite: Nope\n"},
		{"unknown layout", "binding:\n  layout: Sideways\n"},
		{"unknown token kind", "supportingTokens:\n  - category: SupportingTokens\n    tokens:\n      - kind: Passport\n"},
		{"unknown category", "supportingTokens:\n  - category: ExtraTokens\n    tokens:\n      - kind: UsernameToken\n"},
		{"empty category", "supportingTokens:\n  - category: SupportingTokens\n"},
		{"bad inclusion", "binding:\n  initiatorToken:\n    kind: X509Token\n    inclusion: Sometimes\n"},
		{"invalid yaml", "binding: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicy), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, p.Binding())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTokenInclusion(t *testing.T) {
	tests := []struct {
		inclusion         Inclusion
		inlineInitiator   bool
		inlineRecipient   bool
		requiredInitiator bool
		requiredRecipient bool
	}{
		{IncludeNever, false, false, false, false},
		{IncludeOnce, true, true, true, true},
		{IncludeAlways, true, true, true, true},
		{IncludeAlwaysToRecipient, true, false, false, true},
		{IncludeAlwaysToInitiator, false, true, true, false},
		{"", true, true, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.inclusion), func(t *testing.T) {
			tok := &Token{Kind: KindX509, Inclusion: tt.inclusion}
			assert.Equal(t, tt.inlineInitiator, tok.IncludedInline(true))
			assert.Equal(t, tt.inlineRecipient, tok.IncludedInline(false))
			assert.Equal(t, tt.requiredInitiator, tok.RequiredInbound(true))
			assert.Equal(t, tt.requiredRecipient, tok.RequiredInbound(false))
		})
	}
}

func TestLookupAlgorithmSuite(t *testing.T) {
	tests := []struct {
		name       string
		encryption EncryptionAlgorithm
		keyWrap    KeyWrapAlgorithm
		digest     DigestAlgorithm
	}{
		{"Basic128GCMSha256", EncAES128GCM, KeyWrapRSAOAEP, DigestSHA256},
		{"Basic256", EncAES256CBC, KeyWrapRSAOAEP, DigestSHA1},
		{"Basic192", EncAES192CBC, KeyWrapRSAOAEP, DigestSHA1},
		{"Basic128", EncAES128CBC, KeyWrapRSAOAEP, DigestSHA1},
		{"Basic256Rsa15", EncAES256CBC, KeyWrapRSA15, DigestSHA1},
		{"Basic256Sha256", EncAES256CBC, KeyWrapRSAOAEP, DigestSHA256},
		{"Basic128Sha256", EncAES128CBC, KeyWrapRSAOAEP, DigestSHA256},
		{"Basic256Sha256Rsa15", EncAES256CBC, KeyWrapRSA15, DigestSHA256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite, err := LookupAlgorithmSuite(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, suite.Suite)
			assert.Equal(t, tt.encryption, suite.Encryption)
			assert.Equal(t, tt.keyWrap, suite.AsymmetricKeyWrap)
			assert.Equal(t, tt.digest, suite.Digest)
		})
	}

	_, err := LookupAlgorithmSuite("TripleDes")
	assert.ErrorContains(t, err, "unknown algorithm suite")
}
