package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml/xmlenc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soap12Envelope = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Header><wsa:To xmlns:wsa="http://www.w3.org/2005/08/addressing">urn:recipient</wsa:To></soap:Header><soap:Body><m:Order xmlns:m="urn:example:orders"><m:Item>widget</m:Item></m:Order></soap:Body></soap:Envelope>`

const soap11Envelope = `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body><Ping xmlns="urn:ping"/></S:Body></S:Envelope>`

// generateTestCert generates a self-signed RSA certificate with a
// SubjectKeyIdentifier extension
func generateTestCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

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

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)
	return privateKey, cert
}

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := ParseEnvelope([]byte(soap12Envelope))
	require.NoError(t, err)
	return env
}

func TestParseEnvelope(t *testing.T) {
	env := testEnvelope(t)
	assert.Equal(t, NSSOAP12, env.SOAPNamespace())
	assert.NotNil(t, env.Body())
	assert.Equal(t, "Header", env.Header().Tag)

	_, err := ParseEnvelope([]byte(`<Envelope xmlns="urn:not-soap"/>`))
	assert.ErrorIs(t, err, ErrNotSOAPEnvelope)

	_, err = ParseEnvelope([]byte(`<broken`))
	assert.Error(t, err)
}

func TestSecurityHeader(t *testing.T) {
	t.Run("SOAP 1.2", func(t *testing.T) {
		env := testEnvelope(t)
		sec := env.SecurityHeader()
		assert.Equal(t, "true", sec.SelectAttrValue("soap:mustUnderstand", ""))
		assert.Same(t, sec, env.SecurityHeader())
		assert.Len(t, env.Header().SelectElements("Security"), 1)
	})

	t.Run("SOAP 1.1 without header", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(soap11Envelope))
		require.NoError(t, err)
		sec := env.SecurityHeader()
		assert.Equal(t, "1", sec.SelectAttrValue("S:mustUnderstand", ""))
		// The created Header precedes the Body
		children := env.Root().ChildElements()
		require.Len(t, children, 2)
		assert.Equal(t, "Header", children[0].Tag)
		assert.Equal(t, "Body", children[1].Tag)
	})
}

func TestEnsureID(t *testing.T) {
	env := testEnvelope(t)
	body := env.Body()

	id := EnsureID(body, "id-")
	assert.True(t, strings.HasPrefix(id, "id-"))
	assert.Equal(t, id, EnsureID(body, "other-"))
	assert.Same(t, body, env.ElementByID(id))
	assert.Same(t, body, env.ElementByID("#"+id))

	el := etree.NewElement("xenc:EncryptedData")
	el.CreateAttr("Id", "ED-1")
	assert.Equal(t, "ED-1", EnsureID(el, "id-"))
	assert.Nil(t, env.ElementByID("missing"))
}

func TestTokenReference(t *testing.T) {
	_, cert := generateTestCert(t)

	tests := []struct {
		name      string
		ref       TokenReference
		path      string
		valueType string
	}{
		{"issuer serial", TokenReference{Type: KeyIDIssuerSerial, Certificate: cert}, "./X509Data/X509IssuerSerial/X509SerialNumber", ""},
		{"ski", TokenReference{Type: KeyIDSKI, Certificate: cert}, "./KeyIdentifier", ValueTypeSKI},
		{"thumbprint", TokenReference{Type: KeyIDThumbprint, Certificate: cert}, "./KeyIdentifier", ValueTypeThumbprint},
		{"bst", TokenReference{Type: KeyIDBSTDirectReference, TokenID: "X509-1"}, "./Reference", ValueTypeX509v3},
		{"custom reference", TokenReference{Type: KeyIDCustomSymmSigning, TokenID: "DK-1", ValueType: ValueTypeDerivedKey}, "./Reference", ValueTypeDerivedKey},
		{"saml key identifier", TokenReference{Type: KeyIDCustomKeyIdentifier, ValueType: ValueTypeSAML20KeyIdentifier, Value: "_a1"}, "./KeyIdentifier", ValueTypeSAML20KeyIdentifier},
		{"encrypted key sha1", TokenReference{Type: KeyIDEncryptedKeySHA1, Value: "c2hhMQ=="}, "./KeyIdentifier", ValueTypeEncryptedKeySHA1},
		{"direct custom reference", TokenReference{Type: KeyIDCustomSymmSigningDirect, TokenID: "urn:uuid:sct", ValueType: ValueTypeSCT}, "./Reference", ValueTypeSCT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := tt.ref.Element()
			require.NoError(t, err)
			assert.Equal(t, "SecurityTokenReference", el.Tag)
			assert.NotEmpty(t, ElementID(el))
			child := el.FindElement(tt.path)
			require.NotNil(t, child, "missing %s", tt.path)
			if tt.valueType != "" {
				assert.Equal(t, tt.valueType, child.SelectAttrValue("ValueType", ""))
			}
		})
	}

	t.Run("key value", func(t *testing.T) {
		el, err := (&TokenReference{Type: KeyIDKeyValue, Certificate: cert}).Element()
		require.NoError(t, err)
		assert.Equal(t, "KeyValue", el.Tag)
		assert.NotNil(t, el.FindElement("./RSAKeyValue/Modulus"))
	})

	t.Run("direct reference keeps the identifier", func(t *testing.T) {
		el, err := (&TokenReference{Type: KeyIDCustomSymmSigningDirect, TokenID: "urn:uuid:sct"}).Element()
		require.NoError(t, err)
		assert.Equal(t, "urn:uuid:sct", el.FindElement("./Reference").SelectAttrValue("URI", ""))

		el, err = (&TokenReference{Type: KeyIDCustomSymmSigning, TokenID: "sct-1"}).Element()
		require.NoError(t, err)
		assert.Equal(t, "#sct-1", el.FindElement("./Reference").SelectAttrValue("URI", ""))
	})

	t.Run("ski missing", func(t *testing.T) {
		noSKI := &x509.Certificate{Raw: cert.Raw}
		_, err := (&TokenReference{Type: KeyIDSKI, Certificate: noSKI}).Element()
		assert.Error(t, err)
	})
}

func TestKeyIdentifierTypeString(t *testing.T) {
	assert.Equal(t, "IssuerSerial", KeyIDIssuerSerial.String())
	assert.Equal(t, "EncryptedKeySHA1", KeyIDEncryptedKeySHA1.String())
	assert.Equal(t, "CustomSymmSigningDirect", KeyIDCustomSymmSigningDirect.String())
	assert.Equal(t, "Unknown", KeyIdentifierType(99).String())
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := NewTimestamp(now, DefaultTimestampTTL)
	el := ts.Element()
	assert.True(t, strings.HasPrefix(ts.ID, "TS-"))
	assert.Equal(t, "2024-05-01T12:00:00.000Z", el.FindElement("./Created").Text())
	assert.Equal(t, "2024-05-01T12:05:00.000Z", el.FindElement("./Expires").Text())

	noExpiry := NewTimestamp(now, 0)
	assert.Nil(t, noExpiry.Element().FindElement("./Expires"))
}

func TestUsernameToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("digest", func(t *testing.T) {
		ut := NewUsernameToken("alice", "secret", PasswordTypeDigest, now)
		el := ut.Element()
		assert.Equal(t, "alice", el.FindElement("./Username").Text())
		pw := el.FindElement("./Password")
		require.NotNil(t, pw)
		assert.Equal(t, PasswordTypeDigest, pw.SelectAttrValue("Type", ""))

		nonce, err := base64.StdEncoding.DecodeString(el.FindElement("./Nonce").Text())
		require.NoError(t, err)
		created := el.FindElement("./Created").Text()
		assert.Equal(t, PasswordDigest(nonce, created, "secret"), pw.Text())
	})

	t.Run("text", func(t *testing.T) {
		ut := NewUsernameToken("alice", "secret", PasswordTypeText, now)
		assert.Equal(t, "secret", ut.Element().FindElement("./Password").Text())
	})

	t.Run("no password", func(t *testing.T) {
		ut := NewUsernameToken("alice", "", "", now)
		assert.Nil(t, ut.Element().FindElement("./Password"))
	})
}

func TestBinarySecurityTokenPKIPath(t *testing.T) {
	_, leaf := generateTestCert(t)
	_, ca := generateTestCert(t)

	bst, err := NewBinarySecurityToken([]*x509.Certificate{leaf, ca}, true)
	require.NoError(t, err)
	assert.Equal(t, ValueTypeX509PKIPath, bst.ValueType)

	der, err := base64.StdEncoding.DecodeString(bst.Element().Text())
	require.NoError(t, err)
	var path []asn1.RawValue
	_, err = asn1.Unmarshal(der, &path)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, ca.Raw, path[0].FullBytes)
	assert.Equal(t, leaf.Raw, path[1].FullBytes)

	_, err = NewBinarySecurityToken(nil, false)
	assert.Error(t, err)
}

func TestSignatureConfirmation(t *testing.T) {
	sc := NewSignatureConfirmation([]byte{1, 2, 3})
	assert.Equal(t, "AQID", sc.Element().SelectAttrValue("Value", ""))
	assert.True(t, strings.HasPrefix(sc.ID, "SC-"))

	empty := NewSignatureConfirmation(nil)
	assert.Nil(t, empty.Element().SelectAttr("Value"))
}

func TestSignatureRSA(t *testing.T) {
	key, cert := generateTestCert(t)
	env := testEnvelope(t)
	sec := env.SecurityHeader()

	ts := NewTimestamp(time.Now(), DefaultTimestampTTL)
	sec.AddChild(ts.Element())

	sig := &Signature{
		KeyIdentifierType: KeyIDBSTDirectReference,
		Certificates:      []*x509.Certificate{cert},
		Signer:            key,
	}
	require.NoError(t, sig.Prepare(env))
	require.NotNil(t, sig.BinarySecurityToken())
	sec.AddChild(sig.BinarySecurityToken().Element())
	sec.AddChild(sig.Element())

	bodyID := EnsureID(env.Body(), "id-")
	parts := []*EncryptionPart{
		{ID: ts.ID},
		{ID: bodyID, Modifier: ModifierElement},
		{ID: sig.BSTTokenID()},
	}
	require.NoError(t, sig.AddReferences(parts))
	assert.Equal(t, []string{"#" + ts.ID, "#" + bodyID, "#" + sig.BSTTokenID()}, sig.References())

	value, err := sig.Compute()
	require.NoError(t, err)
	assert.Equal(t, value, sig.Value())

	canonical, err := canonicalize(sig.signedInfo)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(canonical))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], value))

	ref := sig.KeyInfoReference().SelectElement("Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#"+sig.BSTTokenID(), ref.SelectAttrValue("URI", ""))
}

func TestSignatureHMAC(t *testing.T) {
	env := testEnvelope(t)
	secret := []byte("0123456789abcdef0123456789abcdef")
	sig := &Signature{
		SignatureAlgorithm:   AlgorithmHMACSHA256,
		KeyIdentifierType:    KeyIDCustomSymmSigning,
		Secret:               secret,
		CustomTokenID:        "sct-1",
		CustomTokenValueType: ValueTypeSCT,
	}
	require.NoError(t, sig.Prepare(env))
	require.NoError(t, sig.AddReferences([]*EncryptionPart{{Element: env.Body()}}))
	value, err := sig.Compute()
	require.NoError(t, err)

	canonical, err := canonicalize(sig.signedInfo)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	assert.Equal(t, mac.Sum(nil), value)
}

func TestSignatureECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	env := testEnvelope(t)

	sig := &Signature{
		SignatureAlgorithm: AlgorithmECDSASHA256,
		KeyIdentifierType:  KeyIDCustomKeyIdentifier,
		CustomTokenID:      "key-1",
		Signer:             key,
	}
	require.NoError(t, sig.Prepare(env))
	require.NoError(t, sig.AddReferences([]*EncryptionPart{{Element: env.Body()}}))
	value, err := sig.Compute()
	require.NoError(t, err)
	require.Len(t, value, 64)

	canonical, err := canonicalize(sig.signedInfo)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(canonical))
	r := new(big.Int).SetBytes(value[:32])
	s := new(big.Int).SetBytes(value[32:])
	assert.True(t, ecdsa.Verify(&key.PublicKey, digest[:], r, s))
}

func TestSignatureErrors(t *testing.T) {
	key, cert := generateTestCert(t)
	env := testEnvelope(t)

	err := (&Signature{Certificates: []*x509.Certificate{cert}}).Prepare(env)
	assert.ErrorIs(t, err, ErrCryptographic)

	err = (&Signature{SignatureAlgorithm: AlgorithmHMACSHA1}).Prepare(env)
	assert.ErrorIs(t, err, ErrCryptographic)

	sig := &Signature{Certificates: []*x509.Certificate{cert}, Signer: key}
	require.NoError(t, sig.Prepare(env))
	err = sig.AddReferences([]*EncryptionPart{{ID: "does-not-exist"}})
	require.Error(t, err)
	var cerr *CryptoError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "add references", cerr.Op)

	_, err = (&Signature{}).Compute()
	assert.ErrorIs(t, err, ErrCryptographic)
}

func TestSignatureSTRTransform(t *testing.T) {
	key, cert := generateTestCert(t)
	env := testEnvelope(t)
	sec := env.SecurityHeader()

	assertion, err := NewSAMLAssertion(BuildSAMLAssertion(2, "urn:issuer", "alice", time.Now(), time.Hour))
	require.NoError(t, err)
	sec.AddChild(assertion.Element())
	str, err := assertion.Reference()
	require.NoError(t, err)
	sec.AddChild(str)

	sig := &Signature{Certificates: []*x509.Certificate{cert}, Signer: key}
	require.NoError(t, sig.Prepare(env))
	require.NoError(t, sig.AddReferences([]*EncryptionPart{{ID: ElementID(str), Name: PartSTRTransform}}))

	transform := sig.signedInfo.FindElement("./Reference/Transforms/Transform")
	require.NotNil(t, transform)
	assert.Equal(t, AlgorithmSTRTransform, transform.SelectAttrValue("Algorithm", ""))
	assert.NotNil(t, transform.FindElement("./TransformationParameters/CanonicalizationMethod"))
}

func TestPSHA1(t *testing.T) {
	secret := []byte("shared secret")
	seed := []byte("label-and-nonce")

	full := PSHA1(secret, seed, 0, 48)
	require.Len(t, full, 48)
	assert.Equal(t, full, PSHA1(secret, seed, 0, 48))
	assert.Equal(t, full[16:32], PSHA1(secret, seed, 16, 16))

	// The first block is HMAC(secret, HMAC(secret, seed) || seed)
	a1 := hmac.New(sha1.New, secret)
	a1.Write(seed)
	first := hmac.New(sha1.New, secret)
	first.Write(a1.Sum(nil))
	first.Write(seed)
	assert.Equal(t, first.Sum(nil), full[:20])
}

func TestDerivedKeySignature(t *testing.T) {
	env := testEnvelope(t)
	dks := &DerivedKeySignature{
		Secret: []byte("base token secret"),
		Base:   TokenReference{Type: KeyIDCustomSymmSigning, TokenID: "EK-1", ValueType: ValueTypeEncryptedKey},
		Length: 24,
	}
	require.NoError(t, dks.Prepare(env))

	dkt := dks.DerivedKeyToken()
	require.NotNil(t, dkt)
	assert.Len(t, dkt.Key(), 24)
	assert.Equal(t, "24", dkt.Element().FindElement("./Length").Text())
	baseRef := dkt.Element().FindElement("./SecurityTokenReference/Reference")
	require.NotNil(t, baseRef)
	assert.Equal(t, "#EK-1", baseRef.SelectAttrValue("URI", ""))

	sigRef := dks.Signature().KeyInfoReference().SelectElement("Reference")
	require.NotNil(t, sigRef)
	assert.Equal(t, "#"+dkt.ID, sigRef.SelectAttrValue("URI", ""))
	assert.Equal(t, ValueTypeDerivedKey, sigRef.SelectAttrValue("ValueType", ""))

	require.NoError(t, dks.AddReferences([]*EncryptionPart{{Element: env.Body()}}))
	value, err := dks.Compute()
	require.NoError(t, err)
	assert.Len(t, value, 32)

	_, err = NewDerivedKeyToken(nil, 16, nil)
	assert.ErrorIs(t, err, ErrCryptographic)
}

func TestEncryptedKey(t *testing.T) {
	key, cert := generateTestCert(t)

	tests := []struct {
		name    string
		keyWrap string
		unwrap  func([]byte) ([]byte, error)
	}{
		{"rsa-oaep-mgf1p", AlgorithmRSAOAEP, func(c []byte) ([]byte, error) {
			return rsa.DecryptOAEP(sha1.New(), nil, key, c, nil)
		}},
		{"rsa-oaep", AlgorithmRSAOAEP11, func(c []byte) ([]byte, error) {
			return rsa.DecryptOAEP(sha256.New(), nil, key, c, nil)
		}},
		{"rsa-1_5", AlgorithmRSA15, func(c []byte) ([]byte, error) {
			return rsa.DecryptPKCS1v15(nil, key, c)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnvelope(t)
			ek, err := PrepareEncryptedKey(env, cert, KeyIDIssuerSerial, tt.keyWrap, AlgorithmAES256GCM)
			require.NoError(t, err)
			assert.Len(t, ek.Key(), 32)
			assert.True(t, strings.HasPrefix(ek.ID(), "EK-"))
			assert.Nil(t, ek.BinarySecurityToken())

			cek, err := tt.unwrap(ek.model.CipherData.CipherValue)
			require.NoError(t, err)
			assert.Equal(t, ek.Key(), cek)

			sum := sha1.Sum(ek.model.CipherData.CipherValue)
			assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), ek.SHA1())
		})
	}
}

func TestEncryptParts(t *testing.T) {
	_, cert := generateTestCert(t)
	env := testEnvelope(t)
	sec := env.SecurityHeader()

	ek, err := PrepareEncryptedKey(env, cert, KeyIDBSTDirectReference, "", "")
	require.NoError(t, err)
	require.NotNil(t, ek.BinarySecurityToken())
	sec.AddChild(ek.BinarySecurityToken().Element())
	sec.AddChild(ek.Element())

	to := env.Header().SelectElement("To")
	require.NotNil(t, to)
	bodyPart := &EncryptionPart{ID: EnsureID(env.Body(), "id-"), Modifier: ModifierContent}
	headerPart := &EncryptionPart{Element: to, Modifier: ModifierElement}

	require.NoError(t, ek.EncryptParts([]*EncryptionPart{bodyPart, headerPart}))

	// Body content replaced by EncryptedData
	children := env.Body().ChildElements()
	require.Len(t, children, 1)
	ed := children[0]
	assert.Equal(t, "EncryptedData", ed.Tag)
	assert.Equal(t, EncryptionTypeContent, ed.SelectAttrValue("Type", ""))
	assert.Equal(t, bodyPart.EncID, ElementID(ed))

	ciphertext, err := base64.StdEncoding.DecodeString(ed.FindElement(".//CipherValue").Text())
	require.NoError(t, err)
	plaintext, err := xmlenc.AESGCMDecrypt(ek.Key(), ciphertext, nil)
	require.NoError(t, err)
	assert.Contains(t, string(plaintext), "widget")
	assert.Contains(t, string(plaintext), `xmlns:m="urn:example:orders"`)

	// Header block wrapped in EncryptedHeader
	eh := env.Header().SelectElement("EncryptedHeader")
	require.NotNil(t, eh)
	assert.True(t, strings.HasPrefix(headerPart.EncID, "EH-"))
	assert.Equal(t, headerPart.EncID, ElementID(eh))
	assert.Nil(t, env.Header().SelectElement("To"))

	refs := ek.DataReferences()
	require.Len(t, refs, 2)
	assert.Equal(t, "#"+bodyPart.EncID, refs[0])
	dataRefs := ek.Element().FindElements("./ReferenceList/DataReference")
	assert.Len(t, dataRefs, 2)
}

func TestEncryptPartsCBC(t *testing.T) {
	_, cert := generateTestCert(t)
	env := testEnvelope(t)

	ek, err := PrepareEncryptedKey(env, cert, KeyIDIssuerSerial, AlgorithmRSA15, AlgorithmAES256CBC)
	require.NoError(t, err)
	assert.Len(t, ek.Key(), 32)
	env.SecurityHeader().AddChild(ek.Element())

	bodyPart := &EncryptionPart{ID: EnsureID(env.Body(), "id-"), Modifier: ModifierContent}
	require.NoError(t, ek.EncryptParts([]*EncryptionPart{bodyPart}))

	ed := env.Body().SelectElement("EncryptedData")
	require.NotNil(t, ed)
	assert.Equal(t, AlgorithmAES256CBC, ed.FindElement("./EncryptionMethod").SelectAttrValue("Algorithm", ""))

	ciphertext, err := base64.StdEncoding.DecodeString(ed.FindElement(".//CipherValue").Text())
	require.NoError(t, err)
	plaintext, err := xmlenc.AESCBCDecrypt(ek.Key(), ciphertext)
	require.NoError(t, err)
	assert.Contains(t, string(plaintext), "widget")
}

func TestEncryptedKeyErrors(t *testing.T) {
	env := testEnvelope(t)
	_, err := PrepareEncryptedKey(env, nil, KeyIDIssuerSerial, "", "")
	assert.ErrorIs(t, err, ErrCryptographic)

	_, cert := generateTestCert(t)
	_, err = PrepareEncryptedKey(env, cert, KeyIDIssuerSerial, "urn:unknown", "")
	assert.ErrorIs(t, err, ErrCryptographic)

	_, err = PrepareEncryptedKey(env, cert, KeyIDIssuerSerial, "", "http://www.w3.org/2001/04/xmlenc#tripledes-cbc")
	assert.ErrorIs(t, err, ErrCryptographic)

	ek, err := PrepareEncryptedKey(env, cert, KeyIDIssuerSerial, "", "")
	require.NoError(t, err)
	err = ek.EncryptParts([]*EncryptionPart{{ID: "missing"}})
	assert.ErrorIs(t, err, ErrCryptographic)
}

func TestSAMLAssertion(t *testing.T) {
	now := time.Now()
	for _, version := range []int{1, 2} {
		a, err := NewSAMLAssertion(BuildSAMLAssertion(version, "urn:issuer", "alice", now, time.Hour))
		require.NoError(t, err)
		assert.Equal(t, version, a.Version())
		assert.True(t, strings.HasPrefix(a.ID(), "_"))

		str, err := a.Reference()
		require.NoError(t, err)
		ki := str.SelectElement("KeyIdentifier")
		require.NotNil(t, ki)
		assert.Equal(t, a.ID(), ki.Text())
		assert.Equal(t, a.KeyIdentifierValueType(), ki.SelectAttrValue("ValueType", ""))
		assert.Equal(t, a.TokenType(), str.SelectAttrValue("wsse11:TokenType", ""))
	}

	_, err := NewSAMLAssertion(etree.NewElement("Assertion"))
	assert.Error(t, err)
}
