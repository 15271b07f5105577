package binding

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-wspolicy/pkg/keystore"
	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore"
)

// isTokenRequired reports whether the token itself is placed in the header
// in this direction. A token left out is still used; it is referenced by key
// identifier or by its unattached reference instead.
func (p *pass) isTokenRequired(tok *policy.Token) bool {
	return tok.IncludedInline(p.ep.requestor)
}

// password asks the callback for the password of user. Without a callback
// a signature password falls back to the keystore, and any other usage is
// denied.
func (p *pass) password(a policy.Assertion, user string, usage Usage) (string, error) {
	if p.ep.callback == nil {
		if usage == UsageSignature {
			p.log.Debug("no password callback, relying on the keystore for the private key password",
				slog.String("user", user))
			return "", nil
		}
		return "", p.deny(a, "No callback handler and no password available")
	}
	pw, err := p.ep.callback.Password(p.ctx, user, usage)
	if err != nil {
		return "", p.deny(a, fmt.Sprintf("password callback failed: %v", err))
	}
	return pw, nil
}

// signingKey resolves the signing identity of the endpoint. It returns a
// nil key without error when an optional assertion was denied.
func (p *pass) signingKey(a policy.Assertion) ([]*x509.Certificate, crypto.Signer, error) {
	c := p.ep.signatureCrypto
	if c == nil {
		return nil, nil, p.deny(a, "Security configuration could not be detected")
	}
	user := p.ep.signatureUser
	if user == "" {
		user = c.DefaultIdentifier()
	}
	if user == "" {
		return nil, nil, p.deny(a, "No signature username found.")
	}

	pw, err := p.password(a, user, UsageSignature)
	if err != nil {
		return nil, nil, err
	}
	certs, err := c.Certificates(p.ctx, user)
	if err != nil {
		return nil, nil, p.fail(a, &security.CryptoError{Op: "load signing certificate", Err: err})
	}
	key, err := c.PrivateKey(p.ctx, user, pw)
	if err != nil {
		return nil, nil, p.fail(a, &security.CryptoError{Op: "load signing key", Err: err})
	}
	if err := p.validate(a, certs, keystore.PurposeSigning); err != nil {
		return nil, nil, err
	}
	return certs, key, nil
}

// signatureBuilder prepares a signature with the endpoint's signing key,
// referring to it as the token requirement asks.
func (p *pass) signatureBuilder(tok *policy.Token) (*security.Signature, error) {
	certs, key, err := p.signingKey(tok)
	if err != nil || key == nil {
		return nil, err
	}
	sig := &security.Signature{
		SignatureAlgorithm: p.asymmetricAlgorithm(key),
		DigestAlgorithm:    string(p.suite.Digest),
		KeyIdentifierType:  p.keyIdentifierType(tok, certs[0]),
		Certificates:       certs,
		PKIPath:            tok.X509TokenType == policy.X509PkiPath,
		Signer:             key,
	}
	if err := sig.Prepare(p.env); err != nil {
		return nil, p.fail(tok, err)
	}
	return sig, nil
}

// issuedTokenSignature prepares a signature over the key of an issued token
// that carries a certificate, referring to the token by a custom key
// identifier. The signing key must be the one the certificate certifies.
func (p *pass) issuedTokenSignature(tok *policy.Token, secTok *tokenstore.SecurityToken, id string) (*security.Signature, error) {
	_, key, err := p.signingKey(tok)
	if err != nil || key == nil {
		return nil, err
	}
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(secTok.Certificate.PublicKey) {
		return nil, p.deny(tok, "No signing key found for the certificate of the issued token")
	}
	sig := &security.Signature{
		SignatureAlgorithm:   p.asymmetricAlgorithm(key),
		DigestAlgorithm:      string(p.suite.Digest),
		KeyIdentifierType:    security.KeyIDCustomKeyIdentifier,
		Certificates:         []*x509.Certificate{secTok.Certificate},
		Signer:               key,
		CustomTokenID:        id,
		CustomTokenValueType: samlValueType(secTok.TokenType),
	}
	if err := sig.Prepare(p.env); err != nil {
		return nil, p.fail(tok, err)
	}
	return sig, nil
}

func (p *pass) asymmetricAlgorithm(key crypto.Signer) string {
	if _, ok := key.Public().(*ecdsa.PublicKey); ok {
		return keystore.SignatureAlgorithm(key.Public())
	}
	return string(p.suite.AsymmetricSignature)
}

// keyIdentifierType selects how a certificate is referenced. A token sent
// in this direction is embedded as a BinarySecurityToken; otherwise the
// token's own reference requirement wins, then the Wss assertion's
// must-support flags.
func (p *pass) keyIdentifierType(tok *policy.Token, cert *x509.Certificate) security.KeyIdentifierType {
	if tok.Kind == policy.KindKeyValue {
		return security.KeyIDKeyValue
	}
	if p.isTokenRequired(tok) {
		return security.KeyIDBSTDirectReference
	}

	switch {
	case tok.RequireIssuerSerialReference:
		return security.KeyIDIssuerSerial
	case tok.RequireKeyIdentifierReference:
		return skiOrIssuerSerial(cert)
	case tok.RequireThumbprintReference:
		return security.KeyIDThumbprint
	}

	wss := p.wss()
	if wss != nil {
		p.ledger.Assert(wss)
	}
	switch {
	case wss == nil || wss.MustSupportRefKeyIdentifier:
		return skiOrIssuerSerial(cert)
	case wss.MustSupportRefIssuerSerial:
		return security.KeyIDIssuerSerial
	case wss.Version == 11 && wss.MustSupportRefThumbprint:
		return security.KeyIDThumbprint
	default:
		return security.KeyIDIssuerSerial
	}
}

// skiOrIssuerSerial falls back to issuer-serial for certificates without a
// SubjectKeyIdentifier, which version 1 certificates lack.
func skiOrIssuerSerial(cert *x509.Certificate) security.KeyIdentifierType {
	if security.CertHasSKI(cert) {
		return security.KeyIDSKI
	}
	return security.KeyIDIssuerSerial
}

// wss returns the top-level Wss10 or Wss11 assertion, preferring Wss11.
func (p *pass) wss() *policy.Wss {
	var found *policy.Wss
	for _, a := range p.policy.Assertions {
		if w, ok := a.(*policy.Wss); ok {
			if w.Version == 11 {
				return w
			}
			if found == nil {
				found = w
			}
		}
	}
	return found
}

// validate runs the endpoint's certificate validator, if any.
func (p *pass) validate(a policy.Assertion, chain []*x509.Certificate, purpose string) error {
	if p.ep.certValidator == nil {
		return nil
	}
	if err := p.ep.certValidator.ValidateCertificate(p.ctx, chain, purpose); err != nil {
		return p.fail(a, &security.CryptoError{Op: "validate " + purpose + " certificate", Err: err})
	}
	return nil
}

// securityToken returns the token negotiated for the exchange, looking it
// up by id when only the id is known. A token found is added back to the
// store so that it stays available for the rest of the exchange.
func (p *pass) securityToken() (*tokenstore.SecurityToken, error) {
	store := p.ex.TokenStore
	if store == nil {
		store = p.ep.tokenStore
	}

	tok := p.ex.Token
	if tok == nil && p.ex.TokenID != "" {
		var err error
		tok, err = store.Get(p.ctx, p.ex.TokenID)
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("looking up token %s: %w", p.ex.TokenID, err)
		}
	}
	if tok == nil {
		return nil, nil
	}
	if err := store.Add(p.ctx, tok); err != nil {
		return nil, fmt.Errorf("storing token %s: %w", tok.ID, err)
	}
	return tok, nil
}

// encryptedKeyBuilder wraps a fresh content encryption key for the
// recipient named by the endpoint configuration, or for the signer of the
// inbound request.
func (p *pass) encryptedKeyBuilder(tok *policy.Token) (*security.EncryptedKey, error) {
	var certs []*x509.Certificate
	user := p.ep.encryptionUser

	if user == UseReqSigCert {
		for _, r := range p.ex.resultsFor(ActionSign) {
			if len(r.Certificates) > 0 {
				certs = r.Certificates
				break
			}
		}
		if len(certs) == 0 {
			return nil, p.deny(tok, "No signing certificate found in the request")
		}
	} else {
		c := p.ep.encryptionCrypto
		if c == nil {
			return nil, p.deny(tok, "Security configuration could not be detected")
		}
		if user == "" {
			user = c.DefaultIdentifier()
		}
		if user == "" {
			return nil, p.deny(tok, "No encryption username found.")
		}
		var err error
		certs, err = c.Certificates(p.ctx, user)
		if err != nil {
			return nil, p.fail(tok, &security.CryptoError{Op: "load recipient certificate", Err: err})
		}
	}

	if err := p.validate(tok, certs, keystore.PurposeEncryption); err != nil {
		return nil, err
	}
	ek, err := security.PrepareEncryptedKey(p.env, certs[0], p.keyIdentifierType(tok, certs[0]),
		string(p.suite.AsymmetricKeyWrap), string(p.suite.Encryption))
	if err != nil {
		return nil, p.fail(tok, err)
	}
	return ek, nil
}
