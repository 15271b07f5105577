package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// DefaultDerivedKeyLabel is the label used when a DerivedKeyToken does not
// carry one.
const DefaultDerivedKeyLabel = "WS-SecureConversationWS-SecureConversation"

// PSHA1 computes the P_SHA-1 function of RFC 2246 and returns length bytes
// starting at offset.
func PSHA1(secret, seed []byte, offset, length int) []byte {
	out := make([]byte, 0, offset+length+sha1.Size)
	a := seed
	for len(out) < offset+length {
		mac := hmac.New(sha1.New, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac = hmac.New(sha1.New, secret)
		mac.Write(a)
		mac.Write(seed)
		out = mac.Sum(out)
	}
	return out[offset : offset+length]
}

// DerivedKeyToken is a wsc:DerivedKeyToken derived from the secret of a
// base token.
type DerivedKeyToken struct {
	ID     string
	Offset int
	Length int
	Label  string
	Nonce  []byte

	key     []byte
	element *etree.Element
}

// NewDerivedKeyToken derives a key of length bytes from secret. ref is the
// SecurityTokenReference to the base token.
func NewDerivedKeyToken(secret []byte, length int, ref *etree.Element) (*DerivedKeyToken, error) {
	if len(secret) == 0 {
		return nil, cryptoErrorf("derive key", "base token has no secret")
	}
	if length <= 0 {
		return nil, cryptoErrorf("derive key", "invalid derived key length %d", length)
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, cryptoError("derive key", fmt.Errorf("failed to generate nonce: %w", err))
	}

	dk := &DerivedKeyToken{
		ID:     "DK-" + generateID(),
		Length: length,
		Label:  DefaultDerivedKeyLabel,
		Nonce:  nonce,
	}
	seed := append([]byte(dk.Label), nonce...)
	dk.key = PSHA1(secret, seed, dk.Offset, dk.Length)

	el := etree.NewElement("wsc:DerivedKeyToken")
	el.CreateAttr("xmlns:wsc", NSSecureConv)
	el.CreateAttr("xmlns:wsu", NSSecurityUtil)
	el.CreateAttr("wsu:Id", dk.ID)
	if ref != nil {
		el.AddChild(ref)
	}
	el.CreateElement("wsc:Offset").SetText(strconv.Itoa(dk.Offset))
	el.CreateElement("wsc:Length").SetText(strconv.Itoa(dk.Length))
	el.CreateElement("wsc:Nonce").SetText(base64.StdEncoding.EncodeToString(nonce))
	dk.element = el
	return dk, nil
}

// Key returns the derived key.
func (d *DerivedKeyToken) Key() []byte { return d.key }

// Element returns the wsc:DerivedKeyToken element.
func (d *DerivedKeyToken) Element() *etree.Element { return d.element }

// DerivedKeySignature is an HMAC signature keyed by a key derived from a
// base token's secret.
type DerivedKeySignature struct {
	// Secret is the secret of the base token.
	Secret []byte
	// Base describes how the DerivedKeyToken refers to the base token.
	Base TokenReference
	// BaseElement, when set, is a prebuilt reference to the base token and
	// takes precedence over Base. It is copied into the DerivedKeyToken.
	BaseElement *etree.Element

	SignatureAlgorithm string
	DigestAlgorithm    string
	// Length is the derived key length in bytes.
	Length int

	dkt *DerivedKeyToken
	sig *Signature
}

// Prepare derives the key and prepares the HMAC signature referring to the
// DerivedKeyToken.
func (d *DerivedKeySignature) Prepare(env *Envelope) error {
	if d.SignatureAlgorithm == "" {
		d.SignatureAlgorithm = AlgorithmHMACSHA256
	}
	if d.Length == 0 {
		d.Length = 32
	}
	var ref *etree.Element
	if d.BaseElement != nil {
		ref = d.BaseElement.Copy()
	} else {
		var err error
		ref, err = d.Base.Element()
		if err != nil {
			return cryptoError("derive key", err)
		}
	}
	dkt, err := NewDerivedKeyToken(d.Secret, d.Length, ref)
	if err != nil {
		return err
	}
	d.dkt = dkt
	d.sig = &Signature{
		SignatureAlgorithm:   d.SignatureAlgorithm,
		DigestAlgorithm:      d.DigestAlgorithm,
		KeyIdentifierType:    KeyIDCustomSymmSigning,
		Secret:               dkt.Key(),
		CustomTokenID:        dkt.ID,
		CustomTokenValueType: ValueTypeDerivedKey,
	}
	return d.sig.Prepare(env)
}

// DerivedKeyToken returns the token to place in the security header.
func (d *DerivedKeySignature) DerivedKeyToken() *DerivedKeyToken { return d.dkt }

// Signature returns the prepared HMAC signature.
func (d *DerivedKeySignature) Signature() *Signature { return d.sig }

// AddReferences digests the parts into the signature.
func (d *DerivedKeySignature) AddReferences(parts []*EncryptionPart) error {
	return d.sig.AddReferences(parts)
}

// Compute computes the signature value.
func (d *DerivedKeySignature) Compute() ([]byte, error) {
	return d.sig.Compute()
}
