package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"
)

// Signature prepares and computes a ds:Signature over parts of an envelope.
// The element is built detached; the caller decides where it goes in the
// security header.
type Signature struct {
	SignatureAlgorithm string
	DigestAlgorithm    string
	KeyIdentifierType  KeyIdentifierType

	// Certificates is the signing certificate followed by its chain.
	Certificates []*x509.Certificate
	// PKIPath embeds the whole chain when a BinarySecurityToken is used.
	PKIPath bool

	// Signer signs with an asymmetric key. Secret is the HMAC key of a
	// symmetric signature.
	Signer crypto.Signer
	Secret []byte

	// CustomTokenID and CustomTokenValueType drive the custom reference types.
	CustomTokenID        string
	CustomTokenValueType string

	env        *Envelope
	id         string
	element    *etree.Element
	signedInfo *etree.Element
	sigValue   *etree.Element
	keyInfo    *etree.Element
	bst        *BinarySecurityToken
	refs       []string
	value      []byte
}

// Prepare builds the Signature element, its KeyInfo and, for direct
// references, the BinarySecurityToken to place in the header.
func (s *Signature) Prepare(env *Envelope) error {
	if s.SignatureAlgorithm == "" {
		s.SignatureAlgorithm = AlgorithmRSASHA256
	}
	if s.DigestAlgorithm == "" {
		s.DigestAlgorithm = AlgorithmSHA256
	}
	if _, err := digestHash(s.DigestAlgorithm); err != nil {
		return cryptoError("prepare signature", err)
	}
	if s.isHMAC() {
		if len(s.Secret) == 0 {
			return cryptoErrorf("prepare signature", "symmetric signature requires a secret")
		}
	} else if s.Signer == nil {
		return cryptoErrorf("prepare signature", "asymmetric signature requires a private key")
	}

	s.env = env
	s.id = "SIG-" + generateID()

	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NSXMLDSig)
	sig.CreateAttr("Id", s.id)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateAttr("xmlns:ds", NSXMLDSig)
	c14n := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14n.CreateAttr("Algorithm", AlgorithmC14N)
	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", s.SignatureAlgorithm)

	s.sigValue = sig.CreateElement("ds:SignatureValue")

	ref, err := s.tokenReference()
	if err != nil {
		return cryptoError("prepare signature", err)
	}
	refElem, err := ref.Element()
	if err != nil {
		return cryptoError("prepare signature", err)
	}
	s.keyInfo = sig.CreateElement("ds:KeyInfo")
	s.keyInfo.CreateAttr("Id", "KI-"+generateID())
	s.keyInfo.AddChild(refElem)

	s.element = sig
	s.signedInfo = signedInfo
	return nil
}

func (s *Signature) tokenReference() (*TokenReference, error) {
	ref := &TokenReference{Type: s.KeyIdentifierType}
	if len(s.Certificates) > 0 {
		ref.Certificate = s.Certificates[0]
	}

	switch s.KeyIdentifierType {
	case KeyIDUnset, KeyIDBSTDirectReference:
		bst, err := NewBinarySecurityToken(s.Certificates, s.PKIPath)
		if err != nil {
			return nil, err
		}
		s.bst = bst
		ref.Type = KeyIDBSTDirectReference
		ref.TokenID = bst.ID
		ref.ValueType = bst.ValueType
	case KeyIDCustomSymmSigning, KeyIDCustomSymmSigningDirect, KeyIDCustomKeyIdentifier, KeyIDEncryptedKeySHA1:
		ref.TokenID = s.CustomTokenID
		ref.ValueType = s.CustomTokenValueType
		ref.Value = s.CustomTokenID
	}
	return ref, nil
}

// ID returns the id of the Signature element.
func (s *Signature) ID() string { return s.id }

// Element returns the ds:Signature element.
func (s *Signature) Element() *etree.Element { return s.element }

// BinarySecurityToken returns the token created for a direct reference, or nil.
func (s *Signature) BinarySecurityToken() *BinarySecurityToken { return s.bst }

// BSTTokenID returns the id of the embedded BinarySecurityToken, or "".
func (s *Signature) BSTTokenID() string {
	if s.bst == nil {
		return ""
	}
	return s.bst.ID
}

// KeyInfoReference returns the SecurityTokenReference of the KeyInfo.
func (s *Signature) KeyInfoReference() *etree.Element {
	if s.keyInfo == nil {
		return nil
	}
	return s.keyInfo.SelectElement("SecurityTokenReference")
}

// References returns the URIs referenced so far, in order.
func (s *Signature) References() []string { return s.refs }

// AddReferences digests each part and adds a ds:Reference for it to
// SignedInfo. Parts named STRTransform are digested through the
// STR-Transform.
func (s *Signature) AddReferences(parts []*EncryptionPart) error {
	if s.signedInfo == nil {
		return cryptoErrorf("add references", "signature not prepared")
	}
	hashFn, err := digestHash(s.DigestAlgorithm)
	if err != nil {
		return cryptoError("add references", err)
	}

	for _, part := range parts {
		el := s.resolve(part)
		if el == nil {
			return cryptoErrorf("add references", "no element found for part %q", partLabel(part))
		}
		id := EnsureID(el, "id-")

		target := el
		strTransform := part.Name == PartSTRTransform
		if strTransform {
			target = s.dereference(el)
			if target == nil {
				return cryptoErrorf("add references", "cannot dereference SecurityTokenReference %s", id)
			}
		}

		canonical, err := canonicalize(target)
		if err != nil {
			return cryptoError("add references", fmt.Errorf("failed to canonicalize %s: %w", id, err))
		}
		h := hashFn.New()
		h.Write([]byte(canonical))

		ref := s.signedInfo.CreateElement("ds:Reference")
		ref.CreateAttr("URI", "#"+id)
		transforms := ref.CreateElement("ds:Transforms")
		transform := transforms.CreateElement("ds:Transform")
		if strTransform {
			transform.CreateAttr("Algorithm", AlgorithmSTRTransform)
			params := transform.CreateElement("wsse:TransformationParameters")
			params.CreateAttr("xmlns:wsse", NSSecurityExt)
			params.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgorithmC14N)
		} else {
			transform.CreateAttr("Algorithm", AlgorithmC14N)
		}
		ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", s.DigestAlgorithm)
		ref.CreateElement("ds:DigestValue").SetText(base64.StdEncoding.EncodeToString(h.Sum(nil)))

		s.refs = append(s.refs, "#"+id)
	}
	return nil
}

func (s *Signature) resolve(part *EncryptionPart) *etree.Element {
	if part.Element != nil {
		return part.Element
	}
	id := strings.TrimPrefix(part.ID, "#")
	if s.bst != nil && id == s.bst.ID {
		return s.bst.Element()
	}
	if el := s.env.ElementByID(id); el != nil {
		return el
	}
	return FindByID(s.element, id)
}

// dereference returns the token a SecurityTokenReference points at.
func (s *Signature) dereference(str *etree.Element) *etree.Element {
	if ref := str.SelectElement("Reference"); ref != nil {
		return s.env.ElementByID(ref.SelectAttrValue("URI", ""))
	}
	if ki := str.SelectElement("KeyIdentifier"); ki != nil {
		return s.env.ElementByID(strings.TrimSpace(ki.Text()))
	}
	return nil
}

// Compute canonicalizes SignedInfo, signs it and fills in SignatureValue.
func (s *Signature) Compute() ([]byte, error) {
	if s.signedInfo == nil {
		return nil, cryptoErrorf("compute signature", "signature not prepared")
	}

	canonical, err := canonicalize(s.signedInfo)
	if err != nil {
		return nil, cryptoError("compute signature", fmt.Errorf("failed to canonicalize SignedInfo: %w", err))
	}

	var value []byte
	if s.isHMAC() {
		value, err = s.computeHMAC([]byte(canonical))
	} else {
		value, err = s.computeAsymmetric([]byte(canonical))
	}
	if err != nil {
		return nil, cryptoError("compute signature", err)
	}

	s.value = value
	s.sigValue.SetText(base64.StdEncoding.EncodeToString(value))
	return value, nil
}

// Value returns the computed signature value.
func (s *Signature) Value() []byte { return s.value }

func (s *Signature) isHMAC() bool {
	return s.SignatureAlgorithm == AlgorithmHMACSHA1 || s.SignatureAlgorithm == AlgorithmHMACSHA256
}

func (s *Signature) computeHMAC(data []byte) ([]byte, error) {
	newHash := crypto.SHA256.New
	if s.SignatureAlgorithm == AlgorithmHMACSHA1 {
		newHash = crypto.SHA1.New
	}
	mac := hmac.New(newHash, s.Secret)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (s *Signature) computeAsymmetric(data []byte) ([]byte, error) {
	hashAlgo, err := signatureHash(s.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}
	h := hashAlgo.New()
	h.Write(data)
	digest := h.Sum(nil)

	switch pub := s.Signer.Public().(type) {
	case *rsa.PublicKey:
		sig, err := s.Signer.Sign(rand.Reader, digest, hashAlgo)
		if err != nil {
			return nil, fmt.Errorf("failed to sign: %w", err)
		}
		return sig, nil
	case *ecdsa.PublicKey:
		der, err := s.Signer.Sign(rand.Reader, digest, hashAlgo)
		if err != nil {
			return nil, fmt.Errorf("failed to sign: %w", err)
		}
		// XML signature carries ECDSA values as r || s
		var rs struct{ R, S *big.Int }
		if _, err := asn1.Unmarshal(der, &rs); err != nil {
			return nil, fmt.Errorf("failed to decode ECDSA signature: %w", err)
		}
		size := (pub.Curve.Params().BitSize + 7) / 8
		out := make([]byte, 2*size)
		rs.R.FillBytes(out[:size])
		rs.S.FillBytes(out[size:])
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported signing key type %T", pub)
	}
}

// canonicalize applies exclusive C14N without comments.
func canonicalize(el *etree.Element) (string, error) {
	c14n := signedxml.ExclusiveCanonicalization{WithComments: false}
	return c14n.ProcessElement(el, "")
}

func digestHash(alg string) (crypto.Hash, error) {
	switch alg {
	case AlgorithmSHA1:
		return crypto.SHA1, nil
	case AlgorithmSHA256:
		return crypto.SHA256, nil
	case AlgorithmSHA384:
		return crypto.SHA384, nil
	case AlgorithmSHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unsupported digest algorithm: %s", alg)
	}
}

func signatureHash(alg string) (crypto.Hash, error) {
	switch alg {
	case AlgorithmRSASHA1:
		return crypto.SHA1, nil
	case AlgorithmRSASHA256, AlgorithmECDSASHA256:
		return crypto.SHA256, nil
	case AlgorithmRSASHA384:
		return crypto.SHA384, nil
	case AlgorithmRSASHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unsupported signature algorithm: %s", alg)
	}
}

func partLabel(p *EncryptionPart) string {
	if p.ID != "" {
		return p.ID
	}
	if p.Namespace != "" {
		return "{" + p.Namespace + "}" + p.Name
	}
	return p.Name
}
