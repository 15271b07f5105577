package policy

import "fmt"

// Signature algorithms
type SignatureAlgorithm string

const (
	AlgoRSASHA1     SignatureAlgorithm = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgoRSASHA256   SignatureAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgoRSASHA384   SignatureAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgoRSASHA512   SignatureAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgoECDSASHA256 SignatureAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgoHMACSHA1    SignatureAlgorithm = "http://www.w3.org/2000/09/xmldsig#hmac-sha1"
	AlgoHMACSHA256  SignatureAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#hmac-sha256"
)

// Digest algorithms
type DigestAlgorithm string

const (
	DigestSHA1   DigestAlgorithm = "http://www.w3.org/2000/09/xmldsig#sha1"
	DigestSHA256 DigestAlgorithm = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 DigestAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 DigestAlgorithm = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Data encryption algorithms
type EncryptionAlgorithm string

const (
	EncAES128GCM EncryptionAlgorithm = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	EncAES256GCM EncryptionAlgorithm = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	EncAES128CBC EncryptionAlgorithm = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	EncAES192CBC EncryptionAlgorithm = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	EncAES256CBC EncryptionAlgorithm = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
)

// Key transport algorithms
type KeyWrapAlgorithm string

const (
	KeyWrapRSAOAEP   KeyWrapAlgorithm = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	KeyWrapRSAOAEP11 KeyWrapAlgorithm = "http://www.w3.org/2009/xmlenc11#rsa-oaep"
	KeyWrapRSA15     KeyWrapAlgorithm = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
)

// Canonicalization algorithms
const C14NExclusive = "http://www.w3.org/2001/10/xml-exc-c14n#"

// AlgorithmSuite is the sp:AlgorithmSuite assertion.
type AlgorithmSuite struct {
	Suite               string
	AsymmetricSignature SignatureAlgorithm
	SymmetricSignature  SignatureAlgorithm
	Digest              DigestAlgorithm
	Encryption          EncryptionAlgorithm
	AsymmetricKeyWrap   KeyWrapAlgorithm
	C14N                string

	// Key lengths in bits
	EncryptionKeyLength       int
	SignatureDerivedKeyLength int
	Optional                  bool
}

func (*AlgorithmSuite) Name() QName        { return QNameAlgorithmSuite }
func (a *AlgorithmSuite) IsOptional() bool { return a.Optional }

var algorithmSuites = map[string]AlgorithmSuite{
	"Basic128GCMSha256": {
		AsymmetricSignature:       AlgoRSASHA256,
		SymmetricSignature:        AlgoHMACSHA256,
		Digest:                    DigestSHA256,
		Encryption:                EncAES128GCM,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       128,
		SignatureDerivedKeyLength: 128,
	},
	"Basic256GCMSha256": {
		AsymmetricSignature:       AlgoRSASHA256,
		SymmetricSignature:        AlgoHMACSHA256,
		Digest:                    DigestSHA256,
		Encryption:                EncAES256GCM,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       256,
		SignatureDerivedKeyLength: 192,
	},
	"Basic256GCM": {
		AsymmetricSignature:       AlgoRSASHA1,
		SymmetricSignature:        AlgoHMACSHA1,
		Digest:                    DigestSHA1,
		Encryption:                EncAES256GCM,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       256,
		SignatureDerivedKeyLength: 192,
	},
	"Basic256": {
		AsymmetricSignature:       AlgoRSASHA1,
		SymmetricSignature:        AlgoHMACSHA1,
		Digest:                    DigestSHA1,
		Encryption:                EncAES256CBC,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       256,
		SignatureDerivedKeyLength: 192,
	},
	"Basic192": {
		AsymmetricSignature:       AlgoRSASHA1,
		SymmetricSignature:        AlgoHMACSHA1,
		Digest:                    DigestSHA1,
		Encryption:                EncAES192CBC,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       192,
		SignatureDerivedKeyLength: 192,
	},
	"Basic128": {
		AsymmetricSignature:       AlgoRSASHA1,
		SymmetricSignature:        AlgoHMACSHA1,
		Digest:                    DigestSHA1,
		Encryption:                EncAES128CBC,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       128,
		SignatureDerivedKeyLength: 128,
	},
	"Basic256Rsa15": {
		AsymmetricSignature:       AlgoRSASHA1,
		SymmetricSignature:        AlgoHMACSHA1,
		Digest:                    DigestSHA1,
		Encryption:                EncAES256CBC,
		AsymmetricKeyWrap:         KeyWrapRSA15,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       256,
		SignatureDerivedKeyLength: 192,
	},
	"Basic128Rsa15": {
		AsymmetricSignature:       AlgoRSASHA1,
		SymmetricSignature:        AlgoHMACSHA1,
		Digest:                    DigestSHA1,
		Encryption:                EncAES128CBC,
		AsymmetricKeyWrap:         KeyWrapRSA15,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       128,
		SignatureDerivedKeyLength: 128,
	},
	"Basic256Sha256": {
		AsymmetricSignature:       AlgoRSASHA256,
		SymmetricSignature:        AlgoHMACSHA256,
		Digest:                    DigestSHA256,
		Encryption:                EncAES256CBC,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       256,
		SignatureDerivedKeyLength: 192,
	},
	"Basic128Sha256": {
		AsymmetricSignature:       AlgoRSASHA256,
		SymmetricSignature:        AlgoHMACSHA256,
		Digest:                    DigestSHA256,
		Encryption:                EncAES128CBC,
		AsymmetricKeyWrap:         KeyWrapRSAOAEP,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       128,
		SignatureDerivedKeyLength: 128,
	},
	"Basic256Sha256Rsa15": {
		AsymmetricSignature:       AlgoRSASHA256,
		SymmetricSignature:        AlgoHMACSHA256,
		Digest:                    DigestSHA256,
		Encryption:                EncAES256CBC,
		AsymmetricKeyWrap:         KeyWrapRSA15,
		C14N:                      C14NExclusive,
		EncryptionKeyLength:       256,
		SignatureDerivedKeyLength: 192,
	},
}

// DefaultAlgorithmSuite is used when a binding declares none.
const DefaultAlgorithmSuite = "Basic128GCMSha256"

// LookupAlgorithmSuite returns the named suite.
func LookupAlgorithmSuite(name string) (*AlgorithmSuite, error) {
	suite, ok := algorithmSuites[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm suite %q", name)
	}
	suite.Suite = name
	return &suite, nil
}

// BindingType selects the security binding.
type BindingType string

const (
	BindingAsymmetric BindingType = "asymmetric"
	BindingSymmetric  BindingType = "symmetric"
	BindingTransport  BindingType = "transport"
)

// Binding is a security binding assertion.
type Binding struct {
	Type BindingType

	InitiatorToken  *Token
	RecipientToken  *Token
	ProtectionToken *Token

	AlgorithmSuite   *AlgorithmSuite
	Layout           *Layout
	IncludeTimestamp *IncludeTimestamp

	ProtectTokens                bool
	EncryptSignature             bool
	OnlySignEntireHeadersAndBody bool
	EncryptBeforeSigning         bool

	Optional bool
}

func (b *Binding) Name() QName {
	switch b.Type {
	case BindingSymmetric:
		return QNameSymmetricBinding
	case BindingTransport:
		return QNameTransportBinding
	default:
		return QNameAsymmetricBinding
	}
}

func (b *Binding) IsOptional() bool { return b.Optional }

func (b *Binding) Children() []Assertion {
	var children []Assertion
	for _, t := range []*Token{b.InitiatorToken, b.RecipientToken, b.ProtectionToken} {
		if t != nil {
			children = append(children, t)
		}
	}
	if b.AlgorithmSuite != nil {
		children = append(children, b.AlgorithmSuite)
	}
	if b.Layout != nil {
		children = append(children, b.Layout)
	}
	if b.IncludeTimestamp != nil {
		children = append(children, b.IncludeTimestamp)
	}
	return children
}
