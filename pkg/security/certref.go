package security

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/beevik/etree"
)

// KeyIdentifierType defines how a key or token is referenced from a
// KeyInfo. Different receivers may require different reference types based
// on their implementation and the certificate's capabilities (e.g. presence
// of the SKI extension).
type KeyIdentifierType int

const (
	// KeyIDUnset means no reference type has been chosen.
	KeyIDUnset KeyIdentifierType = iota

	// KeyIDBSTDirectReference embeds the certificate as a BinarySecurityToken
	// and references it by id.
	KeyIDBSTDirectReference

	// KeyIDIssuerSerial uses X509IssuerSerial (Issuer DN + Serial Number).
	KeyIDIssuerSerial

	// KeyIDSKI uses the SubjectKeyIdentifier extension of the certificate.
	KeyIDSKI

	// KeyIDThumbprint uses the SHA-1 hash of the DER-encoded certificate.
	KeyIDThumbprint

	// KeyIDKeyValue places the raw public key in a ds:KeyValue.
	KeyIDKeyValue

	// KeyIDCustomSymmSigning references a token by id with a custom value type.
	KeyIDCustomSymmSigning

	// KeyIDCustomKeyIdentifier carries a token identifier with a custom value type.
	KeyIDCustomKeyIdentifier

	// KeyIDEncryptedKeySHA1 identifies a previously exchanged EncryptedKey by
	// the SHA-1 of its cipher value.
	KeyIDEncryptedKeySHA1

	// KeyIDCustomSymmSigningDirect references a token that is not in the
	// message, using its identifier as the URI unchanged.
	KeyIDCustomSymmSigningDirect
)

// String returns a human-readable name for the reference type.
func (t KeyIdentifierType) String() string {
	switch t {
	case KeyIDUnset:
		return "Unset"
	case KeyIDBSTDirectReference:
		return "BSTDirectReference"
	case KeyIDIssuerSerial:
		return "IssuerSerial"
	case KeyIDSKI:
		return "SKI"
	case KeyIDThumbprint:
		return "Thumbprint"
	case KeyIDKeyValue:
		return "KeyValue"
	case KeyIDCustomSymmSigning:
		return "CustomSymmSigning"
	case KeyIDCustomKeyIdentifier:
		return "CustomKeyIdentifier"
	case KeyIDEncryptedKeySHA1:
		return "EncryptedKeySHA1"
	case KeyIDCustomSymmSigningDirect:
		return "CustomSymmSigningDirect"
	default:
		return "Unknown"
	}
}

// CertHasSKI checks if a certificate has a Subject Key Identifier extension.
func CertHasSKI(cert *x509.Certificate) bool {
	return len(GetSubjectKeyIdentifier(cert)) > 0
}

// GetSubjectKeyIdentifier extracts the Subject Key Identifier from a certificate's SKI extension.
// Returns nil if the certificate doesn't have an SKI extension.
func GetSubjectKeyIdentifier(cert *x509.Certificate) []byte {
	if cert == nil {
		return nil
	}
	if len(cert.SubjectKeyId) > 0 {
		return cert.SubjectKeyId
	}
	skiOID := asn1.ObjectIdentifier{2, 5, 29, 14}
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(skiOID) {
			var ski []byte
			if _, err := asn1.Unmarshal(ext.Value, &ski); err == nil {
				return ski
			}
		}
	}
	return nil
}

// GetCertificateThumbprint returns the SHA-1 thumbprint of a certificate.
func GetCertificateThumbprint(cert *x509.Certificate) []byte {
	hash := sha1.Sum(cert.Raw)
	return hash[:]
}

// TokenReference describes a wsse:SecurityTokenReference to build.
type TokenReference struct {
	Type        KeyIdentifierType
	Certificate *x509.Certificate

	// TokenID is the id of the referenced token for direct references.
	TokenID string

	// ValueType overrides the value type of custom references.
	ValueType string

	// Value is the identifier text of custom and EncryptedKeySHA1 key
	// identifiers.
	Value string
}

// Element builds the reference. KeyIDKeyValue yields a ds:KeyValue; every
// other type yields a wsse:SecurityTokenReference carrying a fresh wsu:Id.
func (r *TokenReference) Element() (*etree.Element, error) {
	if r.Type == KeyIDKeyValue {
		return keyValueElement(r.Certificate)
	}

	str := etree.NewElement("wsse:SecurityTokenReference")
	str.CreateAttr("xmlns:wsse", NSSecurityExt)
	str.CreateAttr("xmlns:wsu", NSSecurityUtil)
	str.CreateAttr("wsu:Id", "STR-"+generateID())

	switch r.Type {
	case KeyIDIssuerSerial:
		if r.Certificate == nil {
			return nil, fmt.Errorf("issuer serial reference requires a certificate")
		}
		x509Data := str.CreateElement("ds:X509Data")
		x509Data.CreateAttr("xmlns:ds", NSXMLDSig)
		issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
		issuerSerial.CreateElement("ds:X509IssuerName").SetText(r.Certificate.Issuer.String())
		issuerSerial.CreateElement("ds:X509SerialNumber").SetText(r.Certificate.SerialNumber.String())

	case KeyIDSKI:
		ski := GetSubjectKeyIdentifier(r.Certificate)
		if len(ski) == 0 {
			return nil, fmt.Errorf("certificate does not have Subject Key Identifier extension")
		}
		keyIdentifier(str, ValueTypeSKI, base64.StdEncoding.EncodeToString(ski))

	case KeyIDThumbprint:
		if r.Certificate == nil {
			return nil, fmt.Errorf("thumbprint reference requires a certificate")
		}
		keyIdentifier(str, ValueTypeThumbprint, base64.StdEncoding.EncodeToString(GetCertificateThumbprint(r.Certificate)))

	case KeyIDBSTDirectReference:
		valueType := r.ValueType
		if valueType == "" {
			valueType = ValueTypeX509v3
		}
		ref := str.CreateElement("wsse:Reference")
		ref.CreateAttr("URI", "#"+r.TokenID)
		ref.CreateAttr("ValueType", valueType)

	case KeyIDCustomSymmSigning, KeyIDCustomSymmSigningDirect:
		uri := r.TokenID
		if r.Type == KeyIDCustomSymmSigning {
			uri = "#" + uri
		}
		ref := str.CreateElement("wsse:Reference")
		ref.CreateAttr("URI", uri)
		if r.ValueType != "" {
			ref.CreateAttr("ValueType", r.ValueType)
		}

	case KeyIDCustomKeyIdentifier:
		value := r.Value
		if value == "" {
			value = r.TokenID
		}
		if r.ValueType == ValueTypeSAML11KeyIdentifier || r.ValueType == ValueTypeSAML20KeyIdentifier {
			str.CreateAttr("xmlns:wsse11", NSSecurityExt11)
			tokenType := TokenTypeSAML20
			if r.ValueType == ValueTypeSAML11KeyIdentifier {
				tokenType = TokenTypeSAML11
			}
			str.CreateAttr("wsse11:TokenType", tokenType)
			ki := str.CreateElement("wsse:KeyIdentifier")
			ki.CreateAttr("ValueType", r.ValueType)
			ki.SetText(value)
		} else {
			keyIdentifier(str, r.ValueType, value)
		}

	case KeyIDEncryptedKeySHA1:
		str.CreateAttr("xmlns:wsse11", NSSecurityExt11)
		str.CreateAttr("wsse11:TokenType", ValueTypeEncryptedKey)
		keyIdentifier(str, ValueTypeEncryptedKeySHA1, r.Value)

	default:
		return nil, fmt.Errorf("unsupported key identifier type: %v", r.Type)
	}

	return str, nil
}

func keyIdentifier(str *etree.Element, valueType, value string) {
	ki := str.CreateElement("wsse:KeyIdentifier")
	ki.CreateAttr("EncodingType", EncodingBase64Binary)
	ki.CreateAttr("ValueType", valueType)
	ki.SetText(value)
}

func keyValueElement(cert *x509.Certificate) (*etree.Element, error) {
	if cert == nil {
		return nil, fmt.Errorf("key value reference requires a certificate")
	}
	kv := etree.NewElement("ds:KeyValue")
	kv.CreateAttr("xmlns:ds", NSXMLDSig)
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		rsaKV := kv.CreateElement("ds:RSAKeyValue")
		rsaKV.CreateElement("ds:Modulus").SetText(base64.StdEncoding.EncodeToString(pub.N.Bytes()))
		rsaKV.CreateElement("ds:Exponent").SetText(base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()))
	case *ecdsa.PublicKey:
		ecKV := kv.CreateElement("dsig11:ECKeyValue")
		ecKV.CreateAttr("xmlns:dsig11", "http://www.w3.org/2009/xmldsig11#")
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return nil, fmt.Errorf("failed to encode EC public key: %w", err)
		}
		ecKV.CreateElement("dsig11:PublicKey").SetText(base64.StdEncoding.EncodeToString(der))
	default:
		return nil, fmt.Errorf("unsupported public key type %T", cert.PublicKey)
	}
	return kv, nil
}
