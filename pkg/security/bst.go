package security

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// BinarySecurityToken carries an X.509 certificate, or a certificate path,
// inline in the security header.
type BinarySecurityToken struct {
	ID        string
	ValueType string

	element *etree.Element
}

// NewBinarySecurityToken creates a token for the leaf certificate, or for
// the whole chain encoded as an X509PKIPathv1 when pkiPath is set.
func NewBinarySecurityToken(certs []*x509.Certificate, pkiPath bool) (*BinarySecurityToken, error) {
	if len(certs) == 0 {
		return nil, fmt.Errorf("binary security token requires a certificate")
	}

	raw := certs[0].Raw
	valueType := ValueTypeX509v3
	if pkiPath {
		// PkiPath is a SEQUENCE OF Certificate ordered from the trust anchor
		path := make([]asn1.RawValue, 0, len(certs))
		for i := len(certs) - 1; i >= 0; i-- {
			path = append(path, asn1.RawValue{FullBytes: certs[i].Raw})
		}
		der, err := asn1.Marshal(path)
		if err != nil {
			return nil, fmt.Errorf("failed to encode PKI path: %w", err)
		}
		raw = der
		valueType = ValueTypeX509PKIPath
	}

	bst := &BinarySecurityToken{ID: "X509-" + generateID(), ValueType: valueType}
	el := etree.NewElement("wsse:BinarySecurityToken")
	el.CreateAttr("xmlns:wsse", NSSecurityExt)
	el.CreateAttr("xmlns:wsu", NSSecurityUtil)
	el.CreateAttr("EncodingType", EncodingBase64Binary)
	el.CreateAttr("ValueType", valueType)
	el.CreateAttr("wsu:Id", bst.ID)
	el.SetText(base64.StdEncoding.EncodeToString(raw))
	bst.element = el
	return bst, nil
}

// Element returns the wsse:BinarySecurityToken element.
func (b *BinarySecurityToken) Element() *etree.Element { return b.element }
