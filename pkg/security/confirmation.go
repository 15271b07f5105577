package security

import (
	"encoding/base64"

	"github.com/beevik/etree"
)

// SignatureConfirmation is a wsse11:SignatureConfirmation echoing one
// signature value of the request.
type SignatureConfirmation struct {
	ID    string
	Value []byte

	element *etree.Element
}

// NewSignatureConfirmation creates a confirmation. A nil value confirms that
// the request carried no signature.
func NewSignatureConfirmation(value []byte) *SignatureConfirmation {
	sc := &SignatureConfirmation{ID: "SC-" + generateID(), Value: value}
	el := etree.NewElement("wsse11:SignatureConfirmation")
	el.CreateAttr("xmlns:wsse11", NSSecurityExt11)
	el.CreateAttr("xmlns:wsu", NSSecurityUtil)
	el.CreateAttr("wsu:Id", sc.ID)
	if value != nil {
		el.CreateAttr("Value", base64.StdEncoding.EncodeToString(value))
	}
	sc.element = el
	return sc
}

// Element returns the wsse11:SignatureConfirmation element.
func (s *SignatureConfirmation) Element() *etree.Element { return s.element }
