package binding

import (
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

// addSignatureConfirmation echoes every signature value of the request in a
// SignatureConfirmation, or adds a single empty one when the request was not
// signed. Confirmations are supporting elements and are covered by the
// primary signature. Nothing happens unless the Wss11 assertion requires
// signature confirmation.
func (p *pass) addSignatureConfirmation(parts []*security.EncryptionPart) []*security.EncryptionPart {
	wss := p.wss()
	if wss == nil || wss.Version != 11 || !wss.RequireSignatureConfirmation {
		return parts
	}

	var values [][]byte
	for _, r := range p.ex.resultsFor(ActionSign, ActionSTSigned, ActionUTSign) {
		values = append(values, r.SignatureValue)
	}
	if len(values) == 0 {
		values = [][]byte{nil}
	}

	for _, v := range values {
		sc := security.NewSignatureConfirmation(v)
		p.composer.InsertSupportingElement(sc.Element())
		part := security.NewPart(sc.ID, security.ModifierElement)
		part.Element = sc.Element()
		parts = append(parts, part)
	}
	p.ledger.Assert(wss)
	return parts
}
