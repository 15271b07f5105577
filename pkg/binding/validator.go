package binding

import (
	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
)

// SupportingTokenValidator checks the results of processing an inbound
// security header against one supporting tokens assertion.
type SupportingTokenValidator struct {
	// Initiator is set when validating a response received by the
	// initiator.
	Initiator bool
}

// Validate asserts st when every token it requires for this direction was
// received with the protection its category demands. Tokens that are not
// required in this direction are asserted as they are.
func (v *SupportingTokenValidator) Validate(ledger *policy.Ledger, st *policy.SupportingTokens, results []*EngineResult) error {
	c := st.Category
	for _, tok := range st.Tokens {
		if !tok.RequiredInbound(v.Initiator) {
			ledger.Assert(tok)
			continue
		}
		if !v.matches(tok, c, results) {
			return ledger.Deny(st, "The received token does not match the "+categoryLabel(c)+"supporting token requirement")
		}
		ledger.Assert(tok)
		if tok.RequireDerivedKeys {
			ledger.AssertQName(policy.QNameRequireDerivedKeys)
		}
	}
	v.assertParts(ledger, st)
	ledger.Assert(st)
	return nil
}

func (v *SupportingTokenValidator) assertParts(ledger *policy.Ledger, st *policy.SupportingTokens) {
	if st.SignedParts != nil {
		ledger.Assert(st.SignedParts)
	}
	if st.SignedElements != nil {
		ledger.Assert(st.SignedElements)
	}
	if st.EncryptedParts != nil {
		ledger.Assert(st.EncryptedParts)
	}
	if st.EncryptedElements != nil {
		ledger.Assert(st.EncryptedElements)
	}
}

func (v *SupportingTokenValidator) matches(tok *policy.Token, c policy.SupportingCategory, results []*EngineResult) bool {
	for _, r := range results {
		if !acceptsAction(tok.Kind, r) {
			continue
		}
		if c.IsSigned() && !r.Signed {
			continue
		}
		if c.IsEncrypted() && !r.Encrypted {
			continue
		}
		if c.IsEndorsing() && !r.Endorsing {
			continue
		}
		if c.IsEndorsing() && tok.RequireDerivedKeys && !r.DerivedKey {
			continue
		}
		return true
	}
	return false
}

// acceptsAction reports whether a result can stand for a token of kind.
func acceptsAction(kind policy.TokenKind, r *EngineResult) bool {
	switch kind {
	case policy.KindUsername:
		return r.Action == ActionUT || r.Action == ActionUTNoPassword
	case policy.KindX509, policy.KindKeyValue:
		return r.Action == ActionBST || (r.Action == ActionSign && len(r.Certificates) > 0)
	case policy.KindSaml:
		return r.Action == ActionSTSigned || r.Action == ActionSTUnsigned
	case policy.KindIssued:
		switch r.Action {
		case ActionSTSigned, ActionSTUnsigned, ActionSCT, ActionBST:
			return true
		}
		return false
	case policy.KindSecureConversation, policy.KindSecurityContext, policy.KindSpnegoContext:
		return r.Action == ActionSCT
	case policy.KindKerberos:
		return r.Action == ActionKerberos
	default:
		return false
	}
}

func categoryLabel(c policy.SupportingCategory) string {
	var label string
	if c.IsSigned() {
		label += "signed "
	}
	if c.IsEndorsing() {
		label += "endorsing "
	}
	if c.IsEncrypted() {
		label += "encrypted "
	}
	return label
}
