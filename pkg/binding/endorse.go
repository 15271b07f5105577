package binding

import (
	"strings"

	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

// doEndorsedSignatures signs target, normally the primary signature, with
// the key of every built endorsing token. With protectTokens the token
// itself is signed as well; with protectSignature the endorsing signature
// is queued for encryption.
func (p *pass) doEndorsedSignatures(built []*BuiltToken, target *security.EncryptionPart, protectTokens, protectSignature bool) error {
	for _, bt := range built {
		parts := []*security.EncryptionPart{target}

		switch art := bt.Artifact.(type) {
		case *SignatureArtifact:
			sig := art.Signature
			if bst := sig.BinarySecurityToken(); protectTokens && bst != nil {
				part := security.NewPart(bst.ID, security.ModifierElement)
				part.Element = bst.Element()
				parts = append(parts, part)
			}
			if err := sig.AddReferences(parts); err != nil {
				return p.fail(bt.Requirement, err)
			}
			value, err := sig.Compute()
			if err != nil {
				return p.fail(bt.Requirement, err)
			}
			p.composer.InsertBottomUp(sig.Element())
			p.addSignatureValue(value)
			if protectSignature {
				p.addEncryptedToken(ConvertToEncryptionPart(sig.Element()))
			}

		case *TokenHolder:
			id := strings.TrimPrefix(art.Token.ID, "#")
			if protectTokens && art.Element != nil {
				part := security.NewPart(id, security.ModifierElement)
				part.Element = art.Element
				parts = append(parts, part)
			}
			var err error
			if bt.Requirement.RequireDerivedKeys {
				err = p.symmetricSignatureDerived(bt.Requirement, art, id, parts, protectSignature)
			} else {
				err = p.symmetricSignature(bt.Requirement, art, id, parts, protectSignature)
			}
			if err != nil {
				return err
			}

		default:
			if err := p.deny(bt.Requirement, "UnsupportedTokenInSupportingToken: "+bt.Artifact.artifactKind()); err != nil {
				return err
			}
		}
	}
	return nil
}

// symmetricSignatureDerived signs parts with a key derived from the token's
// secret. The DerivedKeyToken refers to the base token through the attached
// reference when the token travels inline, else the unattached reference,
// else, on the recipient, the EncryptedKeySHA1 of the request's key, else
// the token id.
func (p *pass) symmetricSignatureDerived(req *policy.Token, holder *TokenHolder, id string, parts []*security.EncryptionPart, protectSignature bool) error {
	tok := holder.Token
	dks := &security.DerivedKeySignature{
		Secret:             tok.Secret,
		SignatureAlgorithm: string(p.suite.SymmetricSignature),
		DigestAlgorithm:    string(p.suite.Digest),
		Length:             p.suite.SignatureDerivedKeyLength / 8,
	}

	inline := p.isTokenRequired(req)
	ref := tok.UnattachedReference
	if inline {
		ref = tok.AttachedReference
	}
	switch {
	case ref != nil:
		dks.BaseElement = ref
	case !p.ep.requestor && tok.EncryptedKeySHA1 != "":
		dks.Base = security.TokenReference{Type: security.KeyIDEncryptedKeySHA1, Value: tok.EncryptedKeySHA1}
	case inline:
		dks.Base = security.TokenReference{
			Type:      security.KeyIDCustomSymmSigning,
			TokenID:   id,
			ValueType: derivedBaseValueType(req, holder),
		}
	default:
		dks.Base = security.TokenReference{
			Type:      security.KeyIDCustomSymmSigningDirect,
			TokenID:   tok.ID,
			ValueType: derivedBaseValueType(req, holder),
		}
	}

	if err := dks.Prepare(p.env); err != nil {
		return p.fail(req, err)
	}
	p.composer.InsertDerivedKey(dks.DerivedKeyToken().Element())
	if err := dks.AddReferences(parts); err != nil {
		return p.fail(req, err)
	}
	value, err := dks.Compute()
	if err != nil {
		return p.fail(req, err)
	}
	p.composer.InsertBottomUp(dks.Signature().Element())
	p.addSignatureValue(value)
	p.ledger.AssertQName(policy.QNameRequireDerivedKeys)
	if protectSignature {
		p.addEncryptedToken(ConvertToEncryptionPart(dks.Signature().Element()))
	}
	return nil
}

func derivedBaseValueType(req *policy.Token, holder *TokenHolder) string {
	switch {
	case holder.Token.EncryptedKeySHA1 != "":
		return security.ValueTypeEncryptedKey
	case req.Kind == policy.KindUsername:
		return security.ValueTypeUsernameToken
	default:
		return holder.Token.TokenType
	}
}

// symmetricSignature signs parts with the token's secret directly.
func (p *pass) symmetricSignature(req *policy.Token, holder *TokenHolder, id string, parts []*security.EncryptionPart, protectSignature bool) error {
	tok := holder.Token
	sig := &security.Signature{
		SignatureAlgorithm: string(p.suite.SymmetricSignature),
		DigestAlgorithm:    string(p.suite.Digest),
		Secret:             tok.Secret,
		CustomTokenID:      id,
	}

	switch {
	case req.Kind == policy.KindX509 && p.ep.requestor:
		sig.KeyIdentifierType = security.KeyIDCustomSymmSigning
		sig.CustomTokenValueType = security.ValueTypeEncryptedKey
	case req.Kind == policy.KindX509:
		sig.KeyIdentifierType = security.KeyIDEncryptedKeySHA1
		sig.CustomTokenID = tok.EncryptedKeySHA1
	case tok.TokenType != "" && isSAMLKeyIdentifier(samlValueType(tok.TokenType)):
		sig.KeyIdentifierType = security.KeyIDCustomKeyIdentifier
		sig.CustomTokenValueType = samlValueType(tok.TokenType)
	case p.isTokenRequired(req):
		sig.KeyIdentifierType = security.KeyIDCustomSymmSigning
		sig.CustomTokenValueType = tok.TokenType
	default:
		sig.KeyIdentifierType = security.KeyIDCustomSymmSigningDirect
		sig.CustomTokenID = tok.ID
		sig.CustomTokenValueType = tok.TokenType
	}

	if err := sig.Prepare(p.env); err != nil {
		return p.fail(req, err)
	}
	if err := sig.AddReferences(parts); err != nil {
		return p.fail(req, err)
	}
	value, err := sig.Compute()
	if err != nil {
		return p.fail(req, err)
	}
	p.composer.InsertBottomUp(sig.Element())
	p.addSignatureValue(value)
	if protectSignature {
		p.addEncryptedToken(ConvertToEncryptionPart(sig.Element()))
	}
	return nil
}
