package binding

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore"
)

// Artifact is what building a supporting token produced. It is one of
// *UsernameArtifact, *SignatureArtifact, *SAMLArtifact or *TokenHolder.
type Artifact interface {
	artifactKind() string
}

// UsernameArtifact is a UsernameToken placed in the header.
type UsernameArtifact struct {
	Token *security.UsernameToken
}

// SignatureArtifact is a prepared signature whose key belongs to the token.
// Endorsing categories compute it over the primary signature.
type SignatureArtifact struct {
	Signature *security.Signature
}

// SAMLArtifact is a SAML assertion placed in the header.
type SAMLArtifact struct {
	Assertion *security.SAMLAssertion
}

// TokenHolder refers to an issued or negotiated token that carries a shared
// secret but no certificate. Element is the copy of the token placed in the
// header, nil when the token is not sent.
type TokenHolder struct {
	Token   *tokenstore.SecurityToken
	Element *etree.Element
}

func (*UsernameArtifact) artifactKind() string  { return "UsernameToken" }
func (*SignatureArtifact) artifactKind() string { return "Signature" }
func (*SAMLArtifact) artifactKind() string      { return "SamlAssertion" }
func (*TokenHolder) artifactKind() string       { return "SecurityToken" }

// BuiltToken pairs a token requirement with the artifact built for it.
type BuiltToken struct {
	Requirement *policy.Token
	Artifact    Artifact
}

// handleSupportingTokens builds the tokens of one supporting category in
// policy order. The token's inclusion decides only how it is referenced, not
// whether it is built. Denials of optional assertions leave the token out.
func (p *pass) handleSupportingTokens(st *policy.SupportingTokens) ([]*BuiltToken, error) {
	var built []*BuiltToken
	p.ledger.Assert(st)

	for _, tok := range st.Tokens {
		p.ledger.Assert(tok)

		var (
			art Artifact
			err error
		)
		switch tok.Kind {
		case policy.KindUsername:
			art, err = p.usernameSupportingToken(tok, st)
		case policy.KindX509, policy.KindKeyValue:
			art, err = p.x509SupportingToken(tok, st)
		case policy.KindSaml:
			art, err = p.samlSupportingToken(tok, st)
		case policy.KindIssued, policy.KindSecureConversation:
			art, err = p.issuedSupportingToken(tok, st)
		case policy.KindSecurityContext, policy.KindSpnegoContext:
			if _, ok := p.ep.strategies[tok.Kind]; ok {
				art, err = p.strategySupportingToken(tok, st)
			} else {
				art, err = p.issuedSupportingToken(tok, st)
			}
		case policy.KindKerberos:
			art, err = p.strategySupportingToken(tok, st)
		default:
			err = p.deny(st, "UnsupportedTokenInSupportingToken: "+tok.Kind.String())
		}
		if err != nil {
			return nil, err
		}
		if art == nil {
			continue
		}
		built = append(built, &BuiltToken{Requirement: tok, Artifact: art})
	}
	return built, nil
}

func (p *pass) usernameSupportingToken(tok *policy.Token, st *policy.SupportingTokens) (Artifact, error) {
	if !p.ep.requestor {
		return nil, nil
	}
	ut, err := p.addUsernameToken(tok)
	if err != nil || ut == nil {
		return nil, err
	}
	p.composer.InsertSupportingElement(ut.Element())
	if st.Category.IsEncrypted() || p.ep.alwaysEncryptUT {
		p.addEncryptedToken(ConvertToEncryptionPart(ut.Element()))
	}
	return &UsernameArtifact{Token: ut}, nil
}

// addUsernameToken builds a UsernameToken from the endpoint credentials.
// It returns nil without error when an optional requirement was denied.
func (p *pass) addUsernameToken(tok *policy.Token) (*security.UsernameToken, error) {
	user := p.ep.username
	if user == "" {
		return nil, p.deny(tok, "No username available")
	}
	if tok.NoPassword {
		p.ledger.AssertQName(policy.QNameNoPassword)
		return security.NewUsernameToken(user, "", "", p.ep.now()), nil
	}

	password := p.ep.password
	if password == "" {
		var err error
		password, err = p.password(tok, user, UsageUsernameToken)
		if err != nil {
			return nil, err
		}
	}
	if password == "" {
		return nil, p.deny(tok, "No username available")
	}

	passwordType := security.PasswordTypeText
	if tok.HashPassword {
		passwordType = security.PasswordTypeDigest
		p.ledger.AssertQName(policy.QNameHashPassword)
	}
	return security.NewUsernameToken(user, password, passwordType, p.ep.now()), nil
}

func (p *pass) x509SupportingToken(tok *policy.Token, st *policy.SupportingTokens) (Artifact, error) {
	sig, err := p.signatureBuilder(tok)
	if err != nil || sig == nil {
		return nil, err
	}
	if bst := sig.BinarySecurityToken(); bst != nil {
		p.composer.InsertSupportingElement(bst.Element())
		if st.Category.IsEncrypted() {
			p.addEncryptedToken(ConvertToEncryptionPart(bst.Element()))
		}
	}
	return &SignatureArtifact{Signature: sig}, nil
}

func (p *pass) samlSupportingToken(tok *policy.Token, st *policy.SupportingTokens) (Artifact, error) {
	if !p.ep.requestor {
		return nil, nil
	}
	if p.ep.samlCallback == nil {
		return nil, p.deny(tok, "No SAML CallbackHandler available")
	}
	version := 2
	if tok.SamlVersion == policy.Saml11 {
		version = 1
	}
	el, err := p.ep.samlCallback.Assertion(p.ctx, version)
	if err != nil {
		return nil, p.deny(tok, fmt.Sprintf("SAML callback failed: %v", err))
	}
	assertion, err := security.NewSAMLAssertion(el)
	if err != nil {
		return nil, p.deny(tok, err.Error())
	}

	p.composer.InsertSupportingElement(el)
	if st.Category.IsEncrypted() {
		p.addEncryptedToken(ConvertToEncryptionPart(el))
	}
	return &SAMLArtifact{Assertion: assertion}, nil
}

func (p *pass) issuedSupportingToken(tok *policy.Token, st *policy.SupportingTokens) (Artifact, error) {
	if !p.ep.requestor {
		return nil, nil
	}
	secTok, err := p.securityToken()
	if err != nil {
		return nil, p.fail(tok, err)
	}
	if secTok == nil || secTok.Token == nil {
		return nil, p.deny(tok, "Could not find IssuedToken")
	}

	el := p.includeToken(tok, secTok, st)
	id := strings.TrimPrefix(secTok.ID, "#")

	if secTok.Certificate == nil {
		return &TokenHolder{Token: secTok, Element: el}, nil
	}
	sig, err := p.issuedTokenSignature(tok, secTok, id)
	if err != nil || sig == nil {
		return nil, err
	}
	return &SignatureArtifact{Signature: sig}, nil
}

func (p *pass) strategySupportingToken(tok *policy.Token, st *policy.SupportingTokens) (Artifact, error) {
	strategy, ok := p.ep.strategies[tok.Kind]
	if !ok {
		return nil, p.deny(st, "UnsupportedTokenInSupportingToken: "+tok.Kind.String())
	}
	secTok, err := strategy.BuildToken(p.ctx, tok)
	if err != nil {
		return nil, p.deny(tok, fmt.Sprintf("%s strategy failed: %v", tok.Kind, err))
	}
	if secTok == nil || secTok.Token == nil {
		return nil, p.deny(tok, "No "+tok.Kind.String()+" available")
	}

	return &TokenHolder{Token: secTok, Element: p.includeToken(tok, secTok, st)}, nil
}

// includeToken places a copy of secTok in the header when the requirement
// sends it in this direction, and returns the copy. It returns nil for a
// token that stays out of the message.
func (p *pass) includeToken(tok *policy.Token, secTok *tokenstore.SecurityToken, st *policy.SupportingTokens) *etree.Element {
	if !p.isTokenRequired(tok) {
		return nil
	}
	el := secTok.Token.Copy()
	p.composer.InsertSupportingElement(el)
	if st.Category.IsEncrypted() {
		part := security.NewPart(strings.TrimPrefix(secTok.ID, "#"), security.ModifierElement)
		part.Element = el
		p.addEncryptedToken(part)
	}
	return el
}

// addSignatureParts appends the parts through which the primary signature
// covers each built token.
func (p *pass) addSignatureParts(built []*BuiltToken, parts []*security.EncryptionPart) ([]*security.EncryptionPart, error) {
	for _, bt := range built {
		var part *security.EncryptionPart
		switch art := bt.Artifact.(type) {
		case *SignatureArtifact:
			sig := art.Signature
			if sig.KeyIdentifierType == security.KeyIDCustomKeyIdentifier && isSAMLKeyIdentifier(sig.CustomTokenValueType) {
				ref := &security.TokenReference{
					Type:      security.KeyIDCustomKeyIdentifier,
					ValueType: sig.CustomTokenValueType,
					Value:     sig.CustomTokenID,
				}
				str, err := ref.Element()
				if err != nil {
					return nil, p.fail(bt.Requirement, &security.CryptoError{Op: "reference token", Err: err})
				}
				part = p.strTransformPart(str)
			} else if bst := sig.BinarySecurityToken(); bst != nil {
				part = security.NewPart(bst.ID, security.ModifierElement)
				part.Element = bst.Element()
			}
		case *UsernameArtifact:
			part = security.NewPart(art.Token.ID, security.ModifierElement)
			part.Element = art.Token.Element()
		case *SAMLArtifact:
			str, err := art.Assertion.Reference()
			if err != nil {
				return nil, p.fail(bt.Requirement, &security.CryptoError{Op: "reference token", Err: err})
			}
			part = p.strTransformPart(str)
		case *TokenHolder:
			if art.Element != nil {
				part = security.NewPart(strings.TrimPrefix(art.Token.ID, "#"), security.ModifierElement)
				part.Element = art.Element
			}
		default:
			if err := p.deny(bt.Requirement, fmt.Sprintf("UnsupportedTokenInSupportingToken: %T", bt.Artifact)); err != nil {
				return nil, err
			}
		}
		if part != nil {
			parts = append(parts, part)
		}
	}
	return parts, nil
}

// strTransformPart places str in the header and returns a part that digests
// the token it refers to through the STR-Transform.
func (p *pass) strTransformPart(str *etree.Element) *security.EncryptionPart {
	p.composer.InsertSupportingElement(str)
	return &security.EncryptionPart{
		ID:       security.ElementID(str),
		Name:     security.PartSTRTransform,
		Modifier: security.ModifierElement,
		Element:  str,
	}
}

func isSAMLKeyIdentifier(valueType string) bool {
	return valueType == security.ValueTypeSAML11KeyIdentifier || valueType == security.ValueTypeSAML20KeyIdentifier
}

// samlValueType maps an issued token type to the value type of a key
// identifier referring to it.
func samlValueType(tokenType string) string {
	switch tokenType {
	case "", security.TokenTypeSAML11, security.NSSAML1:
		return security.ValueTypeSAML11KeyIdentifier
	case security.TokenTypeSAML20, security.NSSAML2:
		return security.ValueTypeSAML20KeyIdentifier
	default:
		return tokenType
	}
}
