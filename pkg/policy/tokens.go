package policy

import "fmt"

// TokenKind identifies the token requirement variant.
type TokenKind int

const (
	KindUsername TokenKind = iota
	KindX509
	KindSaml
	KindIssued
	KindSecureConversation
	KindKeyValue
	KindKerberos
	KindSpnegoContext
	KindSecurityContext
)

var tokenKindNames = map[TokenKind]QName{
	KindUsername:           QNameUsernameToken,
	KindX509:               QNameX509Token,
	KindSaml:               QNameSamlToken,
	KindIssued:             QNameIssuedToken,
	KindSecureConversation: QNameSecureConversationToken,
	KindKeyValue:           QNameKeyValueToken,
	KindKerberos:           QNameKerberosToken,
	KindSpnegoContext:      QNameSpnegoContextToken,
	KindSecurityContext:    QNameSecurityContextToken,
}

// QName returns the assertion name of the token kind.
func (k TokenKind) QName() QName {
	return tokenKindNames[k]
}

func (k TokenKind) String() string {
	if q, ok := tokenKindNames[k]; ok {
		return q.Local
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// ParseTokenKind parses the local assertion name of a token.
func ParseTokenKind(s string) (TokenKind, error) {
	for k, q := range tokenKindNames {
		if q.Local == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown token kind %q", s)
}

// Inclusion is the sp:IncludeToken value.
type Inclusion string

const (
	IncludeNever             Inclusion = "Never"
	IncludeOnce              Inclusion = "Once"
	IncludeAlways            Inclusion = "Always"
	IncludeAlwaysToRecipient Inclusion = "AlwaysToRecipient"
	IncludeAlwaysToInitiator Inclusion = "AlwaysToInitiator"
)

// X509TokenType selects the BinarySecurityToken value type.
type X509TokenType string

const (
	X509V3Token10 X509TokenType = "WssX509V3Token10"
	X509V3Token11 X509TokenType = "WssX509V3Token11"
	X509PkiPath   X509TokenType = "WssX509PkiPathV1Token11"
)

// SamlVersion is the SAML token profile version.
type SamlVersion string

const (
	Saml11 SamlVersion = "WssSamlV11Token11"
	Saml20 SamlVersion = "WssSamlV20Token11"
)

// Token is a token requirement nested in a binding or supporting tokens
// assertion. Fields that do not apply to the token kind are ignored.
type Token struct {
	Kind      TokenKind
	Inclusion Inclusion
	Optional  bool

	RequireDerivedKeys bool

	// UsernameToken
	HashPassword bool
	NoPassword   bool

	// X509Token
	X509TokenType                 X509TokenType
	RequireIssuerSerialReference  bool
	RequireKeyIdentifierReference bool
	RequireThumbprintReference    bool

	// SamlToken
	SamlVersion SamlVersion

	// IssuedToken and SecureConversationToken
	TokenType string
	Issuer    string
}

func (t *Token) Name() QName      { return t.Kind.QName() }
func (t *Token) IsOptional() bool { return t.Optional }

// IncludedInline reports whether the token itself travels in the header of
// a message sent by the initiator (initiator true) or by the recipient. An
// unset inclusion counts as Always.
func (t *Token) IncludedInline(initiator bool) bool {
	switch t.Inclusion {
	case IncludeAlways, IncludeOnce, "":
		return true
	case IncludeAlwaysToRecipient:
		return initiator
	case IncludeAlwaysToInitiator:
		return !initiator
	default:
		return false
	}
}

// RequiredInbound reports whether the token must be present in a message
// received by the given party.
func (t *Token) RequiredInbound(initiator bool) bool {
	switch t.Inclusion {
	case IncludeNever:
		return false
	case IncludeAlwaysToRecipient:
		return !initiator
	case IncludeAlwaysToInitiator:
		return initiator
	default:
		return true
	}
}
