package policy

import "fmt"

// Namespaces of the assertion vocabularies
const (
	NSSecurityPolicy12 = "http://docs.oasis-open.org/ws-sx/ws-securitypolicy/200702"
	NSSecurityPolicy11 = "http://schemas.xmlsoap.org/ws/2005/07/securitypolicy"
)

// QName is a namespace qualified assertion name.
type QName struct {
	Space string
	Local string
}

func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Space, q.Local)
}

func sp12(local string) QName {
	return QName{Space: NSSecurityPolicy12, Local: local}
}

// Assertion names
var (
	QNameAsymmetricBinding = sp12("AsymmetricBinding")
	QNameSymmetricBinding  = sp12("SymmetricBinding")
	QNameTransportBinding  = sp12("TransportBinding")
	QNameInitiatorToken    = sp12("InitiatorToken")
	QNameRecipientToken    = sp12("RecipientToken")
	QNameAlgorithmSuite    = sp12("AlgorithmSuite")
	QNameLayout            = sp12("Layout")
	QNameIncludeTimestamp  = sp12("IncludeTimestamp")
	QNameProtectTokens     = sp12("ProtectTokens")
	QNameEncryptSignature  = sp12("EncryptSignature")
	QNameOnlySignEntire    = sp12("OnlySignEntireHeadersAndBody")

	QNameSignedParts              = sp12("SignedParts")
	QNameEncryptedParts           = sp12("EncryptedParts")
	QNameSignedElements           = sp12("SignedElements")
	QNameEncryptedElements        = sp12("EncryptedElements")
	QNameContentEncryptedElements = sp12("ContentEncryptedElements")

	QNameWss10 = sp12("Wss10")
	QNameWss11 = sp12("Wss11")

	QNameRequireSignatureConfirmation = sp12("RequireSignatureConfirmation")
	QNameMustSupportRefKeyIdentifier  = sp12("MustSupportRefKeyIdentifier")
	QNameMustSupportRefIssuerSerial   = sp12("MustSupportRefIssuerSerial")
	QNameMustSupportRefThumbprint     = sp12("MustSupportRefThumbprint")

	QNameUsernameToken           = sp12("UsernameToken")
	QNameX509Token               = sp12("X509Token")
	QNameSamlToken               = sp12("SamlToken")
	QNameIssuedToken             = sp12("IssuedToken")
	QNameSecureConversationToken = sp12("SecureConversationToken")
	QNameKeyValueToken           = sp12("KeyValueToken")
	QNameKerberosToken           = sp12("KerberosToken")
	QNameSpnegoContextToken      = sp12("SpnegoContextToken")
	QNameSecurityContextToken    = sp12("SecurityContextToken")

	QNameHashPassword       = sp12("HashPassword")
	QNameNoPassword         = sp12("NoPassword")
	QNameRequireDerivedKeys = sp12("RequireDerivedKeys")
)

// Assertion is a single policy assertion.
type Assertion interface {
	Name() QName
	IsOptional() bool
}

// Parent is implemented by assertions that nest other assertions. The ledger
// indexes nested assertions so they can be asserted independently.
type Parent interface {
	Assertion
	Children() []Assertion
}

// Marker is a parameterless assertion such as ProtectTokens or HashPassword.
type Marker struct {
	QName    QName
	Optional bool
}

// NewMarker returns a marker assertion for the given name.
func NewMarker(name QName) *Marker {
	return &Marker{QName: name}
}

func (m *Marker) Name() QName      { return m.QName }
func (m *Marker) IsOptional() bool { return m.Optional }

// IncludeTimestamp requires a wsu:Timestamp in the security header.
type IncludeTimestamp struct {
	Optional bool
}

func (*IncludeTimestamp) Name() QName        { return QNameIncludeTimestamp }
func (t *IncludeTimestamp) IsOptional() bool { return t.Optional }

// LayoutType constrains the order of security header children.
type LayoutType string

const (
	LayoutStrict            LayoutType = "Strict"
	LayoutLax               LayoutType = "Lax"
	LayoutLaxTimestampFirst LayoutType = "LaxTimestampFirst"
	LayoutLaxTimestampLast  LayoutType = "LaxTimestampLast"
)

// Layout is the sp:Layout assertion.
type Layout struct {
	Type     LayoutType
	Optional bool
}

func (*Layout) Name() QName        { return QNameLayout }
func (l *Layout) IsOptional() bool { return l.Optional }

// Wss carries the Wss10 or Wss11 options.
type Wss struct {
	// Version is 10 or 11.
	Version int

	MustSupportRefKeyIdentifier  bool
	MustSupportRefIssuerSerial   bool
	MustSupportRefThumbprint     bool
	RequireSignatureConfirmation bool

	Optional bool
}

func (w *Wss) Name() QName {
	if w.Version == 11 {
		return QNameWss11
	}
	return QNameWss10
}

func (w *Wss) IsOptional() bool { return w.Optional }
