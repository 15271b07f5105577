package policy

// Header names a SOAP header block. An empty Name matches every header in
// the namespace.
type Header struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
}

// PartsKind distinguishes SignedParts from EncryptedParts.
type PartsKind int

const (
	SignedPartsKind PartsKind = iota
	EncryptedPartsKind
)

// Parts is a SignedParts or EncryptedParts assertion.
type Parts struct {
	Kind     PartsKind
	Body     bool
	Headers  []Header
	Optional bool
}

func (p *Parts) Name() QName {
	if p.Kind == EncryptedPartsKind {
		return QNameEncryptedParts
	}
	return QNameSignedParts
}

func (p *Parts) IsOptional() bool { return p.Optional }

// ElementsKind distinguishes the XPath based part assertions.
type ElementsKind int

const (
	SignedElementsKind ElementsKind = iota
	EncryptedElementsKind
	ContentEncryptedElementsKind
)

// XPath is an expression with the namespace prefixes it uses.
type XPath struct {
	Expression string
	Namespaces map[string]string
}

// Elements is a SignedElements, EncryptedElements or ContentEncryptedElements
// assertion.
type Elements struct {
	Kind     ElementsKind
	XPaths   []XPath
	Optional bool
}

func (e *Elements) Name() QName {
	switch e.Kind {
	case EncryptedElementsKind:
		return QNameEncryptedElements
	case ContentEncryptedElementsKind:
		return QNameContentEncryptedElements
	default:
		return QNameSignedElements
	}
}

func (e *Elements) IsOptional() bool { return e.Optional }
