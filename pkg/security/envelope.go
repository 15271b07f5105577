package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrNotSOAPEnvelope is returned when a document root is not a SOAP 1.1 or
// SOAP 1.2 Envelope.
var ErrNotSOAPEnvelope = errors.New("not a SOAP envelope")

// Envelope gives access to the parts of a SOAP envelope that a security
// header is composed from.
type Envelope struct {
	doc    *etree.Document
	soapNS string
}

// ParseEnvelope parses a serialized SOAP envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	return NewEnvelope(doc)
}

// NewEnvelope wraps an already parsed document.
func NewEnvelope(doc *etree.Document) (*Envelope, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("no root element found: %w", ErrNotSOAPEnvelope)
	}
	ns := root.NamespaceURI()
	if root.Tag != "Envelope" || (ns != NSSOAP11 && ns != NSSOAP12) {
		return nil, fmt.Errorf("root element {%s}%s: %w", ns, root.Tag, ErrNotSOAPEnvelope)
	}
	return &Envelope{doc: doc, soapNS: ns}, nil
}

// Document returns the underlying document.
func (e *Envelope) Document() *etree.Document { return e.doc }

// Root returns the Envelope element.
func (e *Envelope) Root() *etree.Element { return e.doc.Root() }

// SOAPNamespace returns the SOAP version namespace of the envelope.
func (e *Envelope) SOAPNamespace() string { return e.soapNS }

// Header returns the SOAP Header, creating it in front of the Body when the
// envelope has none.
func (e *Envelope) Header() *etree.Element {
	root := e.Root()
	if h := childNS(root, "Header", e.soapNS); h != nil {
		return h
	}
	h := etree.NewElement(qualify(root.Space, "Header"))
	root.InsertChildAt(0, h)
	return h
}

// Body returns the SOAP Body or nil.
func (e *Envelope) Body() *etree.Element {
	return childNS(e.Root(), "Body", e.soapNS)
}

// SecurityHeader returns the wsse:Security header block, creating it when
// absent. A created header is marked mustUnderstand.
func (e *Envelope) SecurityHeader() *etree.Element {
	header := e.Header()
	if sec := childNS(header, "Security", NSSecurityExt); sec != nil {
		return sec
	}

	sec := header.CreateElement("wsse:Security")
	sec.CreateAttr("xmlns:wsse", NSSecurityExt)
	sec.CreateAttr("xmlns:wsu", NSSecurityUtil)

	mustUnderstand := "true"
	if e.soapNS == NSSOAP11 {
		mustUnderstand = "1"
	}
	prefix := e.Root().Space
	if prefix == "" {
		prefix = "soap"
		sec.CreateAttr("xmlns:soap", e.soapNS)
	}
	sec.CreateAttr(prefix+":mustUnderstand", mustUnderstand)
	return sec
}

// Bytes serializes the envelope without indentation.
func (e *Envelope) Bytes() ([]byte, error) {
	out, err := e.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}
	return out, nil
}

// ElementByID finds the element carrying the given id in a wsu:Id, Id, ID or
// AssertionID attribute. A leading '#' is ignored.
func (e *Envelope) ElementByID(id string) *etree.Element {
	return FindByID(e.Root(), id)
}

// FindByID searches the subtree rooted at el for the element with the given
// id.
func FindByID(el *etree.Element, id string) *etree.Element {
	id = strings.TrimPrefix(id, "#")
	if el == nil || id == "" {
		return nil
	}
	if ElementID(el) == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := FindByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// ElementID returns the id of an element or "" when it has none.
func ElementID(el *etree.Element) string {
	for _, attr := range el.Attr {
		switch attr.Key {
		case "Id", "ID", "AssertionID":
			if attr.Space == "" || attr.Space == "wsu" || attr.NamespaceURI() == NSSecurityUtil {
				return attr.Value
			}
		}
	}
	return ""
}

// EnsureID returns the id of el, allocating a wsu:Id with the given prefix
// if the element has none. The wsu namespace is declared on the element so
// that it canonicalizes on its own.
func EnsureID(el *etree.Element, prefix string) string {
	if id := ElementID(el); id != "" {
		return id
	}
	if el.SelectAttr("xmlns:wsu") == nil {
		el.CreateAttr("xmlns:wsu", NSSecurityUtil)
	}
	id := prefix + generateID()
	el.CreateAttr("wsu:Id", id)
	return id
}

// childNS returns the first child of parent with the given local name and
// namespace.
func childNS(parent *etree.Element, local, ns string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, c := range parent.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}
