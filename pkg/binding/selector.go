package binding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

// ErrMalformedPart is returned for a signature part that carries no id and
// is not a whole-token part.
var ErrMalformedPart = errors.New("malformed signature part")

// Selector resolves policy part descriptions into envelope parts. Each
// element is selected at most once per Selector, so use one Selector for
// the signed parts and another for the encrypted parts of a pass.
type Selector struct {
	env   *security.Envelope
	found map[*etree.Element]struct{}
}

// NewSelector returns a selector over env.
func NewSelector(env *security.Envelope) *Selector {
	return &Selector{env: env, found: make(map[*etree.Element]struct{})}
}

// Select returns the parts described by the arguments, in the order body,
// headers, xpaths, content xpaths. Header blocks and xpath matches are
// protected as whole elements; the body and content xpath matches are
// encrypted by content and signed as a whole.
func (s *Selector) Select(sign, includeBody bool, headers []policy.Header, xpaths, contentXPaths []policy.XPath) ([]*security.EncryptionPart, error) {
	var parts []*security.EncryptionPart

	if includeBody {
		if body := s.env.Body(); body != nil && s.claim(body) {
			modifier := security.ModifierContent
			if sign {
				modifier = security.ModifierElement
			}
			parts = append(parts, s.part(body, modifier, ""))
		}
	}

	if len(headers) > 0 {
		secHeader := s.existingSecurityHeader()
		for _, block := range s.env.Header().ChildElements() {
			if block == secHeader || !matchesHeader(block, headers) || !s.claim(block) {
				continue
			}
			parts = append(parts, s.part(block, security.ModifierElement, ""))
		}
	}

	for _, xp := range xpaths {
		matched, err := s.selectXPath(xp, security.ModifierElement)
		if err != nil {
			return nil, err
		}
		parts = append(parts, matched...)
	}

	for _, xp := range contentXPaths {
		modifier := security.ModifierContent
		if sign {
			modifier = security.ModifierElement
		}
		matched, err := s.selectXPath(xp, modifier)
		if err != nil {
			return nil, err
		}
		parts = append(parts, matched...)
	}
	return parts, nil
}

// SignedParts selects the parts named by the policy's top-level SignedParts
// and SignedElements assertions and asserts them.
func (s *Selector) SignedParts(p *policy.Policy, ledger *policy.Ledger) ([]*security.EncryptionPart, error) {
	var (
		body    bool
		headers []policy.Header
		xpaths  []policy.XPath
	)
	for _, a := range p.Assertions {
		switch a := a.(type) {
		case *policy.Parts:
			if a.Kind != policy.SignedPartsKind {
				continue
			}
			body = body || a.Body
			headers = append(headers, a.Headers...)
			ledger.Assert(a)
		case *policy.Elements:
			if a.Kind != policy.SignedElementsKind {
				continue
			}
			xpaths = append(xpaths, a.XPaths...)
			ledger.Assert(a)
		}
	}
	return s.Select(true, body, headers, xpaths, nil)
}

// EncryptedParts selects the parts named by the policy's top-level
// EncryptedParts, EncryptedElements and ContentEncryptedElements assertions
// and asserts them.
func (s *Selector) EncryptedParts(p *policy.Policy, ledger *policy.Ledger) ([]*security.EncryptionPart, error) {
	var (
		body          bool
		headers       []policy.Header
		xpaths        []policy.XPath
		contentXPaths []policy.XPath
	)
	for _, a := range p.Assertions {
		switch a := a.(type) {
		case *policy.Parts:
			if a.Kind != policy.EncryptedPartsKind {
				continue
			}
			body = body || a.Body
			headers = append(headers, a.Headers...)
			ledger.Assert(a)
		case *policy.Elements:
			switch a.Kind {
			case policy.EncryptedElementsKind:
				xpaths = append(xpaths, a.XPaths...)
			case policy.ContentEncryptedElementsKind:
				contentXPaths = append(contentXPaths, a.XPaths...)
			default:
				continue
			}
			ledger.Assert(a)
		}
	}
	return s.Select(false, body, headers, xpaths, contentXPaths)
}

func (s *Selector) selectXPath(xp policy.XPath, modifier security.Modifier) ([]*security.EncryptionPart, error) {
	path, err := compileXPath(xp.Expression, xp.Namespaces)
	if err != nil {
		return nil, fmt.Errorf("invalid XPath: %w", err)
	}
	var parts []*security.EncryptionPart
	for _, el := range s.env.Document().FindElementsPath(path) {
		if !s.claim(el) {
			continue
		}
		parts = append(parts, s.part(el, modifier, xp.Expression))
	}
	return parts, nil
}

// claim records el as selected and reports whether it was new.
func (s *Selector) claim(el *etree.Element) bool {
	if _, ok := s.found[el]; ok {
		return false
	}
	s.found[el] = struct{}{}
	return true
}

func (s *Selector) part(el *etree.Element, modifier security.Modifier, xpath string) *security.EncryptionPart {
	part := security.NewPart(security.EnsureID(el, "id-"), modifier)
	part.Name = el.Tag
	part.Namespace = el.NamespaceURI()
	part.Element = el
	part.XPath = xpath
	return part
}

// existingSecurityHeader returns the wsse:Security block without creating
// one.
func (s *Selector) existingSecurityHeader() *etree.Element {
	for _, block := range s.env.Header().ChildElements() {
		if block.Tag == "Security" && block.NamespaceURI() == security.NSSecurityExt {
			return block
		}
	}
	return nil
}

func matchesHeader(block *etree.Element, headers []policy.Header) bool {
	for _, h := range headers {
		if block.NamespaceURI() != h.Namespace {
			continue
		}
		if h.Name == "" || h.Name == block.Tag {
			return true
		}
	}
	return false
}

// ConvertToEncryptionPart returns an element part for el, allocating an id
// when el has none.
func ConvertToEncryptionPart(el *etree.Element) *security.EncryptionPart {
	part := security.NewPart(security.EnsureID(el, "id-"), security.ModifierElement)
	part.Name = el.Tag
	part.Namespace = el.NamespaceURI()
	part.Element = el
	return part
}

// HandleEncryptedSignedHeaders rewrites the signed parts for the
// encrypt-before-signing order. A signed part that was also encrypted as a
// whole element is replaced by a reference to the element that replaced
// it; replacements are moved to the end of the list.
func HandleEncryptedSignedHeaders(encrypted, signed []*security.EncryptionPart) ([]*security.EncryptionPart, error) {
	out := make([]*security.EncryptionPart, 0, len(signed))
	var replaced []*security.EncryptionPart

	for _, sp := range signed {
		if sp.ID == "" && sp.Element == nil && sp.Name != security.PartToken && sp.Name != security.PartSTRTransform {
			return nil, fmt.Errorf("%w: part %s has no id", ErrMalformedPart, sp.Name)
		}
		if ep := encryptedMatch(sp, encrypted); ep != nil {
			rp := security.NewPart(ep.EncID, security.ModifierElement)
			rp.Name = sp.Name
			rp.Namespace = sp.Namespace
			replaced = append(replaced, rp)
			continue
		}
		out = append(out, sp)
	}
	return append(out, replaced...), nil
}

func encryptedMatch(sp *security.EncryptionPart, encrypted []*security.EncryptionPart) *security.EncryptionPart {
	id := strings.TrimPrefix(sp.ID, "#")
	if id == "" {
		return nil
	}
	for _, ep := range encrypted {
		if ep.EncID == "" || ep.Modifier != security.ModifierElement {
			continue
		}
		if strings.TrimPrefix(ep.ID, "#") == id {
			return ep
		}
	}
	return nil
}
