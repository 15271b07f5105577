package security

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// SAMLAssertion wraps a SAML 1.1 or 2.0 assertion carried in the security
// header.
type SAMLAssertion struct {
	element *etree.Element
	version int
}

// NewSAMLAssertion wraps an assertion element.
func NewSAMLAssertion(el *etree.Element) (*SAMLAssertion, error) {
	if el == nil || el.Tag != "Assertion" {
		return nil, fmt.Errorf("not a SAML assertion")
	}
	switch el.NamespaceURI() {
	case NSSAML1:
		return &SAMLAssertion{element: el, version: 1}, nil
	case NSSAML2:
		return &SAMLAssertion{element: el, version: 2}, nil
	default:
		return nil, fmt.Errorf("unknown SAML namespace %q", el.NamespaceURI())
	}
}

// BuildSAMLAssertion creates a minimal bearer assertion. version is 1 for
// SAML 1.1 and 2 for SAML 2.0.
func BuildSAMLAssertion(version int, issuer, subject string, now time.Time, ttl time.Duration) *etree.Element {
	now = now.UTC()
	id := "_" + uuid.NewString()
	if version == 1 {
		a := etree.NewElement("saml1:Assertion")
		a.CreateAttr("xmlns:saml1", NSSAML1)
		a.CreateAttr("AssertionID", id)
		a.CreateAttr("Issuer", issuer)
		a.CreateAttr("IssueInstant", now.Format(timeFormat))
		a.CreateAttr("MajorVersion", "1")
		a.CreateAttr("MinorVersion", "1")
		cond := a.CreateElement("saml1:Conditions")
		cond.CreateAttr("NotBefore", now.Format(timeFormat))
		cond.CreateAttr("NotOnOrAfter", now.Add(ttl).Format(timeFormat))
		stmt := a.CreateElement("saml1:AuthenticationStatement")
		stmt.CreateAttr("AuthenticationInstant", now.Format(timeFormat))
		stmt.CreateAttr("AuthenticationMethod", "urn:oasis:names:tc:SAML:1.0:am:unspecified")
		subj := stmt.CreateElement("saml1:Subject")
		subj.CreateElement("saml1:NameIdentifier").SetText(subject)
		subj.CreateElement("saml1:SubjectConfirmation").
			CreateElement("saml1:ConfirmationMethod").SetText("urn:oasis:names:tc:SAML:1.0:cm:bearer")
		return a
	}

	a := etree.NewElement("saml2:Assertion")
	a.CreateAttr("xmlns:saml2", NSSAML2)
	a.CreateAttr("ID", id)
	a.CreateAttr("IssueInstant", now.Format(timeFormat))
	a.CreateAttr("Version", "2.0")
	a.CreateElement("saml2:Issuer").SetText(issuer)
	subj := a.CreateElement("saml2:Subject")
	subj.CreateElement("saml2:NameID").SetText(subject)
	subj.CreateElement("saml2:SubjectConfirmation").CreateAttr("Method", "urn:oasis:names:tc:SAML:2.0:cm:bearer")
	cond := a.CreateElement("saml2:Conditions")
	cond.CreateAttr("NotBefore", now.Format(timeFormat))
	cond.CreateAttr("NotOnOrAfter", now.Add(ttl).Format(timeFormat))
	return a
}

// Element returns the assertion element.
func (a *SAMLAssertion) Element() *etree.Element { return a.element }

// Version returns 1 for SAML 1.1 and 2 for SAML 2.0.
func (a *SAMLAssertion) Version() int { return a.version }

// ID returns the AssertionID (SAML 1.1) or ID (SAML 2.0).
func (a *SAMLAssertion) ID() string {
	if a.version == 1 {
		return a.element.SelectAttrValue("AssertionID", "")
	}
	return a.element.SelectAttrValue("ID", "")
}

// KeyIdentifierValueType returns the key identifier value type used to
// reference the assertion.
func (a *SAMLAssertion) KeyIdentifierValueType() string {
	if a.version == 1 {
		return ValueTypeSAML11KeyIdentifier
	}
	return ValueTypeSAML20KeyIdentifier
}

// TokenType returns the token profile type of the assertion.
func (a *SAMLAssertion) TokenType() string {
	if a.version == 1 {
		return TokenTypeSAML11
	}
	return TokenTypeSAML20
}

// Reference builds a SecurityTokenReference to the assertion.
func (a *SAMLAssertion) Reference() (*etree.Element, error) {
	ref := &TokenReference{
		Type:      KeyIDCustomKeyIdentifier,
		ValueType: a.KeyIdentifierValueType(),
		Value:     a.ID(),
	}
	return ref.Element()
}
