package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a policy alternative.
type Document struct {
	Binding                  *BindingDocument     `yaml:"binding"`
	SupportingTokens         []SupportingDocument `yaml:"supportingTokens"`
	SignedParts              *PartsDocument       `yaml:"signedParts"`
	EncryptedParts           *PartsDocument       `yaml:"encryptedParts"`
	SignedElements           *ElementsDocument    `yaml:"signedElements"`
	EncryptedElements        *ElementsDocument    `yaml:"encryptedElements"`
	ContentEncryptedElements *ElementsDocument    `yaml:"contentEncryptedElements"`
	Wss10                    *WssDocument         `yaml:"wss10"`
	Wss11                    *WssDocument         `yaml:"wss11"`
}

// BindingDocument is the YAML form of a binding assertion.
type BindingDocument struct {
	Type                         BindingType    `yaml:"type"`
	AlgorithmSuite               string         `yaml:"algorithmSuite"`
	Layout                       LayoutType     `yaml:"layout"`
	IncludeTimestamp             bool           `yaml:"includeTimestamp"`
	ProtectTokens                bool           `yaml:"protectTokens"`
	EncryptSignature             bool           `yaml:"encryptSignature"`
	OnlySignEntireHeadersAndBody bool           `yaml:"onlySignEntireHeadersAndBody"`
	EncryptBeforeSigning         bool           `yaml:"encryptBeforeSigning"`
	InitiatorToken               *TokenDocument `yaml:"initiatorToken"`
	RecipientToken               *TokenDocument `yaml:"recipientToken"`
	ProtectionToken              *TokenDocument `yaml:"protectionToken"`
	Optional                     bool           `yaml:"optional"`
}

// TokenDocument is the YAML form of a token requirement.
type TokenDocument struct {
	Kind                          string        `yaml:"kind"`
	Inclusion                     Inclusion     `yaml:"inclusion"`
	Optional                      bool          `yaml:"optional"`
	RequireDerivedKeys            bool          `yaml:"requireDerivedKeys"`
	HashPassword                  bool          `yaml:"hashPassword"`
	NoPassword                    bool          `yaml:"noPassword"`
	X509TokenType                 X509TokenType `yaml:"x509TokenType"`
	RequireIssuerSerialReference  bool          `yaml:"requireIssuerSerialReference"`
	RequireKeyIdentifierReference bool          `yaml:"requireKeyIdentifierReference"`
	RequireThumbprintReference    bool          `yaml:"requireThumbprintReference"`
	SamlVersion                   SamlVersion   `yaml:"samlVersion"`
	TokenType                     string        `yaml:"tokenType"`
	Issuer                        string        `yaml:"issuer"`
}

// SupportingDocument is the YAML form of a supporting tokens assertion.
type SupportingDocument struct {
	Category          string            `yaml:"category"`
	Optional          bool              `yaml:"optional"`
	Tokens            []TokenDocument   `yaml:"tokens"`
	SignedParts       *PartsDocument    `yaml:"signedParts"`
	EncryptedParts    *PartsDocument    `yaml:"encryptedParts"`
	SignedElements    *ElementsDocument `yaml:"signedElements"`
	EncryptedElements *ElementsDocument `yaml:"encryptedElements"`
}

// PartsDocument is the YAML form of SignedParts and EncryptedParts.
type PartsDocument struct {
	Body     bool     `yaml:"body"`
	Headers  []Header `yaml:"headers"`
	Optional bool     `yaml:"optional"`
}

// ElementsDocument is the YAML form of the XPath part assertions.
type ElementsDocument struct {
	XPaths     []string          `yaml:"xpaths"`
	Namespaces map[string]string `yaml:"namespaces"`
	Optional   bool              `yaml:"optional"`
}

// WssDocument is the YAML form of Wss10 and Wss11.
type WssDocument struct {
	MustSupportRefKeyIdentifier  bool `yaml:"mustSupportRefKeyIdentifier"`
	MustSupportRefIssuerSerial   bool `yaml:"mustSupportRefIssuerSerial"`
	MustSupportRefThumbprint     bool `yaml:"mustSupportRefThumbprint"`
	RequireSignatureConfirmation bool `yaml:"requireSignatureConfirmation"`
	Optional                     bool `yaml:"optional"`
}

// Load reads a YAML policy document from a file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading policy %s: %w", path, err)
	}
	return p, nil
}

// Parse builds a policy from a YAML document.
func Parse(data []byte) (*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	return doc.Policy()
}

// Policy converts the document to its assertion form.
func (d *Document) Policy() (*Policy, error) {
	p := &Policy{}

	if d.Binding != nil {
		b, err := d.Binding.binding()
		if err != nil {
			return nil, fmt.Errorf("binding: %w", err)
		}
		p.Assertions = append(p.Assertions, b)
	}

	for i, sd := range d.SupportingTokens {
		st, err := sd.supportingTokens()
		if err != nil {
			return nil, fmt.Errorf("supportingTokens[%d]: %w", i, err)
		}
		p.Assertions = append(p.Assertions, st)
	}

	if d.SignedParts != nil {
		p.Assertions = append(p.Assertions, d.SignedParts.parts(SignedPartsKind))
	}
	if d.EncryptedParts != nil {
		p.Assertions = append(p.Assertions, d.EncryptedParts.parts(EncryptedPartsKind))
	}
	if d.SignedElements != nil {
		p.Assertions = append(p.Assertions, d.SignedElements.elements(SignedElementsKind))
	}
	if d.EncryptedElements != nil {
		p.Assertions = append(p.Assertions, d.EncryptedElements.elements(EncryptedElementsKind))
	}
	if d.ContentEncryptedElements != nil {
		p.Assertions = append(p.Assertions, d.ContentEncryptedElements.elements(ContentEncryptedElementsKind))
	}
	if d.Wss10 != nil {
		p.Assertions = append(p.Assertions, d.Wss10.wss(10))
	}
	if d.Wss11 != nil {
		p.Assertions = append(p.Assertions, d.Wss11.wss(11))
	}

	return p, nil
}

func (bd *BindingDocument) binding() (*Binding, error) {
	b := &Binding{
		Type:                         bd.Type,
		ProtectTokens:                bd.ProtectTokens,
		EncryptSignature:             bd.EncryptSignature,
		OnlySignEntireHeadersAndBody: bd.OnlySignEntireHeadersAndBody,
		EncryptBeforeSigning:         bd.EncryptBeforeSigning,
		Optional:                     bd.Optional,
	}
	switch b.Type {
	case "":
		b.Type = BindingAsymmetric
	case BindingAsymmetric, BindingSymmetric, BindingTransport:
	default:
		return nil, fmt.Errorf("unknown binding type %q", bd.Type)
	}

	suiteName := bd.AlgorithmSuite
	if suiteName == "" {
		suiteName = DefaultAlgorithmSuite
	}
	suite, err := LookupAlgorithmSuite(suiteName)
	if err != nil {
		return nil, err
	}
	b.AlgorithmSuite = suite

	if bd.Layout != "" {
		switch bd.Layout {
		case LayoutStrict, LayoutLax, LayoutLaxTimestampFirst, LayoutLaxTimestampLast:
		default:
			return nil, fmt.Errorf("unknown layout %q", bd.Layout)
		}
		b.Layout = &Layout{Type: bd.Layout}
	}
	if bd.IncludeTimestamp {
		b.IncludeTimestamp = &IncludeTimestamp{}
	}

	for _, tok := range []struct {
		doc *TokenDocument
		dst **Token
		key string
	}{
		{bd.InitiatorToken, &b.InitiatorToken, "initiatorToken"},
		{bd.RecipientToken, &b.RecipientToken, "recipientToken"},
		{bd.ProtectionToken, &b.ProtectionToken, "protectionToken"},
	} {
		if tok.doc == nil {
			continue
		}
		t, err := tok.doc.token()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tok.key, err)
		}
		*tok.dst = t
	}
	return b, nil
}

func (td *TokenDocument) token() (*Token, error) {
	kind, err := ParseTokenKind(td.Kind)
	if err != nil {
		return nil, err
	}
	t := &Token{
		Kind:                          kind,
		Inclusion:                     td.Inclusion,
		Optional:                      td.Optional,
		RequireDerivedKeys:            td.RequireDerivedKeys,
		HashPassword:                  td.HashPassword,
		NoPassword:                    td.NoPassword,
		X509TokenType:                 td.X509TokenType,
		RequireIssuerSerialReference:  td.RequireIssuerSerialReference,
		RequireKeyIdentifierReference: td.RequireKeyIdentifierReference,
		RequireThumbprintReference:    td.RequireThumbprintReference,
		SamlVersion:                   td.SamlVersion,
		TokenType:                     td.TokenType,
		Issuer:                        td.Issuer,
	}
	switch t.Inclusion {
	case "":
		t.Inclusion = IncludeAlways
	case IncludeNever, IncludeOnce, IncludeAlways, IncludeAlwaysToRecipient, IncludeAlwaysToInitiator:
	default:
		return nil, fmt.Errorf("unknown inclusion %q", td.Inclusion)
	}
	if t.Kind == KindX509 && t.X509TokenType == "" {
		t.X509TokenType = X509V3Token10
	}
	if t.Kind == KindSaml && t.SamlVersion == "" {
		t.SamlVersion = Saml20
	}
	return t, nil
}

func (sd *SupportingDocument) supportingTokens() (*SupportingTokens, error) {
	category, err := ParseSupportingCategory(sd.Category)
	if err != nil {
		return nil, err
	}
	st := &SupportingTokens{Category: category, Optional: sd.Optional}
	for i := range sd.Tokens {
		t, err := sd.Tokens[i].token()
		if err != nil {
			return nil, fmt.Errorf("tokens[%d]: %w", i, err)
		}
		st.Tokens = append(st.Tokens, t)
	}
	if len(st.Tokens) == 0 {
		return nil, fmt.Errorf("%s declares no tokens", sd.Category)
	}
	if sd.SignedParts != nil {
		st.SignedParts = sd.SignedParts.parts(SignedPartsKind)
	}
	if sd.EncryptedParts != nil {
		st.EncryptedParts = sd.EncryptedParts.parts(EncryptedPartsKind)
	}
	if sd.SignedElements != nil {
		st.SignedElements = sd.SignedElements.elements(SignedElementsKind)
	}
	if sd.EncryptedElements != nil {
		st.EncryptedElements = sd.EncryptedElements.elements(EncryptedElementsKind)
	}
	return st, nil
}

func (pd *PartsDocument) parts(kind PartsKind) *Parts {
	return &Parts{Kind: kind, Body: pd.Body, Headers: pd.Headers, Optional: pd.Optional}
}

func (ed *ElementsDocument) elements(kind ElementsKind) *Elements {
	e := &Elements{Kind: kind, Optional: ed.Optional}
	for _, expr := range ed.XPaths {
		e.XPaths = append(e.XPaths, XPath{Expression: expr, Namespaces: ed.Namespaces})
	}
	return e
}

func (wd *WssDocument) wss(version int) *Wss {
	w := &Wss{
		Version:                     version,
		MustSupportRefKeyIdentifier: wd.MustSupportRefKeyIdentifier,
		MustSupportRefIssuerSerial:  wd.MustSupportRefIssuerSerial,
		MustSupportRefThumbprint:    wd.MustSupportRefThumbprint,
		Optional:                    wd.Optional,
	}
	if version == 11 {
		w.RequireSignatureConfirmation = wd.RequireSignatureConfirmation
	}
	return w
}
