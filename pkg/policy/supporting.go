package policy

import "fmt"

// SupportingCategory is one of the eight supporting token assertions.
type SupportingCategory int

const (
	Supporting SupportingCategory = iota
	SignedSupporting
	EndorsingSupporting
	SignedEndorsingSupporting
	EncryptedSupporting
	SignedEncryptedSupporting
	EndorsingEncryptedSupporting
	SignedEndorsingEncryptedSupporting
)

type categoryInfo struct {
	name                         QName
	signed, endorsing, encrypted bool
}

var categories = map[SupportingCategory]categoryInfo{
	Supporting:                         {sp12("SupportingTokens"), false, false, false},
	SignedSupporting:                   {sp12("SignedSupportingTokens"), true, false, false},
	EndorsingSupporting:                {sp12("EndorsingSupportingTokens"), false, true, false},
	SignedEndorsingSupporting:          {sp12("SignedEndorsingSupportingTokens"), true, true, false},
	EncryptedSupporting:                {sp12("EncryptedSupportingTokens"), false, false, true},
	SignedEncryptedSupporting:          {sp12("SignedEncryptedSupportingTokens"), true, false, true},
	EndorsingEncryptedSupporting:       {sp12("EndorsingEncryptedSupportingTokens"), false, true, true},
	SignedEndorsingEncryptedSupporting: {sp12("SignedEndorsingEncryptedSupportingTokens"), true, true, true},
}

// Categories lists every supporting token category in processing order.
var Categories = []SupportingCategory{
	Supporting,
	SignedSupporting,
	EndorsingSupporting,
	SignedEndorsingSupporting,
	EncryptedSupporting,
	SignedEncryptedSupporting,
	EndorsingEncryptedSupporting,
	SignedEndorsingEncryptedSupporting,
}

func (c SupportingCategory) QName() QName      { return categories[c].name }
func (c SupportingCategory) IsSigned() bool    { return categories[c].signed }
func (c SupportingCategory) IsEndorsing() bool { return categories[c].endorsing }
func (c SupportingCategory) IsEncrypted() bool { return categories[c].encrypted }

func (c SupportingCategory) String() string {
	if info, ok := categories[c]; ok {
		return info.name.Local
	}
	return fmt.Sprintf("SupportingCategory(%d)", int(c))
}

// ParseSupportingCategory parses the local assertion name of a category.
func ParseSupportingCategory(s string) (SupportingCategory, error) {
	for _, c := range Categories {
		if c.QName().Local == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown supporting tokens category %q", s)
}

// SupportingTokens is a supporting tokens assertion of a single category.
type SupportingTokens struct {
	Category SupportingCategory
	Tokens   []*Token
	Optional bool

	// Parts protected by the supporting tokens rather than the primary
	// signature. Used by endorsing categories and inbound validation.
	SignedParts       *Parts
	EncryptedParts    *Parts
	SignedElements    *Elements
	EncryptedElements *Elements
}

func (s *SupportingTokens) Name() QName      { return s.Category.QName() }
func (s *SupportingTokens) IsOptional() bool { return s.Optional }

func (s *SupportingTokens) Children() []Assertion {
	children := make([]Assertion, 0, len(s.Tokens)+4)
	for _, t := range s.Tokens {
		children = append(children, t)
	}
	if s.SignedParts != nil {
		children = append(children, s.SignedParts)
	}
	if s.EncryptedParts != nil {
		children = append(children, s.EncryptedParts)
	}
	if s.SignedElements != nil {
		children = append(children, s.SignedElements)
	}
	if s.EncryptedElements != nil {
		children = append(children, s.EncryptedElements)
	}
	return children
}
