package security

import "github.com/beevik/etree"

// Modifier selects whether a part is protected as a whole element or only
// its content.
type Modifier string

const (
	ModifierElement Modifier = "Element"
	ModifierContent Modifier = "Content"
)

// Reserved part names
const (
	// PartToken marks a part that stands for a whole security token. It is
	// the only part allowed to travel without an id.
	PartToken = "Token"
	// PartSTRTransform marks a SecurityTokenReference digested through the
	// STR-Transform.
	PartSTRTransform = "STRTransform"
)

// EncryptionPart identifies a fragment of the envelope to sign or encrypt.
type EncryptionPart struct {
	ID        string
	Name      string
	Namespace string
	Modifier  Modifier

	// XPath is the expression that selected the part, if any.
	XPath string

	// Element is the resolved element. When nil the part is resolved by ID.
	Element *etree.Element

	// EncID is the id of the EncryptedData or EncryptedHeader that replaced
	// the element once it has been encrypted.
	EncID string
}

// NewPart returns a part referring to the element with the given id.
func NewPart(id string, modifier Modifier) *EncryptionPart {
	return &EncryptionPart{ID: id, Modifier: modifier}
}
