package binding

import "github.com/beevik/etree"

// Cursors are the reference positions inside the security header.
type Cursors struct {
	LastSupportingToken *etree.Element
	LastEncryptedKey    *etree.Element
	LastDerivedKey      *etree.Element
	TopDown             *etree.Element
	BottomUp            *etree.Element
}

// Composer inserts elements into a wsse:Security header relative to its
// cursors. A Composer belongs to a single pass.
type Composer struct {
	header  *etree.Element
	cursors Cursors

	// firstDerivedKey anchors the first encrypted key in front of every
	// derived key.
	firstDerivedKey *etree.Element
}

// NewComposer returns a composer for the given security header.
func NewComposer(header *etree.Element) *Composer {
	return &Composer{header: header}
}

// Header returns the security header.
func (c *Composer) Header() *etree.Element { return c.header }

// Cursors returns a snapshot of the cursors.
func (c *Composer) Cursors() Cursors { return c.cursors }

// InsertDerivedKey places a DerivedKeyToken after the last derived key,
// else after the last encrypted key, else after the top-down cursor, else
// at the front of the header.
func (c *Composer) InsertDerivedKey(el *etree.Element) {
	switch {
	case c.cursors.LastDerivedKey != nil:
		c.insertAfter(c.cursors.LastDerivedKey, el)
	case c.cursors.LastEncryptedKey != nil:
		c.insertAfter(c.cursors.LastEncryptedKey, el)
	case c.cursors.TopDown != nil:
		c.insertAfter(c.cursors.TopDown, el)
	default:
		c.prepend(el)
	}
	if c.firstDerivedKey == nil {
		c.firstDerivedKey = el
	}
	c.cursors.LastDerivedKey = el
}

// InsertEncryptedKey places an EncryptedKey (or the token it refers to)
// after the last encrypted key, else in front of the derived keys,
// else after the top-down cursor, else at the front of the header.
func (c *Composer) InsertEncryptedKey(el *etree.Element) {
	switch {
	case c.cursors.LastEncryptedKey != nil:
		c.insertAfter(c.cursors.LastEncryptedKey, el)
	case c.firstDerivedKey != nil:
		c.insertBefore(c.firstDerivedKey, el)
	case c.cursors.TopDown != nil:
		c.insertAfter(c.cursors.TopDown, el)
	default:
		c.prepend(el)
	}
	c.cursors.LastEncryptedKey = el
}

// InsertSupportingElement places a supporting token after the most
// specific cursor that is set, or in front of the bottom-up cursor.
func (c *Composer) InsertSupportingElement(el *etree.Element) {
	switch {
	case c.cursors.LastSupportingToken != nil:
		c.insertAfter(c.cursors.LastSupportingToken, el)
	case c.cursors.LastDerivedKey != nil:
		c.insertAfter(c.cursors.LastDerivedKey, el)
	case c.cursors.LastEncryptedKey != nil:
		c.insertAfter(c.cursors.LastEncryptedKey, el)
	case c.cursors.TopDown != nil:
		c.insertAfter(c.cursors.TopDown, el)
	case c.cursors.BottomUp != nil:
		c.insertBefore(c.cursors.BottomUp, el)
	default:
		c.header.AddChild(el)
	}
	c.cursors.LastSupportingToken = el
}

// InsertBottomUp appends el, or places it in front of the previous
// bottom-up element.
func (c *Composer) InsertBottomUp(el *etree.Element) {
	if c.cursors.BottomUp == nil {
		c.header.AddChild(el)
	} else {
		c.insertBefore(c.cursors.BottomUp, el)
	}
	c.cursors.BottomUp = el
}

// InsertTopDown places el at the front of the header, or after the
// previous top-down element.
func (c *Composer) InsertTopDown(el *etree.Element) {
	if c.cursors.TopDown == nil {
		c.prepend(el)
	} else {
		c.insertAfter(c.cursors.TopDown, el)
	}
	c.cursors.TopDown = el
}

func (c *Composer) insertAfter(sib, el *etree.Element) {
	if sib.Parent() != c.header {
		c.header.AddChild(el)
		return
	}
	// InsertChildAt appends when the index is past the last child.
	c.header.InsertChildAt(sib.Index()+1, el)
}

func (c *Composer) insertBefore(sib, el *etree.Element) {
	if sib.Parent() != c.header {
		c.header.AddChild(el)
		return
	}
	c.header.InsertChildAt(sib.Index(), el)
}

func (c *Composer) prepend(el *etree.Element) {
	c.header.InsertChildAt(0, el)
}
