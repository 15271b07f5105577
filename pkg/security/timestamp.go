package security

import (
	"time"

	"github.com/beevik/etree"
)

// DefaultTimestampTTL is the lifetime of a wsu:Timestamp when none is
// configured.
const DefaultTimestampTTL = 300 * time.Second

// Timestamp is a wsu:Timestamp header element.
type Timestamp struct {
	ID      string
	Created time.Time
	Expires time.Time

	element *etree.Element
}

// NewTimestamp creates a timestamp created at now. A non-positive ttl omits
// wsu:Expires.
func NewTimestamp(now time.Time, ttl time.Duration) *Timestamp {
	ts := &Timestamp{
		ID:      "TS-" + generateID(),
		Created: now.UTC(),
	}
	if ttl > 0 {
		ts.Expires = ts.Created.Add(ttl)
	}

	el := etree.NewElement("wsu:Timestamp")
	el.CreateAttr("xmlns:wsu", NSSecurityUtil)
	el.CreateAttr("wsu:Id", ts.ID)
	el.CreateElement("wsu:Created").SetText(ts.Created.Format(timeFormat))
	if !ts.Expires.IsZero() {
		el.CreateElement("wsu:Expires").SetText(ts.Expires.Format(timeFormat))
	}
	ts.element = el
	return ts
}

// Element returns the wsu:Timestamp element.
func (t *Timestamp) Element() *etree.Element { return t.element }
