package tokenstore

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// Record is the serialized form of a SecurityToken used by the persistent
// stores. XML elements are kept as their serialized text.
type Record struct {
	ID                  string    `bson:"_id" json:"id"`
	TokenType           string    `bson:"token_type,omitempty" json:"tokenType,omitempty"`
	Certificate         []byte    `bson:"certificate,omitempty" json:"certificate,omitempty"`
	Secret              []byte    `bson:"secret,omitempty" json:"secret,omitempty"`
	Token               string    `bson:"token,omitempty" json:"token,omitempty"`
	AttachedReference   string    `bson:"attached_reference,omitempty" json:"attachedReference,omitempty"`
	UnattachedReference string    `bson:"unattached_reference,omitempty" json:"unattachedReference,omitempty"`
	Created             time.Time `bson:"created" json:"created"`
	Expires             time.Time `bson:"expires,omitempty" json:"expires,omitempty"`
	EncryptedKeySHA1    string    `bson:"encrypted_key_sha1,omitempty" json:"encryptedKeySha1,omitempty"`
}

// NewRecord serializes a token.
func NewRecord(t *SecurityToken) (*Record, error) {
	r := &Record{
		ID:               t.ID,
		TokenType:        t.TokenType,
		Secret:           t.Secret,
		Created:          t.Created,
		Expires:          t.Expires,
		EncryptedKeySHA1: t.EncryptedKeySHA1,
	}
	if t.Certificate != nil {
		r.Certificate = t.Certificate.Raw
	}
	var err error
	if r.Token, err = elementString(t.Token); err != nil {
		return nil, fmt.Errorf("serializing token element: %w", err)
	}
	if r.AttachedReference, err = elementString(t.AttachedReference); err != nil {
		return nil, fmt.Errorf("serializing attached reference: %w", err)
	}
	if r.UnattachedReference, err = elementString(t.UnattachedReference); err != nil {
		return nil, fmt.Errorf("serializing unattached reference: %w", err)
	}
	return r, nil
}

// SecurityToken rebuilds the token.
func (r *Record) SecurityToken() (*SecurityToken, error) {
	t := &SecurityToken{
		ID:               r.ID,
		TokenType:        r.TokenType,
		Secret:           r.Secret,
		Created:          r.Created,
		Expires:          r.Expires,
		EncryptedKeySHA1: r.EncryptedKeySHA1,
	}
	if len(r.Certificate) > 0 {
		cert, err := x509.ParseCertificate(r.Certificate)
		if err != nil {
			return nil, fmt.Errorf("parsing token certificate: %w", err)
		}
		t.Certificate = cert
	}
	var err error
	if t.Token, err = parseElement(r.Token); err != nil {
		return nil, fmt.Errorf("parsing token element: %w", err)
	}
	if t.AttachedReference, err = parseElement(r.AttachedReference); err != nil {
		return nil, fmt.Errorf("parsing attached reference: %w", err)
	}
	if t.UnattachedReference, err = parseElement(r.UnattachedReference); err != nil {
		return nil, fmt.Errorf("parsing unattached reference: %w", err)
	}
	return t, nil
}

func elementString(el *etree.Element) (string, error) {
	if el == nil {
		return "", nil
	}
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}

func parseElement(s string) (*etree.Element, error) {
	if s == "" {
		return nil, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return nil, err
	}
	return doc.Root(), nil
}
