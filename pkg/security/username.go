package security

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"time"

	"github.com/beevik/etree"
)

// UsernameToken is a wsse:UsernameToken. PasswordType selects how the
// password travels: PasswordTypeText, PasswordTypeDigest, or "" for no
// password at all.
type UsernameToken struct {
	ID           string
	Username     string
	Password     string
	PasswordType string
	Nonce        []byte
	Created      time.Time

	element *etree.Element
}

// NewUsernameToken prepares a username token.
func NewUsernameToken(username, password, passwordType string, now time.Time) *UsernameToken {
	ut := &UsernameToken{
		ID:           "UsernameToken-" + generateID(),
		Username:     username,
		Password:     password,
		PasswordType: passwordType,
		Created:      now.UTC(),
	}
	if passwordType == PasswordTypeDigest {
		ut.Nonce = make([]byte, 16)
		rand.Read(ut.Nonce)
	}
	ut.element = ut.build()
	return ut
}

// PasswordDigest computes Base64(SHA-1(nonce + created + password)).
func PasswordDigest(nonce []byte, created, password string) string {
	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (u *UsernameToken) build() *etree.Element {
	el := etree.NewElement("wsse:UsernameToken")
	el.CreateAttr("xmlns:wsse", NSSecurityExt)
	el.CreateAttr("xmlns:wsu", NSSecurityUtil)
	el.CreateAttr("wsu:Id", u.ID)
	el.CreateElement("wsse:Username").SetText(u.Username)

	created := u.Created.Format(timeFormat)
	switch u.PasswordType {
	case PasswordTypeText:
		pw := el.CreateElement("wsse:Password")
		pw.CreateAttr("Type", PasswordTypeText)
		pw.SetText(u.Password)
	case PasswordTypeDigest:
		pw := el.CreateElement("wsse:Password")
		pw.CreateAttr("Type", PasswordTypeDigest)
		pw.SetText(PasswordDigest(u.Nonce, created, u.Password))
		nonce := el.CreateElement("wsse:Nonce")
		nonce.CreateAttr("EncodingType", EncodingBase64Binary)
		nonce.SetText(base64.StdEncoding.EncodeToString(u.Nonce))
		el.CreateElement("wsu:Created").SetText(created)
	}
	return el
}

// Element returns the wsse:UsernameToken element.
func (u *UsernameToken) Element() *etree.Element { return u.element }
