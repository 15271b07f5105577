// Package tokenstore keeps the security tokens an endpoint has negotiated or
// received so that later messages can reference them.
//
// # Implementations
//
//   - [MemoryStore]: in-process, expiring entries (go-cache)
//   - mongodb sub-package: tokens shared through a MongoDB collection
//   - redisstore sub-package: tokens shared through Redis with native TTLs
//
// A token without an expiry is kept until it is removed or, for the memory
// store, until the store's default expiration elapses.
//
// # Concurrency
//
// All implementations are safe for concurrent use.
package tokenstore

import (
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// ErrTokenNotFound is returned when no live token has the requested id.
var ErrTokenNotFound = errors.New("security token not found")

// SecurityToken is a token that can be referenced from a security header.
type SecurityToken struct {
	ID        string
	TokenType string

	// Certificate is set for tokens that carry a public key.
	Certificate *x509.Certificate

	// Secret is the shared key of symmetric tokens.
	Secret []byte

	// Token is the token element as it goes into a security header.
	Token *etree.Element

	// AttachedReference is used when the token is in the same message,
	// UnattachedReference when it is not.
	AttachedReference   *etree.Element
	UnattachedReference *etree.Element

	Created time.Time
	Expires time.Time

	// EncryptedKeySHA1 identifies a token derived from an EncryptedKey.
	EncryptedKeySHA1 string
}

// NewSecurityToken creates a token with the given id, or a fresh urn:uuid id
// when id is empty.
func NewSecurityToken(id string) *SecurityToken {
	if id == "" {
		id = "urn:uuid:" + uuid.NewString()
	}
	return &SecurityToken{ID: id, Created: time.Now().UTC()}
}

// Expired reports whether the token has an expiry before now.
func (t *SecurityToken) Expired(now time.Time) bool {
	return !t.Expires.IsZero() && !now.Before(t.Expires)
}

// TTL returns the remaining lifetime, 0 for tokens without an expiry and a
// negative value for expired tokens.
func (t *SecurityToken) TTL(now time.Time) time.Duration {
	if t.Expires.IsZero() {
		return 0
	}
	if ttl := t.Expires.Sub(now); ttl > 0 {
		return ttl
	}
	return -1
}

// Store is a repository of security tokens keyed by id.
type Store interface {
	// Get returns the token with id or ErrTokenNotFound.
	Get(ctx context.Context, id string) (*SecurityToken, error)

	// Add stores the token, replacing any token with the same id.
	Add(ctx context.Context, token *SecurityToken) error

	// Remove deletes the token with id. Removing an unknown id is not an
	// error.
	Remove(ctx context.Context, id string) error
}
