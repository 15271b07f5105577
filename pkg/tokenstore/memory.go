package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultExpiration applies to tokens added without an expiry.
const DefaultExpiration = time.Hour

// MemoryStore keeps tokens in process memory. Expired tokens are dropped
// by a janitor.
type MemoryStore struct {
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryStore creates a store whose tokens without an expiry live for
// defaultExpiration. A zero value selects DefaultExpiration.
func NewMemoryStore(defaultExpiration time.Duration) *MemoryStore {
	if defaultExpiration == 0 {
		defaultExpiration = DefaultExpiration
	}
	return &MemoryStore{
		cache: cache.New(defaultExpiration, 2*defaultExpiration),
		now:   time.Now,
	}
}

// Get returns the token with id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*SecurityToken, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	token := v.(*SecurityToken)
	if token.Expired(s.now()) {
		s.cache.Delete(id)
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	return token, nil
}

// Add stores the token until it expires.
func (s *MemoryStore) Add(ctx context.Context, token *SecurityToken) error {
	if token == nil || token.ID == "" {
		return fmt.Errorf("token has no id")
	}
	ttl := token.TTL(s.now())
	switch {
	case ttl < 0:
		return nil
	case ttl == 0:
		s.cache.Set(token.ID, token, cache.DefaultExpiration)
	default:
		s.cache.Set(token.ID, token, ttl)
	}
	return nil
}

// Remove deletes the token with id.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Len returns the number of stored tokens, including expired ones not yet
// collected.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
