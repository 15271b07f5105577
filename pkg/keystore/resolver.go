package keystore

import (
	"errors"
	"log/slog"
	"sync"
)

// Resolver hands out Crypto providers, creating each distinct configuration
// once. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Crypto
	factory   func(Properties) (Crypto, error)
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFactory replaces the function used to create providers.
func WithFactory(f func(Properties) (Crypto, error)) ResolverOption {
	return func(r *Resolver) { r.factory = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates an empty resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers: make(map[string]Crypto),
		factory:   New,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the provider for props, creating it on first use.
func (r *Resolver) Resolve(props Properties) (Crypto, error) {
	key := props.Identity()

	r.mu.RLock()
	if c, ok := r.providers[key]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have created it while we waited for the lock
	if c, ok := r.providers[key]; ok {
		return c, nil
	}

	c, err := r.factory(props)
	if err != nil {
		return nil, err
	}
	r.providers[key] = c
	r.logger.Debug("keystore provider created", slog.String("provider", props.Provider))
	return c, nil
}

// Close closes every provider created by the resolver.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, c := range r.providers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.providers, key)
	}
	return errors.Join(errs...)
}
