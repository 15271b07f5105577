// Package redisstore implements tokenstore.Store on Redis. Token lifetimes
// map onto key TTLs so that endpoints sharing a Redis instance see the same
// tokens expire at the same time.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore"
)

// DefaultKeyPrefix namespaces token keys.
const DefaultKeyPrefix = "wsp:token:"

// Config holds Redis connection settings
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string `yaml:"keyPrefix"`

	// DefaultTTL applies to tokens without an expiry. Zero keeps them until
	// they are removed.
	DefaultTTL time.Duration `yaml:"defaultTTL"`
}

// Store implements tokenstore.Store with one Redis string per token.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging Redis: %w", err)
	}
	return NewStoreWithClient(client, cfg), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client redis.UniversalClient, cfg *Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		client:     client,
		prefix:     prefix,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Get returns the token with id.
func (s *Store) Get(ctx context.Context, id string) (*tokenstore.SecurityToken, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", tokenstore.ErrTokenNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading token %s: %w", id, err)
	}

	var rec tokenstore.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding token %s: %w", id, err)
	}
	return rec.SecurityToken()
}

// Add stores the token with a TTL matching its expiry.
func (s *Store) Add(ctx context.Context, token *tokenstore.SecurityToken) error {
	ttl := token.TTL(s.now())
	if ttl < 0 {
		return nil
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	rec, err := tokenstore.NewRecord(token)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token %s: %w", token.ID, err)
	}
	if err := s.client.Set(ctx, s.key(token.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("storing token %s: %w", token.ID, err)
	}
	return nil
}

// Remove deletes the token with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
