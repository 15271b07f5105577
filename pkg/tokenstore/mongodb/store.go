// Package mongodb implements tokenstore.Store using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore"
)

// Store implements tokenstore.Store using a MongoDB collection. Expired
// tokens are removed by a TTL index on the expiry time.
type Store struct {
	client *mongo.Client
	tokens *mongo.Collection
	now    func() time.Time
}

// Config holds MongoDB connection settings
type Config struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// NewStore connects to MongoDB and prepares the token collection
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "security_tokens"
	}
	s := &Store{
		client: client,
		tokens: client.Database(cfg.Database).Collection(collection),
		now:    time.Now,
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

// Get returns the token with id
func (s *Store) Get(ctx context.Context, id string) (*tokenstore.SecurityToken, error) {
	var rec tokenstore.Record
	err := s.tokens.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", tokenstore.ErrTokenNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("finding token %s: %w", id, err)
	}

	token, err := rec.SecurityToken()
	if err != nil {
		return nil, err
	}
	// The TTL monitor runs about once a minute
	if token.Expired(s.now()) {
		return nil, fmt.Errorf("%w: %s", tokenstore.ErrTokenNotFound, id)
	}
	return token, nil
}

// Add upserts the token
func (s *Store) Add(ctx context.Context, token *tokenstore.SecurityToken) error {
	rec, err := tokenstore.NewRecord(token)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.tokens.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, opts); err != nil {
		return fmt.Errorf("storing token %s: %w", rec.ID, err)
	}
	return nil
}

// Remove deletes the token with id
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.tokens.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
