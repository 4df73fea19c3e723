package offload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
MongoDB layout:

Collection: qrshare_payloads

Document structure:
{
    "_id": string,          // random key
    "data": BinData,
    "created_at": ISODate,
    "expires_at": ISODate   // absent when the payload does not expire
}

Indexes:
db.qrshare_payloads.createIndex({"expires_at": 1}, {expireAfterSeconds: 0})
*/

// DefaultMongoCollection is the collection used by MongoStore.
const DefaultMongoCollection = "qrshare_payloads"

type mongoPayload struct {
	Key       string     `bson:"_id"`
	Data      []byte     `bson:"data"`
	CreatedAt time.Time  `bson:"created_at"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// MongoStore implements Store with one MongoDB document per payload.
//
// MongoDB's TTL monitor deletes expired documents, but only about once a
// minute, so Get also checks the expiry itself.
//
// Example:
//
//	client, _ := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://localhost:27017"))
//	store := offload.NewMongoStore(client.Database("myapp"))
//	if err := store.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
type MongoStore struct {
	collection *mongo.Collection
	closed     atomic.Bool
}

// NewMongoStore creates a MongoDB-backed store in db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection(DefaultMongoCollection),
	}
}

// WithCollection sets a custom collection name.
func (s *MongoStore) WithCollection(name string) *MongoStore {
	s.collection = s.collection.Database().Collection(name)
	return s
}

// Collection returns the underlying MongoDB collection.
func (s *MongoStore) Collection() *mongo.Collection {
	return s.collection
}

// Indexes returns the TTL index on expires_at.
func (s *MongoStore) Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
}

// EnsureIndexes creates the required indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, s.Indexes())
	return err
}

// Put stores data under a new random key.
func (s *MongoStore) Put(ctx context.Context, data []byte, ttl time.Duration) (string, error) {
	if s.closed.Load() {
		return "", ErrStoreClosed
	}

	now := time.Now().UTC()
	doc := mongoPayload{
		Key:       uuid.NewString(),
		Data:      data,
		CreatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		doc.ExpiresAt = &expires
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("put payload: %w", err)
	}
	return doc.Key, nil
}

// Get returns the data under key.
func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	var doc mongoPayload
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}
	if doc.ExpiresAt != nil && !time.Now().Before(*doc.ExpiresAt) {
		return nil, ErrNotFound
	}
	return doc.Data, nil
}

// Delete removes key.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete payload: %w", err)
	}
	return nil
}

// Close marks the store closed. The MongoDB client is left connected.
func (s *MongoStore) Close() error {
	s.closed.Store(true)
	return nil
}

// Compile-time check that MongoStore implements Store
var _ Store = (*MongoStore)(nil)
