// Package mongo implements contextstore.Durable on top of MongoDB, using a
// TTL index so expired sessions are reaped server-side rather than by a
// client-driven sweep. Grounded in the teacher's registry/store/mongo.Store
// and features/session/mongo.Store: a thin collection wrapper with upsert
// writes and ErrNotFound translation.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/opencode-ai/orchestrator/contextstore"
)

const defaultCollection = "orchestrator_contexts"

type document struct {
	ID        string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Durable is a MongoDB-backed contextstore.Durable.
type Durable struct {
	collection *mongo.Collection
}

// New builds a Durable using coll, ensuring the TTL index on expires_at
// exists. coll should already be bound to a connected client and database.
func New(ctx context.Context, coll *mongo.Collection) (*Durable, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("contextstore/mongo: ensure ttl index: %w", err)
	}
	return &Durable{collection: coll}, nil
}

// CollectionName returns the conventional collection name for callers
// wiring up their own mongo.Client.
func CollectionName() string { return defaultCollection }

// Put implements contextstore.Durable.
func (d *Durable) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	doc := document{ID: key, Payload: value, ExpiresAt: time.Now().UTC().Add(ttl)}
	opts := options.Replace().SetUpsert(true)
	_, err := d.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts)
	if err != nil {
		return fmt.Errorf("contextstore/mongo: put %q: %w", key, err)
	}
	return nil
}

// Get implements contextstore.Durable.
func (d *Durable) Get(ctx context.Context, key string) ([]byte, error) {
	var doc document
	err := d.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, contextstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("contextstore/mongo: get %q: %w", key, err)
	}
	return doc.Payload, nil
}

// Delete implements contextstore.Durable.
func (d *Durable) Delete(ctx context.Context, key string) error {
	_, err := d.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("contextstore/mongo: delete %q: %w", key, err)
	}
	return nil
}

// ExtendTTL implements contextstore.Durable.
func (d *Durable) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	update := bson.M{"$set": bson.M{"expires_at": time.Now().UTC().Add(ttl)}}
	_, err := d.collection.UpdateOne(ctx, bson.M{"_id": key}, update)
	if err != nil {
		return fmt.Errorf("contextstore/mongo: extend ttl %q: %w", key, err)
	}
	return nil
}

// Keys implements contextstore.Durable. pattern is matched as a Mongo regex
// anchored at the start, e.g. "sess:*" becomes "^sess:.*".
func (d *Durable) Keys(ctx context.Context, pattern string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": globToRegex(pattern)}}
	cur, err := d.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("contextstore/mongo: list keys: %w", err)
	}
	defer cur.Close(ctx)
	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

func globToRegex(pattern string) string {
	out := "^"
	for _, r := range pattern {
		switch r {
		case '*':
			out += ".*"
		case '.', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			out += "\\" + string(r)
		default:
			out += string(r)
		}
	}
	return out
}
