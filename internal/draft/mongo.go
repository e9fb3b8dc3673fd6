package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const draftsCollection = "report_drafts"

type draftDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoMedium stores each draft slot as one document keyed by slot key.
// Abandoned drafts expire through a TTL index on updated_at.
type MongoMedium struct {
	col     *mongo.Collection
	timeout time.Duration
}

// NewMongoMedium creates the TTL index and returns a medium over the
// report_drafts collection. A zero ttl disables expiry.
func NewMongoMedium(ctx context.Context, db *mongo.Database, ttl time.Duration) (*MongoMedium, error) {
	col := db.Collection(draftsCollection)
	if ttl > 0 {
		if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl / time.Second)),
		}); err != nil {
			return nil, fmt.Errorf("failed to create draft ttl index: %w", err)
		}
	}
	return &MongoMedium{col: col, timeout: 8 * time.Second}, nil
}

func (m *MongoMedium) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc draftDoc
	err := m.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read draft %s: %w", key, err)
	}
	return doc.Value, true, nil
}

func (m *MongoMedium) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.col.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write draft %s: %w", key, err)
	}
	return nil
}

// Delete removes all keys with a single DeleteMany.
func (m *MongoMedium) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("failed to delete drafts: %w", err)
	}
	return nil
}
