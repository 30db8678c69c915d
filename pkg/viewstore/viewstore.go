// Package viewstore materializes account balances into a MongoDB
// collection. Updates are conditional on the event's timestamp not
// having been applied yet, which makes re-delivery a no-op.
package viewstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrViewNotFound is returned when no view record exists for an id.
var ErrViewNotFound = errors.New("view record not found")

// Record is the materialized view of one account: its cumulative
// balance and the set of event timestamps already folded in.
type Record struct {
	ID         string   `bson:"_id" json:"id"`
	Funds      int64    `bson:"funds" json:"funds"`
	Timestamps []string `bson:"timestamps" json:"timestamps"`
}

// Config configures the store.
type Config struct {
	// URL is the MongoDB connection string.
	URL string

	// Database and Collection name the view records' home.
	Database   string
	Collection string
}

// Store is a Mongo-backed view store. It is safe for concurrent use;
// the driver maintains its own connection pool, so concurrent sweep
// and live-delivery batches never share a mutable connection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Apply folds one event into the account's view record: funds move by
// delta and the event's timestamp joins the applied set, but only if
// the record does not already contain that timestamp. The upsert
// covers first-ever events; when two first inserts race, the loser
// hits the unique _id and retries once without upsert, where the
// conditional update is either applied or a no-op.
func (s *Store) Apply(ctx context.Context, id, timestamp string, delta int64) error {
	filter := applyFilter(id, timestamp)
	update := applyUpdate(timestamp, delta)

	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.coll.UpdateOne(ctx, filter, update)
	}
	if err != nil {
		return fmt.Errorf("apply event %s to %s: %w", timestamp, id, err)
	}
	return nil
}

// Get returns the view record for an account id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrViewNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get view record %s: %w", id, err)
	}
	return rec, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func applyFilter(id, timestamp string) bson.M {
	return bson.M{
		"_id":        id,
		"timestamps": bson.M{"$ne": timestamp},
	}
}

func applyUpdate(timestamp string, delta int64) bson.M {
	return bson.M{
		"$inc":      bson.M{"funds": delta},
		"$addToSet": bson.M{"timestamps": timestamp},
	}
}
