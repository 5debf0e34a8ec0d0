// Package mongostore keeps todos in a MongoDB collection. Ids are ObjectID
// hex strings; createdAt is stored as a BSON datetime and therefore carries
// millisecond precision.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roach88/todosync/internal/store"
	"github.com/roach88/todosync/internal/todo"
)

// CollectionName is the collection holding todo documents.
const CollectionName = "todos"

const connectTimeout = 10 * time.Second

type document struct {
	ID        primitive.ObjectID `bson:"_id"`
	Text      string             `bson:"text"`
	Completed bool               `bson:"completed"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d document) todo() todo.Todo {
	return todo.Todo{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// Store is a todo.Store backed by a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	clock  store.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for createdAt.
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open connects to uri, pings the server, and ensures the ordering index on
// database.todos exists.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongodb uri is required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(database).Collection(CollectionName),
		clock:  store.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Collection exposes the underlying collection, for tests and maintenance.
func (s *Store) Collection() *mongo.Collection {
	return s.coll
}
