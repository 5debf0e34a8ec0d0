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

	"github.com/roach88/todosync/internal/todo"
)

var _ todo.Store = (*Store)(nil)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// List returns all todos, newest first.
func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("find todos: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}

	todos := make([]todo.Todo, 0, len(docs))
	for _, d := range docs {
		todos = append(todos, d.todo())
	}
	return todos, nil
}

// Create validates text and inserts a new document.
func (s *Store) Create(ctx context.Context, text string) (todo.Todo, error) {
	normalized, err := todo.NormalizeText(text)
	if err != nil {
		return todo.Todo{}, err
	}

	d := document{
		ID:        primitive.NewObjectID(),
		Text:      normalized,
		Completed: false,
		CreatedAt: s.clock.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		return todo.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return d.todo(), nil
}

// Toggle flips completed server-side with a pipeline update.
func (s *Store) Toggle(ctx context.Context, id string) (todo.Todo, error) {
	flip := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "completed", Value: bson.D{{Key: "$not", Value: "$completed"}}}}}},
	}
	return s.findAndUpdate(ctx, "toggle", id, flip)
}

// SetCompleted sets completed to the given value.
func (s *Store) SetCompleted(ctx context.Context, id string, completed bool) (todo.Todo, error) {
	set := bson.D{{Key: "$set", Value: bson.D{{Key: "completed", Value: completed}}}}
	return s.findAndUpdate(ctx, "set completed", id, set)
}

func (s *Store) findAndUpdate(ctx context.Context, op, id string, update interface{}) (todo.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("%s todo %s: %w", op, id, todo.ErrNotFound)
	}

	var d document
	err = s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("%s todo %s: %w", op, id, notFound(err))
	}
	return d.todo(), nil
}

// Delete removes the document and returns it.
func (s *Store) Delete(ctx context.Context, id string) (todo.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, todo.ErrNotFound)
	}

	var d document
	if err := s.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d); err != nil {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, notFound(err))
	}
	return d.todo(), nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return todo.ErrNotFound
	}
	return err
}
