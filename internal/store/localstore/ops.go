package localstore

import (
	"context"
	"fmt"

	"github.com/roach88/todosync/internal/todo"
)

var _ todo.Store = (*Store)(nil)

// List returns all todos, newest first.
func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	todos := s.load()
	todo.SortNewestFirst(todos)
	return todos, nil
}

// Create validates text and prepends a new record.
func (s *Store) Create(ctx context.Context, text string) (todo.Todo, error) {
	normalized, err := todo.NormalizeText(text)
	if err != nil {
		return todo.Todo{}, err
	}
	if err := ctx.Err(); err != nil {
		return todo.Todo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := todo.Todo{
		ID:        s.ids.Generate(),
		Text:      normalized,
		Completed: false,
		// Round-trip through RFC 3339 drops the monotonic reading.
		CreatedAt: s.clock.Now().UTC().Round(0),
	}

	todos := append([]todo.Todo{t}, s.load()...)
	if err := s.save(todos); err != nil {
		return todo.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return t, nil
}

// Toggle flips completed on the record with the given id.
func (s *Store) Toggle(ctx context.Context, id string) (todo.Todo, error) {
	return s.update(ctx, id, "toggle", func(t *todo.Todo) { t.Completed = !t.Completed })
}

// SetCompleted sets completed to the given value.
func (s *Store) SetCompleted(ctx context.Context, id string, completed bool) (todo.Todo, error) {
	return s.update(ctx, id, "set completed", func(t *todo.Todo) { t.Completed = completed })
}

func (s *Store) update(ctx context.Context, id, op string, mutate func(*todo.Todo)) (todo.Todo, error) {
	if err := ctx.Err(); err != nil {
		return todo.Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	todos := s.load()
	i := todo.IndexOf(todos, id)
	if i < 0 {
		return todo.Todo{}, fmt.Errorf("%s todo %s: %w", op, id, todo.ErrNotFound)
	}
	mutate(&todos[i])
	if err := s.save(todos); err != nil {
		return todo.Todo{}, fmt.Errorf("%s todo %s: %w", op, id, err)
	}
	return todos[i], nil
}

// Delete removes the record and returns it.
func (s *Store) Delete(ctx context.Context, id string) (todo.Todo, error) {
	if err := ctx.Err(); err != nil {
		return todo.Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	todos := s.load()
	i := todo.IndexOf(todos, id)
	if i < 0 {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, todo.ErrNotFound)
	}
	removed := todos[i]
	todos = append(todos[:i], todos[i+1:]...)
	if err := s.save(todos); err != nil {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, err)
	}
	return removed, nil
}
