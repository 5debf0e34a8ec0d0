package store

import (
	"context"
	"fmt"

	"github.com/roach88/todosync/internal/todo"
)

// Create validates text, assigns an id and creation time, and inserts the
// record. Returns *todo.ValidationError for empty or over-long text.
func (s *Store) Create(ctx context.Context, text string) (todo.Todo, error) {
	normalized, err := todo.NormalizeText(text)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("create todo: %w", err)
	}

	td := todo.Todo{
		ID:        s.ids.Generate(),
		Text:      normalized,
		Completed: false,
		CreatedAt: fromNanos(toNanos(s.clock.Now())),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todos (id, text, completed, created_at)
		VALUES (?, ?, 0, ?)
	`,
		td.ID,
		td.Text,
		toNanos(td.CreatedAt),
	)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("create todo: %w", err)
	}

	return td, nil
}

// Toggle flips the completed flag in a single statement, so concurrent
// toggles never read a stale value.
func (s *Store) Toggle(ctx context.Context, id string) (todo.Todo, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE todos SET completed = 1 - completed
		WHERE id = ?
		RETURNING id, text, completed, created_at
	`, id)
	td, err := scanTodo(row)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("toggle todo %s: %w", id, notFound(err))
	}
	return td, nil
}

// SetCompleted sets the completed flag to the given value.
// Setting the current value again is a successful no-op.
func (s *Store) SetCompleted(ctx context.Context, id string, completed bool) (todo.Todo, error) {
	value := 0
	if completed {
		value = 1
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE todos SET completed = ?
		WHERE id = ?
		RETURNING id, text, completed, created_at
	`, value, id)
	td, err := scanTodo(row)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("set todo %s completed: %w", id, notFound(err))
	}
	return td, nil
}

// Delete removes the record and returns it as it was before removal.
func (s *Store) Delete(ctx context.Context, id string) (todo.Todo, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM todos
		WHERE id = ?
		RETURNING id, text, completed, created_at
	`, id)
	td, err := scanTodo(row)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, notFound(err))
	}
	return td, nil
}

var _ todo.Store = (*Store)(nil)
