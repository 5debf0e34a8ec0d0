package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/todosync/internal/todo"
)

// List returns all todos ordered newest first.
//
// Ordering is ORDER BY created_at DESC, seq DESC so records created within the
// same clock tick come back latest-inserted first.
func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, completed, created_at
		FROM todos
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := []todo.Todo{}
	for rows.Next() {
		td, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("list todos: %w", err)
		}
		todos = append(todos, td)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Get returns the todo with the given id, or todo.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (todo.Todo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, completed, created_at
		FROM todos
		WHERE id = ?
	`, id)
	td, err := scanTodo(row)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("get todo %s: %w", id, notFound(err))
	}
	return td, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (todo.Todo, error) {
	var (
		td        todo.Todo
		completed int
		createdAt int64
	)
	if err := row.Scan(&td.ID, &td.Text, &completed, &createdAt); err != nil {
		return todo.Todo{}, err
	}
	td.Completed = completed != 0
	td.CreatedAt = fromNanos(createdAt)
	return td, nil
}

// notFound translates sql.ErrNoRows into todo.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return todo.ErrNotFound
	}
	return err
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
