// Package syncclient is the single entry point from the display side to a
// record store. It validates input, bounds each store call with a timeout,
// serializes operations on the same id, and reports every result as a
// todo.Outcome so callers never handle raw store errors.
package syncclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/todosync/internal/keyqueue"
	"github.com/roach88/todosync/internal/todo"
)

// DefaultTimeout bounds each store call.
const DefaultTimeout = 10 * time.Second

// Client wraps a todo.Store.
type Client struct {
	store   todo.Store
	timeout time.Duration
	logger  *slog.Logger
	queue   *keyqueue.Queue
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger for failed operations.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client over s.
func New(s todo.Store, opts ...Option) *Client {
	c := &Client{
		store:   s,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		queue:   keyqueue.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// List returns all records, newest first. On failure Data is nil; a
// successful empty list is a non-nil empty slice.
func (c *Client) List(ctx context.Context) todo.Outcome[[]todo.Todo] {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	todos, err := c.store.List(ctx)
	if err != nil {
		out := c.fail(todo.KindFetchFailed, "list", "", err)
		return todo.Outcome[[]todo.Todo]{Error: out.Error, Err: out.Err}
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	todo.SortNewestFirst(todos)
	return todo.Ok(todos)
}

// Create validates text locally, then asks the store to create the record.
// Invalid text never reaches the store.
func (c *Client) Create(ctx context.Context, text string) todo.Outcome[todo.Todo] {
	normalized, err := todo.NormalizeText(text)
	if err != nil {
		c.logger.Debug("rejected todo text", "error", err)
		return todo.Fail[todo.Todo](todo.KindValidationFailed, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	created, err := c.store.Create(ctx, normalized)
	if err != nil {
		return c.fail(todo.KindCreateFailed, "create", "", err)
	}
	return todo.Ok(created)
}

// Toggle flips completed on id.
func (c *Client) Toggle(ctx context.Context, id string) todo.Outcome[todo.Todo] {
	return c.mutate(ctx, todo.KindToggleFailed, "toggle", id, func(ctx context.Context) (todo.Todo, error) {
		return c.store.Toggle(ctx, id)
	})
}

// SetCompleted sets completed on id to the given value.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) todo.Outcome[todo.Todo] {
	return c.mutate(ctx, todo.KindToggleFailed, "set completed", id, func(ctx context.Context) (todo.Todo, error) {
		return c.store.SetCompleted(ctx, id, completed)
	})
}

// Delete removes id and returns the removed record.
func (c *Client) Delete(ctx context.Context, id string) todo.Outcome[todo.Todo] {
	return c.mutate(ctx, todo.KindDeleteFailed, "delete", id, func(ctx context.Context) (todo.Todo, error) {
		return c.store.Delete(ctx, id)
	})
}

// mutate runs fn once every earlier operation on id has finished.
func (c *Client) mutate(ctx context.Context, fallback todo.ErrorKind, op, id string, fn func(context.Context) (todo.Todo, error)) todo.Outcome[todo.Todo] {
	if id == "" {
		return todo.Fail[todo.Todo](todo.KindNotFound, todo.ErrNotFound)
	}

	ticket := c.queue.Enqueue(id)
	defer ticket.Release()
	if err := ticket.Wait(ctx); err != nil {
		return c.fail(fallback, op, id, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	t, err := fn(ctx)
	if err != nil {
		return c.fail(fallback, op, id, err)
	}
	return todo.Ok(t)
}

func (c *Client) fail(fallback todo.ErrorKind, op, id string, err error) todo.Outcome[todo.Todo] {
	kind := todo.Classify(err, fallback)
	attrs := []any{"op", op, "kind", kind, "error", err}
	if id != "" {
		attrs = append(attrs, "id", id)
	}
	if kind == todo.KindNotFound || kind == todo.KindValidationFailed {
		c.logger.Debug("todo operation rejected", attrs...)
	} else {
		c.logger.Warn("todo operation failed", attrs...)
	}
	return todo.Fail[todo.Todo](kind, err)
}
