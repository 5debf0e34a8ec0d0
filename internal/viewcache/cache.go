package viewcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/todosync/internal/keyqueue"
	"github.com/roach88/todosync/internal/todo"
)

// ErrClosed is the cause reported by operations on a closed cache.
var ErrClosed = errors.New("view cache closed")

// PendingPrefix marks the id of an optimistic placeholder.
const PendingPrefix = "pending:"

// IsPending reports whether id belongs to an unconfirmed placeholder.
func IsPending(id string) bool {
	return strings.HasPrefix(id, PendingPrefix)
}

// State is the load state of the cache.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a copy of the cache for rendering.
type Snapshot struct {
	State State
	Items []todo.Todo
	// Err is the kind of the most recent failure, cleared by the next
	// successful operation.
	Err todo.ErrorKind
}

// Client is the subset of the sync client the cache drives.
type Client interface {
	List(ctx context.Context) todo.Outcome[[]todo.Todo]
	Create(ctx context.Context, text string) todo.Outcome[todo.Todo]
	SetCompleted(ctx context.Context, id string, completed bool) todo.Outcome[todo.Todo]
	Delete(ctx context.Context, id string) todo.Outcome[todo.Todo]
}

// Cache is the view state cache. Safe for concurrent use.
type Cache struct {
	client     Client
	optimistic bool
	now        func() time.Time
	logger     *slog.Logger
	queue      *keyqueue.Queue

	mu      sync.Mutex
	state   State
	items   []todo.Todo
	err     todo.ErrorKind
	closed  bool
	pending int
	changes chan struct{}

	// gen counts applied refreshes. A rollback is skipped when a refresh
	// landed after its optimistic step, since the refreshed items are newer.
	gen uint64

	// While a Refresh is in flight, confirmed mutations are logged so they
	// can be replayed over a List that may have run before them.
	loads   int
	seq     uint64
	applied []applied
}

type applied struct {
	seq   uint64
	apply func([]todo.Todo) []todo.Todo
}

// Option configures a Cache.
type Option func(*Cache)

// WithOptimisticCreate shows a placeholder before the store confirms a
// create.
func WithOptimisticCreate(enabled bool) Option {
	return func(c *Cache) { c.optimistic = enabled }
}

// WithNow sets the time source for placeholder timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an Idle, empty cache over client.
func New(client Client, opts ...Option) *Cache {
	c := &Cache{
		client:  client,
		now:     time.Now,
		logger:  slog.Default(),
		queue:   keyqueue.New(),
		items:   []todo.Todo{},
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Changes signals after every visible change. Signals coalesce: a reader
// that falls behind sees one pending signal, not one per change. The channel
// is closed by Close.
func (c *Cache) Changes() <-chan struct{} {
	return c.changes
}

// Snapshot returns a deep copy of the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Items: todo.Clone(c.items), Err: c.err}
}

// Close discards the cache contents. Later reconciliations are ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.items = []todo.Todo{}
	close(c.changes)
}

// notify must be called with c.mu held.
func (c *Cache) notify() {
	if c.closed {
		return
	}
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// settle records the result of an operation. Must be called with c.mu held.
func (c *Cache) settle(kind todo.ErrorKind) {
	c.err = kind
	c.notify()
}

func closedOutcome[T any](kind todo.ErrorKind) todo.Outcome[T] {
	return todo.Fail[T](kind, ErrClosed)
}

// commit applies a store-confirmed change and logs it for any Refresh in
// flight. Must be called with c.mu held.
func (c *Cache) commit(apply func([]todo.Todo) []todo.Todo) {
	c.items = apply(c.items)
	if c.loads > 0 {
		c.seq++
		c.applied = append(c.applied, applied{seq: c.seq, apply: apply})
	}
}

// upsert replaces t by id, or inserts it in newest-first position.
func upsert(t todo.Todo) func([]todo.Todo) []todo.Todo {
	return func(items []todo.Todo) []todo.Todo {
		if i := todo.IndexOf(items, t.ID); i >= 0 {
			items[i] = t
			return items
		}
		return insertAt(items, indexBefore(items, t), t)
	}
}

// replace swaps in t if its id is still listed.
func replace(t todo.Todo) func([]todo.Todo) []todo.Todo {
	return func(items []todo.Todo) []todo.Todo {
		if i := todo.IndexOf(items, t.ID); i >= 0 {
			items[i] = t
		}
		return items
	}
}

func without(id string) func([]todo.Todo) []todo.Todo {
	return func(items []todo.Todo) []todo.Todo {
		if i := todo.IndexOf(items, id); i >= 0 {
			return removeAt(items, i)
		}
		return items
	}
}

// indexBefore returns where t belongs in newest-first order. Among equal
// timestamps t goes first, matching store order for a later insertion.
func indexBefore(items []todo.Todo, t todo.Todo) int {
	for i, it := range items {
		if !t.CreatedAt.Before(it.CreatedAt) {
			return i
		}
	}
	return len(items)
}

func insertAt(items []todo.Todo, i int, t todo.Todo) []todo.Todo {
	items = append(items, todo.Todo{})
	copy(items[i+1:], items[i:])
	items[i] = t
	return items
}

func removeAt(items []todo.Todo, i int) []todo.Todo {
	return append(items[:i], items[i+1:]...)
}
