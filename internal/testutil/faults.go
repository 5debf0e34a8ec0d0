package testutil

import (
	"context"
	"sync"

	"github.com/roach88/todosync/internal/todo"
)

// Op names a todo.Store method for fault injection.
type Op string

// Store operations.
const (
	OpList         Op = "list"
	OpCreate       Op = "create"
	OpToggle       Op = "toggle"
	OpSetCompleted Op = "set_completed"
	OpDelete       Op = "delete"
)

// Call records one invocation that reached a FaultStore.
type Call struct {
	Op        Op
	ID        string
	Text      string
	Completed bool
}

// Gate holds calls for one operation until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered receives once per call that arrives at the gate.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release lets every held and future call through.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// FaultStore wraps a todo.Store and injects failures and delays.
//
// Failures queued with FailNext are consumed one per call; an error set with
// FailAlways applies until Clear. A failed call never reaches the wrapped
// store. Every call is recorded, failed or not.
type FaultStore struct {
	inner todo.Store

	mu     sync.Mutex
	next   map[Op][]error
	always map[Op]error
	gates  map[Op]*Gate
	calls  []Call
}

// NewFaultStore wraps inner.
func NewFaultStore(inner todo.Store) *FaultStore {
	return &FaultStore{
		inner:  inner,
		next:   make(map[Op][]error),
		always: make(map[Op]error),
		gates:  make(map[Op]*Gate),
	}
}

var _ todo.Store = (*FaultStore)(nil)

// FailNext makes the next call of op return err.
func (f *FaultStore) FailNext(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next[op] = append(f.next[op], err)
}

// FailAlways makes every call of op return err until Clear.
func (f *FaultStore) FailAlways(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.always[op] = err
}

// Hold installs a gate on op. Calls block until the gate is released or
// their context ends.
func (f *FaultStore) Hold(op Op) *Gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &Gate{entered: make(chan struct{}, 64), release: make(chan struct{})}
	f.gates[op] = g
	return g
}

// Clear removes all faults and releases all gates.
func (f *FaultStore) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = make(map[Op][]error)
	f.always = make(map[Op]error)
	for _, g := range f.gates {
		g.Release()
	}
	f.gates = make(map[Op]*Gate)
}

// ClearFailures removes queued and sticky failures but leaves gates in
// place, so a held call stays held.
func (f *FaultStore) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = make(map[Op][]error)
	f.always = make(map[Op]error)
}

// Calls returns a copy of the recorded calls.
func (f *FaultStore) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many calls of op were recorded.
func (f *FaultStore) CallCount(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *FaultStore) enter(ctx context.Context, c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	gate := f.gates[c.Op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case gate.entered <- struct{}{}:
		default:
		}
		select {
		case <-gate.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.next[c.Op]; len(errs) > 0 {
		f.next[c.Op] = errs[1:]
		return errs[0]
	}
	return f.always[c.Op]
}

// List implements todo.Store.
func (f *FaultStore) List(ctx context.Context) ([]todo.Todo, error) {
	if err := f.enter(ctx, Call{Op: OpList}); err != nil {
		return nil, err
	}
	return f.inner.List(ctx)
}

// Create implements todo.Store.
func (f *FaultStore) Create(ctx context.Context, text string) (todo.Todo, error) {
	if err := f.enter(ctx, Call{Op: OpCreate, Text: text}); err != nil {
		return todo.Todo{}, err
	}
	return f.inner.Create(ctx, text)
}

// Toggle implements todo.Store.
func (f *FaultStore) Toggle(ctx context.Context, id string) (todo.Todo, error) {
	if err := f.enter(ctx, Call{Op: OpToggle, ID: id}); err != nil {
		return todo.Todo{}, err
	}
	return f.inner.Toggle(ctx, id)
}

// SetCompleted implements todo.Store.
func (f *FaultStore) SetCompleted(ctx context.Context, id string, completed bool) (todo.Todo, error) {
	if err := f.enter(ctx, Call{Op: OpSetCompleted, ID: id, Completed: completed}); err != nil {
		return todo.Todo{}, err
	}
	return f.inner.SetCompleted(ctx, id, completed)
}

// Delete implements todo.Store.
func (f *FaultStore) Delete(ctx context.Context, id string) (todo.Todo, error) {
	if err := f.enter(ctx, Call{Op: OpDelete, ID: id}); err != nil {
		return todo.Todo{}, err
	}
	return f.inner.Delete(ctx, id)
}
