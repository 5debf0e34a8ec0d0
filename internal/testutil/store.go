package testutil

import (
	"testing"

	"github.com/roach88/todosync/internal/store"
)

// OpenStore returns an in-memory SQLite store with sequential ids
// (todo-1, todo-2, ...) and a StepClock starting at Epoch. It is closed
// when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:",
		store.WithIDGenerator(store.NewSequenceGenerator("todo")),
		store.WithClock(NewStepClock(Epoch, 0)),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
