package store

import (
	"path/filepath"
	"testing"
	"time"
)

// stepClock returns base, base+1s, base+2s, ... on successive calls.
type stepClock struct {
	next time.Time
}

func (c *stepClock) Now() time.Time {
	t := c.next
	c.next = c.next.Add(time.Second)
	return t
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory with deterministic
// ids (todo-1, todo-2, ...) and timestamps (testEpoch + n seconds).
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(NewSequenceGenerator("todo")),
		WithClock(&stepClock{next: testEpoch}),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// frozenClock always returns the same instant.
type frozenClock struct {
	at time.Time
}

func (c frozenClock) Now() time.Time { return c.at }
