package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todosync/internal/todo"
)

func TestFaultStore_PassesThrough(t *testing.T) {
	f := NewFaultStore(OpenStore(t))
	ctx := t.Context()

	created, err := f.Create(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "todo-1", created.ID)
	assert.Equal(t, Epoch, created.CreatedAt)

	todos, err := f.List(ctx)
	require.NoError(t, err)
	assert.Len(t, todos, 1)

	assert.Equal(t, []Call{
		{Op: OpCreate, Text: "Buy milk"},
		{Op: OpList},
	}, f.Calls())
}

func TestFaultStore_FailNextConsumedOnce(t *testing.T) {
	f := NewFaultStore(OpenStore(t))
	ctx := t.Context()
	boom := errors.New("boom")

	f.FailNext(OpCreate, boom)

	_, err := f.Create(ctx, "first")
	assert.ErrorIs(t, err, boom)

	_, err = f.Create(ctx, "second")
	assert.NoError(t, err)

	todos, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1, "failed call must not reach the store")
	assert.Equal(t, "second", todos[0].Text)
	assert.Equal(t, 2, f.CallCount(OpCreate))
}

func TestFaultStore_FailAlwaysUntilClear(t *testing.T) {
	f := NewFaultStore(OpenStore(t))
	ctx := t.Context()
	boom := errors.New("boom")

	f.FailAlways(OpList, boom)
	for i := 0; i < 3; i++ {
		_, err := f.List(ctx)
		assert.ErrorIs(t, err, boom)
	}

	f.Clear()
	_, err := f.List(ctx)
	assert.NoError(t, err)
}

func TestFaultStore_Hold(t *testing.T) {
	f := NewFaultStore(OpenStore(t))
	ctx := t.Context()

	created, err := f.Create(ctx, "held")
	require.NoError(t, err)

	gate := f.Hold(OpDelete)
	done := make(chan error, 1)
	go func() {
		_, err := f.Delete(ctx, created.ID)
		done <- err
	}()

	select {
	case <-gate.Entered():
	case <-time.After(5 * time.Second):
		t.Fatal("delete never reached the gate")
	}

	select {
	case <-done:
		t.Fatal("delete returned before release")
	default:
	}

	gate.Release()
	require.NoError(t, <-done)

	_, err = f.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, todo.ErrNotFound)
}

func TestFaultStore_HoldRespectsContext(t *testing.T) {
	f := NewFaultStore(OpenStore(t))
	f.Hold(OpList)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFaultStore_ClearFailuresKeepsGates(t *testing.T) {
	f := NewFaultStore(OpenStore(t))
	ctx := t.Context()

	f.FailAlways(OpList, errors.New("down"))
	gate := f.Hold(OpCreate)
	f.ClearFailures()

	_, err := f.List(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.Create(ctx, "held")
		done <- err
	}()
	select {
	case <-gate.Entered():
	case <-time.After(5 * time.Second):
		t.Fatal("create never reached the gate")
	}

	// A failure queued while the call is held applies once it is released.
	f.FailNext(OpCreate, errors.New("disk full"))
	gate.Release()
	assert.EqualError(t, <-done, "disk full")
}
