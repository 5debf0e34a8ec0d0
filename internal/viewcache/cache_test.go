package viewcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todosync/internal/syncclient"
	"github.com/roach88/todosync/internal/testutil"
	"github.com/roach88/todosync/internal/todo"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	errBoom = errors.New("store unavailable")
)

type fixture struct {
	cache *Cache
	store *testutil.FaultStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fs := testutil.NewFaultStore(testutil.OpenStore(t))
	client := syncclient.New(fs, syncclient.WithLogger(discard))
	c := New(client, append([]Option{WithLogger(discard)}, opts...)...)
	t.Cleanup(c.Close)
	return &fixture{cache: c, store: fs}
}

// seed creates texts in order and refreshes, so the cache holds them
// newest first.
func (f *fixture) seed(t *testing.T, texts ...string) []todo.Todo {
	t.Helper()
	ctx := t.Context()
	for _, text := range texts {
		_, err := f.store.Create(ctx, text)
		require.NoError(t, err)
	}
	out := f.cache.Refresh(ctx)
	require.True(t, out.Success)
	return f.cache.Snapshot().Items
}

func waitEntered(t *testing.T, g *testutil.Gate) {
	t.Helper()
	select {
	case <-g.Entered():
	case <-time.After(5 * time.Second):
		t.Fatal("call never reached the store")
	}
}

func texts(items []todo.Todo) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func TestNew_StartsIdle(t *testing.T) {
	f := newFixture(t)

	snap := f.cache.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.Err)
}

func TestRefresh_LoadingThenReady(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	_, err := f.store.Create(ctx, "Buy milk")
	require.NoError(t, err)

	gate := f.store.Hold(testutil.OpList)
	done := make(chan todo.Outcome[[]todo.Todo], 1)
	go func() { done <- f.cache.Refresh(ctx) }()

	waitEntered(t, gate)
	assert.Equal(t, Loading, f.cache.Snapshot().State)

	gate.Release()
	out := <-done
	require.True(t, out.Success)

	snap := f.cache.Snapshot()
	assert.Equal(t, Ready, snap.State)
	assert.Equal(t, []string{"Buy milk"}, texts(snap.Items))
}

func TestRefresh_FailureKeepsLastGoodItems(t *testing.T) {
	f := newFixture(t)
	before := f.seed(t, "a", "b")

	f.store.FailNext(testutil.OpList, errBoom)
	out := f.cache.Refresh(t.Context())
	assert.False(t, out.Success)

	snap := f.cache.Snapshot()
	assert.Equal(t, Failed, snap.State)
	assert.Equal(t, todo.KindFetchFailed, snap.Err)
	assert.Equal(t, before, snap.Items)

	// Retry recovers.
	require.True(t, f.cache.Refresh(t.Context()).Success)
	snap = f.cache.Snapshot()
	assert.Equal(t, Ready, snap.State)
	assert.Empty(t, snap.Err)
}

func TestCreate_ServerBackedWaitsForID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "older")

	gate := f.store.Hold(testutil.OpCreate)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Create(t.Context(), "newer") }()

	waitEntered(t, gate)
	assert.Equal(t, []string{"older"}, texts(f.cache.Snapshot().Items), "no placeholder in server-backed mode")

	gate.Release()
	out := <-done
	require.True(t, out.Success)

	items := f.cache.Snapshot().Items
	assert.Equal(t, []string{"newer", "older"}, texts(items))
	assert.Equal(t, out.Data, items[0])
}

func TestCreate_OptimisticPlaceholder(t *testing.T) {
	f := newFixture(t, WithOptimisticCreate(true))
	f.seed(t, "older")

	gate := f.store.Hold(testutil.OpCreate)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Create(t.Context(), "  newer ") }()

	waitEntered(t, gate)
	items := f.cache.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "pending:1", items[0].ID)
	assert.True(t, IsPending(items[0].ID))
	assert.Equal(t, "newer", items[0].Text)

	gate.Release()
	out := <-done
	require.True(t, out.Success)

	items = f.cache.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, out.Data, items[0])
	assert.False(t, IsPending(items[0].ID))
}

func TestIsPending(t *testing.T) {
	assert.True(t, IsPending("pending:3"))
	assert.False(t, IsPending("pending-3"))
	assert.False(t, IsPending("6f1c2a9e-0d4b-4e8f-9a51-3c7d2b1e0f44"))
	assert.False(t, IsPending(""))
}

func TestCreate_OptimisticFailureRollsBack(t *testing.T) {
	f := newFixture(t, WithOptimisticCreate(true))
	before := f.seed(t, "a", "b")

	f.store.FailNext(testutil.OpCreate, errBoom)
	out := f.cache.Create(t.Context(), "doomed")
	assert.Equal(t, todo.KindCreateFailed, out.Error)

	snap := f.cache.Snapshot()
	assert.Equal(t, before, snap.Items)
	assert.Equal(t, todo.KindCreateFailed, snap.Err)
}

func TestCreate_InvalidTextTouchesNothing(t *testing.T) {
	f := newFixture(t, WithOptimisticCreate(true))
	before := f.seed(t, "a")

	out := f.cache.Create(t.Context(), "   ")
	assert.Equal(t, todo.KindValidationFailed, out.Error)
	assert.Equal(t, before, f.cache.Snapshot().Items)
	assert.Equal(t, 1, f.store.CallCount(testutil.OpCreate), "only the seed create reached the store")
}

func TestToggle_OptimisticThenAuthoritative(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "Buy milk")
	id := items[0].ID

	gate := f.store.Hold(testutil.OpSetCompleted)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Toggle(t.Context(), id) }()

	waitEntered(t, gate)
	assert.True(t, f.cache.Snapshot().Items[0].Completed, "flip is visible before the store answers")

	gate.Release()
	out := <-done
	require.True(t, out.Success)
	assert.True(t, out.Data.Completed)
	assert.Equal(t, out.Data, f.cache.Snapshot().Items[0])

	calls := f.store.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, testutil.Call{Op: testutil.OpSetCompleted, ID: id, Completed: true}, last)
}

func TestToggle_FailureRestoresExactly(t *testing.T) {
	f := newFixture(t)
	before := f.seed(t, "a", "b", "c")

	f.store.FailNext(testutil.OpSetCompleted, errBoom)
	out := f.cache.Toggle(t.Context(), before[1].ID)
	assert.Equal(t, todo.KindToggleFailed, out.Error)

	snap := f.cache.Snapshot()
	assert.Equal(t, before, snap.Items)
	assert.Equal(t, todo.KindToggleFailed, snap.Err)
}

func TestDelete_FailureRestoresPosition(t *testing.T) {
	for _, pos := range []int{0, 1, 2} {
		f := newFixture(t)
		before := f.seed(t, "a", "b", "c")

		f.store.FailNext(testutil.OpDelete, errBoom)
		out := f.cache.Delete(t.Context(), before[pos].ID)
		assert.Equal(t, todo.KindDeleteFailed, out.Error)
		assert.Equal(t, before, f.cache.Snapshot().Items, "position %d", pos)
	}
}

func TestDelete_RemovesImmediately(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a", "b")

	gate := f.store.Hold(testutil.OpDelete)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Delete(t.Context(), items[0].ID) }()

	waitEntered(t, gate)
	assert.Equal(t, []string{"a"}, texts(f.cache.Snapshot().Items))

	gate.Release()
	require.True(t, (<-done).Success)
	assert.Equal(t, []string{"a"}, texts(f.cache.Snapshot().Items))
}

func TestUnknownIDIsNotFoundWithoutStoreCall(t *testing.T) {
	f := newFixture(t)
	before := f.seed(t, "a")
	callsBefore := len(f.store.Calls())

	assert.Equal(t, todo.KindNotFound, f.cache.Toggle(t.Context(), "missing").Error)
	assert.Equal(t, todo.KindNotFound, f.cache.Delete(t.Context(), "missing").Error)

	assert.Equal(t, before, f.cache.Snapshot().Items)
	assert.Len(t, f.store.Calls(), callsBefore)
}

func TestSameIDInIssueOrder(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "contended")
	id := items[0].ID
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpSetCompleted)
	first := make(chan todo.Outcome[todo.Todo], 1)
	go func() { first <- f.cache.Toggle(ctx, id) }()
	waitEntered(t, gate)

	second := make(chan todo.Outcome[todo.Todo], 1)
	go func() { second <- f.cache.Toggle(ctx, id) }()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.cache.Snapshot().Items[0].Completed, "second toggle must not apply before the first settles")
	assert.Equal(t, 1, f.store.CallCount(testutil.OpSetCompleted))

	gate.Release()
	o1, o2 := <-first, <-second
	require.True(t, o1.Success)
	require.True(t, o2.Success)
	assert.True(t, o1.Data.Completed)
	assert.False(t, o2.Data.Completed)
	assert.False(t, f.cache.Snapshot().Items[0].Completed)
}

func TestToggleAfterDeleteOfSameID(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "gone soon")
	id := items[0].ID
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpDelete)
	del := make(chan todo.Outcome[todo.Todo], 1)
	go func() { del <- f.cache.Delete(ctx, id) }()
	waitEntered(t, gate)

	// Issued while the id is still queued behind the delete; the record is
	// already gone from the cache, so this is NotFound.
	out := f.cache.Toggle(ctx, id)
	assert.Equal(t, todo.KindNotFound, out.Error)

	gate.Release()
	require.True(t, (<-del).Success)
	assert.Zero(t, f.store.CallCount(testutil.OpSetCompleted))
}

func TestClose_InFlightReconciliationIsNoOp(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a")

	gate := f.store.Hold(testutil.OpSetCompleted)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Toggle(context.Background(), items[0].ID) }()
	waitEntered(t, gate)

	f.cache.Close()
	gate.Release()

	out := <-done
	assert.True(t, out.Success, "the store call still completes")
	assert.Empty(t, f.cache.Snapshot().Items)

	_, open := <-f.cache.Changes()
	assert.False(t, open, "changes channel is closed")

	assert.ErrorIs(t, f.cache.Refresh(t.Context()).Err, ErrClosed)
	assert.ErrorIs(t, f.cache.Toggle(t.Context(), items[0].ID).Err, ErrClosed)
}

func TestChanges_Signals(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.cache.Refresh(t.Context()).Success)
	select {
	case <-f.cache.Changes():
	default:
		t.Fatal("expected a change signal after refresh")
	}

	select {
	case <-f.cache.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a")

	snap := f.cache.Snapshot()
	snap.Items[0].Text = "mutated"

	assert.Equal(t, "a", f.cache.Snapshot().Items[0].Text)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestDelete_RefreshWhileInFlight(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a", "b")
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpDelete)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Delete(ctx, items[0].ID) }()
	waitEntered(t, gate)

	// The store still has "b", so the refresh brings it back.
	require.True(t, f.cache.Refresh(ctx).Success)
	assert.Equal(t, []string{"b", "a"}, texts(f.cache.Snapshot().Items))

	gate.Release()
	require.True(t, (<-done).Success)

	stored, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, texts(stored), texts(f.cache.Snapshot().Items))
	assert.Equal(t, []string{"a"}, texts(f.cache.Snapshot().Items))
}

func TestCreate_RefreshWhileInFlight(t *testing.T) {
	for _, optimistic := range []bool{false, true} {
		t.Run(fmt.Sprintf("optimistic=%v", optimistic), func(t *testing.T) {
			testCreateRefreshWhileInFlight(t, optimistic)
		})
	}
}

func testCreateRefreshWhileInFlight(t *testing.T, optimistic bool) {
	f := newFixture(t, WithOptimisticCreate(optimistic))
	f.seed(t, "a")
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpCreate)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Create(ctx, "new") }()
	waitEntered(t, gate)

	// Drops the placeholder, if any: the store has no "new" yet.
	require.True(t, f.cache.Refresh(ctx).Success)
	assert.Equal(t, []string{"a"}, texts(f.cache.Snapshot().Items))

	gate.Release()
	out := <-done
	require.True(t, out.Success)

	stored, err := f.store.List(ctx)
	require.NoError(t, err)
	got := f.cache.Snapshot().Items
	assert.Equal(t, texts(stored), texts(got))
	assert.Equal(t, []string{"new", "a"}, texts(got))
	assert.Equal(t, out.Data.ID, got[0].ID)
}

func TestToggle_RefreshWhileInFlight(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a")
	id := items[0].ID
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpSetCompleted)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Toggle(ctx, id) }()
	waitEntered(t, gate)

	require.True(t, f.cache.Refresh(ctx).Success)
	assert.False(t, f.cache.Snapshot().Items[0].Completed, "refresh shows the stored value")

	gate.Release()
	out := <-done
	require.True(t, out.Success)
	assert.True(t, f.cache.Snapshot().Items[0].Completed)
}

func TestToggle_FailureAfterRefreshKeepsRefreshedValue(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a")
	id := items[0].ID
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpSetCompleted)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Toggle(ctx, id) }()
	waitEntered(t, gate)

	// Another writer completes the record; the refresh picks it up.
	_, err := f.store.Toggle(ctx, id)
	require.NoError(t, err)
	require.True(t, f.cache.Refresh(ctx).Success)

	f.store.FailNext(testutil.OpSetCompleted, errBoom)
	gate.Release()
	assert.Equal(t, todo.KindToggleFailed, (<-done).Error)

	assert.True(t, f.cache.Snapshot().Items[0].Completed, "rollback must not overwrite refreshed state")
}

func TestDelete_FailureAfterRefreshKeepsRefreshedItems(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a", "b")
	ctx := t.Context()

	gate := f.store.Hold(testutil.OpDelete)
	done := make(chan todo.Outcome[todo.Todo], 1)
	go func() { done <- f.cache.Delete(ctx, items[0].ID) }()
	waitEntered(t, gate)

	_, err := f.store.Create(ctx, "c")
	require.NoError(t, err)
	require.True(t, f.cache.Refresh(ctx).Success)

	f.store.FailNext(testutil.OpDelete, errBoom)
	gate.Release()
	assert.Equal(t, todo.KindDeleteFailed, (<-done).Error)

	assert.Equal(t, []string{"c", "b", "a"}, texts(f.cache.Snapshot().Items))
}

// staleList answers List with a fixed snapshot once released, like a list
// read from the store before a concurrent write landed.
type staleList struct {
	Client
	items   []todo.Todo
	entered chan struct{}
	release chan struct{}
}

func (s *staleList) List(ctx context.Context) todo.Outcome[[]todo.Todo] {
	s.entered <- struct{}{}
	<-s.release
	return todo.Ok(todo.Clone(s.items))
}

func TestRefresh_ReplaysMutationsConfirmedDuringList(t *testing.T) {
	f := newFixture(t)
	items := f.seed(t, "a", "b", "c") // c, b, a
	ctx := t.Context()

	client := syncclient.New(f.store, syncclient.WithLogger(discard))
	stale := &staleList{
		Client:  client,
		items:   items,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := New(stale, WithLogger(discard))
	t.Cleanup(c.Close)

	close(stale.release)
	require.True(t, c.Refresh(ctx).Success)
	<-stale.entered
	stale.release = make(chan struct{})

	refreshed := make(chan todo.Outcome[[]todo.Todo], 1)
	go func() { refreshed <- c.Refresh(ctx) }()
	<-stale.entered

	require.True(t, c.Delete(ctx, items[0].ID).Success)
	require.True(t, c.Toggle(ctx, items[1].ID).Success)
	created := c.Create(ctx, "d")
	require.True(t, created.Success)

	close(stale.release)
	require.True(t, (<-refreshed).Success)

	stored, err := f.store.List(ctx)
	require.NoError(t, err)
	got := c.Snapshot().Items
	assert.Equal(t, texts(stored), texts(got))
	assert.Equal(t, []string{"d", "b", "a"}, texts(got))
	assert.Equal(t, created.Data.ID, got[0].ID)
	assert.True(t, got[1].Completed)
}
