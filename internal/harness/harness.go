package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/todosync/internal/store"
	"github.com/roach88/todosync/internal/syncclient"
	"github.com/roach88/todosync/internal/testutil"
	"github.com/roach88/todosync/internal/todo"
	"github.com/roach88/todosync/internal/viewcache"
)

// Harness is one scenario run: a fresh stack plus the refs bound so far.
type Harness struct {
	store  *store.Store
	faults *testutil.FaultStore
	client *syncclient.Client
	cache  *viewcache.Cache
	refs   map[string]string
	logger *slog.Logger
	held   *heldStep
}

// heldStep is a mutation whose store call waits on a gate.
type heldStep struct {
	op   string
	gate *testutil.Gate
	done chan TraceEvent
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database, so ids are todo-1,
// todo-2, ... in creation order and created-at times start at
// 2025-01-01T00:00:00Z and advance one second per create, setup included.
// Placeholders use the same epoch.
//
// An error is returned only when the stack cannot be built or seeded;
// failed expectations and assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(store.NewSequenceGenerator("todo")),
		store.WithClock(testutil.NewStepClock(testutil.Epoch, 0)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	faults := testutil.NewFaultStore(st)
	client := syncclient.New(faults, syncclient.WithLogger(logger))
	cache := viewcache.New(client,
		viewcache.WithOptimisticCreate(scenario.Optimistic),
		viewcache.WithNow(testutil.Epoch.UTC),
		viewcache.WithLogger(logger),
	)
	defer cache.Close()
	// Runs first: a step still held when the flow stops must not block Close.
	defer faults.Clear()

	h := &Harness{
		store:  st,
		faults: faults,
		client: client,
		cache:  cache,
		refs:   make(map[string]string),
		logger: logger,
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Faults: faults,
		Cache:  cache,
		Refs:   h.refs,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	final, err := st.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final store: %w", err)
	}
	result.Final = final
	return result, nil
}

// executeSetup seeds the store directly, bypassing fault injection.
func (h *Harness) executeSetup(ctx context.Context, setup []SeedItem) error {
	for i, item := range setup {
		t, err := h.store.Create(ctx, item.Text)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if item.Completed {
			if _, err := h.store.SetCompleted(ctx, t.ID, true); err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
		}
		if item.Ref != "" {
			h.refs[item.Ref] = t.ID
		}
		h.logger.Debug("setup record created", "step", i, "id", t.ID)
	}
	return nil
}

// executeFlow runs every step, recording a trace event and checking the
// step's expect clause against it.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		var event TraceEvent
		switch {
		case step.Hold:
			event = h.hold(ctx, step)
		case step.Op == OpRelease:
			event = h.release(step)
		default:
			if step.Fail != "" {
				h.faults.FailNext(storeOps[step.Op], errors.New(step.Fail))
			}
			event = h.execute(ctx, step)
		}
		event.Step = i
		event.Injected = step.Fail

		snap := h.cache.Snapshot()
		event.State = snap.State.String()
		event.Items = snap.Items

		// A failed injection that was never consumed would leak into the
		// next step of the same op. Gates stay so a held step stays held.
		h.faults.ClearFailures()

		result.AddTrace(event)
		if step.Expect != nil {
			for _, msg := range h.checkExpect(step.Expect, event) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
			}
		}

		h.logger.Debug("flow step completed",
			"step", i,
			"op", step.Op,
			"success", event.Success,
			"error", event.Error,
		)
	}
}

// hold starts step with its store call gated and returns once the call is
// blocked. A step that finishes without reaching the store (NOT_FOUND, say)
// is kept for release as it is.
func (h *Harness) hold(ctx context.Context, step FlowStep) TraceEvent {
	gate := h.faults.Hold(storeOps[step.Op])
	done := make(chan TraceEvent, 1)
	go func() { done <- h.execute(ctx, step) }()

	select {
	case <-gate.Entered():
	case event := <-done:
		done <- event
	}
	h.held = &heldStep{op: step.Op, gate: gate, done: done}
	return TraceEvent{Op: step.Op, Args: map[string]string{"held": "true"}}
}

// release unblocks the held step and reports its outcome under the release
// step.
func (h *Harness) release(step FlowStep) TraceEvent {
	held := h.held
	if held == nil {
		return TraceEvent{Op: OpRelease}
	}
	h.held = nil
	if step.Fail != "" {
		h.faults.FailNext(storeOps[held.op], errors.New(step.Fail))
	}
	held.gate.Release()

	event := <-held.done
	args := map[string]string{"op": held.op}
	for k, v := range event.Args {
		args[k] = v
	}
	event.Op = OpRelease
	event.Args = args
	return event
}

func (h *Harness) execute(ctx context.Context, step FlowStep) TraceEvent {
	event := TraceEvent{Op: step.Op}

	switch step.Op {
	case OpRefresh:
		out := h.cache.Refresh(ctx)
		event.Success, event.Error = out.Success, out.Error

	case OpList:
		out := h.client.List(ctx)
		event.Success, event.Error = out.Success, out.Error
		if out.Success {
			event.Data = out.Data
		}

	case OpCreate:
		event.Args = map[string]string{"text": step.Text}
		out := h.cache.Create(ctx, step.Text)
		event.Success, event.Error = out.Success, out.Error
		if out.Success {
			event.Data = out.Data
			if step.Ref != "" {
				h.refs[step.Ref] = out.Data.ID
			}
		}

	case OpToggle, OpDelete:
		id := h.resolve(step.Target)
		event.Args = map[string]string{"id": id}
		var out todo.Outcome[todo.Todo]
		if step.Op == OpToggle {
			out = h.cache.Toggle(ctx, id)
		} else {
			out = h.cache.Delete(ctx, id)
		}
		event.Success, event.Error = out.Success, out.Error
		if out.Success {
			event.Data = out.Data
		}
	}
	return event
}

// resolve maps a ref name to its id; anything else is taken as a literal id.
func (h *Harness) resolve(target string) string {
	if id, ok := h.refs[target]; ok {
		return id
	}
	return target
}

func (h *Harness) checkExpect(exp *ExpectClause, event TraceEvent) []string {
	var errs []string

	if exp.Success != nil && *exp.Success != event.Success {
		errs = append(errs, fmt.Sprintf("expected success=%t, got %t", *exp.Success, event.Success))
	}
	if exp.Error != "" && todo.ErrorKind(exp.Error) != event.Error {
		errs = append(errs, fmt.Sprintf("expected error %s, got %q", exp.Error, event.Error))
	}
	if exp.State != "" && exp.State != event.State {
		errs = append(errs, fmt.Sprintf("expected state %s, got %s", exp.State, event.State))
	}
	if exp.Items != nil {
		errs = append(errs, h.matchItems(exp.Items, event.Items)...)
	}
	return errs
}

func (h *Harness) matchItems(want []ItemExpect, got []todo.Todo) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("expected %d items, got %d (%s)", len(want), len(got), describe(got))}
	}
	var errs []string
	for i, w := range want {
		g := got[i]
		if w.Text != g.Text || w.Completed != g.Completed {
			errs = append(errs, fmt.Sprintf("items[%d]: expected %q completed=%t, got %q completed=%t",
				i, w.Text, w.Completed, g.Text, g.Completed))
		}
		if w.Ref != "" {
			id, ok := h.refs[w.Ref]
			if !ok {
				errs = append(errs, fmt.Sprintf("items[%d]: ref %q is not bound", i, w.Ref))
			} else if id != g.ID {
				errs = append(errs, fmt.Sprintf("items[%d]: expected id %s (%s), got %s", i, id, w.Ref, g.ID))
			}
		}
	}
	return errs
}
