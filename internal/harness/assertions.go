package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/todosync/internal/store"
	"github.com/roach88/todosync/internal/testutil"
	"github.com/roach88/todosync/internal/todo"
	"github.com/roach88/todosync/internal/viewcache"
)

// AssertionContext is what assertions may inspect after the flow.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Faults *testutil.FaultStore
	Cache  *viewcache.Cache
	Refs   map[string]string
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertCallCount:
		return assertCallCount(actx.Faults, a)
	case AssertCacheMatchesStore:
		return assertCacheMatchesStore(actx)
	}

	items, err := actx.Store.List(actx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to list store: %w", err)
	}

	switch a.Type {
	case AssertStoreCount:
		return assertStoreCount(items, a)
	case AssertStoreContains:
		return assertStoreContains(items, a)
	case AssertStoreAbsent:
		return assertStoreAbsent(items, a, actx.Refs)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertStoreCount(items []todo.Todo, a Assertion) error {
	if len(items) != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d records", *a.Count),
			Actual:   fmt.Sprintf("%d records (%s)", len(items), describe(items)),
		}
	}
	return nil
}

func assertStoreContains(items []todo.Todo, a Assertion) error {
	for _, t := range items {
		if t.Text == a.Text && (a.Completed == nil || *a.Completed == t.Completed) {
			return nil
		}
	}
	expected := fmt.Sprintf("record %q", a.Text)
	if a.Completed != nil {
		expected += fmt.Sprintf(" completed=%t", *a.Completed)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   describe(items),
	}
}

func assertStoreAbsent(items []todo.Todo, a Assertion, refs map[string]string) error {
	id := ""
	if a.Ref != "" {
		var ok bool
		if id, ok = refs[a.Ref]; !ok {
			return fmt.Errorf("ref %q is not bound", a.Ref)
		}
	}
	for _, t := range items {
		if (id != "" && t.ID == id) || (a.Text != "" && t.Text == a.Text) {
			return &AssertionError{
				Type:     a.Type,
				Expected: "no record " + firstNonEmpty(a.Ref, a.Text),
				Actual:   fmt.Sprintf("found %s %q", t.ID, t.Text),
			}
		}
	}
	return nil
}

func assertCallCount(faults *testutil.FaultStore, a Assertion) error {
	got := faults.CallCount(testutil.Op(a.Op))
	if got != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s calls", *a.Count, a.Op),
			Actual:   fmt.Sprintf("%d %s calls", got, a.Op),
		}
	}
	return nil
}

func assertCacheMatchesStore(actx *AssertionContext) error {
	items, err := actx.Store.List(actx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to list store: %w", err)
	}
	cached := actx.Cache.Snapshot().Items
	if len(cached) != len(items) {
		return &AssertionError{
			Type:     AssertCacheMatchesStore,
			Expected: describe(items),
			Actual:   describe(cached),
		}
	}
	for i := range items {
		if !cached[i].CreatedAt.Equal(items[i].CreatedAt) ||
			cached[i].ID != items[i].ID ||
			cached[i].Text != items[i].Text ||
			cached[i].Completed != items[i].Completed {
			return &AssertionError{
				Type:     AssertCacheMatchesStore,
				Expected: describe(items),
				Actual:   describe(cached),
			}
		}
	}
	return nil
}

// describe renders records as "id:text[x]" for failure messages.
func describe(items []todo.Todo) string {
	if len(items) == 0 {
		return "none"
	}
	parts := make([]string, len(items))
	for i, t := range items {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		parts[i] = fmt.Sprintf("%s:%q[%s]", t.ID, t.Text, mark)
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
