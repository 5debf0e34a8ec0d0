package viewcache

import (
	"context"
	"fmt"

	"github.com/roach88/todosync/internal/keyqueue"
	"github.com/roach88/todosync/internal/todo"
)

// Refresh reloads the cache from the store. On failure the previous items
// are kept and the state becomes Failed.
func (c *Cache) Refresh(ctx context.Context) todo.Outcome[[]todo.Todo] {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedOutcome[[]todo.Todo](todo.KindFetchFailed)
	}
	c.state = Loading
	c.loads++
	start := c.seq
	c.notify()
	c.mu.Unlock()

	out := c.client.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads--
	defer func() {
		if c.loads == 0 {
			c.applied = nil
		}
	}()
	if c.closed {
		return out
	}
	if !out.Success {
		c.state = Failed
		c.settle(out.Error)
		return out
	}
	items := todo.Clone(out.Data)
	for _, a := range c.applied {
		if a.seq > start {
			items = a.apply(items)
		}
	}
	c.state = Ready
	c.items = items
	c.gen++
	c.settle("")
	return out
}

// Create adds a record. Invalid text is rejected without touching the cache
// or the store.
func (c *Cache) Create(ctx context.Context, text string) todo.Outcome[todo.Todo] {
	if _, err := todo.NormalizeText(text); err != nil {
		return todo.Fail[todo.Todo](todo.KindValidationFailed, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedOutcome[todo.Todo](todo.KindCreateFailed)
	}
	placeholder := ""
	if c.optimistic {
		c.pending++
		placeholder = fmt.Sprintf("%s%d", PendingPrefix, c.pending)
		normalized, _ := todo.NormalizeText(text)
		c.items = insertAt(c.items, 0, todo.Todo{
			ID:        placeholder,
			Text:      normalized,
			CreatedAt: c.now().UTC(),
		})
		c.notify()
	}
	c.mu.Unlock()

	out := c.client.Create(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return out
	}

	// The placeholder is gone if a Refresh landed meanwhile; the record is
	// then placed by upsert like a server-backed create.
	if placeholder != "" {
		if i := todo.IndexOf(c.items, placeholder); i >= 0 {
			c.items = removeAt(c.items, i)
			if out.Success && todo.IndexOf(c.items, out.Data.ID) < 0 {
				c.items = insertAt(c.items, i, out.Data)
			}
		}
	}
	if out.Success {
		c.commit(upsert(out.Data))
	}

	c.settle(out.Error)
	return out
}

// Toggle flips completed on id. The cached value changes immediately; the
// store is asked to set the flipped value explicitly.
func (c *Cache) Toggle(ctx context.Context, id string) todo.Outcome[todo.Todo] {
	ticket, out, ok := c.reserve(id, todo.KindToggleFailed)
	if !ok {
		return out
	}
	defer ticket.Release()
	if err := ticket.Wait(ctx); err != nil {
		return todo.Fail[todo.Todo](todo.KindToggleFailed, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedOutcome[todo.Todo](todo.KindToggleFailed)
	}
	i := todo.IndexOf(c.items, id)
	if i < 0 {
		c.mu.Unlock()
		return todo.Fail[todo.Todo](todo.KindNotFound, todo.ErrNotFound)
	}
	prev := c.items[i].Completed
	target := !prev
	c.items[i].Completed = target
	gen := c.gen
	c.notify()
	c.mu.Unlock()

	out = c.client.SetCompleted(ctx, id, target)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return out
	}
	switch {
	case out.Success:
		c.commit(replace(out.Data))
	case c.gen != gen:
		c.logger.Debug("toggle failed after refresh, keeping refreshed value", "id", id, "kind", out.Error)
	default:
		if i := todo.IndexOf(c.items, id); i >= 0 {
			c.items[i].Completed = prev
		}
		c.logger.Debug("toggle rolled back", "id", id, "kind", out.Error)
	}
	c.settle(out.Error)
	return out
}

// Delete removes id. The record disappears immediately and is restored at
// its original position if the store call fails.
func (c *Cache) Delete(ctx context.Context, id string) todo.Outcome[todo.Todo] {
	ticket, out, ok := c.reserve(id, todo.KindDeleteFailed)
	if !ok {
		return out
	}
	defer ticket.Release()
	if err := ticket.Wait(ctx); err != nil {
		return todo.Fail[todo.Todo](todo.KindDeleteFailed, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedOutcome[todo.Todo](todo.KindDeleteFailed)
	}
	i := todo.IndexOf(c.items, id)
	if i < 0 {
		c.mu.Unlock()
		return todo.Fail[todo.Todo](todo.KindNotFound, todo.ErrNotFound)
	}
	removed := c.items[i]
	successor := ""
	if i+1 < len(c.items) {
		successor = c.items[i+1].ID
	}
	c.items = removeAt(c.items, i)
	gen := c.gen
	c.notify()
	c.mu.Unlock()

	out = c.client.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return out
	}
	switch {
	case out.Success:
		c.commit(without(id))
	case c.gen == gen && todo.IndexOf(c.items, id) < 0:
		c.items = restore(c.items, removed, successor)
		c.logger.Debug("delete rolled back", "id", id, "kind", out.Error)
	}
	c.settle(out.Error)
	return out
}

// reserve takes a place in id's queue, or reports NotFound without a store
// call when the cache has no such record.
func (c *Cache) reserve(id string, closedKind todo.ErrorKind) (*keyqueue.Ticket, todo.Outcome[todo.Todo], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, closedOutcome[todo.Todo](closedKind), false
	}
	if todo.IndexOf(c.items, id) < 0 {
		return nil, todo.Fail[todo.Todo](todo.KindNotFound, todo.ErrNotFound), false
	}
	if IsPending(id) {
		return nil, todo.Fail[todo.Todo](todo.KindNotFound, fmt.Errorf("%s is not yet saved: %w", id, todo.ErrNotFound)), false
	}
	// Enqueued under c.mu so queue order matches issue order.
	return c.queue.Enqueue(id), todo.Outcome[todo.Todo]{}, true
}

// restore puts t back in front of the record that followed it, or at the
// end if it was last. If that record is gone, t goes to its sorted position.
func restore(items []todo.Todo, t todo.Todo, successor string) []todo.Todo {
	if successor == "" {
		return append(items, t)
	}
	if j := todo.IndexOf(items, successor); j >= 0 {
		return insertAt(items, j, t)
	}
	return insertAt(items, indexBefore(items, t), t)
}
