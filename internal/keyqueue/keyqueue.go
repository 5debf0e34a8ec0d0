// Package keyqueue serializes work per key in arrival order.
//
// Callers take a Ticket with Enqueue, block on Ticket.Wait until every
// earlier ticket for the same key has been released, do their work, then
// Release. Tickets for different keys never wait on each other.
//
//	t := q.Enqueue(id)
//	defer t.Release()
//	if err := t.Wait(ctx); err != nil {
//	    return err
//	}
package keyqueue

import (
	"context"
	"sync"
)

// Queue is a set of per-key FIFO queues. The zero value is not usable; call
// New.
type Queue struct {
	mu      sync.Mutex
	waiters map[string][]*Ticket
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{waiters: make(map[string][]*Ticket)}
}

// Ticket is one caller's place in a key's queue.
type Ticket struct {
	q        *Queue
	key      string
	ready    chan struct{} // closed when this ticket reaches the head
	released bool          // guarded by q.mu
}

// Enqueue reserves the next place for key. Order is fixed at the time of
// the call, so callers that need issue order must Enqueue before handing
// off to another goroutine.
func (q *Queue) Enqueue(key string) *Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := &Ticket{q: q, key: key, ready: make(chan struct{})}
	q.waiters[key] = append(q.waiters[key], t)
	if len(q.waiters[key]) == 1 {
		close(t.ready)
	}
	return t
}

// Len returns the number of unreleased tickets for key.
func (q *Queue) Len(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters[key])
}

// Wait blocks until the ticket reaches the head of its queue or ctx is
// done. On cancellation the ticket is released and ctx.Err() returned.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	default:
	}

	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		t.Release()
		return ctx.Err()
	}
}

// Ready returns a channel closed when the ticket reaches the head.
func (t *Ticket) Ready() <-chan struct{} {
	return t.ready
}

// Release gives up the ticket's place. If it held the head, the next ticket
// is granted. Safe to call more than once.
func (t *Ticket) Release() {
	q := t.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.released {
		return
	}
	t.released = true

	list := q.waiters[t.key]
	for i, w := range list {
		if w != t {
			continue
		}
		// Nil out the slot so the ticket can be collected.
		list[i] = nil
		list = append(list[:i], list[i+1:]...)
		if i == 0 && len(list) > 0 {
			close(list[0].ready)
		}
		break
	}

	if len(list) == 0 {
		delete(q.waiters, t.key)
		return
	}
	q.waiters[t.key] = list
}
