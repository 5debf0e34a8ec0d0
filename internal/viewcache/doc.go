// Package viewcache holds the ordered in-memory list a display renders.
//
// The cache mirrors the record store. Refresh loads it through a state
// machine:
//
//	Idle -> Loading -> Ready
//	             \---> Failed -> Loading (retry)
//
// Mutations are optimistic. Toggle and Delete change the cache before the
// store call and roll the affected record back if the call fails. Create
// waits for the store-assigned id unless optimistic create is enabled (the
// local backend), in which case a pending placeholder is shown first.
//
// Operations on the same id are applied in the order they were issued.
// After Close every in-flight reconciliation is a no-op.
package viewcache
