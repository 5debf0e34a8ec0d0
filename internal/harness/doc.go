// Package harness runs todo scenarios end to end.
//
// A scenario drives the real stack: an in-memory SQLite store with
// sequential ids and a stepping clock, wrapped in a fault-injecting store,
// under the sync client and the view cache. Every flow step records a trace
// event (what was asked, the outcome, the cache after it), and the trace is
// compared against a golden file.
//
// # Scenario Format
//
//	name: toggle_rollback
//	description: "A failed toggle restores the previous value"
//	optimistic: false
//	setup:
//	  - text: "Buy milk"
//	    ref: milk
//	flow:
//	  - op: refresh
//	  - op: toggle
//	    target: milk
//	    fail: "connection reset"
//	    expect:
//	      success: false
//	      error: TOGGLE_FAILED
//	      items:
//	        - text: "Buy milk"
//	          completed: false
//	assertions:
//	  - type: store_count
//	    count: 1
//	  - type: cache_matches_store
//
// Setup records are written straight to the store and never reach the
// fault store. A flow step's fail field makes the next store call for that
// step's operation return an error with the given message.
//
// # Operations
//
//   - refresh: reload the cache from the store
//   - list: read through the sync client without touching the cache
//   - create: create through the cache (text, optional ref)
//   - toggle: flip completion through the cache (target)
//   - delete: delete through the cache (target)
//   - release: finish the held step (see below)
//
// A target is a ref name from setup or an earlier create, or a literal id.
//
// A create, toggle or delete with hold: true runs until its store call and
// blocks there; its trace event shows the cache with the optimistic change
// applied. Later steps run while it is in flight, and a release step lets
// it finish and records its outcome. A fail on the release step is injected
// into the held call. One step can be held at a time.
//
// # Assertion Types
//
//   - store_count: the store holds exactly count records
//   - store_contains: a record with text (and completed, if given) exists
//   - store_absent: the record named by ref, or any record with text, is gone
//   - call_count: the store saw exactly count calls of op
//   - cache_matches_store: the cache items equal a fresh store list
package harness
