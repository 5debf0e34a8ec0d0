// Package store provides the SQLite-backed Record Store for todos, plus the
// id generators and clocks shared by every store backend.
//
// # Ordering
//
//   - seq INTEGER PRIMARY KEY AUTOINCREMENT records insertion order
//   - List uses ORDER BY created_at DESC, seq DESC (newest first, later insert wins ties)
//
// # Mutations
//
//   - Toggle and SetCompleted are single UPDATE ... RETURNING statements
//   - Delete is DELETE ... RETURNING, so callers get the removed record back
//   - Unknown ids surface as todo.ErrNotFound
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite has a single writer anyway
//
// Other backends live in subpackages: localstore (JSON file) and mongostore
// (MongoDB collection).
package store
