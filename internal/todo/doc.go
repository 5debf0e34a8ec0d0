// Package todo defines the todo record, its validation rules, the Record Store
// capability shared by every backend, and the uniform Outcome type returned by
// the sync client.
//
// # Records
//
// A Todo is created with store-assigned ID and CreatedAt, and only its
// Completed flag ever changes afterwards. Lists are ordered newest first by
// CreatedAt; ties keep the store's insertion order (later insertions first).
//
// # Errors
//
// Stores report ErrNotFound for unknown ids and *ValidationError for rejected
// text. Everything else is an opaque backend failure. The sync client folds
// all of them into an ErrorKind carried by Outcome.
package todo
