package todo

import "context"

// Store is the Record Store capability: the authoritative keyed collection of
// todos. Implementations assign ids and creation times, validate text with
// NormalizeText, return ErrNotFound for unknown ids, and return List results
// ordered newest first.
type Store interface {
	List(ctx context.Context) ([]Todo, error)
	Create(ctx context.Context, text string) (Todo, error)
	// Toggle flips Completed unconditionally.
	Toggle(ctx context.Context, id string) (Todo, error)
	// SetCompleted sets Completed to the caller's intended value.
	SetCompleted(ctx context.Context, id string, completed bool) (Todo, error)
	Delete(ctx context.Context, id string) (Todo, error)
}
