package todo

// Outcome is the uniform result of every sync client operation. Failures are
// values, never panics: Success is false, Data is the zero value, and Error
// names the kind. Err keeps the underlying cause for logging.
type Outcome[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
	Err     error     `json:"-"`
}

// Ok wraps a successful result.
func Ok[T any](data T) Outcome[T] {
	return Outcome[T]{Success: true, Data: data}
}

// Fail wraps a failed result.
func Fail[T any](kind ErrorKind, err error) Outcome[T] {
	return Outcome[T]{Error: kind, Err: err}
}
