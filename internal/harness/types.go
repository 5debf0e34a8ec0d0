package harness

import "github.com/roach88/todosync/internal/todo"

// TraceEvent records one flow step and what the cache looked like after it.
type TraceEvent struct {
	Step     int               `json:"step"`
	Op       string            `json:"op"`
	Args     map[string]string `json:"args,omitempty"`
	Injected string            `json:"injected_failure,omitempty"`
	Success  bool              `json:"success"`
	Error    todo.ErrorKind    `json:"error,omitempty"`
	Data     any               `json:"data,omitempty"`
	State    string            `json:"state"`
	Items    []todo.Todo       `json:"items"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the store contents after the flow, newest first.
	Final []todo.Todo `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  []todo.Todo{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
