package todo

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxTextLength is the maximum number of characters in a todo's text.
const MaxTextLength = 200

// Todo is a single task record.
type Todo struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeText trims surrounding whitespace and NFC-normalizes text, then
// checks it against the creation rules. The returned string is what stores
// persist.
func NormalizeText(text string) (string, error) {
	normalized := norm.NFC.String(strings.TrimSpace(text))
	if normalized == "" {
		return "", &ValidationError{Field: "text", Reason: "Please provide a text for this todo."}
	}
	if utf8.RuneCountInString(normalized) > MaxTextLength {
		return "", &ValidationError{Field: "text", Reason: "Text cannot be more than 200 characters"}
	}
	return normalized, nil
}

// SortNewestFirst orders todos by CreatedAt descending. The sort is stable, so
// callers that already hold records in insertion order (newest inserted first)
// keep that order for equal timestamps.
func SortNewestFirst(todos []Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		return todos[i].CreatedAt.After(todos[j].CreatedAt)
	})
}

// Clone returns a copy of todos that shares no backing array with the input.
// A nil input yields an empty, non-nil slice so JSON output is always "[]".
func Clone(todos []Todo) []Todo {
	out := make([]Todo, len(todos))
	copy(out, todos)
	return out
}

// IndexOf returns the position of id in todos, or -1.
func IndexOf(todos []Todo, id string) int {
	for i := range todos {
		if todos[i].ID == id {
			return i
		}
	}
	return -1
}
