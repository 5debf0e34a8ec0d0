// Package localstore persists todos as a JSON array in a single file under a
// data directory. It is the local-only backend: no server, one user.
//
// The file is named after the storage key ("todos.json"). On load the
// document is validated against an embedded JSON Schema; a missing,
// unparseable, or invalid file is treated as an empty list and the problem is
// logged, never returned.
package localstore

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/todosync/internal/store"
	"github.com/roach88/todosync/internal/todo"
)

// StorageKey names the persisted record array.
const StorageKey = "todos"

//go:embed todos.schema.json
var schemaJSON string

const schemaURL = "todos.schema.json"

// Store is a file-backed todo.Store. All operations hold a mutex across the
// read-modify-write of the file.
type Store struct {
	mu     sync.Mutex
	dir    string
	path   string
	ids    store.IDGenerator
	clock  store.Clock
	logger *slog.Logger
	schema *jsonschema.Schema
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the UUIDv7 id generator.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock overrides the wall clock used for createdAt.
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger used to report corrupt files.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open prepares a store rooted at dir, creating the directory if needed.
// The todos file itself is created on first write.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		path:   filepath.Join(dir, StorageKey+".json"),
		ids:    store.UUIDv7Generator{},
		clock:  store.SystemClock{},
		logger: slog.Default(),
		schema: schema,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Path returns the location of the todos file.
func (s *Store) Path() string { return s.path }

// Close is a no-op; the file is not held open between operations.
func (s *Store) Close() error { return nil }

// load reads the persisted array. Any failure is logged and yields an empty
// slice.
func (s *Store) load() []todo.Todo {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("read local todos", "path", s.path, "error", err)
		}
		return []todo.Todo{}
	}

	todos, err := s.decode(b)
	if err != nil {
		s.logger.Error("parse local todos, starting empty", "path", s.path, "error", err)
		return []todo.Todo{}
	}
	return todos
}

func (s *Store) decode(b []byte) ([]todo.Todo, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var todos []todo.Todo
	if err := json.Unmarshal(b, &todos); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	return todos, nil
}

// save replaces the file atomically: write a temp file in the same
// directory, then rename over the target.
func (s *Store) save(todos []todo.Todo) error {
	b, err := json.MarshalIndent(todos, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return writeFileAtomic(s.path, b)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
