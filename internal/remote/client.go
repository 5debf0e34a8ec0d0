// Package remote implements todo.Store against the REST API served by
// package server, so the display layer can run against a networked store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/todosync/internal/todo"
)

// StatusError is a non-2xx response other than 400 and 404.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client is a todo.Store backed by HTTP calls.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API rooted at baseURL. Trailing slashes are
// ignored, so "http://host:5000/" and "http://host:5000" are equivalent.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be an absolute http(s) url", baseURL)
	}

	c := &Client{base: u, http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

var _ todo.Store = (*Client)(nil)

// List fetches all todos.
func (c *Client) List(ctx context.Context) ([]todo.Todo, error) {
	var todos []todo.Todo
	if err := c.do(ctx, http.MethodGet, nil, nil, &todos); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	return todos, nil
}

// Create posts a new todo. The server assigns id and createdAt.
func (c *Client) Create(ctx context.Context, text string) (todo.Todo, error) {
	var created todo.Todo
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, nil, body, &created); err != nil {
		return todo.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return created, nil
}

// Toggle sends a bodiless PUT, which flips completed server-side.
func (c *Client) Toggle(ctx context.Context, id string) (todo.Todo, error) {
	var updated todo.Todo
	if err := c.do(ctx, http.MethodPut, []string{id}, nil, &updated); err != nil {
		return todo.Todo{}, fmt.Errorf("toggle todo %s: %w", id, err)
	}
	return updated, nil
}

// SetCompleted sends a PUT with an explicit completed value.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) (todo.Todo, error) {
	var updated todo.Todo
	body := map[string]bool{"completed": completed}
	if err := c.do(ctx, http.MethodPut, []string{id}, body, &updated); err != nil {
		return todo.Todo{}, fmt.Errorf("set completed %s: %w", id, err)
	}
	return updated, nil
}

// Delete removes a todo and returns it.
func (c *Client) Delete(ctx context.Context, id string) (todo.Todo, error) {
	var deleted todo.Todo
	if err := c.do(ctx, http.MethodDelete, []string{id}, nil, &deleted); err != nil {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, err)
	}
	return deleted, nil
}

func (c *Client) do(ctx context.Context, method string, elems []string, in, out interface{}) error {
	parts := []string{"api", "todos"}
	for _, e := range elems {
		parts = append(parts, url.PathEscape(e))
	}
	u := c.base.JoinPath(parts...)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	msg := errorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return todo.ErrNotFound
	case http.StatusBadRequest:
		return &todo.ValidationError{Reason: msg}
	default:
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
}

func errorMessage(r io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}
	b, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(b, &e); err != nil || e.Error == "" {
		return strings.TrimSpace(string(b))
	}
	return e.Error
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
