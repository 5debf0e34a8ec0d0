package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/todosync/internal/todo"
)

const maxBodyBytes = 1 << 20

type createRequest struct {
	Text *string `json:"text"`
}

type updateRequest struct {
	Completed *bool `json:"completed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// readBody returns the request body, or nil for an empty or
// whitespace-only body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	return b, nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list todos", "error", err)
		writeError(w, http.StatusInternalServerError, todo.KindFetchFailed.Message())
		return
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var req createRequest
	if body != nil {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	text := ""
	if req.Text != nil {
		text = *req.Text
	}

	created, err := s.store.Create(r.Context(), text)
	if err != nil {
		var ve *todo.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Reason)
			return
		}
		s.logger.Error("create todo", "error", err)
		writeError(w, http.StatusInternalServerError, todo.KindCreateFailed.Message())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// updateTodo flips completed when the body is empty or has no "completed"
// field, and sets it otherwise.
func (s *Server) updateTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var req updateRequest
	if body != nil {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	var updated todo.Todo
	if req.Completed != nil {
		updated, err = s.store.SetCompleted(r.Context(), id, *req.Completed)
	} else {
		updated, err = s.store.Toggle(r.Context(), id)
	}
	if err != nil {
		if todo.IsNotFound(err) {
			writeError(w, http.StatusNotFound, todo.KindNotFound.Message())
			return
		}
		s.logger.Error("update todo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update todo")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		if todo.IsNotFound(err) {
			writeError(w, http.StatusNotFound, todo.KindNotFound.Message())
			return
		}
		s.logger.Error("delete todo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, todo.KindDeleteFailed.Message())
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}
