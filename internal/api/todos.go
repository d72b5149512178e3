package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/todo"
)

// TodoStore is the persistence surface the todo REST endpoints need.
type TodoStore interface {
	List(ctx context.Context) ([]todo.Todo, error)
	Get(ctx context.Context, id uuid.UUID) (*todo.Todo, error)
	Create(ctx context.Context, text string, priority int) (*todo.Todo, error)
	Update(ctx context.Context, id uuid.UUID, patch todo.Patch) (*todo.Todo, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// todosHandler serves the direct CRUD endpoints the web client uses
// alongside the conversational path.
type todosHandler struct {
	logger log.Logger
	todos  TodoStore
}

type createTodoRequest struct {
	Text     string `json:"text"`
	Priority *int   `json:"priority"`
}

type updateTodoRequest struct {
	Text        *string `json:"text"`
	IsCompleted *bool   `json:"isCompleted"`
	Priority    *int    `json:"priority"`
}

// list handles GET /api/todos.
func (h *todosHandler) list(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context())
	if err != nil {
		h.logger.Error("listing todos", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	writeJSON(w, http.StatusOK, todos, h.logger)
}

// get handles GET /api/todos/{id}.
func (h *todosHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	item, err := h.todos.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Todo not found", h.logger)
			return
		}
		h.logger.Error("getting todo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, item, h.logger)
}

// create handles POST /api/todos.
func (h *todosHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text must be a non-empty string", h.logger)
		return
	}

	priority := todo.MinPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < todo.MinPriority || priority > todo.MaxPriority {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("priority must be between %d and %d", todo.MinPriority, todo.MaxPriority), h.logger)
		return
	}

	item, err := h.todos.Create(r.Context(), text, priority)
	if err != nil {
		h.logger.Error("creating todo", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, item, h.logger)
}

// update handles PUT /api/todos/{id}.
func (h *todosHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	patch := todo.Patch{IsCompleted: req.IsCompleted, Priority: req.Priority}
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			writeError(w, http.StatusBadRequest, "text must be a non-empty string", h.logger)
			return
		}
		patch.Text = &text
	}
	if req.Priority != nil && (*req.Priority < todo.MinPriority || *req.Priority > todo.MaxPriority) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("priority must be between %d and %d", todo.MinPriority, todo.MaxPriority), h.logger)
		return
	}

	item, err := h.todos.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Todo not found", h.logger)
			return
		}
		h.logger.Error("updating todo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, item, h.logger)
}

// delete handles DELETE /api/todos/{id}.
func (h *todosHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	deleted, err := h.todos.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("deleting todo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Todo not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true}, h.logger)
}

func (h *todosHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid todo id", h.logger)
		return uuid.Nil, false
	}
	return id, true
}
