package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/todo"
)

// ManagerToolName is the tool name the model sees.
const ManagerToolName = "todo_manager"

// Action selects the todo operation to perform.
type Action string

// Supported todo actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Input is the todo_manager tool input schema.
type Input struct {
	Action      Action `json:"action" jsonschema:"the operation to perform: create, read, update, or delete"`
	ID          string `json:"id,omitempty" jsonschema:"todo id, required for update and delete"`
	Text        string `json:"text,omitempty" jsonschema:"todo text, required for create"`
	Priority    *int   `json:"priority,omitempty" jsonschema:"priority from 1 (lowest) to 5 (highest)"`
	IsCompleted *bool  `json:"is_completed,omitempty" jsonschema:"completion state, update only"`
}

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the structured outcome of a tool invocation. Invoke never
// returns a Go error; failures are carried here so a bad tool call can
// never abort the model turn.
type Result struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Display renders the result as the string handed back to the model.
// Successful results become indented JSON; failures become "Error: <msg>".
func (r Result) Display() string {
	if r.Status == StatusError {
		return "Error: " + r.Error
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "Error: rendering tool result"
	}
	return string(data)
}

func errorResult(msg string) Result {
	return Result{Status: StatusError, Error: msg}
}

// TodoStore is the todo persistence surface the manager needs.
type TodoStore interface {
	List(ctx context.Context) ([]todo.Todo, error)
	Create(ctx context.Context, text string, priority int) (*todo.Todo, error)
	Update(ctx context.Context, id uuid.UUID, patch todo.Patch) (*todo.Todo, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Manager executes todo operations on behalf of the agent.
type Manager struct {
	store  TodoStore
	logger log.Logger
}

// NewManager creates a tool manager backed by the given store.
func NewManager(store TodoStore, logger log.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With("component", "todo_manager"),
	}
}

// Invoke executes one todo operation and always returns a structured
// Result. Storage failures are logged with detail but reported to the
// model generically.
func (m *Manager) Invoke(ctx context.Context, in Input) Result {
	switch in.Action {
	case ActionCreate:
		return m.create(ctx, in)
	case ActionRead:
		return m.read(ctx)
	case ActionUpdate:
		return m.update(ctx, in)
	case ActionDelete:
		return m.delete(ctx, in)
	default:
		return errorResult(fmt.Sprintf("Invalid action: %s", in.Action))
	}
}

func (m *Manager) create(ctx context.Context, in Input) Result {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return errorResult("Text is required for create action")
	}

	priority := todo.MinPriority
	if in.Priority != nil {
		priority = *in.Priority
	}
	if priority < todo.MinPriority || priority > todo.MaxPriority {
		return errorResult(fmt.Sprintf("Priority must be between %d and %d", todo.MinPriority, todo.MaxPriority))
	}

	created, err := m.store.Create(ctx, text, priority)
	if err != nil {
		m.logger.Error("creating todo", "error", err)
		return errorResult("Failed to create todo")
	}

	return Result{
		Status:  StatusSuccess,
		Data:    created,
		Message: "Todo created",
	}
}

func (m *Manager) read(ctx context.Context) Result {
	todos, err := m.store.List(ctx)
	if err != nil {
		m.logger.Error("listing todos", "error", err)
		return errorResult("Failed to read todos")
	}

	count := len(todos)
	return Result{
		Status: StatusSuccess,
		Count:  &count,
		Data:   todos,
	}
}

func (m *Manager) update(ctx context.Context, in Input) Result {
	id, res := m.parseID(in.ID, "update")
	if res != nil {
		return *res
	}

	var patch todo.Patch
	if strings.TrimSpace(in.Text) != "" {
		text := in.Text
		patch.Text = &text
	}
	patch.IsCompleted = in.IsCompleted
	if in.Priority != nil {
		if *in.Priority < todo.MinPriority || *in.Priority > todo.MaxPriority {
			return errorResult(fmt.Sprintf("Priority must be between %d and %d", todo.MinPriority, todo.MaxPriority))
		}
		patch.Priority = in.Priority
	}

	updated, err := m.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			return errorResult(fmt.Sprintf("Todo with ID %s not found", in.ID))
		}
		m.logger.Error("updating todo", "error", err, "id", id)
		return errorResult("Failed to update todo")
	}

	return Result{
		Status:  StatusSuccess,
		Data:    updated,
		Message: "Todo updated",
	}
}

func (m *Manager) delete(ctx context.Context, in Input) Result {
	id, res := m.parseID(in.ID, "delete")
	if res != nil {
		return *res
	}

	deleted, err := m.store.Delete(ctx, id)
	if err != nil {
		m.logger.Error("deleting todo", "error", err, "id", id)
		return errorResult("Failed to delete todo")
	}
	if !deleted {
		return errorResult(fmt.Sprintf("Todo with ID %s not found", in.ID))
	}

	return Result{
		Status:  StatusSuccess,
		Message: "Todo deleted",
	}
}

// parseID validates the id argument for actions that require one. Returns
// a Result pointer when the input is unusable.
func (m *Manager) parseID(raw, action string) (uuid.UUID, *Result) {
	if strings.TrimSpace(raw) == "" {
		res := errorResult(fmt.Sprintf("ID is required for %s action", action))
		return uuid.Nil, &res
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		res := errorResult(fmt.Sprintf("Invalid todo ID: %s", raw))
		return uuid.Nil, &res
	}
	return id, nil
}
