package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwell/taskwell/internal/testutil"
	"github.com/taskwell/taskwell/internal/todo"
)

var errTodoStoreDown = errors.New("connection refused")

// fakeTodoStore is an in-memory TodoStore.
type fakeTodoStore struct {
	items   map[uuid.UUID]*todo.Todo
	failAll bool
}

func newFakeTodoStore() *fakeTodoStore {
	return &fakeTodoStore{items: make(map[uuid.UUID]*todo.Todo)}
}

func (f *fakeTodoStore) List(context.Context) ([]todo.Todo, error) {
	if f.failAll {
		return nil, errTodoStoreDown
	}
	out := make([]todo.Todo, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, *item)
	}
	return out, nil
}

func (f *fakeTodoStore) Get(_ context.Context, id uuid.UUID) (*todo.Todo, error) {
	if f.failAll {
		return nil, errTodoStoreDown
	}
	item, ok := f.items[id]
	if !ok {
		return nil, todo.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeTodoStore) Create(_ context.Context, text string, priority int) (*todo.Todo, error) {
	if f.failAll {
		return nil, errTodoStoreDown
	}
	item := &todo.Todo{
		ID:        uuid.New(),
		Text:      text,
		Priority:  priority,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.items[item.ID] = item
	copied := *item
	return &copied, nil
}

func (f *fakeTodoStore) Update(_ context.Context, id uuid.UUID, patch todo.Patch) (*todo.Todo, error) {
	if f.failAll {
		return nil, errTodoStoreDown
	}
	item, ok := f.items[id]
	if !ok {
		return nil, todo.ErrNotFound
	}
	if patch.Text != nil {
		item.Text = *patch.Text
	}
	if patch.IsCompleted != nil {
		item.IsCompleted = *patch.IsCompleted
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}
	copied := *item
	return &copied, nil
}

func (f *fakeTodoStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	if f.failAll {
		return false, errTodoStoreDown
	}
	if _, ok := f.items[id]; !ok {
		return false, nil
	}
	delete(f.items, id)
	return true, nil
}

func newTodosHandler(store TodoStore) *todosHandler {
	return &todosHandler{logger: testutil.DiscardLogger(), todos: store}
}

func TestTodosCreateAndGet(t *testing.T) {
	store := newFakeTodoStore()
	h := newTodosHandler(store)

	w := httptest.NewRecorder()
	h.create(w, httptest.NewRequest(http.MethodPost, "/api/todos",
		strings.NewReader(`{"text":"buy milk","priority":3}`)))

	require.Equal(t, http.StatusCreated, w.Code)
	var created todo.Todo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "buy milk", created.Text)
	assert.Equal(t, 3, created.Priority)
	assert.False(t, created.IsCompleted)

	req := httptest.NewRequest(http.MethodGet, "/api/todos/"+created.ID.String(), nil)
	req.SetPathValue("id", created.ID.String())
	w = httptest.NewRecorder()
	h.get(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got todo.Todo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestTodosCreateDefaultPriority(t *testing.T) {
	h := newTodosHandler(newFakeTodoStore())

	w := httptest.NewRecorder()
	h.create(w, httptest.NewRequest(http.MethodPost, "/api/todos",
		strings.NewReader(`{"text":"walk the dog"}`)))

	require.Equal(t, http.StatusCreated, w.Code)
	var created todo.Todo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, todo.MinPriority, created.Priority)
}

func TestTodosCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty text", body: `{"text":""}`},
		{name: "whitespace text", body: `{"text":"   "}`},
		{name: "priority too low", body: `{"text":"x","priority":0}`},
		{name: "priority too high", body: `{"text":"x","priority":6}`},
		{name: "bad json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTodosHandler(newFakeTodoStore())
			w := httptest.NewRecorder()
			h.create(w, httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTodosUpdate(t *testing.T) {
	store := newFakeTodoStore()
	created, err := store.Create(context.Background(), "buy milk", 1)
	require.NoError(t, err)
	h := newTodosHandler(store)

	req := httptest.NewRequest(http.MethodPut, "/api/todos/"+created.ID.String(),
		strings.NewReader(`{"isCompleted":true,"priority":5}`))
	req.SetPathValue("id", created.ID.String())
	w := httptest.NewRecorder()
	h.update(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got todo.Todo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.IsCompleted)
	assert.Equal(t, 5, got.Priority)
	assert.Equal(t, "buy milk", got.Text)
}

func TestTodosUpdateNotFound(t *testing.T) {
	h := newTodosHandler(newFakeTodoStore())
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodPut, "/api/todos/"+id, strings.NewReader(`{"isCompleted":true}`))
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.update(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodosDelete(t *testing.T) {
	store := newFakeTodoStore()
	created, err := store.Create(context.Background(), "buy milk", 1)
	require.NoError(t, err)
	h := newTodosHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/todos/"+created.ID.String(), nil)
	req.SetPathValue("id", created.ID.String())
	w := httptest.NewRecorder()
	h.delete(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Second delete reports not found.
	w = httptest.NewRecorder()
	h.delete(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodosInvalidID(t *testing.T) {
	h := newTodosHandler(newFakeTodoStore())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/todos/not-a-uuid", strings.NewReader(`{}`))
		req.SetPathValue("id", "not-a-uuid")
		w := httptest.NewRecorder()
		switch method {
		case http.MethodGet:
			h.get(w, req)
		case http.MethodPut:
			h.update(w, req)
		case http.MethodDelete:
			h.delete(w, req)
		}
		assert.Equal(t, http.StatusBadRequest, w.Code, fmt.Sprintf("method %s", method))
	}
}

func TestTodosStoreFailureHidesDetails(t *testing.T) {
	store := newFakeTodoStore()
	store.failAll = true
	h := newTodosHandler(store)

	w := httptest.NewRecorder()
	h.list(w, httptest.NewRequest(http.MethodGet, "/api/todos", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
