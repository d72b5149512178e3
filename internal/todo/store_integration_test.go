//go:build integration

package todo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwell/taskwell/internal/testutil"
	"github.com/taskwell/taskwell/internal/todo"
)

func setupStore(t *testing.T) *todo.Store {
	t.Helper()
	testDB, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	return todo.NewStore(testDB.Pool, todo.DefaultUserID, testutil.DiscardLogger())
}

func TestStoreCreateAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "buy milk", 3)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", first.Text)
	assert.Equal(t, 3, first.Priority)
	assert.False(t, first.IsCompleted)
	assert.Equal(t, todo.DefaultUserID, first.UserID)

	second, err := store.Create(ctx, "walk the dog", 1)
	require.NoError(t, err)

	todos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	// Newest first.
	assert.Equal(t, second.ID, todos[0].ID)
	assert.Equal(t, first.ID, todos[1].ID)
}

func TestStoreGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "buy milk", 2)
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "buy milk", got.Text)
}

func TestStoreUpdate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "buy milk", 1)
	require.NoError(t, err)

	completed := true
	priority := 5
	updated, err := store.Update(ctx, created.ID, todo.Patch{
		IsCompleted: &completed,
		Priority:    &priority,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
	assert.Equal(t, 5, updated.Priority)
	assert.Equal(t, "buy milk", updated.Text, "untouched field must survive a partial update")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
}

func TestStoreUpdateNotFound(t *testing.T) {
	store := setupStore(t)

	text := "nope"
	_, err := store.Update(context.Background(), uuid.New(), todo.Patch{Text: &text})
	assert.ErrorIs(t, err, todo.ErrNotFound)
}

func TestStoreSoftDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "buy milk", 1)
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// The row is gone from every read path.
	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, todo.ErrNotFound)

	todos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, todos)

	// A second delete reports nothing deleted.
	deleted, err = store.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	// A deleted todo cannot be resurrected by update.
	completed := true
	_, err = store.Update(ctx, created.ID, todo.Patch{IsCompleted: &completed})
	assert.ErrorIs(t, err, todo.ErrNotFound)
}
