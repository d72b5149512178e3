// Package todo provides PostgreSQL-backed storage for todo items.
//
// Deletes are soft: rows are flagged is_deleted and excluded from every
// query, so the agent can never resurrect a removed item by id.
package todo

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the todo does not exist or is deleted.
var ErrNotFound = errors.New("todo not found")

// DefaultUserID scopes all todos until real authentication exists.
var DefaultUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// Priority bounds for todo items.
const (
	MinPriority = 1
	MaxPriority = 5
)

// Todo is a single todo item.
type Todo struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	IsCompleted bool      `json:"isCompleted"`
	Priority    int       `json:"priority"`
	UserID      uuid.UUID `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch describes a partial update. Nil fields are left unchanged.
type Patch struct {
	Text        *string
	IsCompleted *bool
	Priority    *int
}
