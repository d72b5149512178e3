package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskwell/taskwell/internal/log"
)

// Store persists todos in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	userID uuid.UUID
	logger log.Logger
}

// NewStore creates a todo store scoped to the given user.
func NewStore(pool *pgxpool.Pool, userID uuid.UUID, logger log.Logger) *Store {
	return &Store{
		pool:   pool,
		userID: userID,
		logger: logger.With("component", "todo_store"),
	}
}

const todoColumns = "id, text, is_completed, priority, user_id, created_at, updated_at"

func scanTodo(row pgx.Row) (*Todo, error) {
	var t Todo
	err := row.Scan(&t.ID, &t.Text, &t.IsCompleted, &t.Priority, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all active todos for the store's user, newest first.
func (s *Store) List(ctx context.Context) ([]Todo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+todoColumns+`
		 FROM todos
		 WHERE user_id = $1 AND is_deleted = FALSE
		 ORDER BY created_at DESC`,
		s.userID)
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating todos: %w", err)
	}
	return todos, nil
}

// Get returns a single active todo by id. Returns ErrNotFound if the todo
// does not exist or was deleted.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Todo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+todoColumns+`
		 FROM todos
		 WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`,
		id, s.userID)

	t, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting todo: %w", err)
	}
	return t, nil
}

// Create inserts a new todo and returns the stored row.
func (s *Store) Create(ctx context.Context, text string, priority int) (*Todo, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO todos (text, priority, user_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+todoColumns,
		text, priority, s.userID)

	t, err := scanTodo(row)
	if err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}
	s.logger.Debug("todo created", "id", t.ID)
	return t, nil
}

// Update applies a partial update and returns the updated row.
// Returns ErrNotFound if the todo does not exist or was deleted.
func (s *Store) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Todo, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE todos
		 SET text = COALESCE($1, text),
		     is_completed = COALESCE($2, is_completed),
		     priority = COALESCE($3, priority),
		     updated_at = now()
		 WHERE id = $4 AND user_id = $5 AND is_deleted = FALSE
		 RETURNING `+todoColumns,
		patch.Text, patch.IsCompleted, patch.Priority, id, s.userID)

	t, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating todo: %w", err)
	}
	s.logger.Debug("todo updated", "id", t.ID)
	return t, nil
}

// Delete soft-deletes a todo. Returns false if the todo does not exist or
// was already deleted.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE todos
		 SET is_deleted = TRUE, updated_at = now()
		 WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`,
		id, s.userID)
	if err != nil {
		return false, fmt.Errorf("deleting todo: %w", err)
	}

	deleted := tag.RowsAffected() > 0
	if deleted {
		s.logger.Debug("todo deleted", "id", id)
	}
	return deleted, nil
}
