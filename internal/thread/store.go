package thread

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskwell/taskwell/internal/log"
)

// Store persists chat threads and messages in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a thread store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With("component", "thread_store"),
	}
}

// EnsureThread creates the thread row if it does not exist yet. Thread ids
// are chosen by the client, so creation is idempotent.
func (s *Store) EnsureThread(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_threads (thread_id) VALUES ($1)
		 ON CONFLICT (thread_id) DO NOTHING`,
		id)
	if err != nil {
		return fmt.Errorf("ensuring thread: %w", err)
	}
	return nil
}

// AppendMessage stores a message on a thread. category is optional metadata
// such as an error class.
func (s *Store) AppendMessage(ctx context.Context, threadID, sender, content string, category *string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (thread_id, sender, category, content)
		 VALUES ($1, $2, $3, $4)`,
		threadID, sender, category, content)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// TouchThread bumps the thread's updated_at and optionally changes its
// title: nil keeps the current title, empty string clears it, any other
// value replaces it.
func (s *Store) TouchThread(ctx context.Context, id string, title *string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chat_threads
		 SET updated_at = now(),
		     title = CASE
		         WHEN $2::text IS NULL THEN title
		         WHEN $2 = '' THEN NULL
		         ELSE $2
		     END
		 WHERE thread_id = $1`,
		id, title)
	if err != nil {
		return fmt.Errorf("touching thread: %w", err)
	}
	return nil
}

// ListThreads returns the most recently active threads with their message
// counts, newest first.
func (s *Store) ListThreads(ctx context.Context, limit int32) ([]Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.thread_id, t.title, t.updated_at, COUNT(m.id)
		 FROM chat_threads t
		 LEFT JOIN chat_messages m
		     ON m.thread_id = t.thread_id AND m.is_deleted = FALSE
		 WHERE t.is_deleted = FALSE
		 GROUP BY t.thread_id, t.title, t.updated_at
		 ORDER BY t.updated_at DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var threads []Summary
	for rows.Next() {
		var t Summary
		if err := rows.Scan(&t.ThreadID, &t.Title, &t.UpdatedAt, &t.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}
	return threads, nil
}

// ListMessages returns all messages of a thread in chronological order.
func (s *Store) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, sender, category, content, created_at
		 FROM chat_messages
		 WHERE thread_id = $1 AND is_deleted = FALSE
		 ORDER BY created_at ASC`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sender, &m.Category, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// DeleteThread removes a thread; its messages go with it via ON DELETE
// CASCADE. Deleting a missing thread is not an error.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM chat_threads WHERE thread_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	s.logger.Debug("thread deleted", "thread_id", id)
	return nil
}

// PurgeOlderThan deletes threads whose last activity is before cutoff and
// returns the number of threads removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chat_threads WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging threads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// History loads up to limit stored messages of a thread as model messages,
// oldest first. The limit keeps the newest messages: on a long thread the
// window slides forward, it never freezes on the oldest turns. User
// messages keep the user role; everything else is attributed to the model.
func (s *Store) History(ctx context.Context, threadID string, limit int32) ([]*ai.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender, content FROM (
		     SELECT sender, content, created_at
		     FROM chat_messages
		     WHERE thread_id = $1 AND is_deleted = FALSE
		     ORDER BY created_at DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var history []*ai.Message
	for rows.Next() {
		var sender, content string
		if err := rows.Scan(&sender, &content); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if sender == SenderUser {
			history = append(history, ai.NewUserMessage(ai.NewTextPart(content)))
		} else {
			history = append(history, ai.NewModelMessage(ai.NewTextPart(content)))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return history, nil
}
