// Package thread provides PostgreSQL-backed storage for chat threads and
// their messages, plus conversion of stored history into model messages.
package thread

import (
	"time"

	"github.com/google/uuid"
)

// Message senders. Everything that is not the user speaks for the model side
// of the conversation.
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Summary is a thread listing entry. Field names match the wire format of
// the threads API.
type Summary struct {
	ThreadID     string    `json:"threadId"`
	Title        *string   `json:"title"`
	UpdatedAt    time.Time `json:"timestamp"`
	MessageCount int64     `json:"messageCount"`
}

// Message is a single stored chat message.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  string    `json:"threadId"`
	Sender    string    `json:"sender"`
	Category  *string   `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
