package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/thread"
)

// threadsHandler serves the thread management endpoints.
type threadsHandler struct {
	logger        log.Logger
	threads       ThreadStore
	listLimit     int32
	retentionDays int
}

// list handles GET /api/threads.
func (h *threadsHandler) list(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.ListThreads(r.Context(), h.listLimit)
	if err != nil {
		h.logger.Error("listing threads", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}
	if threads == nil {
		threads = []thread.Summary{}
	}
	writeJSON(w, http.StatusOK, threads, h.logger)
}

// threadMessage is the wire shape of a stored message. The client knows
// two roles only: the user and the bot.
type threadMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Category  *string   `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// messages handles GET /api/threads/{id}/messages.
func (h *threadsHandler) messages(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	stored, err := h.threads.ListMessages(r.Context(), threadID)
	if err != nil {
		h.logger.Error("listing messages", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	messages := make([]threadMessage, 0, len(stored))
	for _, m := range stored {
		role := "bot"
		if m.Sender == thread.SenderUser {
			role = "user"
		}
		messages = append(messages, threadMessage{
			Role:      role,
			Text:      m.Content,
			Category:  m.Category,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, messages, h.logger)
}

// delete handles DELETE /api/threads/{id}.
func (h *threadsHandler) delete(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	if err := h.threads.DeleteThread(r.Context(), threadID); err != nil {
		h.logger.Error("deleting thread", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thread deleted",
	}, h.logger)
}

type titleRequest struct {
	Title string `json:"title"`
}

// updateTitle handles PUT /api/threads/{id}/title. An empty title clears
// the stored one.
func (h *threadsHandler) updateTitle(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	if err := h.threads.TouchThread(r.Context(), threadID, &req.Title); err != nil {
		h.logger.Error("updating thread title", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Title updated",
	}, h.logger)
}

// cleanup handles POST /api/threads/cleanup: purge threads idle longer
// than the retention period.
func (h *threadsHandler) cleanup(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().AddDate(0, 0, -h.retentionDays)

	deleted, err := h.threads.PurgeOlderThan(r.Context(), cutoff)
	if err != nil {
		h.logger.Error("purging threads", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	h.logger.Info("thread cleanup complete", "deleted", deleted, "retention_days", h.retentionDays)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"deletedThreads": deleted,
		"retentionDays":  h.retentionDays,
	}, h.logger)
}
