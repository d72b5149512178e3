package api

import (
	"net/http"
	"time"

	"github.com/taskwell/taskwell/internal/log"
)

type healthHandler struct {
	logger    log.Logger
	streamer  EventStreamer
	startedAt time.Time
}

// health handles GET /health. It reports process uptime and the number
// of tools the agent has registered.
func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    int64(time.Since(h.startedAt).Seconds()),
		"mcp": map[string]any{
			"connected": true,
			"tools":     h.streamer.ToolCount(),
		},
	}, h.logger)
}
