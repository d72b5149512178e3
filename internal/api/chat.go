package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/taskwell/taskwell/internal/agent"
	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/thread"
)

// DefaultThreadID is used when the client does not name a thread.
const DefaultThreadID = "default"

const maxChatBodyBytes = 1 << 20 // 1 MiB

// ThreadStore is the thread persistence surface the handlers need.
type ThreadStore interface {
	EnsureThread(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, threadID, sender, content string, category *string) error
	TouchThread(ctx context.Context, id string, title *string) error
	ListThreads(ctx context.Context, limit int32) ([]thread.Summary, error)
	ListMessages(ctx context.Context, threadID string) ([]thread.Message, error)
	DeleteThread(ctx context.Context, id string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventStreamer produces the agent event stream for one chat turn.
type EventStreamer interface {
	StreamEvents(ctx context.Context, threadID, message string) iter.Seq2[agent.Event, error]
	ToolCount() int
}

// Wire frames. Each stream payload is one of these, discriminated by Type;
// the set is closed and clients ignore unknown types.
type contentFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type toolStartFrame struct {
	Type  string `json:"type"`
	Tool  string `json:"tool"`
	Input any    `json:"input"`
}

type toolEndFrame struct {
	Type   string `json:"type"`
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

type stepFrame struct {
	Type string `json:"type"`
	Step string `json:"step"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// translate maps an agent event to its wire frame. Returns false for
// events that produce no frame: empty deltas, blank steps, and any future
// event kind this translator does not know.
func translate(ev agent.Event) (any, bool) {
	switch ev.Type {
	case agent.EventContentDelta:
		if ev.Delta == "" {
			return nil, false
		}
		return contentFrame{Type: "content", Content: ev.Delta}, true
	case agent.EventToolStart:
		return toolStartFrame{Type: "tool_start", Tool: ev.Tool, Input: ev.Input}, true
	case agent.EventToolEnd:
		return toolEndFrame{Type: "tool_end", Tool: ev.Tool, Output: ev.Output}, true
	case agent.EventStep:
		if strings.TrimSpace(ev.Step) == "" {
			return nil, false
		}
		return stepFrame{Type: "step", Step: ev.Step}, true
	default:
		return nil, false
	}
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId"`
}

// chatHandler orchestrates one chat turn: persist the user message, relay
// the agent event stream as SSE frames, then persist the reply.
type chatHandler struct {
	logger   log.Logger
	threads  ThreadStore
	streamer EventStreamer
}

// chat handles POST /api/chat.
//
// Validation and pre-stream persistence happen before any SSE output, so
// failures there are still plain JSON errors. Once streaming starts the
// only outcomes are a terminal [DONE] frame or a single error frame.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message must be a non-empty string", h.logger)
		return
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = DefaultThreadID
	}

	ctx := r.Context()

	if err := h.prepare(ctx, threadID, message); err != nil {
		h.logger.Error("preparing chat turn", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	sw, err := newStreamWriter(w)
	if err != nil {
		h.logger.Error("initializing SSE stream", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	// reply accumulates content deltas only; tool output and step markers
	// never end up in the stored message.
	var reply strings.Builder

	for ev, streamErr := range h.streamer.StreamEvents(ctx, threadID, message) {
		if streamErr != nil {
			// The partial reply is dropped: an interrupted answer must not
			// surface as agent history in later turns.
			h.logger.Error("agent stream failed", "thread_id", threadID, "error", streamErr)
			h.writeErrorFrame(ctx, sw)
			return
		}

		if ev.Type == agent.EventContentDelta {
			reply.WriteString(ev.Delta)
		}

		frame, ok := translate(ev)
		if !ok {
			continue
		}
		if err := sw.writeFrame(ctx, frame); err != nil {
			h.logger.Debug("client disconnected mid-stream", "thread_id", threadID, "error", err)
			return
		}
	}

	if err := h.finish(ctx, threadID, reply.String()); err != nil {
		h.logger.Error("persisting agent reply", "thread_id", threadID, "error", err)
		h.writeErrorFrame(ctx, sw)
		return
	}

	if err := sw.writeDone(ctx); err != nil {
		h.logger.Debug("writing done frame", "thread_id", threadID, "error", err)
	}
}

// prepare records the user's turn before streaming: the thread exists, the
// user message is stored, and the thread's activity timestamp is bumped.
func (h *chatHandler) prepare(ctx context.Context, threadID, message string) error {
	if err := h.threads.EnsureThread(ctx, threadID); err != nil {
		return err
	}
	if err := h.threads.AppendMessage(ctx, threadID, thread.SenderUser, message, nil); err != nil {
		return err
	}
	return h.threads.TouchThread(ctx, threadID, nil)
}

// finish stores the accumulated agent reply. Whitespace-only replies are
// skipped entirely; tool-only turns leave no empty agent message behind.
func (h *chatHandler) finish(ctx context.Context, threadID, reply string) error {
	if strings.TrimSpace(reply) == "" {
		return nil
	}
	if err := h.threads.AppendMessage(ctx, threadID, thread.SenderAgent, reply, nil); err != nil {
		return err
	}
	return h.threads.TouchThread(ctx, threadID, nil)
}

// writeErrorFrame sends the single generic error frame that terminates a
// failed stream. Detail stays in the server log.
func (h *chatHandler) writeErrorFrame(ctx context.Context, sw *streamWriter) {
	frame := errorFrame{Type: "error", Error: "Stream processing error"}
	if err := sw.writeFrame(ctx, frame); err != nil {
		h.logger.Debug("writing error frame", "error", err)
	}
}
