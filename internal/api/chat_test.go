package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwell/taskwell/internal/agent"
	"github.com/taskwell/taskwell/internal/testutil"
	"github.com/taskwell/taskwell/internal/thread"
)

type appendedMessage struct {
	threadID string
	sender   string
	content  string
}

// fakeThreadStore records every mutation so tests can assert on
// persistence ordering around the stream.
type fakeThreadStore struct {
	mu        sync.Mutex
	ensured   []string
	appended  []appendedMessage
	touched   []*string
	threads   []thread.Summary
	messages  map[string][]thread.Message
	deleted   []string
	purged    int64
	ensureErr error
	appendErr error
	listErr   error
	deleteErr error
}

func (f *fakeThreadStore) EnsureThread(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.ensured = append(f.ensured, id)
	return nil
}

func (f *fakeThreadStore) AppendMessage(_ context.Context, threadID, sender, content string, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, appendedMessage{threadID: threadID, sender: sender, content: content})
	return nil
}

func (f *fakeThreadStore) TouchThread(_ context.Context, _ string, title *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, title)
	return nil
}

func (f *fakeThreadStore) ListThreads(_ context.Context, _ int32) ([]thread.Summary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.threads, nil
}

func (f *fakeThreadStore) ListMessages(_ context.Context, threadID string) ([]thread.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages[threadID], nil
}

func (f *fakeThreadStore) DeleteThread(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeThreadStore) PurgeOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return f.purged, nil
}

func (f *fakeThreadStore) appendedMessages() []appendedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appendedMessage(nil), f.appended...)
}

// fakeStreamer plays back a scripted sequence of events, optionally
// ending with an error.
type fakeStreamer struct {
	events    []agent.Event
	err       error
	toolCount int
	mu        sync.Mutex
	calls     []string
}

func (f *fakeStreamer) StreamEvents(_ context.Context, threadID, message string) iter.Seq2[agent.Event, error] {
	f.mu.Lock()
	f.calls = append(f.calls, threadID+"|"+message)
	f.mu.Unlock()
	return func(yield func(agent.Event, error) bool) {
		for _, ev := range f.events {
			if !yield(ev, nil) {
				return
			}
		}
		if f.err != nil {
			yield(agent.Event{}, f.err)
		}
	}
}

func (f *fakeStreamer) ToolCount() int { return f.toolCount }

func (f *fakeStreamer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newChatHandler(threads ThreadStore, streamer EventStreamer) *chatHandler {
	return &chatHandler{
		logger:   testutil.DiscardLogger(),
		threads:  threads,
		streamer: streamer,
	}
}

func postChat(t *testing.T, h *chatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.chat(w, req)
	return w
}

func TestChatStreamsFrames(t *testing.T) {
	store := &fakeThreadStore{}
	streamer := &fakeStreamer{
		events: []agent.Event{
			{Type: agent.EventStep, Step: "agent"},
			{Type: agent.EventToolStart, Tool: "todo_manager", Input: map[string]any{"action": "read"}},
			{Type: agent.EventToolEnd, Tool: "todo_manager", Output: "{}"},
			{Type: agent.EventContentDelta, Delta: "Here are "},
			{Type: agent.EventContentDelta, Delta: "your todos."},
		},
	}
	h := newChatHandler(store, streamer)

	w := postChat(t, h, `{"message":"show my todos","threadId":"t-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := testutil.ParseSSEFrames(t, w.Body.String())
	require.Len(t, frames, 6)
	assert.Equal(t, "[DONE]", frames[5])

	var step stepFrame
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &step))
	assert.Equal(t, "step", step.Type)
	assert.Equal(t, "agent", step.Step)

	var start toolStartFrame
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &start))
	assert.Equal(t, "tool_start", start.Type)
	assert.Equal(t, "todo_manager", start.Tool)

	var end toolEndFrame
	require.NoError(t, json.Unmarshal([]byte(frames[2]), &end))
	assert.Equal(t, "tool_end", end.Type)
	assert.Equal(t, "{}", end.Output)

	var content contentFrame
	require.NoError(t, json.Unmarshal([]byte(frames[3]), &content))
	assert.Equal(t, "content", content.Type)
	assert.Equal(t, "Here are ", content.Content)

	// User message persisted before the stream, full reply after it.
	appended := store.appendedMessages()
	require.Len(t, appended, 2)
	assert.Equal(t, appendedMessage{threadID: "t-1", sender: thread.SenderUser, content: "show my todos"}, appended[0])
	assert.Equal(t, appendedMessage{threadID: "t-1", sender: thread.SenderAgent, content: "Here are your todos."}, appended[1])
	assert.Equal(t, []string{"t-1"}, store.ensured)
}

func TestChatEmptyMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing", body: `{"threadId":"t-1"}`},
		{name: "empty", body: `{"message":""}`},
		{name: "whitespace", body: `{"message":"   \n\t"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeThreadStore{}
			streamer := &fakeStreamer{}
			h := newChatHandler(store, streamer)

			w := postChat(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.appendedMessages())
			assert.Zero(t, streamer.callCount())
		})
	}
}

func TestChatInvalidBody(t *testing.T) {
	h := newChatHandler(&fakeThreadStore{}, &fakeStreamer{})

	w := postChat(t, h, `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatDefaultThreadID(t *testing.T) {
	store := &fakeThreadStore{}
	streamer := &fakeStreamer{
		events: []agent.Event{{Type: agent.EventContentDelta, Delta: "hi"}},
	}
	h := newChatHandler(store, streamer)

	w := postChat(t, h, `{"message":"hello"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{DefaultThreadID}, store.ensured)
	require.Equal(t, 1, streamer.callCount())
	assert.Equal(t, DefaultThreadID+"|hello", streamer.calls[0])
}

func TestChatStreamError(t *testing.T) {
	store := &fakeThreadStore{}
	streamer := &fakeStreamer{
		events: []agent.Event{
			{Type: agent.EventContentDelta, Delta: "partial "},
		},
		err: errors.New("model unavailable"),
	}
	h := newChatHandler(store, streamer)

	w := postChat(t, h, `{"message":"hello","threadId":"t-err"}`)

	require.Equal(t, http.StatusOK, w.Code)
	frames := testutil.ParseSSEFrames(t, w.Body.String())
	require.Len(t, frames, 2)
	assert.NotContains(t, frames, "[DONE]")

	var errFrame errorFrame
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &errFrame))
	assert.Equal(t, "error", errFrame.Type)
	// Internal details stay out of the wire error.
	assert.NotContains(t, errFrame.Error, "model unavailable")

	// The partial reply must not be persisted as an agent message.
	appended := store.appendedMessages()
	require.Len(t, appended, 1)
	assert.Equal(t, thread.SenderUser, appended[0].sender)
}

// brokenPipeWriter fails every Write after the first n, simulating a
// client that goes away mid-stream.
type brokenPipeWriter struct {
	*httptest.ResponseRecorder
	writesLeft int
}

func (w *brokenPipeWriter) Write(b []byte) (int, error) {
	if w.writesLeft <= 0 {
		return 0, errors.New("write: broken pipe")
	}
	w.writesLeft--
	return w.ResponseRecorder.Write(b)
}

func TestChatClientDisconnectMidStream(t *testing.T) {
	store := &fakeThreadStore{}
	streamer := &fakeStreamer{
		events: []agent.Event{
			{Type: agent.EventContentDelta, Delta: "first "},
			{Type: agent.EventContentDelta, Delta: "second "},
			{Type: agent.EventContentDelta, Delta: "third"},
		},
	}
	h := newChatHandler(store, streamer)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hello","threadId":"t-gone"}`))
	req.Header.Set("Content-Type", "application/json")
	w := &brokenPipeWriter{ResponseRecorder: httptest.NewRecorder(), writesLeft: 2}
	h.chat(w, req)

	// Two frames made it out, then the connection died: no [DONE], no
	// error frame.
	frames := testutil.ParseSSEFrames(t, w.Body.String())
	require.Len(t, frames, 2)
	assert.NotContains(t, frames, "[DONE]")

	// The user turn was persisted before the stream; the partial agent
	// reply was dropped.
	appended := store.appendedMessages()
	require.Len(t, appended, 1)
	assert.Equal(t, thread.SenderUser, appended[0].sender)
}

func TestChatWhitespaceReplyNotPersisted(t *testing.T) {
	store := &fakeThreadStore{}
	streamer := &fakeStreamer{
		events: []agent.Event{
			{Type: agent.EventContentDelta, Delta: "  \n"},
		},
	}
	h := newChatHandler(store, streamer)

	w := postChat(t, h, `{"message":"hello"}`)

	require.Equal(t, http.StatusOK, w.Code)
	appended := store.appendedMessages()
	require.Len(t, appended, 1)
	assert.Equal(t, thread.SenderUser, appended[0].sender)
}

func TestChatPrepareFailure(t *testing.T) {
	store := &fakeThreadStore{ensureErr: errors.New("db down")}
	streamer := &fakeStreamer{}
	h := newChatHandler(store, streamer)

	w := postChat(t, h, `{"message":"hello"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Zero(t, streamer.callCount())
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		ev   agent.Event
		want any
		ok   bool
	}{
		{
			name: "content delta",
			ev:   agent.Event{Type: agent.EventContentDelta, Delta: "hi"},
			want: contentFrame{Type: "content", Content: "hi"},
			ok:   true,
		},
		{
			name: "empty delta dropped",
			ev:   agent.Event{Type: agent.EventContentDelta, Delta: ""},
			ok:   false,
		},
		{
			name: "tool start",
			ev:   agent.Event{Type: agent.EventToolStart, Tool: "todo_manager", Input: "x"},
			want: toolStartFrame{Type: "tool_start", Tool: "todo_manager", Input: "x"},
			ok:   true,
		},
		{
			name: "tool end",
			ev:   agent.Event{Type: agent.EventToolEnd, Tool: "todo_manager", Output: "done"},
			want: toolEndFrame{Type: "tool_end", Tool: "todo_manager", Output: "done"},
			ok:   true,
		},
		{
			name: "step",
			ev:   agent.Event{Type: agent.EventStep, Step: "agent"},
			want: stepFrame{Type: "step", Step: "agent"},
			ok:   true,
		},
		{
			name: "blank step dropped",
			ev:   agent.Event{Type: agent.EventStep, Step: "  "},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translate(tt.ev)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
