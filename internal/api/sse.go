package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// doneSentinel is the literal terminal frame of a successful chat stream.
// It is not JSON; clients match it before decoding.
const doneSentinel = "[DONE]"

// streamWriter writes the data-only SSE stream used by the chat endpoint.
// Every frame is "data: <payload>\n\n"; there are no event: fields.
type streamWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// newStreamWriter prepares w for SSE streaming and sets the response
// headers. Fails if the writer cannot flush, since unflushed SSE never
// reaches the client.
func newStreamWriter(w http.ResponseWriter) (*streamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &streamWriter{w: w, flusher: flusher}, nil
}

// writeFrame marshals v and sends it as one SSE frame, flushing
// immediately so chunks reach the client as they are produced.
func (sw *streamWriter) writeFrame(ctx context.Context, v any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	sw.flusher.Flush()
	return nil
}

// writeDone sends the terminal [DONE] frame.
func (sw *streamWriter) writeDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", doneSentinel); err != nil {
		return fmt.Errorf("write done frame: %w", err)
	}
	sw.flusher.Flush()
	return nil
}
