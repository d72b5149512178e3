package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ParseSSEFrames parses a data-only SSE stream into its payloads.
//
// The chat stream uses frames of the form "data: <payload>\n\n" with no
// event: field; the final payload is the literal "[DONE]" unless the stream
// ended with an error frame. Comment lines (":") are ignored. Any other
// line fails the test.
func ParseSSEFrames(t *testing.T, body string) []string {
	t.Helper()

	var frames []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		case line == "" || strings.HasPrefix(line, ":"):
			// Frame separator or comment.
		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}

	return frames
}
