package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

// recordingEmitter captures lifecycle events in order.
type recordingEmitter struct {
	events []string
	inputs []any
}

func (r *recordingEmitter) ToolStart(name string, input any) {
	r.events = append(r.events, "start:"+name)
	r.inputs = append(r.inputs, input)
}

func (r *recordingEmitter) ToolEnd(name string, output string) {
	r.events = append(r.events, "end:"+name+":"+output)
}

func toolCtx(ctx context.Context) *ai.ToolContext {
	return &ai.ToolContext{Context: ctx}
}

func TestWithEvents_EmitsStartAndEnd(t *testing.T) {
	emitter := &recordingEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	wrapped := WithEvents("todo_manager", func(_ *ai.ToolContext, in Input) (string, error) {
		return "ok", nil
	})

	out, err := wrapped(toolCtx(ctx), Input{Action: ActionRead})
	if err != nil || out != "ok" {
		t.Fatalf("wrapped returned (%q, %v)", out, err)
	}

	if len(emitter.events) != 2 {
		t.Fatalf("events = %v", emitter.events)
	}
	if emitter.events[0] != "start:todo_manager" {
		t.Errorf("first event = %q", emitter.events[0])
	}
	if emitter.events[1] != "end:todo_manager:ok" {
		t.Errorf("second event = %q", emitter.events[1])
	}

	in, ok := emitter.inputs[0].(Input)
	if !ok || in.Action != ActionRead {
		t.Errorf("start input = %#v", emitter.inputs[0])
	}
}

func TestWithEvents_HandlerError(t *testing.T) {
	emitter := &recordingEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	wrapped := WithEvents("todo_manager", func(_ *ai.ToolContext, _ Input) (string, error) {
		return "", errors.New("boom")
	})

	if _, err := wrapped(toolCtx(ctx), Input{}); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if len(emitter.events) != 2 || emitter.events[1] != "end:todo_manager:Error: boom" {
		t.Errorf("events = %v", emitter.events)
	}
}

func TestWithEvents_NoEmitterInContext(t *testing.T) {
	wrapped := WithEvents("todo_manager", func(_ *ai.ToolContext, _ Input) (string, error) {
		return "ok", nil
	})

	// Must not panic without an emitter.
	out, err := wrapped(toolCtx(context.Background()), Input{})
	if err != nil || out != "ok" {
		t.Fatalf("wrapped returned (%q, %v)", out, err)
	}
}

func TestEmitterFromContext_Unset(t *testing.T) {
	if got := EmitterFromContext(context.Background()); got != nil {
		t.Errorf("expected nil emitter, got %#v", got)
	}
}
