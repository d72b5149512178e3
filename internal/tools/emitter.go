// Package tools provides the todo tool surface exposed to the agent: the
// invocation boundary that can never fail the model turn, and lifecycle
// events for streaming tool activity to clients.
package tools

import (
	"context"

	"github.com/firebase/genkit/go/ai"
)

// emitterKey uses an empty struct for a zero-allocation context key.
type emitterKey struct{}

// ToolEventEmitter receives tool lifecycle events.
//
// Usage:
//  1. The streaming layer creates an emitter bound to its event channel
//  2. It stores the emitter in context via ContextWithEmitter()
//  3. The wrapped tool retrieves it via EmitterFromContext()
//  4. ToolStart/ToolEnd fire around each tool execution
type ToolEventEmitter interface {
	// ToolStart signals that a tool started executing with the given input.
	ToolStart(name string, input any)

	// ToolEnd signals that a tool finished; output is the display string
	// handed back to the model.
	ToolEnd(name string, output string)
}

// EmitterFromContext retrieves the ToolEventEmitter from context. Returns
// nil if not set, so non-streaming call paths degrade to no events.
func EmitterFromContext(ctx context.Context) ToolEventEmitter {
	emitter, _ := ctx.Value(emitterKey{}).(ToolEventEmitter)
	return emitter
}

// ContextWithEmitter stores a ToolEventEmitter in context for per-request
// binding.
func ContextWithEmitter(ctx context.Context, emitter ToolEventEmitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// WithEvents wraps a typed tool handler to emit lifecycle events. The
// wrapped handler works directly with genkit.DefineTool(). If no emitter is
// in context the wrapper passes through to the original function.
func WithEvents[In any](name string, fn func(*ai.ToolContext, In) (string, error)) func(*ai.ToolContext, In) (string, error) {
	return func(ctx *ai.ToolContext, input In) (string, error) {
		emitter := EmitterFromContext(ctx.Context)

		if emitter != nil {
			emitter.ToolStart(name, input)
		}

		output, err := fn(ctx, input)

		if emitter != nil {
			if err != nil {
				emitter.ToolEnd(name, "Error: "+err.Error())
			} else {
				emitter.ToolEnd(name, output)
			}
		}

		return output, err
	}
}
