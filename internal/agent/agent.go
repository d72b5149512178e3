// Package agent runs the conversational todo agent and exposes each chat
// turn as an ordered stream of events.
//
// The stream is pull-based: events travel over an unbuffered channel, so
// production advances only as fast as the consumer drains it. A turn always
// opens with a step event, then interleaves content deltas and tool
// lifecycle events in execution order, and ends when the model completes or
// the first error occurs.
package agent

import (
	"context"
	"fmt"
	"iter"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/taskwell/taskwell/internal/log"
	"github.com/taskwell/taskwell/internal/tools"
)

// StepAgent is the phase name announced at the start of every turn.
const StepAgent = "agent"

const systemPrompt = `You are Taskwell, a friendly assistant that manages the user's todo list.

You have one tool, todo_manager, which can create, read, update and delete todos.
Use it whenever the user asks about their tasks. When an operation needs a todo id,
call the tool with action "read" first to find it. Priorities range from 1 (lowest)
to 5 (highest).

Answer concisely and confirm what you changed. If a tool reports an error, explain
the problem in plain language instead of retrying blindly.`

// HistoryStore loads stored conversation history as model messages.
type HistoryStore interface {
	History(ctx context.Context, threadID string, limit int32) ([]*ai.Message, error)
}

// Config contains all required parameters for the agent.
type Config struct {
	Genkit  *genkit.Genkit
	History HistoryStore
	Logger  log.Logger
	Tools   []ai.Tool // Pre-registered tools

	ModelName    string // Provider-qualified model name (e.g. "googleai/gemini-2.5-flash")
	Temperature  float32
	MaxTurns     int   // Maximum agentic loop turns
	HistoryLimit int32 // Stored messages loaded as context per turn

	RetryConfig RetryConfig   // Zero value uses defaults
	RateLimiter *rate.Limiter // Optional proactive rate limiting
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return fmt.Errorf("genkit instance is required")
	}
	if cfg.History == nil {
		return fmt.Errorf("history store is required")
	}
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if len(cfg.Tools) == 0 {
		return fmt.Errorf("at least one tool is required")
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if cfg.MaxTurns < 1 {
		return fmt.Errorf("max turns must be positive")
	}
	if cfg.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be positive")
	}
	return nil
}

// Agent executes chat turns against the model. It is stateless across
// turns; all configuration is captured immutably at construction, so a
// single Agent is safe for concurrent requests.
type Agent struct {
	modelName   string
	temperature float32
	maxTurns    int
	histLimit   int32

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	g        *genkit.Genkit
	history  HistoryStore
	logger   log.Logger
	tools    []ai.Tool
	toolRefs []ai.ToolRef
}

// New creates an agent from the given configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	retryCfg := cfg.RetryConfig
	if retryCfg.MaxRetries == 0 && retryCfg.InitialInterval == 0 {
		retryCfg = DefaultRetryConfig()
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
	}

	return &Agent{
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTurns:    cfg.MaxTurns,
		histLimit:   cfg.HistoryLimit,
		retryConfig: retryCfg,
		rateLimiter: cfg.RateLimiter,
		g:           cfg.Genkit,
		history:     cfg.History,
		logger:      cfg.Logger.With("component", "agent"),
		tools:       cfg.Tools,
		toolRefs:    toolRefs,
	}, nil
}

// ToolCount returns the number of tools available to the agent.
func (a *Agent) ToolCount() int {
	return len(a.tools)
}

// StreamEvents runs one chat turn and returns its event stream. Events
// arrive in execution order; iteration ends after the last event, or after
// a single terminal error. Breaking out of the loop cancels the turn.
func (a *Agent) StreamEvents(ctx context.Context, threadID, message string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		turnCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		events := make(chan Event) // unbuffered: consumer-paced
		done := make(chan error, 1)

		go func() {
			done <- a.run(turnCtx, threadID, message, events)
		}()

		for {
			select {
			case ev := <-events:
				if !yield(ev, nil) {
					return
				}
			case err := <-done:
				if err != nil {
					a.logger.Error("agent turn failed", "thread_id", threadID, "error", err)
					yield(Event{}, err)
				}
				return
			}
		}
	}
}

// run executes the model call, pushing events to the channel. Sends are
// unbuffered, so by the time run returns every emitted event has been
// received or the context is gone.
func (a *Agent) run(ctx context.Context, threadID, message string, events chan<- Event) error {
	history, err := a.history.History(ctx, threadID, a.histLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	messages := buildMessages(history, message)

	if err := emit(ctx, events, Event{Type: EventStep, Step: StepAgent}); err != nil {
		return err
	}

	// Tools executed during this turn report lifecycle events through the
	// same channel.
	ctx = tools.ContextWithEmitter(ctx, &channelEmitter{ctx: ctx, events: events})

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(a.temperature),
		}),
		ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return emit(cbCtx, events, Event{Type: EventContentDelta, Delta: text})
		}),
	}

	if _, err := a.generateWithRetry(ctx, opts); err != nil {
		return err
	}
	return nil
}

// emit sends an event unless the context ends first.
func emit(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildMessages assembles the model context: a deep copy of stored history
// with the current input appended. The orchestrator persists the user
// message before streaming, so a trailing identical user turn in history is
// dropped rather than duplicated.
func buildMessages(history []*ai.Message, input string) []*ai.Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == ai.RoleUser && last.Text() == input {
			history = history[:n-1]
		}
	}
	messages := deepCopyMessages(history)
	return append(messages, ai.NewUserMessage(ai.NewTextPart(input)))
}

// channelEmitter bridges tool lifecycle callbacks onto the event channel.
type channelEmitter struct {
	ctx    context.Context //nolint:containedctx // bound to one turn by construction
	events chan<- Event
}

func (e *channelEmitter) ToolStart(name string, input any) {
	_ = emit(e.ctx, e.events, Event{Type: EventToolStart, Tool: name, Input: input})
}

func (e *channelEmitter) ToolEnd(name string, output string) {
	_ = emit(e.ctx, e.events, Event{Type: EventToolEnd, Tool: name, Output: output})
}

// deepCopyMessages creates independent copies of Message and Part structs.
// Genkit modifies message content in place while rendering, so concurrent
// turns sharing history objects would race without this.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
