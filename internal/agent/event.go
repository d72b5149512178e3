package agent

// EventType discriminates stream events. The set is closed: consumers
// switch exhaustively and drop anything they do not recognize.
type EventType int

// Stream event kinds.
const (
	// EventContentDelta carries an incremental chunk of model text.
	EventContentDelta EventType = iota

	// EventToolStart marks the start of a tool execution.
	EventToolStart

	// EventToolEnd marks the end of a tool execution.
	EventToolEnd

	// EventStep marks a pipeline phase transition.
	EventStep
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventContentDelta:
		return "content"
	case EventToolStart:
		return "tool_start"
	case EventToolEnd:
		return "tool_end"
	case EventStep:
		return "step"
	default:
		return "unknown"
	}
}

// Event is one element of the agent's ordered event stream. Only the
// fields relevant to Type are set.
type Event struct {
	Type EventType

	// Delta is the text chunk for EventContentDelta.
	Delta string

	// Tool and Input/Output describe tool lifecycle events.
	Tool   string
	Input  any
	Output string

	// Step names the phase for EventStep.
	Step string
}
