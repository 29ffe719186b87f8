package agent

// EventType classifies engine stream events.
type EventType string

const (
	EventChunk      EventType = "chunk"       // model text fragment
	EventStatus     EventType = "status"      // ">>> [System]..." style line
	EventToolStart  EventType = "tool.start"  // about to execute a tool
	EventToolResult EventType = "tool.result" // tool finished
	EventError      EventType = "error"       // fatal turn error
	EventDone       EventType = "done"        // turn finished
)

// Event is one element of the engine's user-visible stream. The final
// reply is the concatenation of EventChunk texts; everything else is
// progress decoration.
type Event struct {
	Type    EventType `json:"type"`
	Text    string    `json:"text,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	IsError bool      `json:"is_error,omitempty"`
}
