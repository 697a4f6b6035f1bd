// Package eventbus implements the in-process publish/subscribe bus that
// carries orchestrator progress events to typed handlers, wildcard
// observers, and a bounded history ring buffer. It is grounded in the
// teacher's runtime/agent/hooks.Bus synchronous fan-out design, generalized
// with a registration-ordered middleware chain and typed-vs-wildcard
// handler routing.
package eventbus

import "time"

// Type enumerates the kinds of events the orchestrator core emits.
type Type string

const (
	Thinking  Type = "thinking"
	Plan      Type = "plan"
	ToolCall  Type = "tool_call"
	ToolResult Type = "tool_result"
	Answer    Type = "answer"
	Source    Type = "source"
	Done      Type = "done"
	ErrorType Type = "error"
	Startup   Type = "startup"
	Shutdown  Type = "shutdown"
	Info      Type = "info"
)

// Payload carries the human-readable content and structured detail for an
// Event. Content is the primary message; Data holds type-specific detail
// (queries, results counts, sources, usage tokens, ...). Components that
// need a stronger guarantee than map[string]any can populate Data with one
// of the typed payload structs in payloads.go and type-assert it back out;
// Data remains `any` so genuinely opaque vendor data never forces a schema
// change here.
type Payload struct {
	Content string
	Data    any
}

// Event is the unit of observable progress delivered to callers.
type Event struct {
	Type          Type
	Payload       Payload
	Timestamp     time.Time
	Source        string
	CorrelationID string
}

// HandlerError wraps a panic or error raised by a subscriber so it can be
// re-surfaced as an ERROR event instead of crashing the bus.
type HandlerError struct {
	Message           string
	HandlerIdentifier string
	OriginalEvent     Event
}
