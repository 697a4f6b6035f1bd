package eventbus

// The structs below are optional, typed shapes for Payload.Data on the
// orchestrator's well-known event types. Publishers may populate Data with
// one of these directly; subscribers that want stronger typing than `any`
// type-assert it back out. Grounded in original_source's _emit_planning_event
// / _emit_generating_event / tool_result payload shapes.

// TaskSummary describes one planned task for a Plan event's Data.
type TaskSummary struct {
	ID          string
	Tool        string
	Description string
}

// PlanData is the Data payload for a Plan event: the task breakdown the
// Planner produced, plus the queries it will run.
type PlanData struct {
	Summary string
	Queries []string
	Tasks   []TaskSummary
}

// ToolCallData is the Data payload for a ToolCall event.
type ToolCallData struct {
	Arguments   map[string]any
	Queries     []string
	Description string
}

// ToolResultData is the Data payload for a ToolResult event.
type ToolResultData struct {
	Preview      string
	ResultsCount int
}

// GeneratingData is the Data payload for the Thinking event emitted just
// before the final-answer synthesis call.
type GeneratingData struct {
	ContextCount int
	SourceCount  int
}

// SourceData is the Data payload for a Source event.
type SourceData struct {
	Sources []SourceRef
}

// SourceRef identifies one cited document for a Source event.
type SourceRef struct {
	FileName  string
	PageLabel string
}
