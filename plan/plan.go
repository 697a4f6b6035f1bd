// Package plan defines the Request/Intent/Task/Plan data model shared by
// the Planner, Router, Executor, and Orchestrator actors (section 3). It
// has no behavior of its own — it exists so those packages can depend on a
// common vocabulary without importing each other.
package plan

import (
	"time"

	"github.com/opencode-ai/orchestrator/contextstore"
)

// Mode is the processing mode a Request is routed through.
type Mode string

const (
	ModeChat         Mode = "chat"
	ModeThinking     Mode = "thinking"
	ModeKnowledge    Mode = "knowledge"
	ModeSearch       Mode = "search"
	ModeCode         Mode = "code"
	ModeDeepResearch Mode = "deep_research"
	ModeAuto         Mode = "auto"
)

// Attachment is an inline file reference carried in a Request's options.
type Attachment struct {
	Type     string
	MimeType string
	Base64   string
}

// Request is a user-originated work item, created by the façade and
// consumed exactly once by the Orchestrator.
type Request struct {
	ID          string
	TraceID     string
	Query       string
	Mode        Mode
	SessionID   string
	Options     map[string]any
	Attachments []Attachment
}

// Intent is the Orchestrator-internal lift of a Request into the actor
// world.
type Intent struct {
	Type       string
	Content    string
	Parameters map[string]any
	Context    *contextstore.Context
}

// Task is a unit of execution inside a Plan.
type Task struct {
	ID           string
	Tool         string
	Service      string
	Parameters   map[string]any
	Dependencies []string
	Description  string
	Timeout      time.Duration
}

// SpecialFlags are planner-detected short-circuit conditions.
type SpecialFlags struct {
	NeedsVision       bool
	NeedsFileAnalysis bool
}

// Plan is produced once per request by the Planner and is immutable
// thereafter.
type Plan struct {
	Analysis       string
	SubQuestions   []string
	Tasks          []Task
	ExecutionOrder []string
	Reasoning      string
	SpecialFlags   SpecialFlags
}

// TaskByID returns the task with the given id, or false.
func (p Plan) TaskByID(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
