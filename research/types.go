// Package research implements the Deep-Research Workflow (section 4.10):
// the multi-round pending -> running -> (completed|failed) state machine
// invoked when a Request's mode is deep_research, plus the pure-function
// citation analysis (research/citation) that can be run over any markdown
// deliverable. Grounded in original_source's deep-research module for the
// stage order and progress percentages, generalized from the teacher's
// runtime/agent/engine/inmem workflow-engine idiom (a done-channel "handle"
// per run, tracked in a status map) into a Workflow purpose-built for this
// fixed five-stage pipeline rather than a generic engine, since the spec
// pins the exact stages and their progress bounds.
package research

import "time"

// Status is a ResearchTask's lifecycle state. It advances monotonically:
// pending -> running -> (completed | failed).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepStatus is the outcome of one Step.
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
)

// Step is one recorded unit of work inside a ResearchTask's execution.
type Step struct {
	Step        string
	Status      StepStatus
	Result      string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Finding is one sub-question's answer, grounded in original_source's
// per-question retrieval+answering stage.
type Finding struct {
	Question     string
	Answer       string
	SourcesCount int
}

// SourceRef identifies a de-duplicated document source surfaced by a
// finding, matching retriever.SourceRef's shape so Workflow can dedupe
// across retriever calls without importing retriever's Chunk type.
type SourceRef struct {
	FileName  string
	PageLabel string
}

// Task is the durable state of one deep-research run (section 3's
// ResearchTask). Progress is non-decreasing and Status only ever
// transitions along pending -> running -> (completed|failed).
type Task struct {
	ID             string
	Topic          string
	DocumentFilter map[string][]string
	Status         Status
	Progress       int
	Steps          []Step
	Findings       []Finding
	Sources        []SourceRef
	Report         string
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// Summary is the list_tasks() projection of a Task.
type Summary struct {
	ID        string
	Topic     string
	Status    Status
	Progress  int
	CreatedAt time.Time
}

func (t *Task) summary() Summary {
	return Summary{ID: t.ID, Topic: t.Topic, Status: t.Status, Progress: t.Progress, CreatedAt: t.CreatedAt}
}
