// Package planneractor implements the Planner Actor (section 4.8): it
// turns a user request and conversation history into a dependency-ordered
// Plan via a templated LLM call, with preprocessing short-circuits for
// attachments and a rule-based fallback when no LLM is available or the
// call fails. Grounded in original_source's PlannerActor for the prompt
// shape, short-circuit flags, and post-validation/topological-sort
// behavior, and in the teacher's functional-options actor construction.
package planneractor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/opencode-ai/orchestrator/plan"
	"github.com/opencode-ai/orchestrator/planneractor/rulebased"
	"github.com/opencode-ai/orchestrator/telemetry"
)

// Message is one turn of conversation history fed to the planning prompt.
type Message struct {
	Role    string
	Content string
}

// LLM is the minimal completion surface the Planner needs. It is defined
// here rather than imported from the llm package so planneractor has no
// dependency on a specific provider wiring; llm.PlannerAdapter adapts an
// llm.Client to it.
type LLM interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, userContent string) (string, error)
}

// Attachment mirrors plan.Attachment for the subset the Planner inspects.
type Attachment struct {
	Type string // "image" or "file"
}

// Request is the input to GeneratePlan.
type Request struct {
	UserContent  string
	History      []Message
	SelectedDocs []string
	Attachments  []Attachment
}

// Planner produces Plans from Requests.
type Planner struct {
	llm LLM
	log telemetry.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// New constructs a Planner. A nil llm means every request falls straight
// to the rule-based fallback.
func New(llm LLM, opts ...Option) *Planner {
	p := &Planner{llm: llm, log: telemetry.NewNoopLogger()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// GeneratePlan implements the full preprocessing → LLM-or-fallback →
// post-validation pipeline described in section 4.8.
func (p *Planner) GeneratePlan(ctx context.Context, req Request) plan.Plan {
	if hasAttachmentType(req.Attachments, "image") {
		return singleTaskPlan("vision_analysis", map[string]any{"query": req.UserContent}, plan.SpecialFlags{NeedsVision: true})
	}
	if hasAttachmentType(req.Attachments, "file") {
		return singleTaskPlan("file_analysis", map[string]any{"query": req.UserContent}, plan.SpecialFlags{NeedsFileAnalysis: true})
	}

	// fallback runs the rule-based planner and resolves each task's service
	// from the tool table, as validateAndEnrich does for LLM plans.
	fallback := func() plan.Plan {
		fp := rulebased.Generate(req.UserContent, req.SelectedDocs)
		for i := range fp.Tasks {
			if spec, ok := KnownTools[fp.Tasks[i].Tool]; ok {
				fp.Tasks[i].Service = spec.Service
			}
		}
		return fp
	}

	if p.llm == nil {
		return fallback()
	}

	raw, err := p.llm.Complete(ctx, planningSystemPrompt(), req.History, req.UserContent)
	if err != nil {
		p.log.Warn(ctx, "planneractor: llm planning failed, falling back", "error", err.Error())
		return fallback()
	}

	parsed, err := parsePlanJSON(raw)
	if err != nil {
		p.log.Warn(ctx, "planneractor: llm returned invalid plan json, falling back", "error", err.Error())
		return fallback()
	}

	return validateAndEnrich(parsed, req.SelectedDocs)
}

func hasAttachmentType(attachments []Attachment, kind string) bool {
	for _, a := range attachments {
		if a.Type == kind {
			return true
		}
	}
	return false
}

func singleTaskPlan(tool string, params map[string]any, flags plan.SpecialFlags) plan.Plan {
	task := plan.Task{ID: "task_1", Tool: tool, Parameters: params, Description: "preprocessing short-circuit: " + tool}
	if spec, ok := KnownTools[tool]; ok {
		task.Service = spec.Service
	}
	return plan.Plan{
		Tasks:          []plan.Task{task},
		ExecutionOrder: []string{"task_1"},
		SpecialFlags:   flags,
	}
}

// rawPlan mirrors the JSON object the LLM is instructed to produce.
type rawPlan struct {
	Analysis       string          `json:"analysis"`
	SubQuestions   []string        `json:"sub_questions"`
	Tasks          []rawTask       `json:"tasks"`
	ExecutionOrder []string        `json:"execution_order"`
	Reasoning      string          `json:"reasoning"`
}

type rawTask struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Service      string         `json:"service"`
	Parameters   map[string]any `json:"parameters"`
	Dependencies []string       `json:"dependencies"`
	Description  string         `json:"description"`
}

func parsePlanJSON(raw string) (rawPlan, error) {
	var p rawPlan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return rawPlan{}, fmt.Errorf("planneractor: parse plan json: %w", err)
	}
	return p, nil
}

// validateAndEnrich fills in missing task ids/descriptions, resolves each
// task's service from the tool table, injects selected-document filters
// into RAG tool parameters, and computes execution_order via topological
// sort when the LLM did not supply one.
func validateAndEnrich(raw rawPlan, selectedDocs []string) plan.Plan {
	var filters map[string]any
	if len(selectedDocs) > 0 {
		filters = map[string]any{"file_name": selectedDocs}
	}

	tasks := make([]plan.Task, len(raw.Tasks))
	for i, rt := range raw.Tasks {
		t := plan.Task{
			ID:           rt.ID,
			Tool:         rt.Tool,
			Service:      rt.Service,
			Parameters:   rt.Parameters,
			Dependencies: rt.Dependencies,
			Description:  rt.Description,
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("task_%d", i+1)
		}
		if t.Description == "" {
			t.Description = "execute " + t.Tool
		}
		if spec, ok := KnownTools[t.Tool]; ok && t.Service == "" {
			t.Service = spec.Service
		}
		if filters != nil && isRAGTool(t.Tool) {
			if t.Parameters == nil {
				t.Parameters = make(map[string]any)
			}
			t.Parameters["filters"] = filters
		}
		tasks[i] = t
	}

	order := raw.ExecutionOrder
	if len(order) == 0 {
		order = topologicalOrder(tasks)
	}

	return plan.Plan{
		Analysis:       raw.Analysis,
		SubQuestions:   raw.SubQuestions,
		Tasks:          tasks,
		ExecutionOrder: order,
		Reasoning:      raw.Reasoning,
	}
}

func isRAGTool(tool string) bool {
	return tool == "rag_search" || tool == "rag_ask" || tool == "rag_search_multiple"
}

// topologicalOrder runs Kahn's algorithm over tasks' dependency lists,
// breaking cycles by removing the lexicographically first remaining id,
// per the post-validation contract.
func topologicalOrder(tasks []plan.Task) []string {
	if len(tasks) == 0 {
		return nil
	}
	depsByID := make(map[string][]string, len(tasks))
	remaining := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		depsByID[t.ID] = t.Dependencies
		remaining[t.ID] = struct{}{}
	}

	var order []string
	for len(remaining) > 0 {
		var ready []string
		for id := range remaining {
			blocked := false
			for _, dep := range depsByID[id] {
				if _, stillRemaining := remaining[dep]; stillRemaining {
					blocked = true
					break
				}
			}
			if !blocked {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Cycle: force-remove the lexicographically first remaining id.
			var ids []string
			for id := range remaining {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			ready = []string{ids[0]}
		}
		sort.Strings(ready)
		for _, id := range ready {
			order = append(order, id)
			delete(remaining, id)
		}
	}
	return order
}

func planningSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an expert task planner. Decompose the user's request into a dependency-ordered sequence of tool calls. ")
	b.WriteString("Respond with strict JSON matching {analysis, sub_questions, tasks: [{id, tool, parameters, dependencies, description}], execution_order, reasoning}. ")
	b.WriteString("Available tools:\n")
	names := make([]string, 0, len(KnownTools))
	for name := range KnownTools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := KnownTools[name]
		b.WriteString(fmt.Sprintf("- %s (%s): %s, parameters: %s\n", name, spec.Service, spec.Description, strings.Join(spec.Parameters, ", ")))
	}
	return b.String()
}
