// Package temporal offers a durable, crash-resumable alternative to
// research.Workflow backed by go.temporal.io/sdk, for deployments that need
// research runs to survive process restarts. research.Workflow (in-memory)
// remains the default and the one exercised by the core package's unit
// tests; this package is grounded directly in the teacher's
// runtime/agent/engine/temporal adapter, reusing its OTEL-instrumented
// client/worker lifecycle wiring rather than its generic
// workflow/activity-registration engine abstraction, since this package
// needs exactly one fixed workflow rather than a registry of arbitrary ones.
package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/opencode-ai/orchestrator/research"
)

// WorkflowName is the Temporal workflow type name registered for deep
// research runs.
const WorkflowName = "DeepResearchWorkflow"

// activityStartToClose bounds each individual activity call. LLM and
// retriever calls are I/O-bound collaborator calls per section 5's
// suspension-point list, so each gets its own timeout independent of the
// overall research run.
const activityStartToClose = 2 * time.Minute

// Input starts one durable research run.
type Input struct {
	Topic          string
	DocumentFilter map[string][]string
}

// Output is the terminal result of a durable research run.
type Output struct {
	Report  string
	Sources []research.SourceRef
	Status  research.Status
}

func activityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{StartToCloseTimeout: activityStartToClose})
}

// RunResearch is the Temporal workflow function implementing the same
// five-stage pipeline as research.Workflow.run, with each stage's
// LLM/retriever work delegated to an Activities method so Temporal can
// retry and replay it independently of the workflow's own state.
func RunResearch(ctx workflow.Context, input Input) (*Output, error) {
	ctx = activityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var a *Activities

	var questions []string
	if err := workflow.ExecuteActivity(ctx, a.GenerateSubQuestions, input.Topic).Get(ctx, &questions); err != nil {
		return nil, fmt.Errorf("temporal research: sub-question generation: %w", err)
	}
	logger.Info("sub-questions generated", "count", len(questions))

	var findings []research.Finding
	var sources []research.SourceRef
	for _, q := range questions {
		var step AnswerResult
		if err := workflow.ExecuteActivity(ctx, a.AnswerQuestion, AnswerInput{Question: q, Filter: input.DocumentFilter}).Get(ctx, &step); err != nil {
			return nil, fmt.Errorf("temporal research: answering %q: %w", q, err)
		}
		findings = append(findings, step.Finding)
		sources = mergeSources(sources, step.Sources)
	}

	var extra []string
	if err := workflow.ExecuteActivity(ctx, a.ReviewProgress, ReviewInput{Topic: input.Topic, Findings: findings}).Get(ctx, &extra); err != nil {
		return nil, fmt.Errorf("temporal research: progress review: %w", err)
	}
	for _, q := range extra {
		var step AnswerResult
		if err := workflow.ExecuteActivity(ctx, a.AnswerQuestion, AnswerInput{Question: q, Filter: input.DocumentFilter}).Get(ctx, &step); err != nil {
			return nil, fmt.Errorf("temporal research: answering review query %q: %w", q, err)
		}
		findings = append(findings, step.Finding)
		sources = mergeSources(sources, step.Sources)
	}

	var report string
	if err := workflow.ExecuteActivity(ctx, a.ComposeReport, ReportInput{Topic: input.Topic, Findings: findings, Sources: sources}).Get(ctx, &report); err != nil {
		return nil, fmt.Errorf("temporal research: report composition: %w", err)
	}

	return &Output{Report: report, Sources: sources, Status: research.StatusCompleted}, nil
}

func mergeSources(existing, fresh []research.SourceRef) []research.SourceRef {
	seen := make(map[research.SourceRef]struct{}, len(existing))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	out := existing
	for _, s := range fresh {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
