package orchestrator

import (
	"context"
	"fmt"

	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/plan"
)

// runSpecialTask handles the vision-analysis and file-analysis
// preprocessing short-circuits (original_source's _handle_vision_analysis /
// _handle_file_analysis). Unlike the original, which calls an OpenAI
// multimodal endpoint inline, this routes the single generated task through
// the same Executor/Gateway path as every other task: the "vision" and
// "fileanalysis" services behind the Gateway own the provider-specific
// multimodal call, keeping the Orchestrator provider-agnostic.
func (o *Orchestrator) runSpecialTask(ctx context.Context, p plan.Plan, correlationID string, emit emitFunc) error {
	if len(p.Tasks) == 0 {
		emit(eventbus.Event{Type: eventbus.ErrorType, Payload: eventbus.Payload{Content: "no attachment available to analyze"}})
		emit(eventbus.Event{Type: eventbus.Done})
		return nil
	}

	task := p.Tasks[0]
	kind := "image"
	if p.SpecialFlags.NeedsFileAnalysis {
		kind = "file"
	}
	emit(eventbus.Event{
		Type:    eventbus.Thinking,
		Payload: eventbus.Payload{Content: fmt.Sprintf("analyzing attached %s...", kind)},
	})

	result := o.executor.Execute(ctx, task, correlationID)
	if !result.Success {
		emit(eventbus.Event{Type: eventbus.Answer, Payload: eventbus.Payload{Content: fmt.Sprintf("%s analysis failed: %s", kind, result.Error)}})
		emit(eventbus.Event{Type: eventbus.Done})
		return nil
	}

	answer, _ := result.Result["answer"].(string)
	if answer == "" {
		answer = fmt.Sprintf("%s analysis completed with no textual answer.", kind)
	}
	emit(eventbus.Event{Type: eventbus.Answer, Payload: eventbus.Payload{Content: answer}})
	emit(eventbus.Event{Type: eventbus.Done})
	return nil
}
