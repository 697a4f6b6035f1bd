package orchestrator

import (
	"context"
	"fmt"

	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/executoractor"
	"github.com/opencode-ai/orchestrator/plan"
)

// runTasks executes p's tasks in ExecutionOrder, emitting ToolCall/ToolResult
// events around each one, and returns every result keyed by task ID.
// Grounded in original_source's _handle_plan task loop.
func (o *Orchestrator) runTasks(ctx context.Context, p plan.Plan, correlationID string, emit emitFunc) map[string]executoractor.Result {
	order := p.ExecutionOrder
	if len(order) == 0 {
		order = sortedTaskIDs(p)
	}

	results := make(map[string]executoractor.Result, len(p.Tasks))
	for _, taskID := range order {
		task, ok := p.TaskByID(taskID)
		if !ok {
			continue
		}

		emit(eventbus.Event{
			Type:    eventbus.ToolCall,
			Payload: eventbus.Payload{Content: task.Tool, Data: toolCallData(task)},
		})

		result := o.executor.Execute(ctx, task, correlationID)
		results[taskID] = result

		emit(eventbus.Event{
			Type:    eventbus.ToolResult,
			Payload: eventbus.Payload{Content: resultSummary(result), Data: toolResultData(result)},
		})
	}
	return results
}

func toolCallData(t plan.Task) eventbus.ToolCallData {
	data := eventbus.ToolCallData{Arguments: t.Parameters, Description: t.Description}
	if qs, ok := t.Parameters["queries"].([]string); ok {
		data.Queries = qs
	} else if q, ok := t.Parameters["query"].(string); ok && q != "" {
		data.Queries = []string{q}
	}
	return data
}

func resultSummary(r executoractor.Result) string {
	if !r.Success {
		return "task failed: " + r.Error
	}
	count := resultCount(r.Result)
	return fmt.Sprintf("found %d relevant result(s)", count)
}

func toolResultData(r executoractor.Result) eventbus.ToolResultData {
	return eventbus.ToolResultData{
		Preview:      previewOf(r.Result),
		ResultsCount: resultCount(r.Result),
	}
}

func resultCount(result map[string]any) int {
	items, ok := result["results"].([]any)
	if !ok {
		return 0
	}
	return len(items)
}

func previewOf(result map[string]any) string {
	s := fmt.Sprintf("%v", result)
	const max = 200
	if len(s) > max {
		return s[:max]
	}
	return s
}
