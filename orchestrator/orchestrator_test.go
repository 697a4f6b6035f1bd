package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/contextstore"
	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/executoractor"
	"github.com/opencode-ai/orchestrator/memoryactor"
	"github.com/opencode-ai/orchestrator/plan"
	"github.com/opencode-ai/orchestrator/planneractor"
)

type fakePlanner struct {
	plan plan.Plan
}

func (f *fakePlanner) GeneratePlan(context.Context, planneractor.Request) plan.Plan {
	return f.plan
}

type fakeExecutor struct {
	results map[string]executoractor.Result
	delay   time.Duration
}

func (f *fakeExecutor) Execute(ctx context.Context, task plan.Task, correlationID string) executoractor.Result {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return executoractor.Result{TaskID: task.ID, Success: false, Error: ctx.Err().Error()}
		}
	}
	if r, ok := f.results[task.ID]; ok {
		return r
	}
	return executoractor.Result{TaskID: task.ID, Success: true, Result: map[string]any{}}
}

func drain(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for evt := range ch {
		out = append(out, evt)
	}
	return out
}

func typesOf(events []eventbus.Event) []eventbus.Type {
	out := make([]eventbus.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestProcessIntentRunsTaskLoopAndSynthesizesWithoutLLM(t *testing.T) {
	p := plan.Plan{
		Analysis:       "looking into it",
		Tasks:          []plan.Task{{ID: "task_1", Tool: "rag_ask", Parameters: map[string]any{"question": "x"}}},
		ExecutionOrder: []string{"task_1"},
	}
	executor := &fakeExecutor{results: map[string]executoractor.Result{
		"task_1": {
			TaskID:  "task_1",
			Success: true,
			Result: map[string]any{
				"results": []any{map[string]any{"text": "this passage is definitely long enough to count"}},
				"sources": []any{map[string]any{"file_name": "doc.pdf", "page_label": "3"}},
			},
		},
	}}

	o := New(&fakePlanner{plan: p}, executor, memoryactor.New(), contextstore.New(), nil, WithTimeout(2*time.Second))
	events := drain(o.ProcessIntent(context.Background(), plan.Request{ID: "r1", Query: "what is x", SessionID: "s1"}))

	ts := typesOf(events)
	require.Contains(t, ts, eventbus.Thinking)
	require.Contains(t, ts, eventbus.Plan)
	require.Contains(t, ts, eventbus.ToolCall)
	require.Contains(t, ts, eventbus.ToolResult)
	require.Contains(t, ts, eventbus.Answer)
	require.Contains(t, ts, eventbus.Source)
	require.Equal(t, eventbus.Done, ts[len(ts)-1])
}

func TestProcessIntentNoTasksAnswersDirectly(t *testing.T) {
	p := plan.Plan{Analysis: "just a direct reply"}
	o := New(&fakePlanner{plan: p}, &fakeExecutor{}, memoryactor.New(), contextstore.New(), nil)
	events := drain(o.ProcessIntent(context.Background(), plan.Request{Query: "hi"}))

	require.Len(t, events, 3)
	require.Equal(t, eventbus.Thinking, events[0].Type)
	require.Equal(t, eventbus.Answer, events[1].Type)
	require.Equal(t, "just a direct reply", events[1].Payload.Content)
	require.Equal(t, eventbus.Done, events[2].Type)
}

func TestProcessIntentVisionShortCircuitRoutesThroughExecutor(t *testing.T) {
	p := plan.Plan{
		Tasks:        []plan.Task{{ID: "task_1", Tool: "vision_analysis"}},
		SpecialFlags: plan.SpecialFlags{NeedsVision: true},
	}
	executor := &fakeExecutor{results: map[string]executoractor.Result{
		"task_1": {TaskID: "task_1", Success: true, Result: map[string]any{"answer": "a cat"}},
	}}
	o := New(&fakePlanner{plan: p}, executor, memoryactor.New(), contextstore.New(), nil)
	events := drain(o.ProcessIntent(context.Background(), plan.Request{Query: "what is this", Attachments: []plan.Attachment{{Type: "image"}}}))

	var answer string
	for _, e := range events {
		if e.Type == eventbus.Answer {
			answer = e.Payload.Content
		}
	}
	require.Equal(t, "a cat", answer)
}

func TestProcessIntentTimeoutEmitsErrorAndDone(t *testing.T) {
	p := plan.Plan{
		Tasks:          []plan.Task{{ID: "task_1", Tool: "rag_ask"}},
		ExecutionOrder: []string{"task_1"},
	}
	executor := &fakeExecutor{delay: 50 * time.Millisecond}
	o := New(&fakePlanner{plan: p}, executor, memoryactor.New(), contextstore.New(), nil, WithTimeout(5*time.Millisecond))
	events := drain(o.ProcessIntent(context.Background(), plan.Request{Query: "slow"}))

	require.NotEmpty(t, events)
	require.Equal(t, eventbus.ErrorType, events[len(events)-2].Type)
	require.Equal(t, eventbus.Done, events[len(events)-1].Type)
}

func TestProcessIntentPublishesToBusWhenConfigured(t *testing.T) {
	bus := eventbus.New(32)
	var seen []eventbus.Type
	bus.OnAny("test-observer", func(_ context.Context, evt eventbus.Event) ([]eventbus.Event, error) {
		seen = append(seen, evt.Type)
		return nil, nil
	})

	p := plan.Plan{Analysis: "ok"}
	o := New(&fakePlanner{plan: p}, &fakeExecutor{}, memoryactor.New(), contextstore.New(), bus)
	drain(o.ProcessIntent(context.Background(), plan.Request{Query: "hi"}))

	require.Contains(t, seen, eventbus.Answer)
	require.Contains(t, seen, eventbus.Done)
}
