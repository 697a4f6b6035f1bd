// Package orchestrator implements the Orchestrator Actor (section 4.9): the
// supervisor that turns one user Request into a stream of progress Events by
// coordinating the Planner, Router/Executor, Memory, and Gateway. Grounded in
// original_source's OrchestratorActor.process_intent/_handle_plan/
// _generate_final_answer state machine, with the RESTART supervision
// strategy from its SupervisorActor base (actors/base.py,
// SupervisorStrategy.RESTART, max_restarts=3) reframed as a guarded retry
// around one request's task-execution pipeline rather than literal
// actor-process restarts, since this is a synchronous call graph, not an
// async actor mailbox.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opencode-ai/orchestrator/contextstore"
	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/executoractor"
	"github.com/opencode-ai/orchestrator/llm"
	"github.com/opencode-ai/orchestrator/memoryactor"
	"github.com/opencode-ai/orchestrator/plan"
	"github.com/opencode-ai/orchestrator/planneractor"
	"github.com/opencode-ai/orchestrator/telemetry"
)

// DefaultProcessingTimeout bounds an entire ProcessIntent stream, matching
// process_intent's 60-second asyncio.wait_for cap.
const DefaultProcessingTimeout = 60 * time.Second

// DefaultMaxRestarts is the supervision cap on retrying a crashed
// task-execution pipeline, matching SupervisorActor's max_restarts=3.
const DefaultMaxRestarts = 3

// DefaultEventBuffer sizes the channel returned by ProcessIntent.
const DefaultEventBuffer = 64

// Planner is the subset of planneractor.Planner the Orchestrator needs.
type Planner interface {
	GeneratePlan(ctx context.Context, req planneractor.Request) plan.Plan
}

// Executor is the subset of executoractor.Executor the Orchestrator needs.
type Executor interface {
	Execute(ctx context.Context, task plan.Task, correlationID string) executoractor.Result
}

// Orchestrator coordinates the Planner, Executor, Memory, and Context Store
// to turn a Request into a stream of Events.
type Orchestrator struct {
	planner   Planner
	executor  Executor
	memory    *memoryactor.Memory
	ctxStore  *contextstore.Store
	bus       *eventbus.Bus
	synth     llm.Client
	synthModel string

	timeout     time.Duration
	maxRestarts int
	eventBuffer int

	log    telemetry.Logger
	tracer telemetry.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSynthesizer sets the llm.Client used to compose the final answer from
// retrieved context. A nil synthesizer (the default) falls back to a plain
// concatenation of the retrieved passages.
func WithSynthesizer(client llm.Client, model string) Option {
	return func(o *Orchestrator) { o.synth = client; o.synthModel = model }
}

// WithTimeout overrides DefaultProcessingTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxRestarts overrides DefaultMaxRestarts.
func WithMaxRestarts(n int) Option {
	return func(o *Orchestrator) { o.maxRestarts = n }
}

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithTracer attaches a Tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// New constructs an Orchestrator. bus may be nil; events are always
// delivered on the channel ProcessIntent returns regardless, and are also
// published on bus when one is provided so other in-process observers (for
// example the research workflow's progress reporting) can subscribe.
func New(planner Planner, executor Executor, memory *memoryactor.Memory, ctxStore *contextstore.Store, bus *eventbus.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:     planner,
		executor:    executor,
		memory:      memory,
		ctxStore:    ctxStore,
		bus:         bus,
		timeout:     DefaultProcessingTimeout,
		maxRestarts: DefaultMaxRestarts,
		eventBuffer: DefaultEventBuffer,
		log:         telemetry.NewNoopLogger(),
		tracer:      telemetry.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessIntent is the external entry point (original_source's
// process_intent): it starts processing req asynchronously and returns a
// channel of Events. The channel is closed once a Done or Error event has
// been delivered, or the overall timeout elapses.
func (o *Orchestrator) ProcessIntent(ctx context.Context, req plan.Request) <-chan eventbus.Event {
	out := make(chan eventbus.Event, o.eventBuffer)
	correlationID := req.ID
	if correlationID == "" {
		correlationID = fmt.Sprintf("req-%s", uuid.NewString())
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)

	emit := func(evt eventbus.Event) {
		evt.Timestamp = time.Now()
		evt.Source = "orchestrator"
		evt.CorrelationID = correlationID
		if o.bus != nil {
			o.bus.Publish(ctx, evt)
		}
		select {
		case out <- evt:
		case <-ctx.Done():
		}
	}

	go func() {
		defer cancel()
		defer close(out)

		done := make(chan struct{})
		go func() {
			defer close(done)
			err := runSupervised(ctx, o.log, "intent-pipeline", o.maxRestarts, func() error {
				return o.runPipeline(ctx, req, correlationID, emit)
			})
			if err != nil {
				emit(eventbus.Event{Type: eventbus.ErrorType, Payload: eventbus.Payload{Content: err.Error()}})
				emit(eventbus.Event{Type: eventbus.Done})
			}
		}()

		select {
		case <-done:
		case <-ctx.Done():
			emit(eventbus.Event{Type: eventbus.ErrorType, Payload: eventbus.Payload{Content: "processing timeout"}})
			emit(eventbus.Event{Type: eventbus.Done})
		}
	}()

	return out
}

type emitFunc func(eventbus.Event)

// runPipeline implements the planning → (short-circuit | task loop) →
// synthesis state machine for one request.
func (o *Orchestrator) runPipeline(ctx context.Context, req plan.Request, correlationID string, emit emitFunc) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.process_intent")
	defer span.End()

	emit(eventbus.Event{Type: eventbus.Thinking, Payload: eventbus.Payload{Content: "analyzing request and planning tasks..."}})

	plannerReq := planneractor.Request{
		UserContent:  req.Query,
		SelectedDocs: selectedDocs(req),
	}
	if o.ctxStore != nil && req.SessionID != "" {
		sctx, err := o.ctxStore.GetOrCreate(ctx, req.SessionID, "")
		if err != nil {
			o.log.Warn(ctx, "orchestrator: context store unavailable", "error", err.Error())
		} else {
			plannerReq.History = historyFromContext(sctx)
		}
	}
	for _, a := range req.Attachments {
		plannerReq.Attachments = append(plannerReq.Attachments, planneractor.Attachment{Type: a.Type})
	}

	p := o.planner.GeneratePlan(ctx, plannerReq)

	if p.SpecialFlags.NeedsVision || p.SpecialFlags.NeedsFileAnalysis {
		return o.runSpecialTask(ctx, p, correlationID, emit)
	}

	if len(p.Tasks) == 0 {
		emit(eventbus.Event{Type: eventbus.Answer, Payload: eventbus.Payload{Content: p.Analysis}})
		emit(eventbus.Event{Type: eventbus.Done})
		o.recordConversation(ctx, req, p.Analysis)
		return nil
	}

	if p.Analysis != "" {
		emit(eventbus.Event{Type: eventbus.Thinking, Payload: eventbus.Payload{Content: p.Analysis}})
	}
	emit(eventbus.Event{Type: eventbus.Plan, Payload: eventbus.Payload{
		Content: fmt.Sprintf("executing %d task(s) to answer the question", len(p.Tasks)),
		Data:    planData(p),
	}})

	results := o.runTasks(ctx, p, correlationID, emit)

	answer, sources := o.synthesize(ctx, req, p, results, emit)
	o.recordConversation(ctx, req, answer)
	_ = sources
	return nil
}

func selectedDocs(req plan.Request) []string {
	v, ok := req.Options["selected_docs"]
	if !ok {
		return nil
	}
	docs, ok := v.([]string)
	if !ok {
		return nil
	}
	return docs
}

func historyFromContext(c *contextstore.Context) []planneractor.Message {
	out := make([]planneractor.Message, 0, len(c.History))
	for _, m := range c.History {
		out = append(out, planneractor.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func (o *Orchestrator) recordConversation(ctx context.Context, req plan.Request, answer string) {
	if o.ctxStore != nil && req.SessionID != "" {
		now := time.Now()
		if err := o.ctxStore.UpdateConversation(ctx, req.SessionID, contextstore.Message{Role: "user", Content: req.Query, Timestamp: now}); err != nil {
			o.log.Warn(ctx, "orchestrator: failed to record user turn", "error", err.Error())
		}
		if answer != "" {
			if err := o.ctxStore.UpdateConversation(ctx, req.SessionID, contextstore.Message{Role: "assistant", Content: answer, Timestamp: now}); err != nil {
				o.log.Warn(ctx, "orchestrator: failed to record assistant turn", "error", err.Error())
			}
		}
	}
	if o.memory != nil && req.SessionID != "" {
		o.memory.StoreSession(req.SessionID, memoryactor.Message{Role: "user", Content: req.Query, Timestamp: time.Now()})
	}
}

func planData(p plan.Plan) eventbus.PlanData {
	data := eventbus.PlanData{Summary: fmt.Sprintf("%d task(s) planned", len(p.Tasks))}
	for _, t := range p.Tasks {
		data.Tasks = append(data.Tasks, eventbus.TaskSummary{ID: t.ID, Tool: t.Tool, Description: t.Description})
		if qs, ok := t.Parameters["queries"].([]string); ok {
			data.Queries = append(data.Queries, qs...)
		} else if q, ok := t.Parameters["query"].(string); ok && q != "" {
			data.Queries = append(data.Queries, q)
		} else if q, ok := t.Parameters["question"].(string); ok && q != "" {
			data.Queries = append(data.Queries, q)
		}
	}
	return data
}

// sortedTaskIDs is used when a Plan's ExecutionOrder is empty (defensive:
// every path that builds a Plan in this repo populates ExecutionOrder, but
// a hand-built Plan from a caller might not).
func sortedTaskIDs(p plan.Plan) []string {
	ids := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}
