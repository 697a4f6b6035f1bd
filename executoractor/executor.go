// Package executoractor implements the Executor Actor (section 4.6): a
// worker that executes one Task by calling the Gateway, with retry,
// per-task timeout, and backoff. Grounded in the teacher's
// runtime/toolregistry/executor.Executor for the constructor-injected,
// functional-options worker shape, generalized from the registry/Pulse
// result-stream wait to a direct Gateway call since this system's Gateway
// is synchronous.
package executoractor

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/orcherrors"
	"github.com/opencode-ai/orchestrator/plan"
	"github.com/opencode-ai/orchestrator/telemetry"
)

const (
	// DefaultTimeout is applied when a Task does not specify one.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
)

// Caller is the subset of the Gateway's call surface the Executor needs.
type Caller interface {
	Call(ctx context.Context, serviceID, method string, params map[string]any) (map[string]any, error)
}

// Resolver resolves a tool name to a service id when a Task does not
// already carry one (the Router Actor).
type Resolver interface {
	Resolve(tool string) (string, error)
}

// Result is what Execute returns for the ask-pattern caller, mirroring the
// task_result event sent to the parent.
type Result struct {
	TaskID  string
	Result  map[string]any
	Success bool
	Error   string
}

// Executor processes one Task at a time against the Gateway.
type Executor struct {
	gateway        Caller
	router         Resolver
	bus            *eventbus.Bus
	defaultTimeout time.Duration
	maxRetries     int
	log            telemetry.Logger
	tracer         telemetry.Tracer
	sleep          func(time.Duration)
}

// Option configures an Executor.
type Option func(*Executor)

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) { e.defaultTimeout = d }
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = n }
}

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithTracer attaches a Tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// withSleep injects a deterministic sleep function for tests.
func withSleep(fn func(time.Duration)) Option {
	return func(e *Executor) { e.sleep = fn }
}

// New constructs an Executor. bus is optional: when nil, task_result events
// are not emitted and only the returned Result carries the outcome.
func New(gateway Caller, router Resolver, bus *eventbus.Bus, opts ...Option) *Executor {
	e := &Executor{
		gateway:        gateway,
		router:         router,
		bus:            bus,
		defaultTimeout: DefaultTimeout,
		maxRetries:     DefaultMaxRetries,
		log:            telemetry.NewNoopLogger(),
		tracer:         telemetry.NewNoopTracer(),
		sleep:          time.Sleep,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs task to completion, retrying transient failures up to
// maxRetries times with attempt*1s backoff, and returns the outcome. On
// success it also emits a task_result event to bus carrying correlationID,
// matching the actor's "return to caller, also publish to parent" ask/tell
// hybrid.
func (e *Executor) Execute(ctx context.Context, task plan.Task, correlationID string) Result {
	ctx, span := e.tracer.Start(ctx, "executoractor.Execute")
	defer span.End()

	serviceID := task.Service
	if serviceID == "" {
		resolved, err := e.router.Resolve(task.Tool)
		if err != nil {
			return Result{TaskID: task.ID, Success: false, Error: err.Error()}
		}
		serviceID = resolved
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		result, err := e.callWithTimeout(ctx, serviceID, task.Tool, task.Parameters, timeout)
		if err == nil {
			e.publishResult(ctx, task.ID, correlationID, result, true, "")
			return Result{TaskID: task.ID, Result: result, Success: true}
		}
		lastErr = err
		e.log.Warn(ctx, "executoractor: task attempt failed", "task_id", task.ID, "attempt", attempt, "error", err.Error())
		if !orcherrors.IsRetryable(err) {
			break
		}
		if attempt < e.maxRetries {
			e.sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	errMsg := lastErr.Error()
	e.publishResult(ctx, task.ID, correlationID, nil, false, errMsg)
	return Result{TaskID: task.ID, Success: false, Error: errMsg}
}

func (e *Executor) callWithTimeout(ctx context.Context, serviceID, method string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type callOutcome struct {
		result map[string]any
		err    error
	}
	done := make(chan callOutcome, 1)
	go func() {
		result, err := e.gateway.Call(callCtx, serviceID, method, params)
		done <- callOutcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		return nil, orcherrors.Wrap(orcherrors.KindTimeout, fmt.Errorf("executoractor: %s.%s timed out after %s", serviceID, method, timeout))
	case out := <-done:
		return out.result, out.err
	}
}

func (e *Executor) publishResult(ctx context.Context, taskID, correlationID string, result map[string]any, success bool, errMsg string) {
	if e.bus == nil {
		return
	}
	payload := eventbus.Payload{Data: map[string]any{
		"task_id": taskID,
		"result":  result,
		"success": success,
	}}
	if errMsg != "" {
		payload.Content = errMsg
	}
	e.bus.Publish(ctx, eventbus.Event{
		Type:          eventbus.ToolResult,
		Payload:       payload,
		Timestamp:     time.Now(),
		Source:        "executoractor",
		CorrelationID: correlationID,
	})
}
