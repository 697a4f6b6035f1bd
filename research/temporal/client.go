package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Runner starts and observes durable research workflows on one task queue.
type Runner struct {
	client    client.Client
	taskQueue string
	worker    worker.Worker
}

// OTELClientOptions returns a copy of base with Temporal's OTEL tracing
// interceptor and metrics handler installed, so every workflow/activity
// this Runner drives is traced and measured the same way the rest of the
// service is. Grounded on the teacher's
// runtime/agent/engine/temporal.configureInstrumentation/
// applyClientInstrumentation, narrowed to this project's default-on case
// (the teacher's DisableTracing/DisableMetrics toggles have no caller here
// that wants OTEL off).
func OTELClientOptions(base client.Options) (client.Options, error) {
	tracer, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
	if err != nil {
		return base, fmt.Errorf("temporal research: configure tracing interceptor: %w", err)
	}
	base.Interceptors = append(base.Interceptors, tracer)
	if base.MetricsHandler == nil {
		base.MetricsHandler = temporalotel.NewMetricsHandler(temporalotel.MetricsHandlerOptions{})
	}
	return base, nil
}

// NewRunner constructs a Runner over an already-connected Temporal client
// and registers the research workflow and its activities on taskQueue. The
// worker side carries the same OTEL tracing interceptor as
// OTELClientOptions installs on the client, matching the teacher's
// applyWorkerInstrumentation (the worker doesn't take its own
// MetricsHandler — that rides on the client it was built from).
func NewRunner(c client.Client, taskQueue string, activities *Activities) (*Runner, error) {
	tracer, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
	if err != nil {
		return nil, fmt.Errorf("temporal research: configure worker tracing interceptor: %w", err)
	}
	w := worker.New(c, taskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{tracer},
	})
	w.RegisterWorkflowWithOptions(RunResearch, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(activities)
	return &Runner{client: c, taskQueue: taskQueue, worker: w}, nil
}

// Start launches the worker loop; it blocks until the process receives an
// interrupt signal.
func (r *Runner) Start() error {
	return r.worker.Run(worker.InterruptCh())
}

// StartResearch starts one durable research run and returns its workflow id.
func (r *Runner) StartResearch(ctx context.Context, id string, input Input) (string, error) {
	run, err := r.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: r.taskQueue,
	}, WorkflowName, input)
	if err != nil {
		return "", fmt.Errorf("temporal research: start workflow: %w", err)
	}
	return run.GetID(), nil
}

// GetResult blocks until the workflow identified by id completes and
// returns its Output.
func (r *Runner) GetResult(ctx context.Context, id string) (*Output, error) {
	run := r.client.GetWorkflow(ctx, id, "")
	var out Output
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("temporal research: get result: %w", err)
	}
	return &out, nil
}
