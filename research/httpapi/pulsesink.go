package httpapi

import (
	"context"
	"fmt"

	"github.com/opencode-ai/orchestrator/research"
	"github.com/opencode-ai/orchestrator/research/pulsebroker"
	"github.com/opencode-ai/orchestrator/telemetry"
)

// PulseStepSink publishes every research.Step to a Pulse stream named after
// its task, one event per step, so other orchestratord instances can
// observe a task's progress without sharing the process that is actually
// running it.
type PulseStepSink struct {
	client pulsebroker.Client
	log    telemetry.Logger
}

// NewPulseStepSink wraps client as a research.StepSink.
func NewPulseStepSink(client pulsebroker.Client, log telemetry.Logger) *PulseStepSink {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &PulseStepSink{client: client, log: log}
}

// Publish implements research.StepSink. Failures are logged, not returned,
// since a broker outage must not abort the research task itself — the step
// is already durable in the Workflow's in-process task map.
func (s *PulseStepSink) Publish(ctx context.Context, taskID string, step research.Step) {
	stream, err := s.client.Stream(streamName(taskID))
	if err != nil {
		s.log.Warn(ctx, "pulse stream unavailable", "task_id", taskID, "error", err)
		return
	}
	if _, err := stream.Add(ctx, step.Step, []byte(stepJSON(step))); err != nil {
		s.log.Warn(ctx, "pulse publish failed", "task_id", taskID, "error", err)
	}
}

func streamName(taskID string) string {
	return fmt.Sprintf("research/%s", taskID)
}

var _ research.StepSink = (*PulseStepSink)(nil)
