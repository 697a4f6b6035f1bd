package llm

import (
	"context"

	"github.com/opencode-ai/orchestrator/planneractor"
)

// PlannerAdapter narrows a Client down to planneractor.LLM's single-shot,
// non-streaming completion surface, so the Orchestrator can construct one
// concrete Client (or Fallback) and hand it to both the Planner and the
// synthesis stage without the Planner importing this package directly.
type PlannerAdapter struct {
	client Client
	model  string
}

// NewPlannerAdapter wraps client for use as a planneractor.LLM. model may be
// empty to use the underlying client's configured default.
func NewPlannerAdapter(client Client, model string) *PlannerAdapter {
	return &PlannerAdapter{client: client, model: model}
}

// Complete implements planneractor.LLM.
func (a *PlannerAdapter) Complete(ctx context.Context, systemPrompt string, history []planneractor.Message, userContent string) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	for _, h := range history {
		messages = append(messages, Message{Role: Role(h.Role), Content: h.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userContent})

	resp, err := a.client.Complete(ctx, &Request{
		Model:    a.model,
		System:   systemPrompt,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

var _ planneractor.LLM = (*PlannerAdapter)(nil)
