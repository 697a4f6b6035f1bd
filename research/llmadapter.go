package research

import (
	"context"

	"github.com/opencode-ai/orchestrator/llm"
)

// ClientAdapter adapts an llm.Client into the Workflow's narrower LLM
// interface, mirroring llm.PlannerAdapter's role for planneractor.
type ClientAdapter struct {
	client llm.Client
	model  string
}

// NewClientAdapter wraps client for use as a Workflow's LLM collaborator.
func NewClientAdapter(client llm.Client, model string) *ClientAdapter {
	return &ClientAdapter{client: client, model: model}
}

// Generate issues a single-turn completion for prompt.
func (a *ClientAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Complete(ctx, &llm.Request{
		Model:    a.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

var _ LLM = (*ClientAdapter)(nil)
