package llm

import (
	"context"
	"testing"

	"github.com/opencode-ai/orchestrator/planneractor"
	"github.com/stretchr/testify/require"
)

func TestPlannerAdapterForwardsSystemPromptAndHistory(t *testing.T) {
	fc := &fakeClient{resp: &Response{Content: `{"analysis":"a"}`}}
	a := NewPlannerAdapter(fc, "claude-test")

	out, err := a.Complete(context.Background(), "be a planner", []planneractor.Message{
		{Role: "user", Content: "hi"},
	}, "what now")
	require.NoError(t, err)
	require.Equal(t, `{"analysis":"a"}`, out)
}

func TestPlannerAdapterPropagatesError(t *testing.T) {
	fc := &fakeClient{err: ErrRateLimited}
	a := NewPlannerAdapter(fc, "")
	_, err := a.Complete(context.Background(), "", nil, "x")
	require.ErrorIs(t, err, ErrRateLimited)
}
