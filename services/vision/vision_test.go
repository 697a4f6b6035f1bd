package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/llm"
)

type fakeClient struct {
	lastReq *llm.Request
	reply   string
	err     error
}

func (f *fakeClient) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply}, nil
}

func (f *fakeClient) Stream(context.Context, *llm.Request) (llm.Streamer, error) {
	panic("not used")
}

func TestExecuteAnalyzeDescribesAttachmentInPrompt(t *testing.T) {
	client := &fakeClient{reply: "A dog sits on a red couch."}
	svc := New(client, "claude-3-5-sonnet")

	out, err := svc.Execute(context.Background(), CapabilityAnalyze, map[string]any{
		"question":  "What breed is the dog?",
		"caption":   "a photo from the user's camera roll",
		"mime_type": "image/png",
	})
	require.NoError(t, err)
	require.Equal(t, "A dog sits on a red couch.", out["answer"])
	require.Contains(t, client.lastReq.Messages[0].Content, "image/png")
	require.Contains(t, client.lastReq.Messages[0].Content, "What breed is the dog?")
}

func TestExecuteRejectsUnknownMethod(t *testing.T) {
	svc := New(&fakeClient{}, "m")
	_, err := svc.Execute(context.Background(), "other", nil)
	require.Error(t, err)
}

func TestExecuteRequiresConfiguredClient(t *testing.T) {
	svc := New(nil, "m")
	_, err := svc.Execute(context.Background(), CapabilityAnalyze, map[string]any{"question": "q"})
	require.Error(t, err)
}

func TestHealthCheckReflectsClientPresence(t *testing.T) {
	ok, err := New(&fakeClient{}, "m").HealthCheck(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = New(nil, "m").HealthCheck(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}
