package fileanalysis

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/llm"
)

type fakeClient struct {
	lastReq *llm.Request
	reply   string
}

func (f *fakeClient) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	return &llm.Response{Content: f.reply}, nil
}

func (f *fakeClient) Stream(context.Context, *llm.Request) (llm.Streamer, error) {
	panic("not used")
}

func TestExecuteInlinesDecodedTextExcerpt(t *testing.T) {
	client := &fakeClient{reply: "This CSV has three columns."}
	svc := New(client, "claude-3-5-sonnet")

	encoded := base64.StdEncoding.EncodeToString([]byte("name,age,city\nava,9,NYC\n"))
	out, err := svc.Execute(context.Background(), CapabilityAnalyze, map[string]any{
		"question":  "How many columns does this have?",
		"file_name": "people.csv",
		"mime_type": "text/csv",
		"base64":    encoded,
	})
	require.NoError(t, err)
	require.Equal(t, "This CSV has three columns.", out["answer"])
	require.Contains(t, client.lastReq.Messages[0].Content, "name,age,city")
	require.Contains(t, client.lastReq.Messages[0].Content, "people.csv")
}

func TestExecuteFallsBackToMetadataOnUndecodableContent(t *testing.T) {
	client := &fakeClient{reply: "Cannot inspect this binary file."}
	svc := New(client, "m")

	out, err := svc.Execute(context.Background(), CapabilityAnalyze, map[string]any{
		"question":  "What is this?",
		"file_name": "photo.raw",
		"mime_type": "application/octet-stream",
		"base64":    "not-valid-base64!!",
	})
	require.NoError(t, err)
	require.Equal(t, "Cannot inspect this binary file.", out["answer"])
	require.Contains(t, client.lastReq.Messages[0].Content, "could not be decoded")
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
