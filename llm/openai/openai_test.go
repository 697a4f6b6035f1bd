package openai

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/require"

	orchllm "github.com/opencode-ai/orchestrator/llm"
)

type fakeChat struct {
	resp *openai.ChatCompletion
	err  error
}

func (f *fakeChat) New(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) (*openai.ChatCompletion, error) {
	return f.resp, f.err
}

func (f *fakeChat) NewStreaming(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk] {
	return nil
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(&fakeChat{}, "")
	require.Error(t, err)
}

func TestCompleteRequiresMessages(t *testing.T) {
	c, err := New(&fakeChat{}, "gpt-4o")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), &orchllm.Request{})
	require.Error(t, err)
}

func TestCompleteTranslatesFirstChoice(t *testing.T) {
	resp := &openai.ChatCompletion{
		Usage: openai.CompletionUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
	}
	resp.Choices = []openai.ChatCompletionChoice{{
		FinishReason: "stop",
		Message:      openai.ChatCompletionMessage{Content: "hi there"},
	}}

	c, err := New(&fakeChat{resp: resp}, "gpt-4o")
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), &orchllm.Request{
		Messages: []orchllm.Message{{Role: orchllm.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", out.Content)
	require.Equal(t, 7, out.Usage.TotalTokens)
}
