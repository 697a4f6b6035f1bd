package planneractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(context.Context, string, []Message, string) (string, error) {
	return f.response, f.err
}

func TestImageAttachmentShortCircuitsToVision(t *testing.T) {
	p := New(&fakeLLM{})
	result := p.GeneratePlan(context.Background(), Request{
		UserContent: "what is in this photo?",
		Attachments: []Attachment{{Type: "image"}},
	})
	require.True(t, result.SpecialFlags.NeedsVision)
	require.Len(t, result.Tasks, 1)
	require.Equal(t, "vision_analysis", result.Tasks[0].Tool)
}

func TestFileAttachmentShortCircuitsToFileAnalysis(t *testing.T) {
	p := New(&fakeLLM{})
	result := p.GeneratePlan(context.Background(), Request{
		UserContent: "summarize this file",
		Attachments: []Attachment{{Type: "file"}},
	})
	require.True(t, result.SpecialFlags.NeedsFileAnalysis)
	require.Equal(t, "file_analysis", result.Tasks[0].Tool)
}

func TestNilLLMFallsBackToRuleBased(t *testing.T) {
	p := New(nil)
	result := p.GeneratePlan(context.Background(), Request{UserContent: "search for cats"})
	require.Equal(t, "rag_search_multiple", result.Tasks[0].Tool)
}

func TestLLMFailureFallsBackToRuleBased(t *testing.T) {
	p := New(&fakeLLM{err: errors.New("provider down")})
	result := p.GeneratePlan(context.Background(), Request{UserContent: "search for cats"})
	require.Equal(t, "rag_search_multiple", result.Tasks[0].Tool)
}

func TestInvalidJSONFallsBackToRuleBased(t *testing.T) {
	p := New(&fakeLLM{response: "not json"})
	result := p.GeneratePlan(context.Background(), Request{UserContent: "search for cats"})
	require.Equal(t, "rag_search_multiple", result.Tasks[0].Tool)
}

func TestValidLLMPlanIsEnrichedWithServiceAndFilters(t *testing.T) {
	llmJSON := `{"analysis":"a","tasks":[{"tool":"rag_search","parameters":{"query":"x"}}],"reasoning":"r"}`
	p := New(&fakeLLM{response: llmJSON})
	result := p.GeneratePlan(context.Background(), Request{UserContent: "x", SelectedDocs: []string{"doc.pdf"}})

	require.Len(t, result.Tasks, 1)
	task := result.Tasks[0]
	require.Equal(t, "task_1", task.ID)
	require.Equal(t, "knowledge", task.Service)
	filters, ok := task.Parameters["filters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []string{"doc.pdf"}, filters["file_name"])
	require.Equal(t, []string{"task_1"}, result.ExecutionOrder)
}

func TestTopologicalOrderBreaksCycles(t *testing.T) {
	llmJSON := `{"tasks":[{"id":"a","tool":"rag_ask","dependencies":["b"]},{"id":"b","tool":"rag_ask","dependencies":["a"]},{"id":"c","tool":"rag_ask"}]}`
	p := New(&fakeLLM{response: llmJSON})
	result := p.GeneratePlan(context.Background(), Request{UserContent: "x"})
	require.Len(t, result.ExecutionOrder, 3)
}
