package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/gateway"
	"github.com/opencode-ai/orchestrator/integration_tests/framework"
	"github.com/opencode-ai/orchestrator/plan"
	"github.com/opencode-ai/orchestrator/planneractor"
)

// knowledgeBase is the fixed corpus the stub "knowledge" service searches:
// only rag.pdf is relevant to "What is RAG?", a second document exists so
// the filter assertion below would fail if selected_docs leaked through
// unfiltered.
var knowledgeBase = []map[string]any{
	{"text": "RAG, retrieval-augmented generation, grounds an LLM's answer in retrieved passages.", "file_name": "rag.pdf", "page_label": "1"},
	{"text": "Transformers use self-attention to relate every token to every other token.", "file_name": "transformers.pdf", "page_label": "1"},
}

func searchKnowledgeBase(fileFilter []string) []map[string]any {
	if len(fileFilter) == 0 {
		return knowledgeBase
	}
	allowed := make(map[string]struct{}, len(fileFilter))
	for _, f := range fileFilter {
		allowed[f] = struct{}{}
	}
	var out []map[string]any
	for _, doc := range knowledgeBase {
		if _, ok := allowed[doc["file_name"].(string)]; ok {
			out = append(out, doc)
		}
	}
	return out
}

func fileNameFilter(params map[string]any) []string {
	filters, ok := params["filters"].(map[string]any)
	if !ok {
		return nil
	}
	names, ok := filters["file_name"].([]string)
	if !ok {
		return nil
	}
	return names
}

// TestKnowledgeModeWithSelectedDocsFiltersSourcesToThatDocument drives the
// real rule-based Planner fallback (no LLM configured — the query matches
// none of its bash/python/search keyword heuristics, so it takes the
// question-form rag_search_multiple + rag_ask path) with selected_docs
// restricting the plan, and the real Orchestrator task loop against a stub
// knowledge service, asserting every surfaced source is rag.pdf.
func TestKnowledgeModeWithSelectedDocsFiltersSourcesToThatDocument(t *testing.T) {
	planner := planneractor.New(nil)

	generated := planner.GeneratePlan(context.Background(), planneractor.Request{
		UserContent:  "What is RAG?",
		SelectedDocs: []string{"rag.pdf"},
	})
	var searchTask, askTask *plan.Task
	for i, task := range generated.Tasks {
		switch task.Tool {
		case "rag_search_multiple":
			searchTask = &generated.Tasks[i]
		case "rag_ask":
			askTask = &generated.Tasks[i]
		}
	}
	require.NotNil(t, searchTask, "expected a rag_search_multiple task")
	require.NotNil(t, askTask, "expected a dependent rag_ask task")
	require.Contains(t, askTask.Dependencies, searchTask.ID)
	filters, ok := searchTask.Parameters["filters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []string{"rag.pdf"}, filters["file_name"])

	knowledge := framework.NewStubService("knowledge", map[string]func(context.Context, map[string]any) (map[string]any, error){
		"rag_search_multiple": func(_ context.Context, params map[string]any) (map[string]any, error) {
			docs := searchKnowledgeBase(fileNameFilter(params))
			return map[string]any{"results": toAnySlice(docs), "sources": toAnySlice(docs)}, nil
		},
		"rag_ask": func(_ context.Context, params map[string]any) (map[string]any, error) {
			docs := searchKnowledgeBase(fileNameFilter(params))
			return map[string]any{"results": toAnySlice(docs), "sources": toAnySlice(docs)}, nil
		},
	})

	h := framework.New(planner, []gateway.Service{knowledge})
	events := framework.Drain(h.Orchestrator.ProcessIntent(context.Background(), plan.Request{
		ID:    "s2",
		Query: "What is RAG?",
		Mode:  plan.ModeKnowledge,
		Options: map[string]any{
			"selected_docs": []string{"rag.pdf"},
		},
	}))

	var sourceEvt eventbus.Event
	var found bool
	for _, e := range events {
		if e.Type == eventbus.Source {
			sourceEvt, found = e, true
		}
	}
	require.True(t, found, "expected a SOURCE event")

	data, ok := sourceEvt.Payload.Data.(eventbus.SourceData)
	require.True(t, ok)
	require.NotEmpty(t, data.Sources)
	for _, s := range data.Sources {
		require.Equal(t, "rag.pdf", s.FileName)
	}

	require.Equal(t, 2, knowledge.Calls, "expected both rag_search_multiple and rag_ask to be called")
}

func toAnySlice(docs []map[string]any) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
