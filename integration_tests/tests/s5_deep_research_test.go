package tests

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/research"
	"github.com/opencode-ai/orchestrator/research/citation"
	"github.com/opencode-ai/orchestrator/retriever"
)

// scriptedResearchLLM answers research.Workflow's three distinct prompt
// shapes (sub-question generation, progress review, report composition)
// with fixed text, mirroring research/workflow_test.go's scriptedLLM.
type scriptedResearchLLM struct {
	subQuestions string
	report       string
}

func (s *scriptedResearchLLM) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Break the research topic"):
		return s.subQuestions, nil
	case strings.Contains(prompt, "fully cover the topic"):
		return "NONE", nil
	case strings.Contains(prompt, "Compose a research report"):
		return s.report, nil
	default:
		return "a synthesized per-question answer", nil
	}
}

// overlappingRetriever always returns the same two chunks regardless of
// query, so every sub-question's findings overlap on (source, page) and
// the workflow's cross-call dedup is actually exercised.
type overlappingRetriever struct{}

func (overlappingRetriever) Search(context.Context, string, int, retriever.SearchOptions) []retriever.Chunk {
	return []retriever.Chunk{
		{ID: "1", Text: "CLIP trains a joint image-text embedding with a contrastive loss over large web-scraped pairs.", Metadata: retriever.Metadata{FileName: "clip.pdf", PageLabel: "1"}},
		{ID: "2", Text: "The InfoNCE objective pulls matched image-text pairs together and pushes mismatched pairs apart.", Metadata: retriever.Metadata{FileName: "infonce.pdf", PageLabel: "4"}},
	}
}

func waitForResearchTerminal(t *testing.T, w *research.Workflow, id string, timeout time.Duration) research.Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		task, ok := w.GetTask(id)
		require.True(t, ok)
		if task.Status == research.StatusCompleted || task.Status == research.StatusFailed {
			return task
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("research task did not reach a terminal state in time")
	return research.Task{}
}

// TestDeepResearchOnCLIPTrainingProducesCompleteCitedReport drives the real
// research.Workflow end to end against a scripted LLM and a retriever
// stub, asserting the sub-question count bound, non-empty per-question
// step records, cross-call source dedup by (source, page), and — via the
// real research/citation analyzer — full, valid citation coverage of the
// final report.
func TestDeepResearchOnCLIPTrainingProducesCompleteCitedReport(t *testing.T) {
	llm := &scriptedResearchLLM{
		subQuestions: "how does CLIP's contrastive objective work\nwhat data is CLIP trained on\nhow is the joint embedding evaluated",
		report: "# CLIP training\n\n" +
			"CLIP learns a shared embedding space via a contrastive loss [1], trained on large-scale " +
			"web image-text pairs using the InfoNCE objective to separate mismatched pairs [2].\n",
	}
	w := research.New(llm, overlappingRetriever{})

	id := w.StartResearch(context.Background(), "CLIP training", nil)
	task := waitForResearchTerminal(t, w, id, 2*time.Second)

	require.Equal(t, research.StatusCompleted, task.Status)
	require.GreaterOrEqual(t, len(task.Findings), 3)
	require.LessOrEqual(t, len(task.Findings), 5)

	questionSteps := 0
	for _, s := range task.Steps {
		if strings.HasPrefix(s.Step, "question_") {
			require.Equal(t, research.StepDone, s.Status)
			require.NotEmpty(t, s.Result)
			questionSteps++
		}
	}
	require.Equal(t, len(task.Findings), questionSteps)

	require.Len(t, task.Sources, 2, "sources from overlapping per-question retrievals must dedupe by (file_name, page_label)")

	refs := make([]citation.Reference, len(task.Sources))
	for i, s := range task.Sources {
		refs[i] = citation.Reference{ID: i + 1, FileName: s.FileName, PageLabel: s.PageLabel}
	}
	analysis := citation.Analyze(task.Report, refs)

	require.Empty(t, analysis.InvalidCitations, "every [N] marker in the report must resolve to a real source")
	require.Empty(t, analysis.UncitedRefs, "every source present in findings must be cited at least once")
	require.Equal(t, len(refs), analysis.Stats.UniqueCitations)
}
