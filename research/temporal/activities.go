package temporal

import (
	"context"
	"strings"

	"github.com/opencode-ai/orchestrator/research"
	"github.com/opencode-ai/orchestrator/retriever"
)

// Activities implements the per-stage activity methods RunResearch
// delegates to. It holds the same LLM/Retriever collaborators as
// research.Workflow so both the in-memory and durable variants answer
// sub-questions identically.
type Activities struct {
	LLM       research.LLM
	Retriever research.Retriever
}

// AnswerInput is the input to AnswerQuestion.
type AnswerInput struct {
	Question string
	Filter   map[string][]string
}

// AnswerResult is the output of AnswerQuestion.
type AnswerResult struct {
	Finding research.Finding
	Sources []research.SourceRef
}

// ReviewInput is the input to ReviewProgress.
type ReviewInput struct {
	Topic    string
	Findings []research.Finding
}

// ReportInput is the input to ComposeReport.
type ReportInput struct {
	Topic    string
	Findings []research.Finding
	Sources  []research.SourceRef
}

// GenerateSubQuestions breaks topic into sub-questions, falling back to
// [topic] when no LLM is configured.
func (a *Activities) GenerateSubQuestions(ctx context.Context, topic string) ([]string, error) {
	if a.LLM == nil {
		return []string{topic}, nil
	}
	out, err := a.LLM.Generate(ctx, "Break the research topic below into 3-5 focused sub-questions that together cover it. "+
		"Reply with one question per line, no numbering.\n\nTopic: "+topic)
	if err != nil || out == "" {
		return []string{topic}, nil
	}
	return splitLines(out), nil
}

// AnswerQuestion retrieves supporting passages for one question and
// synthesizes an answer from them.
func (a *Activities) AnswerQuestion(ctx context.Context, in AnswerInput) (AnswerResult, error) {
	var chunks []retriever.Chunk
	if a.Retriever != nil {
		chunks = a.Retriever.Search(ctx, in.Question, 8, retriever.SearchOptions{Filter: retriever.Filter(in.Filter), UseHybrid: true})
	}
	if len(chunks) == 0 {
		return AnswerResult{Finding: research.Finding{Question: in.Question, Answer: "No supporting passages were found for this question."}}, nil
	}

	sources := dedupeChunks(chunks)
	if a.LLM == nil {
		return AnswerResult{
			Finding: research.Finding{Question: in.Question, Answer: concatenateChunks(chunks), SourcesCount: len(sources)},
			Sources: sources,
		}, nil
	}

	prompt := "Answer the question using only the labeled context below.\n\nQuestion: " + in.Question + "\n\nContext:\n"
	for _, c := range chunks {
		prompt += "[" + c.Metadata.FileName + " p." + c.Metadata.PageLabel + "] " + c.Text + "\n\n"
	}
	answer, err := a.LLM.Generate(ctx, prompt)
	if err != nil || answer == "" {
		answer = concatenateChunks(chunks)
	}
	return AnswerResult{
		Finding: research.Finding{Question: in.Question, Answer: answer, SourcesCount: len(sources)},
		Sources: sources,
	}, nil
}

// ReviewProgress asks whether the findings so far cover the topic and, if
// not, returns up to two additional queries.
func (a *Activities) ReviewProgress(ctx context.Context, in ReviewInput) ([]string, error) {
	if a.LLM == nil {
		return nil, nil
	}
	prompt := "Topic: " + in.Topic + "\n\nFindings so far:\n"
	for _, f := range in.Findings {
		prompt += "Q: " + f.Question + "\nA: " + f.Answer + "\n\n"
	}
	prompt += "Do these findings fully cover the topic? If yes, reply NONE. If not, reply with up to 2 additional research queries, one per line."
	out, err := a.LLM.Generate(ctx, prompt)
	if err != nil || out == "" {
		return nil, nil
	}
	lines := splitLines(out)
	if len(lines) == 1 && strings.EqualFold(lines[0], "NONE") {
		return nil, nil
	}
	if len(lines) > 2 {
		lines = lines[:2]
	}
	return lines, nil
}

// ComposeReport builds the final report, falling back to concatenation
// when no LLM is configured.
func (a *Activities) ComposeReport(ctx context.Context, in ReportInput) (string, error) {
	if a.LLM == nil {
		return fallbackReport(in.Topic, in.Findings), nil
	}
	prompt := "Compose a research report on the topic below using the learnings and sources provided.\n\n# Topic\n" + in.Topic + "\n\n# Learnings\n"
	for _, f := range in.Findings {
		prompt += "## " + f.Question + "\n\n" + f.Answer + "\n\n"
	}
	report, err := a.LLM.Generate(ctx, prompt)
	if err != nil || report == "" {
		return fallbackReport(in.Topic, in.Findings), nil
	}
	return report, nil
}

func fallbackReport(topic string, findings []research.Finding) string {
	out := "# " + topic + "\n\n"
	for _, f := range findings {
		out += "## " + f.Question + "\n\n" + f.Answer + "\n\n"
	}
	return out
}

func concatenateChunks(chunks []retriever.Chunk) string {
	out := ""
	for _, c := range chunks {
		out += c.Text + "\n\n"
	}
	return out
}

func dedupeChunks(chunks []retriever.Chunk) []research.SourceRef {
	seen := make(map[research.SourceRef]struct{})
	var out []research.SourceRef
	for _, c := range chunks {
		ref := research.SourceRef{FileName: c.Metadata.FileName, PageLabel: c.Metadata.PageLabel}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// splitLines mirrors research.splitNonEmptyLines: it splits LLM output into
// non-empty lines with leading list markers ("-", "*", "1.") trimmed.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
