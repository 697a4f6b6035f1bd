package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/executoractor"
	"github.com/opencode-ai/orchestrator/llm"
	"github.com/opencode-ai/orchestrator/plan"
)

// maxContextTexts caps how many retrieved passages are fed to the
// synthesis prompt, matching _generate_final_answer's context_texts[:15].
const maxContextTexts = 15

// minPassageLength filters out retrieved snippets too short to be useful
// context, matching the original's `len(text) > 20` check.
const minPassageLength = 20

// maxCitedSources caps how many sources are surfaced in the Source event,
// matching the original's unique_sources[:5].
const maxCitedSources = 5

const synthesisSystemPrompt = `You are a precise knowledge assistant. Using only the supplied context, write a clear, well-structured answer to the user's question.

Principles:
1. Accuracy: answer only from the supplied context; never invent facts.
2. Structure: use headings, lists, or short paragraphs as the content warrants.
3. Completeness: cover every facet of the question the context supports.
4. If the context is insufficient, say so plainly and answer what you can.`

// synthesize builds the final answer from every task's results, matching
// original_source's _generate_final_answer: collect context passages and
// sources, deduplicate sources, and either call the configured synthesizer
// or fall back to a plain concatenation when none is configured.
func (o *Orchestrator) synthesize(ctx context.Context, req plan.Request, p plan.Plan, results map[string]executoractor.Result, emit emitFunc) (string, []eventbus.SourceRef) {
	var contextTexts []string
	var sources []eventbus.SourceRef

	for _, t := range p.Tasks {
		r, ok := results[t.ID]
		if !ok || !r.Success {
			continue
		}
		contextTexts = append(contextTexts, extractPassages(r.Result)...)
		sources = append(sources, extractSources(r.Result)...)
	}
	if len(contextTexts) > maxContextTexts {
		contextTexts = contextTexts[:maxContextTexts]
	}
	sources = dedupeSources(sources)

	emit(eventbus.Event{
		Type: eventbus.Thinking,
		Payload: eventbus.Payload{
			Content: fmt.Sprintf("generating an answer from %d passage(s) and %d source(s)...", len(contextTexts), len(sources)),
			Data:    eventbus.GeneratingData{ContextCount: len(contextTexts), SourceCount: len(sources)},
		},
	})

	answer := o.composeAnswer(ctx, req, contextTexts)

	emit(eventbus.Event{Type: eventbus.Answer, Payload: eventbus.Payload{Content: answer}})
	if len(sources) > 0 {
		cited := sources
		if len(cited) > maxCitedSources {
			cited = cited[:maxCitedSources]
		}
		emit(eventbus.Event{
			Type:    eventbus.Source,
			Payload: eventbus.Payload{Content: fmt.Sprintf("%d reference source(s)", len(sources)), Data: eventbus.SourceData{Sources: cited}},
		})
	}
	emit(eventbus.Event{Type: eventbus.Done})

	return answer, sources
}

func (o *Orchestrator) composeAnswer(ctx context.Context, req plan.Request, contextTexts []string) string {
	if o.synth == nil {
		return fallbackAnswer(contextTexts)
	}
	resp, err := o.synth.Complete(ctx, &llm.Request{
		Model:  o.synthModel,
		System: synthesisSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("## Question\n%s\n\n## Retrieved context\n%s\n\n## Task\nAnswer the question using only the context above.", req.Query, strings.Join(contextTexts, "\n\n---\n\n")),
		}},
		Temperature: 0.7,
	})
	if err != nil {
		o.log.Warn(ctx, "orchestrator: synthesis call failed, falling back to concatenation", "error", err.Error())
		return fallbackAnswer(contextTexts)
	}
	return resp.Content
}

func fallbackAnswer(contextTexts []string) string {
	if len(contextTexts) == 0 {
		return "No synthesizer is configured and no context was retrieved to answer from."
	}
	return strings.Join(contextTexts, "\n\n")
}

func extractPassages(result map[string]any) []string {
	items, ok := result["results"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, ok := m["text"].(string)
		if !ok || len(text) <= minPassageLength {
			continue
		}
		out = append(out, text)
	}
	return out
}

func extractSources(result map[string]any) []eventbus.SourceRef {
	items, ok := result["sources"].([]any)
	if !ok {
		return nil
	}
	var out []eventbus.SourceRef
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fileName, _ := m["file_name"].(string)
		pageLabel, _ := m["page_label"].(string)
		out = append(out, eventbus.SourceRef{FileName: fileName, PageLabel: pageLabel})
	}
	return out
}

func dedupeSources(sources []eventbus.SourceRef) []eventbus.SourceRef {
	seen := make(map[eventbus.SourceRef]struct{}, len(sources))
	var out []eventbus.SourceRef
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
