// Package rulebased implements the Planner's fallback plan generator, used
// when no LLM is configured or the LLM call fails. It is a direct port of
// original_source's PlannerActor._simple_plan: pattern-based query
// expansion, keyword-heuristic tool selection, and the search-then-answer
// two-task shape for question-form requests.
package rulebased

import (
	"strconv"
	"strings"

	"github.com/opencode-ai/orchestrator/plan"
)

// expansion maps a colloquial intent phrase to 2-3 multi-angle search
// strings combining topical and structural terms, mirroring the original's
// query_expansions table (there expressed in Chinese; restated here in
// English for this deployment's default locale).
var expansions = map[string][]string{
	"what does it talk about": {"main topic background", "methodology approach", "key contributions results"},
	"what is":                 {"definition concept overview", "mechanism principle"},
	"what did it study":       {"research goal problem statement", "methodology experiment design", "findings results"},
	"how does it work":        {"method steps process", "implementation technique algorithm"},
	"training":                {"training method", "loss function objective", "dataset"},
	"pros and cons":           {"advantages strengths", "limitations drawbacks", "comparison"},
	"performance":             {"performance benchmark", "results evaluation"},
	"innovation":              {"contribution novelty", "improvement over prior work"},
	"use case":                {"application scenario", "intended use"},
}

var (
	bashKeywords   = []string{"run bash", "execute bash", "shell command", "bash "}
	pythonKeywords = []string{"python", "run code", "execute code"}
	searchKeywords = []string{"search", "find", "look up", "list"}
	questionWords  = []string{"what", "how", "why", "explain", "tell me", "could you", "?"}
)

// Generate builds a Plan from user content using pattern expansion and
// keyword heuristics, without calling an LLM.
func Generate(userContent string, selectedDocs []string) plan.Plan {
	lower := strings.ToLower(userContent)

	var filters map[string]any
	if len(selectedDocs) > 0 {
		filters = map[string]any{"file_name": selectedDocs}
	}

	queries, matched := expandQueries(userContent, lower)

	var tasks []plan.Task
	switch {
	case containsAny(lower, bashKeywords):
		tasks = []plan.Task{{
			ID:          "task_1",
			Tool:        "execute_bash",
			Parameters:  map[string]any{"command": extractAfter(userContent, "run bash")},
			Description: "Run a shell command",
		}}
	case containsAny(lower, pythonKeywords):
		tasks = []plan.Task{{
			ID:          "task_1",
			Tool:        "execute_python",
			Parameters:  map[string]any{"code": userContent},
			Description: "Run Python code",
		}}
	case containsAny(lower, searchKeywords):
		tasks = []plan.Task{{
			ID:          "task_1",
			Tool:        "rag_search_multiple",
			Parameters:  ragMultiParams(queries, filters),
			Description: "Multi-angle knowledge base search",
		}}
	default:
		if IsQuestionForm(userContent) {
			tasks = append(tasks, plan.Task{
				ID:          "task_1",
				Tool:        "rag_search_multiple",
				Parameters:  ragMultiParams(queries, filters),
				Description: "Multi-angle knowledge base search",
			})
			tasks = append(tasks, plan.Task{
				ID:           "task_2",
				Tool:         "rag_ask",
				Parameters:   ragAskParams(userContent, filters),
				Dependencies: []string{"task_1"},
				Description:  "Answer using search results",
			})
		} else {
			tasks = append(tasks, plan.Task{
				ID:          "task_1",
				Tool:        "rag_ask",
				Parameters:  ragAskParams(userContent, filters),
				Description: "Answer using search results",
			})
		}
	}

	order := make([]string, len(tasks))
	for i, t := range tasks {
		order[i] = t.ID
	}

	reasoning := "rule-based fallback planning"
	if matched != "" {
		reasoning = "pattern-matched fallback planning: " + matched
	}

	return plan.Plan{
		Analysis:       "Rule-based analysis covering " + strconv.Itoa(len(queries)) + " query angle(s)",
		SubQuestions:   queries,
		Tasks:          tasks,
		ExecutionOrder: order,
		Reasoning:      reasoning,
	}
}

func expandQueries(original, lower string) ([]string, string) {
	for pattern, angles := range expansions {
		if !strings.Contains(lower, pattern) {
			continue
		}
		base := strings.TrimSpace(strings.ReplaceAll(original, pattern, ""))
		var queries []string
		for _, angle := range angles {
			if base != "" {
				queries = append(queries, base+" "+angle)
			} else {
				queries = append(queries, angle)
			}
		}
		return queries, pattern
	}

	// No pattern matched: original question, keywords-only, and the
	// original again as the CJK/alternate-phrasing variant.
	queries := []string{original}
	if keywords := significantWords(original); len(keywords) > 0 {
		queries = append(queries, strings.Join(keywords, " "))
	}
	queries = append(queries, original)
	return dedupe(queries), ""
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len([]rune(w)) > 1 {
			out = append(out, w)
		}
	}
	return out
}

func dedupe(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	var out []string
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func ragMultiParams(queries []string, filters map[string]any) map[string]any {
	capped := queries
	if len(capped) > 3 {
		capped = capped[:3]
	}
	return map[string]any{"queries": capped, "top_k": 5, "filters": filters}
}

func ragAskParams(question string, filters map[string]any) map[string]any {
	return map[string]any{"question": question, "top_k": 8, "filters": filters}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func extractAfter(s, marker string) string {
	lower := strings.ToLower(s)
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return s
	}
	return strings.TrimSpace(s[idx+len(marker):])
}

// IsQuestionForm reports whether content reads like a question, used by
// Generate to decide between a single rag_ask and the search-then-answer
// pairing when no other heuristic matched.
func IsQuestionForm(content string) bool {
	return containsAny(strings.ToLower(content), questionWords)
}
