// Package knowledge implements the gateway.Service reference stub that
// backs the "rag_ask" tool, wrapping a *retriever.Retriever so the
// Executor's Gateway call surface can reach the hybrid retrieval pipeline
// described in section 4.4. Grounded in the Gateway's own MCPService
// contract (ServiceID/Capabilities/Execute/HealthCheck/Shutdown) rather
// than any one teacher file, since this is the binding between two
// already-built in-module packages (gateway, retriever).
package knowledge

import (
	"context"
	"fmt"

	"github.com/opencode-ai/orchestrator/orcherrors"
	"github.com/opencode-ai/orchestrator/retriever"
)

// CapabilityRAGAsk is the method name this service exposes.
const CapabilityRAGAsk = "rag_ask"

// Service answers questions by searching a Retriever and returns results
// shaped the way orchestrator's synthesis stage expects: a "results" list
// of {"text": ...} and a "sources" list of {"file_name", "page_label"}.
type Service struct {
	retriever *retriever.Retriever
	topK      int
}

// New constructs a knowledge Service over r.
func New(r *retriever.Retriever) *Service {
	return &Service{retriever: r, topK: 8}
}

// ServiceID identifies this service to the Gateway.
func (s *Service) ServiceID() string { return "knowledge" }

// Capabilities lists the methods this service exposes.
func (s *Service) Capabilities() []string { return []string{CapabilityRAGAsk} }

// Execute answers the question carried in params under "question" (or
// the first entry of "queries"), searching across selected_docs when
// present.
func (s *Service) Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if method != CapabilityRAGAsk {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("knowledge: unsupported method %q", method))
	}

	question, ok := params["question"].(string)
	if !ok || question == "" {
		if qs, ok := params["queries"].([]string); ok && len(qs) > 0 {
			question = qs[0]
		}
	}
	if question == "" {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("knowledge: %s requires a non-empty question", CapabilityRAGAsk))
	}

	filter := filterFromParams(params)
	chunks := s.retriever.Search(ctx, question, s.topK, retriever.SearchOptions{Filter: filter, UseHybrid: true})

	results := make([]any, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, map[string]any{"text": c.Text, "score": c.Score})
	}
	sources := make([]any, 0, len(chunks))
	for _, ref := range dedupeSources(chunks) {
		sources = append(sources, map[string]any{"file_name": ref.FileName, "page_label": ref.PageLabel})
	}

	return map[string]any{"results": results, "sources": sources}, nil
}

// HealthCheck reports the service as healthy whenever it has a Retriever;
// the Retriever's own collaborators handle their own degradation.
func (s *Service) HealthCheck(context.Context) (bool, error) {
	return s.retriever != nil, nil
}

// Shutdown releases no resources; the Retriever owns its own collaborators'
// lifecycles.
func (s *Service) Shutdown(context.Context) error { return nil }

func filterFromParams(params map[string]any) retriever.Filter {
	v, ok := params["selected_docs"]
	if !ok {
		return nil
	}
	docs, ok := v.([]string)
	if !ok || len(docs) == 0 {
		return nil
	}
	return retriever.Filter{"document_id": docs}
}

func dedupeSources(chunks []retriever.Chunk) []retriever.SourceRef {
	seen := make(map[retriever.SourceRef]struct{})
	var out []retriever.SourceRef
	for _, c := range chunks {
		ref := retriever.SourceRef{FileName: c.Metadata.FileName, PageLabel: c.Metadata.PageLabel}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
