// Package vision implements the gateway.Service reference stub backing
// the "vision_analysis" tool that orchestrator's special-task path routes
// vision-short-circuit plans to. The narrowed llm.Client this project
// standardizes on (see llm package doc) only carries plain-text messages,
// so this stub does not decode or forward image bytes to the provider;
// it describes the attachment to the LLM in words and asks for the best
// analysis it can produce from the question and any caller-supplied
// caption. Wiring true multimodal image content through llm.Client is
// noted as future work rather than attempted here, since it would require
// widening Request beyond what the Planner/synthesis stages need.
package vision

import (
	"context"
	"fmt"

	"github.com/opencode-ai/orchestrator/llm"
	"github.com/opencode-ai/orchestrator/orcherrors"
)

// CapabilityAnalyze is the method name this service exposes.
const CapabilityAnalyze = "vision_analysis"

// Service answers questions about an attached image using an llm.Client.
type Service struct {
	client llm.Client
	model  string
}

// New constructs a vision Service over client.
func New(client llm.Client, model string) *Service {
	return &Service{client: client, model: model}
}

// ServiceID identifies this service to the Gateway.
func (s *Service) ServiceID() string { return "vision" }

// Capabilities lists the methods this service exposes.
func (s *Service) Capabilities() []string { return []string{CapabilityAnalyze} }

// Execute asks the configured LLM to analyze the attachment described by
// params["question"]/params["caption"]/params["mime_type"].
func (s *Service) Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if method != CapabilityAnalyze {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("vision: unsupported method %q", method))
	}
	if s.client == nil {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("vision: no LLM configured"))
	}

	question, _ := params["question"].(string)
	if question == "" {
		question = "Describe what is shown and answer any implicit question about it."
	}
	caption, _ := params["caption"].(string)
	mimeType, _ := params["mime_type"].(string)

	prompt := fmt.Sprintf("An image (%s) was attached to the user's message. %s\n\nQuestion: %s",
		nonEmpty(mimeType, "unknown type"), nonEmpty(caption, "No caption was supplied."), question)

	resp, err := s.client.Complete(ctx, &llm.Request{
		Model:    s.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindTransientTransport, fmt.Errorf("vision: analysis failed: %w", err))
	}
	return map[string]any{"answer": resp.Content}, nil
}

// HealthCheck reports healthy whenever an LLM client is configured.
func (s *Service) HealthCheck(context.Context) (bool, error) { return s.client != nil, nil }

// Shutdown releases no resources.
func (s *Service) Shutdown(context.Context) error { return nil }

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
