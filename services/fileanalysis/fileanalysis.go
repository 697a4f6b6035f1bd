// Package fileanalysis implements the gateway.Service reference stub
// backing the "file_analysis" tool that orchestrator's special-task path
// routes non-image attachment plans to. Unlike vision, a file attachment's
// content is plain bytes the narrowed llm.Client can already carry as text,
// so this stub decodes the attachment and forwards an excerpt of it
// directly in the prompt rather than only describing it; binary or
// oversized content falls back to a metadata-only description, since
// document-parsing algorithms are explicitly out of scope.
package fileanalysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/opencode-ai/orchestrator/llm"
	"github.com/opencode-ai/orchestrator/orcherrors"
)

// CapabilityAnalyze is the method name this service exposes.
const CapabilityAnalyze = "file_analysis"

// maxExcerptBytes bounds how much decoded file content is inlined into the
// prompt, to keep the request within reasonable context limits.
const maxExcerptBytes = 8192

// Service answers questions about an attached file using an llm.Client.
type Service struct {
	client llm.Client
	model  string
}

// New constructs a fileanalysis Service over client.
func New(client llm.Client, model string) *Service {
	return &Service{client: client, model: model}
}

// ServiceID identifies this service to the Gateway.
func (s *Service) ServiceID() string { return "fileanalysis" }

// Capabilities lists the methods this service exposes.
func (s *Service) Capabilities() []string { return []string{CapabilityAnalyze} }

// Execute asks the configured LLM to analyze the attachment described by
// params["question"]/params["file_name"]/params["mime_type"]/params["base64"].
func (s *Service) Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if method != CapabilityAnalyze {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("fileanalysis: unsupported method %q", method))
	}
	if s.client == nil {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("fileanalysis: no LLM configured"))
	}

	question, _ := params["question"].(string)
	if question == "" {
		question = "Summarize this file and call out anything notable."
	}
	fileName, _ := params["file_name"].(string)
	mimeType, _ := params["mime_type"].(string)
	encoded, _ := params["base64"].(string)

	body := "The file's content could not be decoded or was not text, so only its metadata is available."
	if encoded != "" {
		if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil && utf8.Valid(decoded) {
			excerpt := decoded
			truncated := false
			if len(excerpt) > maxExcerptBytes {
				excerpt = excerpt[:maxExcerptBytes]
				truncated = true
			}
			body = fmt.Sprintf("File contents:\n---\n%s\n---", string(excerpt))
			if truncated {
				body += "\n(truncated)"
			}
		}
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "A file named %q (%s) was attached.\n%s\n\nQuestion: %s",
		nonEmpty(fileName, "unnamed"), nonEmpty(mimeType, "unknown type"), body, question)

	resp, err := s.client.Complete(ctx, &llm.Request{
		Model:    s.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt.String()}},
	})
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindTransientTransport, fmt.Errorf("fileanalysis: analysis failed: %w", err))
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
