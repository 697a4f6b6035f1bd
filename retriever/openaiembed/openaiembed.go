// Package openaiembed adapts OpenAI's Embeddings API into a
// retriever.EmbeddingModel, following the same client-interface-plus-
// constructor shape as llm/openai (ChatCompletionsClient there,
// EmbeddingsClient here) rather than inventing a new adapter idiom for
// this one extra OpenAI endpoint.
package openaiembed

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/opencode-ai/orchestrator/retriever"
)

// EmbeddingsClient captures the subset of the openai-go client the adapter
// uses, satisfied by the SDK's Embeddings service.
type EmbeddingsClient interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Model implements retriever.EmbeddingModel via OpenAI's embeddings
// endpoint.
type Model struct {
	embeddings EmbeddingsClient
	model      string
}

// New builds a Model over an existing EmbeddingsClient.
func New(embeddings EmbeddingsClient, model string) (*Model, error) {
	if embeddings == nil {
		return nil, errors.New("openaiembed: embeddings client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openaiembed: model is required")
	}
	return &Model{embeddings: embeddings, model: model}, nil
}

// NewFromAPIKey constructs a Model using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, model string) (*Model, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openaiembed: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Embeddings, model)
}

// EmbedQuery implements retriever.EmbeddingModel.
func (m *Model) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: m.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openaiembed: empty embedding response")
	}
	vec := resp.Data[0].Embedding
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}

var _ retriever.EmbeddingModel = (*Model)(nil)
