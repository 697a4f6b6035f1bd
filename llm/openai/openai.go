// Package openai provides an llm.Client implementation backed by the OpenAI
// Chat Completions API via github.com/openai/openai-go. Grounded in the
// teacher's features/model/openai adapter's shape (Options struct, New /
// NewFromAPIKey constructors, translateResponse helper), restated against
// openai-go's Chat Completions client rather than go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	orchllm "github.com/opencode-ai/orchestrator/llm"
)

// ChatCompletionsClient captures the subset of the openai-go client used by
// the adapter, satisfied by the SDK's Chat.Completions service.
type ChatCompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Client implements llm.Client via the OpenAI Chat Completions API.
type Client struct {
	chat         ChatCompletionsClient
	defaultModel string
}

// New builds an OpenAI-backed llm.Client.
func New(chat ChatCompletionsClient, defaultModel string) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat completions client is required")
	}
	if strings.TrimSpace(defaultModel) == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, defaultModel: defaultModel}, nil
}

// NewFromAPIKey constructs a Client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, defaultModel)
}

func (c *Client) params(req *orchllm.Request) openai.ChatCompletionNewParams {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case orchllm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case orchllm.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *orchllm.Request) (*orchllm.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	resp, err := c.chat.New(ctx, c.params(req))
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", orchllm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

// Stream invokes Chat.Completions.NewStreaming and adapts incremental
// chunks into llm.Chunks.
func (c *Client) Stream(ctx context.Context, req *orchllm.Request) (orchllm.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	return &streamer{stream: c.chat.NewStreaming(ctx, c.params(req))}, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

func translateResponse(resp *openai.ChatCompletion) *orchllm.Response {
	out := &orchllm.Response{
		Usage: orchllm.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	return out
}

// streamer adapts the OpenAI chat-completion SSE stream into llm.Chunks.
type streamer struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *streamer) Recv() (orchllm.Chunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return orchllm.Chunk{}, err
		}
		return orchllm.Chunk{}, io.EOF
	}
	chunk := s.stream.Current()
	if len(chunk.Choices) == 0 {
		return orchllm.Chunk{}, nil
	}
	choice := chunk.Choices[0]
	if choice.Delta.Content != "" {
		return orchllm.Chunk{Type: orchllm.ChunkTypeText, Text: choice.Delta.Content}, nil
	}
	if choice.FinishReason != "" {
		return orchllm.Chunk{Type: orchllm.ChunkTypeStop, StopReason: choice.FinishReason}, nil
	}
	return orchllm.Chunk{}, nil
}

func (s *streamer) Close() error {
	return s.stream.Close()
}
