// Package anthropic provides an llm.Client implementation backed by the
// Anthropic Claude Messages API via github.com/anthropics/anthropic-sdk-go.
// It is grounded in the teacher's features/model/anthropic adapter, narrowed
// to plain-text chat completion since tool-calling and thinking blocks are
// out of scope for the llm package here.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/opencode-ai/orchestrator/llm"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService so tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Client implements llm.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds an Anthropic-backed llm.Client. defaultModel is used whenever a
// Request does not specify Model; maxTokens is used whenever a Request does
// not specify MaxTokens (Anthropic requires a positive value on every call).
func New(msg MessagesClient, defaultModel string, maxTokens int) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client,
// reading connection settings from the environment.
func NewFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, defaultModel, maxTokens)
}

func (c *Client) params(req *llm.Request) sdk.MessageNewParams {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case llm.RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(block))
		default:
			msgs = append(msgs, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	return params
}

// Complete issues a non-streaming Messages.New request.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	msg, err := c.msg.New(ctx, c.params(req))
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg), nil
}

// Stream invokes Messages.NewStreaming and adapts incremental events into
// llm.Chunks.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	stream := c.msg.NewStreaming(ctx, c.params(req))
	return &streamer{stream: stream}, nil
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

func translateResponse(msg *sdk.Message) *llm.Response {
	resp := &llm.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		if block.Type == "text" {
			resp.Content += block.Text
		}
	}
	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 {
		resp.Usage = llm.TokenUsage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
			TotalTokens:  int(u.InputTokens + u.OutputTokens),
		}
	}
	return resp
}

// streamer adapts the Anthropic SSE event union into llm.Chunks.
type streamer struct {
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]
}

func (s *streamer) Recv() (llm.Chunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return llm.Chunk{}, err
		}
		return llm.Chunk{}, io.EOF
	}
	event := s.stream.Current()
	switch event.Type {
	case "content_block_delta":
		if delta := event.Delta.Text; delta != "" {
			return llm.Chunk{Type: llm.ChunkTypeText, Text: delta}, nil
		}
	case "message_delta":
		if event.Usage.OutputTokens != 0 {
			return llm.Chunk{
				Type:       llm.ChunkTypeUsage,
				UsageDelta: &llm.TokenUsage{OutputTokens: int(event.Usage.OutputTokens)},
			}, nil
		}
	case "message_stop":
		return llm.Chunk{Type: llm.ChunkTypeStop}, nil
	}
	return llm.Chunk{}, nil
}

func (s *streamer) Close() error {
	return s.stream.Close()
}
