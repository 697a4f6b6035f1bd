// Package bedrock provides an llm.Client implementation backed by the AWS
// Bedrock Converse API, grounded in the teacher's features/model/bedrock
// adapter: split system vs. conversational messages, issue Converse /
// ConverseStream, and translate the output content blocks back into plain
// text. Tool-use and reasoning content blocks are out of scope here since
// the llm package models plain chat completion only.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/opencode-ai/orchestrator/llm"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client used by
// the adapter, satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client implements llm.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
}

// New builds a Bedrock-backed llm.Client. defaultModel is the Bedrock model
// ID used when a Request does not specify Model (for example
// "anthropic.claude-3-5-sonnet-20241022-v2:0").
func New(runtime RuntimeClient, defaultModel string) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{runtime: runtime, defaultModel: defaultModel}, nil
}

func encodeMessages(msgs []llm.Message) []brtypes.Message {
	out := make([]brtypes.Message, 0, len(msgs))
	for _, m := range msgs {
		role := brtypes.ConversationRoleUser
		if m.Role == llm.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return out
}

func (c *Client) input(req *llm.Request) *bedrockruntime.ConverseInput {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &modelID,
		Messages: encodeMessages(req.Messages),
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if req.MaxTokens > 0 {
			maxTokens := int32(req.MaxTokens)
			cfg.MaxTokens = &maxTokens
		}
		if req.Temperature > 0 {
			temp := float32(req.Temperature)
			cfg.Temperature = &temp
		}
		input.InferenceConfig = cfg
	}
	return input
}

// Complete issues a Converse request and translates the output message's
// text content blocks back into a plain Response.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	out, err := c.runtime.Converse(ctx, c.input(req))
	if err != nil {
		if isThrottled(err) {
			return nil, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateOutput(out), nil
}

// Stream invokes ConverseStream and adapts incremental events into
// llm.Chunks.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	base := c.input(req)
	streamInput := &bedrockruntime.ConverseStreamInput{
		ModelId:         base.ModelId,
		Messages:        base.Messages,
		System:          base.System,
		InferenceConfig: base.InferenceConfig,
	}
	out, err := c.runtime.ConverseStream(ctx, streamInput)
	if err != nil {
		if isThrottled(err) {
			return nil, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock converse stream: %w", err)
	}
	return &streamer{events: out.GetStream()}, nil
}

func isThrottled(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException"
}

func translateOutput(out *bedrockruntime.ConverseOutput) *llm.Response {
	resp := &llm.Response{StopReason: string(out.StopReason)}
	if msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
				resp.Content += textBlock.Value
			}
		}
	}
	if u := out.Usage; u != nil {
		resp.Usage = llm.TokenUsage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
			TotalTokens:  int(u.TotalTokens),
		}
	}
	return resp
}

// streamer adapts the Bedrock ConverseStream event stream into llm.Chunks.
type streamer struct {
	events *bedrockruntime.ConverseStreamEventStream
}

func (s *streamer) Recv() (llm.Chunk, error) {
	event, ok := <-s.events.Events()
	if !ok {
		if err := s.events.Err(); err != nil {
			return llm.Chunk{}, err
		}
		return llm.Chunk{}, io.EOF
	}
	switch e := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		if delta, ok := e.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
			return llm.Chunk{Type: llm.ChunkTypeText, Text: delta.Value}, nil
		}
	case *brtypes.ConverseStreamOutputMemberMessageStop:
		return llm.Chunk{Type: llm.ChunkTypeStop, StopReason: string(e.Value.StopReason)}, nil
	}
	return llm.Chunk{}, nil
}

func (s *streamer) Close() error {
	return s.events.Close()
}
