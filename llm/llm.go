// Package llm defines the provider-agnostic completion surface used by the
// Planner and the Orchestrator's synthesis stage. It mirrors the shape of
// the teacher's runtime/agent/model package (Request/Response/Chunk/Client)
// but is narrowed to the plain chat-completion semantics this project's
// providers actually need: no tool-calling or thinking-block plumbing, since
// tool selection lives in planneractor/plan and not in the model layer here.
package llm

import (
	"context"
	"errors"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role
	Content string
}

// TokenUsage tracks token counts for a completion call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Request captures the inputs to a model invocation.
type Request struct {
	// Model is the provider-specific model identifier. Empty means the
	// provider's configured default.
	Model string

	// System is the system prompt, sent as a distinct field rather than a
	// leading Message since not every provider models it as a role.
	System string

	Messages []Message

	Temperature float64
	MaxTokens   int
}

// Response is the result of a non-streaming completion.
type Response struct {
	Content    string
	Usage      TokenUsage
	StopReason string
}

// ChunkType classifies a streamed Chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeStop  ChunkType = "stop"
)

// Chunk is one streaming event from a model.
type Chunk struct {
	Type       ChunkType
	Text       string
	UsageDelta *TokenUsage
	StopReason string
}

// Streamer delivers incremental completion output. Callers drain Recv until
// it returns io.EOF (or another terminal error), then call Close.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Client is the provider-agnostic model client implemented by each of the
// llm/anthropic, llm/openai, and llm/bedrock adapters.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (Streamer, error)
}

// ErrRateLimited is wrapped by provider adapters when the upstream API
// reports a rate-limit rejection, so callers (notably RateLimited) can
// distinguish throttling from other failures.
var ErrRateLimited = errors.New("llm: rate limited")
