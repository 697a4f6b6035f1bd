package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencode-ai/orchestrator/telemetry"
)

// Fallback tries a sequence of Clients in order, moving to the next on any
// error from the current one. It exists so the Orchestrator can configure a
// primary provider (say, Anthropic) with one or more standby providers
// without threading retry logic through every call site.
type Fallback struct {
	clients []Client
	log     telemetry.Logger
}

// Option configures a Fallback.
type Option func(*Fallback)

// WithLogger attaches a Logger used to record which provider in the chain
// actually served a request.
func WithLogger(l telemetry.Logger) Option {
	return func(f *Fallback) { f.log = l }
}

// NewFallback builds a Fallback over clients, tried in the given order.
// Panics if clients is empty, since a Fallback with no providers can never
// serve a request.
func NewFallback(clients []Client, opts ...Option) *Fallback {
	if len(clients) == 0 {
		panic("llm: NewFallback requires at least one client")
	}
	f := &Fallback{clients: clients, log: telemetry.NewNoopLogger()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Complete tries each client in order, returning the first success.
func (f *Fallback) Complete(ctx context.Context, req *Request) (*Response, error) {
	var errs []error
	for i, c := range f.clients {
		resp, err := c.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		f.log.Warn(ctx, "llm: provider failed, trying next", "provider_index", i, "error", err.Error())
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("llm: all providers failed: %w", errors.Join(errs...))
}

// Stream tries each client in order, returning the first provider that
// accepts the stream. Mid-stream failures are not retried across providers
// since a partial response cannot be safely replayed into another client.
func (f *Fallback) Stream(ctx context.Context, req *Request) (Streamer, error) {
	var errs []error
	for i, c := range f.clients {
		s, err := c.Stream(ctx, req)
		if err == nil {
			return s, nil
		}
		f.log.Warn(ctx, "llm: provider stream failed, trying next", "provider_index", i, "error", err.Error())
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("llm: all providers failed: %w", errors.Join(errs...))
}
