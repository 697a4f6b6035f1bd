// Package pulsebroker publishes research progress onto a Redis-backed
// goa.design/pulse stream, one stream per research task, so a deployment
// running more than one orchestratord instance can fan a task's steps out
// to every instance instead of only the one holding the task in memory.
// Grounded directly in the teacher's
// features/stream/pulse/clients/pulse.Client: the same
// Redis-connection-in/typed-stream-handle-out layering, trimmed to the one
// operation this project's producer side needs (Add); the consumer
// (Sink-based Subscribe) side is not implemented here since
// research/httpapi's single-instance demo deployment serves streaming
// reads directly from research.Workflow's in-process task map — wiring a
// Sink-based subscriber is future work for a true multi-instance
// deployment, noted in DESIGN.md.
package pulsebroker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// Options configures a Client.
type Options struct {
	// Redis is the connection Pulse streams are backed by. Required.
	Redis *redis.Client
	// StreamMaxLen bounds the number of entries kept per stream. Zero uses
	// Pulse's own default.
	StreamMaxLen int
	// OperationTimeout bounds individual Add calls. Zero means no timeout.
	OperationTimeout time.Duration
}

// Client opens named Pulse streams backed by a shared Redis connection.
type Client interface {
	// Stream returns a handle to the named stream, creating it if needed.
	Stream(name string) (Stream, error)
}

// Stream is the subset of a Pulse stream this project's producer side
// needs: publishing an event payload.
type Stream interface {
	// Add publishes payload under event to the stream, returning the
	// Redis-assigned entry ID.
	Add(ctx context.Context, event string, payload []byte) (string, error)
}

type client struct {
	redis   *redis.Client
	maxLen  int
	timeout time.Duration
}

// New constructs a Client over opts.Redis.
func New(opts Options) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("pulsebroker: redis connection is required")
	}
	return &client{redis: opts.Redis, maxLen: opts.StreamMaxLen, timeout: opts.OperationTimeout}, nil
}

func (c *client) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("pulsebroker: stream name is required")
	}
	var opts []streamopts.Stream
	if c.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(c.maxLen))
	}
	str, err := streaming.NewStream(name, c.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulsebroker: open stream %q: %w", name, err)
	}
	return &handle{stream: str, timeout: c.timeout}, nil
}

type handle struct {
	stream  *streaming.Stream
	timeout time.Duration
}

func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if event == "" {
		return "", errors.New("pulsebroker: event name is required")
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	return h.stream.Add(ctx, event, payload)
}
