// Package gateway implements the MCP Gateway: a registry of named services
// behind per-service circuit breakers and periodic health probing, with a
// uniform call surface. Grounded in original_source's MCPGateway
// (gateway/mcp_gateway.py) for the registry/call/health-loop shape, and in
// the teacher's features/model/gateway.Server for the Go construction idiom
// (functional options, constructor-injected collaborator, no globals).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/orchestrator/gateway/breaker"
	"github.com/opencode-ai/orchestrator/orcherrors"
	"github.com/opencode-ai/orchestrator/telemetry"
)

// Service is a capability provider the Gateway routes calls to.
type Service interface {
	// ServiceID uniquely identifies this service within the Gateway.
	ServiceID() string
	// Capabilities lists the method names this service exposes.
	Capabilities() []string
	// Execute invokes method with params and returns the result.
	Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error)
	// HealthCheck reports whether the service is currently healthy.
	HealthCheck(ctx context.Context) (bool, error)
	// Shutdown releases any resources held by the service.
	Shutdown(ctx context.Context) error
}

// Descriptor is the read-only view of a registered service returned by
// DiscoverServices.
type Descriptor struct {
	ID           string
	Capabilities []string
	Healthy      bool
}

var (
	// ErrServiceNotFound is returned by Call and Unregister for an unknown
	// service id.
	ErrServiceNotFound = errors.New("gateway: service not found")
	// ErrCircuitOpen is returned by Call when the service's breaker is open.
	ErrCircuitOpen = errors.New("gateway: circuit open")
)

type entry struct {
	service Service
	breaker *breaker.Breaker
	healthy bool
}

// Gateway is the service registry and call router described in section 4.3.
type Gateway struct {
	mu       sync.RWMutex
	services map[string]*entry

	healthInterval time.Duration
	breakerOpts    []breaker.Option
	log            telemetry.Logger
	tracer         telemetry.Tracer

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  chan struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHealthInterval overrides the default 30s health-probe interval.
func WithHealthInterval(d time.Duration) Option {
	return func(g *Gateway) { g.healthInterval = d }
}

// WithBreakerOptions applies opts to every circuit breaker the Gateway
// creates on Register.
func WithBreakerOptions(opts ...breaker.Option) Option {
	return func(g *Gateway) { g.breakerOpts = append(g.breakerOpts, opts...) }
}

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithTracer attaches a Tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// New constructs a Gateway. Call Start to begin the background health
// prober; a Gateway that is never started still routes calls correctly, it
// simply never flips a service's health bit.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		services:       make(map[string]*entry),
		healthInterval: 30 * time.Second,
		log:            telemetry.NewNoopLogger(),
		tracer:         telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Register records svc and initializes its circuit breaker. Registering an
// id that already exists replaces the prior entry without shutting it down;
// callers that need clean replacement should Unregister first.
func (g *Gateway) Register(svc Service) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.services[svc.ServiceID()] = &entry{
		service: svc,
		breaker: breaker.New(g.breakerOpts...),
		healthy: true,
	}
}

// Unregister drops id's entry and asks the service to shut down.
func (g *Gateway) Unregister(ctx context.Context, id string) error {
	g.mu.Lock()
	e, ok := g.services[id]
	if ok {
		delete(g.services, id)
	}
	g.mu.Unlock()
	if !ok {
		return ErrServiceNotFound
	}
	return e.service.Shutdown(ctx)
}

// Call is the hot path described in section 4.3: look up the service, check
// its circuit breaker, invoke Execute, and record the outcome. Failures
// from Execute always propagate; the Gateway never retries — that is the
// Executor's job.
func (g *Gateway) Call(ctx context.Context, serviceID, method string, params map[string]any) (map[string]any, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Call")
	defer span.End()

	g.mu.RLock()
	e, ok := g.services[serviceID]
	g.mu.RUnlock()
	if !ok {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID))
	}

	if !e.breaker.Allow() {
		g.log.Warn(ctx, "gateway: circuit open, rejecting call", "service_id", serviceID, "method", method)
		return nil, orcherrors.Wrap(orcherrors.KindCircuitOpen, fmt.Errorf("%w: %s", ErrCircuitOpen, serviceID))
	}

	result, err := e.service.Execute(ctx, method, params)
	if err != nil {
		e.breaker.RecordFailure()
		g.log.Error(ctx, "gateway: service call failed", "service_id", serviceID, "method", method, "error", err.Error())
		span.RecordError(err)
		return nil, orcherrors.Wrap(orcherrors.KindTransientTransport, err)
	}
	e.breaker.RecordSuccess()
	return result, nil
}

// DiscoverServices returns a cheap, read-only snapshot of every registered
// service's id, capabilities, and health bit.
func (g *Gateway) DiscoverServices() []Descriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Descriptor, 0, len(g.services))
	for id, e := range g.services {
		out = append(out, Descriptor{ID: id, Capabilities: e.service.Capabilities(), Healthy: e.healthy})
	}
	return out
}

// Start launches the background health prober. It returns immediately; the
// prober runs until ctx is canceled or Stop is called.
func (g *Gateway) Start(ctx context.Context) {
	g.stopCh = make(chan struct{})
	g.stopped = make(chan struct{})
	go g.healthLoop(ctx)
}

// Stop halts the background health prober and waits for it to exit.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		if g.stopCh != nil {
			close(g.stopCh)
		}
	})
	if g.stopped != nil {
		<-g.stopped
	}
}

func (g *Gateway) healthLoop(ctx context.Context) {
	defer close(g.stopped)
	ticker := time.NewTicker(g.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.probeAll(ctx)
		}
	}
}

func (g *Gateway) probeAll(ctx context.Context) {
	g.mu.RLock()
	ids := make([]string, 0, len(g.services))
	entries := make([]*entry, 0, len(g.services))
	for id, e := range g.services {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	g.mu.RUnlock()

	for i, id := range ids {
		e := entries[i]
		healthy, err := e.service.HealthCheck(ctx)
		if err != nil {
			healthy = false
			g.log.Error(ctx, "gateway: health check failed", "service_id", id, "error", err.Error())
		} else if !healthy {
			g.log.Warn(ctx, "gateway: service unhealthy", "service_id", id)
		}
		g.mu.Lock()
		if cur, ok := g.services[id]; ok {
			cur.healthy = healthy
		}
		g.mu.Unlock()
	}
}
