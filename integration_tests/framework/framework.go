// Package framework assembles the same Gateway/Executor/Memory/Context
// Store/Orchestrator graph cmd/orchestratord wires for a live deployment,
// but backed by in-process stub Gateway services and a scripted Planner
// LLM instead of real sandboxes, knowledge bases, or model providers. The
// tests package builds one end-to-end scenario per file on top of it,
// following the teacher's integration_tests/framework + integration_tests/
// tests split — adapted here from the teacher's subprocess-and-JSON-RPC
// harness (this system is not Goa-generated and has no wire protocol of
// its own to drive) to an in-process harness driving the real Orchestrator
// call graph directly.
package framework

import (
	"context"
	"fmt"
	"sort"

	"github.com/opencode-ai/orchestrator/contextstore"
	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/executoractor"
	"github.com/opencode-ai/orchestrator/gateway"
	"github.com/opencode-ai/orchestrator/memoryactor"
	"github.com/opencode-ai/orchestrator/orchestrator"
	"github.com/opencode-ai/orchestrator/planneractor"
)

// StubService is a gateway.Service backed by one callback per method name.
// Scenarios describe exactly the capability surface they need rather than
// standing up a real sandbox, knowledge base, or web-search deployment.
type StubService struct {
	id      string
	methods map[string]func(ctx context.Context, params map[string]any) (map[string]any, error)

	// Calls counts every Execute invocation, regardless of method.
	Calls int
}

// NewStubService constructs a StubService exposing exactly the methods in
// methods.
func NewStubService(id string, methods map[string]func(context.Context, map[string]any) (map[string]any, error)) *StubService {
	return &StubService{id: id, methods: methods}
}

func (s *StubService) ServiceID() string { return s.id }

func (s *StubService) Capabilities() []string {
	names := make([]string, 0, len(s.methods))
	for m := range s.methods {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

func (s *StubService) Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	s.Calls++
	fn, ok := s.methods[method]
	if !ok {
		return nil, fmt.Errorf("framework: stub service %q has no method %q", s.id, method)
	}
	return fn(ctx, params)
}

func (s *StubService) HealthCheck(context.Context) (bool, error) { return true, nil }
func (s *StubService) Shutdown(context.Context) error            { return nil }

// ScriptedPlannerLLM implements planneractor.LLM with a fixed canned
// response (or error), so a scenario can drive the real Planner's
// LLM-backed JSON-parse/validate/enrich path without a live model.
type ScriptedPlannerLLM struct {
	Response string
	Err      error
	Calls    int
}

func (s *ScriptedPlannerLLM) Complete(context.Context, string, []planneractor.Message, string) (string, error) {
	s.Calls++
	return s.Response, s.Err
}

// Harness wires a real Gateway, Executor, Memory, Context Store, and
// Orchestrator together, mirroring cmd/orchestratord's production wiring.
type Harness struct {
	Gateway      *gateway.Gateway
	Bus          *eventbus.Bus
	Orchestrator *orchestrator.Orchestrator
}

// New assembles a Harness around planner, registering every service in
// services on a fresh Gateway and connecting it to the Orchestrator through
// a real Executor.
func New(planner orchestrator.Planner, services []gateway.Service, opts ...orchestrator.Option) *Harness {
	gw := gateway.New()
	for _, svc := range services {
		gw.Register(svc)
	}
	bus := eventbus.New(256)
	executor := executoractor.New(gw, nil, bus)
	o := orchestrator.New(planner, executor, memoryactor.New(), contextstore.New(), bus, opts...)
	return &Harness{Gateway: gw, Bus: bus, Orchestrator: o}
}

// Drain collects every event from an Orchestrator.ProcessIntent channel
// until it closes.
func Drain(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for evt := range ch {
		out = append(out, evt)
	}
	return out
}

// Types projects an event slice onto its Type sequence.
func Types(events []eventbus.Event) []eventbus.Type {
	out := make([]eventbus.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// ContainsSubsequence reports whether every type in want appears in got, in
// the same relative order, not necessarily contiguously. Scenarios use this
// rather than exact equality because the Orchestrator may legitimately
// interleave additional events (an extra Thinking event ahead of
// synthesis, for example) around the ones a scenario cares about.
func ContainsSubsequence(got []eventbus.Type, want ...eventbus.Type) bool {
	i := 0
	for _, t := range got {
		if i < len(want) && t == want[i] {
			i++
		}
	}
	return i == len(want)
}
