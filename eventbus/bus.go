package eventbus

import (
	"context"
	"fmt"
	"sync"
)

type (
	// Handler reacts to a published Event and may itself produce response
	// events (e.g. a subscriber that re-publishes a derived event). Most
	// handlers return (nil, nil).
	Handler func(ctx context.Context, evt Event) ([]Event, error)

	// Middleware transforms an event before it reaches handlers, or
	// suppresses it entirely by returning ok=false. Middleware runs in
	// registration order; the first middleware to suppress an event stops
	// the chain.
	Middleware func(evt Event) (out Event, ok bool)

	// Subscription represents a handler registration. Close is idempotent.
	Subscription interface {
		Close()
	}

	// Bus is the in-process publish/subscribe hub described in section 4.1:
	// typed handlers keyed by event type, wildcard handlers that see every
	// event, a middleware chain, and a bounded history ring buffer.
	Bus struct {
		mu         sync.RWMutex
		typed      map[Type][]*registration
		wildcard   []*registration
		middleware []Middleware
		history    []Event
		maxHistory int
		nextID     uint64
	}

	registration struct {
		id      uint64
		handler Handler
		label   string
	}
)

// New constructs a Bus with the given history capacity. A maxHistory of 0
// or less defaults to 1000, matching the actor mailbox default in section 5.
func New(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &Bus{
		typed:      make(map[Type][]*registration),
		maxHistory: maxHistory,
	}
}

// Use appends a middleware to the chain. Middleware registered earlier runs
// first.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// OnType registers a handler invoked only for events of the given type.
func (b *Bus) OnType(t Type, label string, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	reg := &registration{id: b.nextID, handler: h, label: label}
	b.typed[t] = append(b.typed[t], reg)
	return &typedSubscription{bus: b, eventType: t, id: reg.id}
}

// OnAny registers a handler invoked for every event regardless of type.
func (b *Bus) OnAny(label string, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	reg := &registration{id: b.nextID, handler: h, label: label}
	b.wildcard = append(b.wildcard, reg)
	return &wildcardSubscription{bus: b, id: reg.id}
}

// Emit runs the middleware chain over evt, then invokes every matching typed
// handler (in registration order) followed by every wildcard handler, and
// returns the concatenation of all response events in that order. A handler
// panic or returned error is caught and converted into an ERROR event
// carrying {message, handler_identifier, original_event} rather than
// propagating, so one misbehaving subscriber cannot take down the bus.
//
// Emit also appends evt (post-middleware) to the bounded history buffer
// before dispatch, so History() reflects in-flight emissions.
func (b *Bus) Emit(ctx context.Context, evt Event) []Event {
	transformed, ok := b.applyMiddleware(evt)
	if !ok {
		return nil
	}
	b.appendHistory(transformed)

	b.mu.RLock()
	handlers := make([]*registration, 0, len(b.typed[transformed.Type])+len(b.wildcard))
	handlers = append(handlers, b.typed[transformed.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	var responses []Event
	for _, reg := range handlers {
		out := b.invoke(ctx, reg, transformed)
		responses = append(responses, out...)
	}
	return responses
}

// Publish is Emit's fire-and-forget form: it runs the same dispatch but
// discards any response events.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.Emit(ctx, evt)
}

// EmitAndCollect is an alias for Emit kept to mirror the spec's naming;
// Emit already materializes and returns every response, so no additional
// collection step is needed.
func (b *Bus) EmitAndCollect(ctx context.Context, evt Event) []Event {
	return b.Emit(ctx, evt)
}

// History returns a snapshot of the last maxHistory emitted events, oldest
// first. The returned slice is a copy; mutating it does not affect the bus.
func (b *Bus) History() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Bus) applyMiddleware(evt Event) (Event, bool) {
	b.mu.RLock()
	chain := make([]Middleware, len(b.middleware))
	copy(chain, b.middleware)
	b.mu.RUnlock()

	for _, mw := range chain {
		var ok bool
		evt, ok = mw(evt)
		if !ok {
			return Event{}, false
		}
	}
	return evt, true
}

func (b *Bus) appendHistory(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, evt)
	if over := len(b.history) - b.maxHistory; over > 0 {
		b.history = b.history[over:]
	}
}

func (b *Bus) invoke(ctx context.Context, reg *registration, evt Event) (out []Event) {
	defer func() {
		if r := recover(); r != nil {
			out = []Event{errorEventFor(reg, evt, fmt.Sprintf("panic: %v", r))}
		}
	}()
	resp, err := reg.handler(ctx, evt)
	if err != nil {
		return []Event{errorEventFor(reg, evt, err.Error())}
	}
	return resp
}

func errorEventFor(reg *registration, original Event, message string) Event {
	return Event{
		Type: ErrorType,
		Payload: Payload{
			Content: message,
			Data: HandlerError{
				Message:           message,
				HandlerIdentifier: reg.label,
				OriginalEvent:     original,
			},
		},
		Source:        "eventbus",
		CorrelationID: original.CorrelationID,
	}
}

type typedSubscription struct {
	bus       *Bus
	eventType Type
	id        uint64
	once      sync.Once
}

func (s *typedSubscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		regs := s.bus.typed[s.eventType]
		for i, r := range regs {
			if r.id == s.id {
				s.bus.typed[s.eventType] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	})
}

type wildcardSubscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

func (s *wildcardSubscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for i, r := range s.bus.wildcard {
			if r.id == s.id {
				s.bus.wildcard = append(s.bus.wildcard[:i], s.bus.wildcard[i+1:]...)
				return
			}
		}
	})
}
