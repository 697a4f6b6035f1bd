// Package contextstore implements per-session conversation state: a
// process-local read-through cache backed by an optional durable store with
// TTL. It is grounded in the teacher's runtime/agent/session.Store lifecycle
// contract, generalized from session/run metadata to the free-form
// conversational Context this system's Orchestrator and Planner consume.
package contextstore

import (
	"time"
)

// Message is one entry in a Context's conversation history.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Context is per-session mutable state: identity, permissions, free-form
// metadata, a bounded conversation history, and active plugin identifiers.
// History is append-only except for oldest-drops once it exceeds MaxHistory.
type Context struct {
	SessionID     string
	UserID        string
	Permissions   map[string]struct{}
	Metadata      map[string]any
	History       []Message
	ActivePlugins []string
	MaxHistory    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// appendMessage appends msg to the history, dropping the oldest entry once
// the bound is exceeded.
func (c *Context) appendMessage(msg Message) {
	c.History = append(c.History, msg)
	if max := c.MaxHistory; max > 0 && len(c.History) > max {
		c.History = c.History[len(c.History)-max:]
	}
	c.UpdatedAt = msg.Timestamp
}

// clone returns a deep-enough copy of c so callers mutating a returned
// Context cannot corrupt the store's authoritative copy.
func (c *Context) clone() *Context {
	cp := *c
	cp.History = append([]Message(nil), c.History...)
	cp.ActivePlugins = append([]string(nil), c.ActivePlugins...)
	cp.Permissions = make(map[string]struct{}, len(c.Permissions))
	for k := range c.Permissions {
		cp.Permissions[k] = struct{}{}
	}
	cp.Metadata = make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
