// Package routeractor implements the Router Actor: a fixed mapping from
// abstract tool names to the Gateway service id that provides them.
// Grounded in original_source's mcp_gateway conventions, where each
// MCPService registers under a stable service_id and tools are addressed
// by a "service.method"-shaped or bare tool name resolved against a static
// table rather than service discovery.
package routeractor

import (
	"fmt"
	"sync"
)

// ErrUnknownTool is returned by Resolve for a tool with no registered
// mapping.
type ErrUnknownTool struct{ Tool string }

func (e *ErrUnknownTool) Error() string { return fmt.Sprintf("routeractor: unknown tool %q", e.Tool) }

// Router maps abstract tool names to service ids. Safe for concurrent use.
type Router struct {
	mu    sync.RWMutex
	table map[string]string
}

// New constructs a Router seeded with the given tool→service table. An
// empty table is valid; entries can be added later with Register.
func New(table map[string]string) *Router {
	r := &Router{table: make(map[string]string, len(table))}
	for tool, service := range table {
		r.table[tool] = service
	}
	return r
}

// Register adds or overwrites the mapping for tool.
func (r *Router) Register(tool, service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[tool] = service
}

// Resolve returns the service id that provides tool, or ErrUnknownTool.
func (r *Router) Resolve(tool string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	service, ok := r.table[tool]
	if !ok {
		return "", &ErrUnknownTool{Tool: tool}
	}
	return service, nil
}
