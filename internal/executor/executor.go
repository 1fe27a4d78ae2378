// Package executor defines the contract between the gateway and the code
// that actually performs a tool's work, plus the two shipped
// implementations: in-process built-in tools and the backend proxy.
package executor

import "context"

// Result is the outcome contract every executor returns. The gateway never
// inspects Data beyond serializing it into the response envelope.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor performs a named tool call with validated arguments.
// Implementations may do arbitrary I/O; the gateway imposes no timeout of
// its own, so a slow tool stalls only its own session.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (Result, error)
}

// Router dispatches built-in tool names to the in-process executor and
// everything else to the backend. With no backend configured, unknown names
// report failure (they should not occur: the dispatcher rejects names that
// are not in the catalog).
type Router struct {
	Builtin *Builtin
	Backend Executor
}

// Execute implements Executor.
func (r *Router) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	if r.Builtin != nil && r.Builtin.Handles(name) {
		return r.Builtin.Execute(ctx, name, args)
	}
	if r.Backend != nil {
		return r.Backend.Execute(ctx, name, args)
	}
	return Result{Success: false, Error: "no executor configured for tool: " + name}, nil
}
