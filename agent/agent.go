package agent

import "context"

// Agent is the uniform contract every supervised unit implements
// (spec.md §4.1). The framework never relies on class identity or
// inheritance: agents are values implementing this interface plus
// composition with framework services (Base, Bus, TaskQueue).
type Agent interface {
	ErrorHandler

	// ID returns the agent's descriptor id.
	ID() string

	// Initialize acquires resources scoped to the agent (directories, DB
	// connections, bus subscriptions). Must be idempotent.
	Initialize(ctx context.Context) error

	// Start transitions Initializing->Running and spawns all registered loops.
	Start(ctx context.Context) error

	// Stop requests Draining: new tasks are refused, in-flight tasks are
	// allowed to finish up to a deadline, then loops exit and resources are
	// released on all exit paths.
	Stop(ctx context.Context) error

	// Handle dispatches a named public operation with its parameters,
	// returning CodeUnknownOperation if op isn't registered.
	Handle(ctx context.Context, op string, params map[string]any) (any, error)

	// Runtime exposes the agent's mutable AgentRuntime for health reporting.
	Runtime() *Runtime
}
