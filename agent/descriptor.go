package agent

// Kind classifies an agent for registry/introspection purposes.
type Kind string

// Descriptor is the immutable-after-registration record an agent is built from
// (spec.md §3 AgentDescriptor). The Orchestrator is the only component that
// constructs agents from a Descriptor (spec.md §4.3).
type Descriptor struct {
	ID           string
	Name         string
	Kind         Kind
	Config       map[string]any
	Dependencies []string // other agent ids this agent depends on
}
