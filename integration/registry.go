// Package integration implements the Integration Fabric: the Registry that
// catalogs integrations, the Router that dispatches Command envelopes
// against it, the Generic HTTP Connector, and the Audit Logger.
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/agentmesh/platform/domain/command"
)

// catalog is the JSON document shape loaded from the registry file
// (spec.md §6 "Integration Registry file").
type catalog struct {
	Version      string                     `json:"version"`
	Integrations []command.IntegrationSpec `json:"integrations"`
}

// Registry serves a snapshot of IntegrationSpec entries keyed by integration
// name (spec.md §4.6). Reloads swap the snapshot atomically; a command
// dispatched mid-reload keeps using the snapshot it resolved at dispatch time
// (spec.md §4.6 "Reload never invalidates already-dispatched commands").
type Registry struct {
	path     string
	snapshot atomic.Pointer[map[string]command.IntegrationSpec]
	mu       sync.Mutex // serializes Load, not Resolve/All
}

// NewRegistry constructs a Registry bound to a JSON document path. Call Load
// before serving any commands.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Load reads path and validates it, replacing the current snapshot only if
// every entry validates (spec.md §4.6 "all-or-nothing").
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("integration: read registry %s: %w", r.path, err)
	}

	var doc catalog
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("integration: parse registry: %w", err)
	}

	snapshot := make(map[string]command.IntegrationSpec, len(doc.Integrations))
	for _, spec := range doc.Integrations {
		if err := validateSpec(spec); err != nil {
			return fmt.Errorf("integration: invalid entry %q: %w", spec.Integration, err)
		}
		snapshot[spec.Integration] = spec
	}

	r.snapshot.Store(&snapshot)
	return nil
}

func validateSpec(spec command.IntegrationSpec) error {
	if spec.Integration == "" {
		return fmt.Errorf("integration name is required")
	}
	if spec.Category == "" {
		return fmt.Errorf("category is required")
	}
	if !spec.Native && spec.BaseURL == "" {
		return fmt.Errorf("native=false requires a resolvable base_url")
	}
	if spec.Risk == command.RiskAdmin && !spec.ConfirmRequired {
		return fmt.Errorf("risk=Admin requires confirm_required=true")
	}
	switch spec.Risk {
	case command.RiskReadOnly, command.RiskWrite, command.RiskAdmin:
	default:
		return fmt.Errorf("unknown risk %q", spec.Risk)
	}
	switch spec.Auth {
	case command.AuthNone, command.AuthAPIKey, command.AuthBasic, command.AuthOAuth2:
	default:
		return fmt.Errorf("unknown auth style %q", spec.Auth)
	}
	return nil
}

// Resolve returns the current snapshot's entry for integration, or false if
// absent.
func (r *Registry) Resolve(integration string) (command.IntegrationSpec, bool) {
	snap := r.snapshot.Load()
	if snap == nil {
		return command.IntegrationSpec{}, false
	}
	spec, ok := (*snap)[integration]
	return spec, ok
}

// All returns every entry in the current snapshot.
func (r *Registry) All() []command.IntegrationSpec {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]command.IntegrationSpec, 0, len(*snap))
	for _, spec := range *snap {
		out = append(out, spec)
	}
	return out
}
