// Package orchestrator implements the root supervisor (spec.md §4.3): it is
// the only component permitted to construct, start, or destroy agents. All
// other interactions with an agent go through the bus or through operations
// the Orchestrator authorized at registration time.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentmesh/platform/agent"
	"github.com/agentmesh/platform/internal/logging"
)

// Factory builds an agent from its descriptor. Called exactly once, by the
// Orchestrator, during start_all.
type Factory func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error)

type registration struct {
	desc    agent.Descriptor
	factory Factory
	built   agent.Agent
}

// AgentHealth is one row of the health() report (spec.md §4.3).
type AgentHealth struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Status            agent.Status       `json:"status"`
	LastHeartbeatAgo  *time.Duration     `json:"last_heartbeat_ago,omitempty"`
	QueueDepths       map[string]int     `json:"queue_depths,omitempty"`
}

// Orchestrator owns the dependency graph, the agent registry, and the bus.
type Orchestrator struct {
	mu     sync.RWMutex
	bus    *agent.Bus
	logger *logging.Logger
	order  []string // registration order, preserved for resolveOrder's tiebreak
	regs   map[string]*registration
	deps   map[string][]string

	startedOrder []string // actual start order, for reverse-order stop
}

// New constructs an Orchestrator around a shared Bus.
func New(bus *agent.Bus, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewFromEnv("orchestrator")
	}
	return &Orchestrator{
		bus:    bus,
		logger: logger,
		regs:   make(map[string]*registration),
		deps:   make(map[string][]string),
	}
}

// Register records an AgentDescriptor and its builder. Duplicate ids are
// rejected (spec.md §4.3).
func (o *Orchestrator) Register(desc agent.Descriptor, factory Factory) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if desc.ID == "" {
		return fmt.Errorf("orchestrator: descriptor requires a non-empty id")
	}
	if _, exists := o.regs[desc.ID]; exists {
		return fmt.Errorf("orchestrator: agent %q already registered", desc.ID)
	}

	o.regs[desc.ID] = &registration{desc: desc, factory: factory}
	o.deps[desc.ID] = append([]string{}, desc.Dependencies...)
	o.order = append(o.order, desc.ID)
	return nil
}

// Agent returns a registered, built agent by id.
func (o *Orchestrator) Agent(id string) (agent.Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	reg, ok := o.regs[id]
	if !ok || reg.built == nil {
		return nil, false
	}
	return reg.built, true
}

// StartAll builds every registered agent in dependency order, then calls
// Initialize then Start on each. On any failure it stops the agents already
// started, in reverse order, and returns the original error (spec.md §4.3
// "abort startup and stop any already-started agents in reverse order").
func (o *Orchestrator) StartAll(ctx context.Context) error {
	o.mu.Lock()
	names := append([]string{}, o.order...)
	deps := make(map[string][]string, len(o.deps))
	for k, v := range o.deps {
		deps[k] = v
	}
	o.mu.Unlock()

	order, err := resolveOrder(names, deps)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	var started []string
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			o.stopStarted(context.Background(), started)
			return err
		}

		o.mu.Lock()
		reg := o.regs[id]
		o.mu.Unlock()

		a, err := reg.factory(reg.desc, o.bus)
		if err != nil {
			o.logger.WithError(err).WithFields(map[string]interface{}{"agent": id}).
				Error("agent construction failed")
			o.stopStarted(context.Background(), started)
			return fmt.Errorf("orchestrator: build %s: %w", id, err)
		}

		o.mu.Lock()
		reg.built = a
		o.mu.Unlock()

		if err := a.Initialize(ctx); err != nil {
			a.Runtime().SetStatus(agent.StatusFailed)
			o.stopStarted(context.Background(), started)
			return fmt.Errorf("orchestrator: initialize %s: %w", id, err)
		}
		if err := a.Start(ctx); err != nil {
			a.Runtime().SetStatus(agent.StatusFailed)
			o.stopStarted(context.Background(), started)
			return fmt.Errorf("orchestrator: start %s: %w", id, err)
		}

		started = append(started, id)
		o.logger.WithFields(map[string]interface{}{"agent": id}).Info("agent started")
	}

	o.mu.Lock()
	o.startedOrder = started
	o.mu.Unlock()
	return nil
}

// stopStarted stops agents in started in reverse order, best-effort, used
// for rollback on a failed StartAll.
func (o *Orchestrator) stopStarted(ctx context.Context, started []string) {
	for _, id := range reverse(started) {
		o.mu.RLock()
		reg := o.regs[id]
		o.mu.RUnlock()
		if reg == nil || reg.built == nil {
			continue
		}
		if err := reg.built.Stop(ctx); err != nil {
			o.logger.WithError(err).WithFields(map[string]interface{}{"agent": id}).
				Warn("rollback stop failed")
		}
	}
}

// StopAll stops every started agent in reverse dependency order, enforcing a
// global deadline. Agents whose Stop has not returned by the deadline are
// force-marked Failed and abandoned (spec.md §4.3 "force-terminate loops
// that have not exited by the deadline").
func (o *Orchestrator) StopAll(deadline time.Duration) error {
	o.mu.RLock()
	started := append([]string{}, o.startedOrder...)
	o.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	var wg sync.WaitGroup
	for _, id := range reverse(started) {
		o.mu.RLock()
		reg := o.regs[id]
		o.mu.RUnlock()
		if reg == nil || reg.built == nil {
			continue
		}

		wg.Add(1)
		go func(id string, a agent.Agent) {
			defer wg.Done()
			done := make(chan error, 1)
			go func() { done <- a.Stop(ctx) }()
			select {
			case err := <-done:
				if err != nil {
					o.logger.WithError(err).WithFields(map[string]interface{}{"agent": id}).
						Warn("agent stop returned error")
				}
			case <-ctx.Done():
				a.Runtime().SetStatus(agent.StatusFailed)
				o.logger.WithFields(map[string]interface{}{"agent": id}).
					Error("agent did not stop by deadline, marked failed")
			}
		}(id, reg.built)
	}

	allDone := make(chan struct{})
	go func() { wg.Wait(); close(allDone) }()

	select {
	case <-allDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: stop_all deadline exceeded")
	}
}

// Health returns per-agent status, heartbeat age, and queue depths.
func (o *Orchestrator) Health() []AgentHealth {
	o.mu.RLock()
	ids := append([]string{}, o.order...)
	o.mu.RUnlock()

	out := make([]AgentHealth, 0, len(ids))
	for _, id := range ids {
		o.mu.RLock()
		reg := o.regs[id]
		o.mu.RUnlock()
		if reg == nil {
			continue
		}

		h := AgentHealth{ID: reg.desc.ID, Name: reg.desc.Name}
		if reg.built == nil {
			h.Status = agent.StatusInitializing
			out = append(out, h)
			continue
		}
		h.Status = reg.built.Runtime().Status()
		if lhb := reg.built.Runtime().LastHeartbeat(); !lhb.IsZero() {
			age := time.Since(lhb)
			h.LastHeartbeatAgo = &age
		}
		if depther, ok := reg.built.(interface{ QueueDepths() map[string]int }); ok {
			h.QueueDepths = depther.QueueDepths()
		}
		out = append(out, h)
	}
	return out
}

// Graph returns the dependency edges for /api/graph introspection.
func (o *Orchestrator) Graph() map[string][]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string][]string, len(o.deps))
	for k, v := range o.deps {
		out[k] = append([]string{}, v...)
	}
	return out
}
