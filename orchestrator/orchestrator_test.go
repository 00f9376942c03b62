package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/platform/agent"
)

type stubAgent struct {
	id        string
	runtime   *agent.Runtime
	startErr  error
	initErr   error
	stopDelay time.Duration
	stopped   *bool
}

func newStubAgent(id string, stopped *bool) *stubAgent {
	return &stubAgent{id: id, runtime: agent.NewRuntime(), stopped: stopped}
}

func (s *stubAgent) ID() string { return s.id }
func (s *stubAgent) Initialize(ctx context.Context) error {
	return s.initErr
}
func (s *stubAgent) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.runtime.SetStatus(agent.StatusRunning)
	return nil
}
func (s *stubAgent) Stop(ctx context.Context) error {
	if s.stopDelay > 0 {
		select {
		case <-time.After(s.stopDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.stopped != nil {
		*s.stopped = true
	}
	s.runtime.SetStatus(agent.StatusStopped)
	return nil
}
func (s *stubAgent) Handle(ctx context.Context, op string, params map[string]any) (any, error) {
	return nil, nil
}
func (s *stubAgent) Runtime() *agent.Runtime { return s.runtime }
func (s *stubAgent) HandleError(kind agent.ErrorKind, data map[string]any) agent.ErrorOutcome {
	return agent.ErrorOutcome{Success: true, Action: agent.ActionNone}
}

func TestStartAllOrdersByDependency(t *testing.T) {
	o := New(agent.NewBus(), nil)

	var startOrder []string
	makeFactory := func(id string) Factory {
		return func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
			a := newStubAgent(id, nil)
			return &recordingAgent{stubAgent: a, id: id, order: &startOrder}, nil
		}
	}

	require.NoError(t, o.Register(agent.Descriptor{ID: "b", Dependencies: []string{"a"}}, makeFactory("b")))
	require.NoError(t, o.Register(agent.Descriptor{ID: "a"}, makeFactory("a")))
	require.NoError(t, o.Register(agent.Descriptor{ID: "c", Dependencies: []string{"b"}}, makeFactory("c")))

	require.NoError(t, o.StartAll(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, startOrder)
}

type recordingAgent struct {
	*stubAgent
	id    string
	order *[]string
}

func (r *recordingAgent) Start(ctx context.Context) error {
	*r.order = append(*r.order, r.id)
	return r.stubAgent.Start(ctx)
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	o := New(agent.NewBus(), nil)
	factory := func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		return newStubAgent(desc.ID, nil), nil
	}
	require.NoError(t, o.Register(agent.Descriptor{ID: "a"}, factory))
	err := o.Register(agent.Descriptor{ID: "a"}, factory)
	assert.Error(t, err)
}

func TestStartAllRollsBackOnFailure(t *testing.T) {
	o := New(agent.NewBus(), nil)

	var aStopped, bStopped bool
	require.NoError(t, o.Register(agent.Descriptor{ID: "a"}, func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		return newStubAgent("a", &aStopped), nil
	}))
	require.NoError(t, o.Register(agent.Descriptor{ID: "b", Dependencies: []string{"a"}}, func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		return newStubAgent("b", &bStopped), nil
	}))
	require.NoError(t, o.Register(agent.Descriptor{ID: "c", Dependencies: []string{"b"}}, func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		failing := newStubAgent("c", nil)
		failing.startErr = fmt.Errorf("boom")
		return failing, nil
	}))

	err := o.StartAll(context.Background())
	require.Error(t, err)
	assert.True(t, aStopped, "a should be rolled back")
	assert.True(t, bStopped, "b should be rolled back")
}

func TestDependencyCycleRejected(t *testing.T) {
	o := New(agent.NewBus(), nil)
	factory := func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		return newStubAgent(desc.ID, nil), nil
	}
	require.NoError(t, o.Register(agent.Descriptor{ID: "a", Dependencies: []string{"b"}}, factory))
	require.NoError(t, o.Register(agent.Descriptor{ID: "b", Dependencies: []string{"a"}}, factory))

	err := o.StartAll(context.Background())
	assert.Error(t, err)
}

func TestStopAllEnforcesDeadline(t *testing.T) {
	o := New(agent.NewBus(), nil)
	slow := newStubAgent("slow", nil)
	slow.stopDelay = 200 * time.Millisecond

	require.NoError(t, o.Register(agent.Descriptor{ID: "slow"}, func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		return slow, nil
	}))
	require.NoError(t, o.StartAll(context.Background()))

	err := o.StopAll(20 * time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, agent.StatusFailed, slow.Runtime().Status())
}

func TestHealthReportsStatusAndHeartbeat(t *testing.T) {
	o := New(agent.NewBus(), nil)
	require.NoError(t, o.Register(agent.Descriptor{ID: "a", Name: "agent-a"}, func(desc agent.Descriptor, bus *agent.Bus) (agent.Agent, error) {
		return newStubAgent("a", nil), nil
	}))
	require.NoError(t, o.StartAll(context.Background()))

	a, ok := o.Agent("a")
	require.True(t, ok)
	a.Runtime().Heartbeat(time.Now())

	health := o.Health()
	require.Len(t, health, 1)
	assert.Equal(t, "a", health[0].ID)
	assert.Equal(t, agent.StatusRunning, health[0].Status)
	assert.NotNil(t, health[0].LastHeartbeatAgo)
}
