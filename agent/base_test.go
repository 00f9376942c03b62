package agent

import (
	"context"
	"testing"
	"time"

	"github.com/agentmesh/platform/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestDispatchRunsRegisteredOperation(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)
	b.RegisterOperation("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params["value"], nil
	})

	out, err := b.Dispatch(context.Background(), "echo", map[string]any{"value": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", out)
}

func TestDispatchUnknownOperationReturnsUnknownOperationError(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)

	_, err := b.Dispatch(context.Background(), "missing", nil)
	require.Error(t, err)
	require.Equal(t, errs.CodeUnknownOperation, errs.AsError(err).Code)
}

func TestRegisterQueueRejectsDuplicateName(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)

	_, err := RegisterQueue[int](b, "ingest", 4)
	require.NoError(t, err)

	_, err = RegisterQueue[int](b, "ingest", 4)
	require.Error(t, err)
}

func TestQueueDepthsReflectsRegisteredQueues(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)
	q, err := RegisterQueue[string](b, "ingest", 4)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	depths := b.QueueDepths()
	require.Equal(t, 2, depths["ingest"])
}

func TestSpawnLoopTicksFromInjectedClock(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)
	clk := newFakeClock(time.Unix(0, 0))
	b.SetClock(clk)

	ticks := make(chan struct{}, 8)
	b.SpawnLoop("ticker", time.Second, func(ctx context.Context) error {
		ticks <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartLoops(ctx, nil)
	clk.WaitForTicker()

	clk.Advance(time.Second)
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("loop body did not run after clock advance")
	}

	require.False(t, b.Runtime().LastHeartbeat().IsZero())
}

func TestHeartbeatUsesInjectedClockTime(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)
	clk := newFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b.SetClock(clk)

	b.Heartbeat()
	require.Equal(t, clk.Now(), b.Runtime().LastHeartbeat())
}

func TestSpawnLoopReportsBodyErrorToOnError(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)

	reported := make(chan ErrorKind, 1)
	b.SpawnLoop("failing", 0, func(ctx context.Context) error {
		return errs.Internal("boom", nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.StartLoops(ctx, func(kind ErrorKind, data map[string]any) {
		select {
		case reported <- kind:
		default:
		}
	})

	select {
	case kind := <-reported:
		require.Equal(t, ErrorKindAPI, kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected loop error to be reported")
	}
	cancel()
}

func TestBeginDrainClosesStopChanAndWaitsForLoops(t *testing.T) {
	b := NewBase("agent-1", "test-agent", nil, nil)
	b.SetStopDeadline(time.Second)

	b.SpawnLoop("work", 0, func(ctx context.Context) error {
		select {
		case <-b.StopChan():
			return nil
		default:
			return nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartLoops(ctx, nil)

	done := make(chan struct{})
	go func() {
		b.BeginDrain(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BeginDrain did not return")
	}
	require.Equal(t, StatusDraining, b.Runtime().Status())
}
