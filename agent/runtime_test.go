package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuntimeStartsInitializing(t *testing.T) {
	r := NewRuntime()
	require.Equal(t, StatusInitializing, r.Status())
}

func TestRuntimeSetStatusTransitions(t *testing.T) {
	r := NewRuntime()
	r.SetStatus(StatusRunning)
	require.Equal(t, StatusRunning, r.Status())
}

func TestRuntimeHeartbeatRecordsTimestamp(t *testing.T) {
	r := NewRuntime()
	require.True(t, r.LastHeartbeat().IsZero())

	now := time.Now()
	r.Heartbeat(now)
	require.Equal(t, now, r.LastHeartbeat())
}

func TestRuntimeMetricsAccumulate(t *testing.T) {
	r := NewRuntime()
	r.SetMetric("queue_depth", 3)
	r.IncMetric("queue_depth", 2)
	r.IncMetric("processed", 1)

	metrics := r.Metrics()
	require.Equal(t, float64(5), metrics["queue_depth"])
	require.Equal(t, float64(1), metrics["processed"])
}
