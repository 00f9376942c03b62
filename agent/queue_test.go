package agent

import (
	"testing"

	"github.com/agentmesh/platform/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFOOrder(t *testing.T) {
	q := NewTaskQueue[string]("ingest", 4)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	item, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "a", item)

	item, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "b", item)

	_, ok = q.Dequeue()
	require.False(t, ok)
}

func TestEnqueueFailsAtCapacity(t *testing.T) {
	q := NewTaskQueue[int]("ingest", 2)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))

	err := q.Enqueue(3)
	require.Error(t, err)
	require.Equal(t, errs.CodeQueueFull, errs.AsError(err).Code)
}

func TestEnqueueFailsAfterDrain(t *testing.T) {
	q := NewTaskQueue[int]("ingest", 4)
	q.Drain()
	require.True(t, q.Closed())

	err := q.Enqueue(1)
	require.Error(t, err)
	require.Equal(t, errs.CodeQueueClosed, errs.AsError(err).Code)
}

func TestDrainStillAllowsDequeueOfQueuedItems(t *testing.T) {
	q := NewTaskQueue[int]("ingest", 4)
	require.NoError(t, q.Enqueue(1))
	q.Drain()

	item, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, item)
}

func TestDepthExcludesInFlightItem(t *testing.T) {
	q := NewTaskQueue[int]("ingest", 4)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.Equal(t, 2, q.Depth())

	_, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, q.Depth())
}
