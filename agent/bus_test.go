package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	sub1 := bus.Subscribe("market.pool.created", 4)
	sub2 := bus.Subscribe("market.pool.created", 4)

	overflow := bus.Publish(context.Background(), "market.pool.created", map[string]any{"pool_id": "p1"}, "corr-1")
	require.Empty(t, overflow)

	msg1 := <-sub1.Messages()
	msg2 := <-sub2.Messages()
	require.Equal(t, "p1", msg1.Payload["pool_id"])
	require.Equal(t, "corr-1", msg2.CorrelationID)
}

func TestPublishReportsOverflowWithoutBlocking(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("events.critical", 1)

	overflow1 := bus.Publish(context.Background(), "events.critical", map[string]any{"n": 1}, "")
	require.Empty(t, overflow1)

	overflow2 := bus.Publish(context.Background(), "events.critical", map[string]any{"n": 2}, "")
	require.Len(t, overflow2, 1)
	require.Equal(t, sub.ID, overflow2[0].SubscriberID)
}

func TestUnsubscribeRemovesSubscriberFromFurtherDeliveries(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("events.critical", 4)
	require.Equal(t, 1, bus.SubscriberCount("events.critical"))

	sub.Unsubscribe()
	require.Equal(t, 0, bus.SubscriberCount("events.critical"))

	overflow := bus.Publish(context.Background(), "events.critical", map[string]any{}, "")
	require.Empty(t, overflow)
}

func TestOneSubscriberOverflowDoesNotAffectOthers(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe("events.critical", 1)
	fast := bus.Subscribe("events.critical", 4)

	bus.Publish(context.Background(), "events.critical", map[string]any{"n": 1}, "")
	overflow := bus.Publish(context.Background(), "events.critical", map[string]any{"n": 2}, "")

	require.Len(t, overflow, 1)
	require.Equal(t, slow.ID, overflow[0].SubscriberID)
	require.Len(t, fast.Messages(), 2)
}

func TestTopicsListsOnlyTopicsWithLiveSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("market.pool.created", 4)
	require.ElementsMatch(t, []string{"market.pool.created"}, bus.Topics())

	sub.Unsubscribe()
	require.Empty(t, bus.Topics())
}
