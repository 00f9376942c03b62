package integration

import (
	"context"
	"time"

	"github.com/agentmesh/platform/agent"
	"github.com/agentmesh/platform/domain/command"
	"github.com/agentmesh/platform/internal/errs"
	"github.com/agentmesh/platform/internal/ids"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/internal/store"
)

// criticalEventTopic is where severity=critical EventRecords are published
// for alert subscribers (spec.md §4.10).
const criticalEventTopic = "event.critical"

const (
	criticalDeliveryAttempts = 5
	criticalDeliveryDeadline = 2 * time.Second
	criticalRetryBackoff     = 50 * time.Millisecond
)

// EventIntake validates, persists, and routes EventRecords submitted to
// POST /event (spec.md §4.10).
type EventIntake struct {
	relational *store.RelationalStore
	bus        *agent.Bus
	logger     *logging.Logger
}

// NewEventIntake builds an EventIntake.
func NewEventIntake(relational *store.RelationalStore, bus *agent.Bus, logger *logging.Logger) *EventIntake {
	return &EventIntake{relational: relational, bus: bus, logger: logger}
}

// Accept validates rec, persists it, and, for severity=critical, publishes
// it on event.critical with bounded retry. Accept stamps ID/Timestamp when
// absent so callers may submit either.
func (e *EventIntake) Accept(ctx context.Context, rec command.EventRecord) (command.EventRecord, error) {
	if rec.Source == "" || rec.EventType == "" {
		return rec, errs.Schema("source and event_type are required")
	}
	switch rec.Severity {
	case command.SeverityInfo, command.SeverityWarn, command.SeverityCritical:
	default:
		return rec, errs.Schema("severity must be info, warn, or critical")
	}

	if rec.ID == "" {
		rec.ID = ids.NewWithPrefix("event")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := e.relational.InsertEvent(ctx, rec); err != nil {
		return rec, errs.Internal("persist event", err)
	}

	if rec.Severity == command.SeverityCritical {
		e.publishCritical(ctx, rec)
	}
	return rec, nil
}

// publishCritical re-broadcasts on event.critical while any subscriber's
// queue is full, up to criticalDeliveryAttempts within
// criticalDeliveryDeadline. Because Bus.Publish fans out to every
// subscriber on each call, a retry re-delivers to subscribers that already
// received the message; the bus's at-least-once delivery contract already
// tolerates this.
func (e *EventIntake) publishCritical(ctx context.Context, rec command.EventRecord) {
	deadlineCtx, cancel := context.WithTimeout(ctx, criticalDeliveryDeadline)
	defer cancel()

	payload := map[string]any{
		"id":         rec.ID,
		"source":     rec.Source,
		"event_type": rec.EventType,
		"severity":   string(rec.Severity),
		"data":       rec.Data,
	}

	for attempt := 0; attempt < criticalDeliveryAttempts; attempt++ {
		overflow := e.bus.Publish(deadlineCtx, criticalEventTopic, payload, rec.CorrelationID)
		if len(overflow) == 0 {
			return
		}
		select {
		case <-deadlineCtx.Done():
			e.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"event_id": rec.ID,
				"pending":  len(overflow),
			}).Warn("critical event delivery deadline exceeded with pending subscribers")
			return
		case <-time.After(criticalRetryBackoff):
		}
	}
	e.logger.WithContext(ctx).WithFields(map[string]interface{}{"event_id": rec.ID}).
		Warn("critical event delivery attempts exhausted")
}
