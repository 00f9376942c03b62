package integration

import (
	"context"
	"time"

	"github.com/agentmesh/platform/agent"
	"github.com/agentmesh/platform/domain/command"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/internal/store"
)

// notificationTopic carries operational notifications, distinct from
// domain events accepted through POST /event.
const notificationTopic = "notification"

// AuditLogger is the two-sink immutable audit trail (spec.md §4.9): every
// AuditRecord is written to the relational `audit` table and appended to a
// JSONL file. Both writes must succeed; a JSONL failure still leaves the
// DB record committed and raises a notification describing the divergence.
type AuditLogger struct {
	relational *store.RelationalStore
	jsonl      *store.JSONLWriter
	bus        *agent.Bus
	logger     *logging.Logger
}

// NewAuditLogger builds an AuditLogger writing through relational and jsonl.
func NewAuditLogger(relational *store.RelationalStore, jsonl *store.JSONLWriter, bus *agent.Bus, logger *logging.Logger) *AuditLogger {
	return &AuditLogger{relational: relational, jsonl: jsonl, bus: bus, logger: logger}
}

// Record writes rec to both sinks. The DB write is authoritative: its
// failure is returned to the caller. A JSONL failure is logged and
// published as a notification, but does not fail Record, since the record
// is already durably committed to the relational store.
func (a *AuditLogger) Record(ctx context.Context, rec command.AuditRecord) error {
	if err := a.relational.InsertAudit(ctx, rec); err != nil {
		return err
	}

	if err := a.jsonl.Append(rec); err != nil {
		a.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"request_id": rec.RequestID,
		}).Error("audit jsonl write failed, relational record already committed")
		a.bus.Publish(ctx, notificationTopic, map[string]any{
			"type":       "audit_sink_divergence",
			"request_id": rec.RequestID,
			"reason":     err.Error(),
			"at":         time.Now().UTC().Format(time.RFC3339Nano),
		}, rec.CorrelationID)
	}
	return nil
}

// Query delegates to the relational store (spec.md §4.9 "supports query by
// actor, integration, status, time range").
func (a *AuditLogger) Query(ctx context.Context, q store.AuditQuery) ([]command.AuditRecord, error) {
	return a.relational.QueryAudit(ctx, q)
}
