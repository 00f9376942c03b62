package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/agentmesh/platform/domain/command"
)

// RelationalStore is the Postgres-backed sink for AuditRecord and
// EventRecord (spec.md §6 relational schema). It never mutates or deletes
// existing rows (spec.md §3 "AuditRecord/EventRecord are append-only").
type RelationalStore struct {
	db *sqlx.DB
}

// OpenRelationalStore opens a Postgres connection pool via lib/pq.
func OpenRelationalStore(ctx context.Context, dsn string) (*RelationalStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	return &RelationalStore{db: db}, nil
}

// NewRelationalStoreFromDB wraps an already-open sqlx.DB, used in tests to
// inject a sqlmock-backed connection (grounded on the teacher's
// applications/httpapi readers, which accept a raw *sql.DB constructor arg
// for the same reason).
func NewRelationalStoreFromDB(db *sqlx.DB) *RelationalStore {
	return &RelationalStore{db: db}
}

// Close closes the underlying connection pool.
func (s *RelationalStore) Close() error { return s.db.Close() }

// InsertAudit writes one AuditRecord inside a single-row transaction
// (spec.md §5 "the DB write uses a single-row transaction").
func (s *RelationalStore) InsertAudit(ctx context.Context, rec command.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal audit metadata: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin audit tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO audit (id, timestamp, request_id, actor, integration, action, category,
			params_hash, response_hash, status, duration_ms, error_message, risk, confirmed,
			correlation_id, metadata)
		VALUES (:id, :timestamp, :request_id, :actor, :integration, :action, :category,
			:params_hash, :response_hash, :status, :duration_ms, :error_message, :risk, :confirmed,
			:correlation_id, :metadata)
	`, auditRow{
		AuditRecord: rec,
		MetadataRaw: metadata,
	})
	if err != nil {
		return fmt.Errorf("store: insert audit record: %w", err)
	}
	return tx.Commit()
}

// auditRow adapts AuditRecord's metadata map to a raw JSON column for sqlx.
type auditRow struct {
	command.AuditRecord
	MetadataRaw []byte `db:"metadata"`
}

// AuditQuery filters QueryAudit results. Zero-valued fields are unfiltered.
type AuditQuery struct {
	Actor       string
	Integration string
	Status      command.Status
	Since       time.Time
	Until       time.Time
	Limit       int
}

// QueryAudit returns audit records matching q, newest first.
func (s *RelationalStore) QueryAudit(ctx context.Context, q AuditQuery) ([]command.AuditRecord, error) {
	clause, args := q.build()
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT id, timestamp, request_id, actor, integration, action, category,
			params_hash, response_hash, status, duration_ms, error_message, risk, confirmed,
			correlation_id
		FROM audit %s ORDER BY timestamp DESC LIMIT %d
	`, clause, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query audit: %w", err)
	}
	defer rows.Close()

	var out []command.AuditRecord
	for rows.Next() {
		var rec command.AuditRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("store: scan audit row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (q AuditQuery) build() (string, []any) {
	clause := ""
	var args []any
	add := func(cond string, val any) {
		if clause == "" {
			clause = "WHERE " + cond
		} else {
			clause += " AND " + cond
		}
		args = append(args, val)
	}
	if q.Actor != "" {
		add(fmt.Sprintf("actor = $%d", len(args)+1), q.Actor)
	}
	if q.Integration != "" {
		add(fmt.Sprintf("integration = $%d", len(args)+1), q.Integration)
	}
	if q.Status != "" {
		add(fmt.Sprintf("status = $%d", len(args)+1), string(q.Status))
	}
	if !q.Since.IsZero() {
		add(fmt.Sprintf("timestamp >= $%d", len(args)+1), q.Since)
	}
	if !q.Until.IsZero() {
		add(fmt.Sprintf("timestamp <= $%d", len(args)+1), q.Until)
	}
	return clause, args
}

// InsertEvent persists one EventRecord in insertion order (spec.md §4.10
// "All events are persisted in the events table in insertion order").
func (s *RelationalStore) InsertEvent(ctx context.Context, rec command.EventRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("store: marshal event data: %w", err)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO events (id, timestamp, source, event_type, severity, correlation_id, data, handled)
		VALUES (:id, :timestamp, :source, :event_type, :severity, :correlation_id, :data, :handled)
	`, eventRow{EventRecord: rec, DataRaw: data})
	if err != nil {
		return fmt.Errorf("store: insert event record: %w", err)
	}
	return nil
}

type eventRow struct {
	command.EventRecord
	DataRaw []byte `db:"data"`
}
