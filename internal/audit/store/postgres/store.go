package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"provisor/internal/audit"
	id "provisor/pkg/domain"
	txcontext "provisor/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append writes the outbox table inside the caller's transaction; the
// relay publishes to Kafka and the consumer materializes audit_entries.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an audit entry to the outbox table for publishing.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	payload, err := audit.EncodeEntry(entry)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO audit_outbox (id, key, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		entry.ID.String(),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID materializes an entry into audit_entries for querying.
// Used by the consumer; idempotent via ON CONFLICT DO NOTHING so topic
// redeliveries are harmless.
func (s *Store) AppendWithID(ctx context.Context, entryID id.EntryID, entry audit.Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, request_id, employee_id, action, outcome,
			target, detail, actor, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(entryID),
		uuid.UUID(entry.RequestID),
		entry.EmployeeID.String(),
		string(entry.Action),
		string(entry.Outcome),
		entry.Target,
		entry.Detail,
		entry.Actor,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByRequest returns the materialized entries for one request in
// chronological order.
func (s *Store) ListByRequest(ctx context.Context, requestID id.RequestID) ([]audit.Entry, error) {
	query := `
		SELECT id, request_id, employee_id, action, outcome,
			   target, detail, actor, timestamp
		FROM audit_entries
		WHERE request_id = $1
		ORDER BY timestamp
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRecent returns the N most recent materialized entries.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, request_id, employee_id, action, outcome,
			   target, detail, actor, timestamp
		FROM audit_entries
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			entryID    uuid.UUID
			requestID  uuid.UUID
			employeeID string
			action     string
			outcome    string
			entry      audit.Entry
		)
		err := rows.Scan(
			&entryID,
			&requestID,
			&employeeID,
			&action,
			&outcome,
			&entry.Target,
			&entry.Detail,
			&entry.Actor,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.RequestID = id.RequestID(requestID)
		entry.EmployeeID = id.EmployeeID(employeeID)
		entry.Action = audit.Action(action)
		entry.Outcome = audit.Outcome(outcome)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// FetchUnpublished returns the oldest outbox rows not yet published.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxRecord, error) {
	query := `
		SELECT id, key, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var records []audit.OutboxRecord
	for rows.Next() {
		var (
			recordID uuid.UUID
			record   audit.OutboxRecord
		)
		if err := rows.Scan(&recordID, &record.Key, &record.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		record.ID = id.EntryID(recordID)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return records, nil
}

// MarkPublished stamps outbox rows after their batch reached the sink.
func (s *Store) MarkPublished(ctx context.Context, entryIDs []id.EntryID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(entryIDs))
	for i, entryID := range entryIDs {
		ids[i] = uuid.UUID(entryID)
	}
	query := `UPDATE audit_outbox SET published_at = $2 WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids), time.Now()); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// Schema is the DDL for the outbox and the materialized entries table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id UUID PRIMARY KEY,
	key TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_audit_outbox_unpublished
	ON audit_outbox (created_at)
	WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_entries (
	id UUID PRIMARY KEY,
	request_id UUID NOT NULL,
	employee_id TEXT NOT NULL,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_request
	ON audit_entries (request_id, timestamp);
`

// EnsureSchema applies the audit DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}
