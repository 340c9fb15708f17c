package request

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL for the request ledger tables. Applied at startup via
// EnsureSchema; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS provisioning_requests (
	id UUID PRIMARY KEY,
	employee_id TEXT NOT NULL,
	event JSONB NOT NULL,
	status TEXT NOT NULL,
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	failed_step TEXT NOT NULL DEFAULT '',
	failure_detail TEXT NOT NULL DEFAULT '',
	warnings TEXT[] NOT NULL DEFAULT '{}',
	planned_steps INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_provisioning_requests_employee
	ON provisioning_requests (employee_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_provisioning_requests_created
	ON provisioning_requests (created_at DESC);

CREATE TABLE IF NOT EXISTS provisioning_steps (
	id UUID PRIMARY KEY,
	request_id UUID NOT NULL REFERENCES provisioning_requests(id) ON DELETE CASCADE,
	step_index INT NOT NULL,
	name TEXT NOT NULL,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	payload JSONB,
	detail TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	can_rollback BOOLEAN NOT NULL,
	rollback_completed BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (request_id, step_index)
);
`

// EnsureSchema applies the request ledger DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure request schema: %w", err)
	}
	return nil
}
