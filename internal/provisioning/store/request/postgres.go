package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	"provisor/pkg/platform/sentinel"
	txcontext "provisor/pkg/platform/tx"
)

// PostgresStore persists provisioning requests and their step ledgers in
// PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// eventDoc is the JSONB shape of the embedded lifecycle event.
type eventDoc struct {
	EmployeeID         string `json:"employee_id"`
	Type               string `json:"type"`
	DisplayName        string `json:"display_name"`
	ContactAddress     string `json:"contact_address,omitempty"`
	Department         string `json:"department,omitempty"`
	JobTitle           string `json:"job_title,omitempty"`
	Location           string `json:"location,omitempty"`
	ManagerID          string `json:"manager_id,omitempty"`
	PreviousDepartment string `json:"previous_department,omitempty"`
}

func encodeEvent(event models.LifecycleEvent) ([]byte, error) {
	doc := eventDoc{
		EmployeeID:         event.EmployeeID.String(),
		Type:               event.Type.String(),
		DisplayName:        event.DisplayName,
		ContactAddress:     event.ContactAddress,
		Department:         event.Department,
		JobTitle:           event.JobTitle,
		Location:           event.Location,
		ManagerID:          event.ManagerID,
		PreviousDepartment: event.PreviousDepartment,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal lifecycle event: %w", err)
	}
	return raw, nil
}

func decodeEvent(raw []byte) (models.LifecycleEvent, error) {
	var doc eventDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.LifecycleEvent{}, fmt.Errorf("unmarshal lifecycle event: %w", err)
	}
	return models.LifecycleEvent{
		EmployeeID:         id.EmployeeID(doc.EmployeeID),
		Type:               id.EventType(doc.Type),
		DisplayName:        doc.DisplayName,
		ContactAddress:     doc.ContactAddress,
		Department:         doc.Department,
		JobTitle:           doc.JobTitle,
		Location:           doc.Location,
		ManagerID:          doc.ManagerID,
		PreviousDepartment: doc.PreviousDepartment,
	}, nil
}

func (s *PostgresStore) Create(ctx context.Context, request *models.ProvisioningRequest) error {
	eventRaw, err := encodeEvent(request.Event)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO provisioning_requests (
			id, employee_id, event, status, cancel_requested,
			failed_step, failure_detail, warnings, planned_steps,
			created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(request.ID),
		request.EmployeeID.String(),
		eventRaw,
		string(request.Status),
		request.CancelRequested,
		request.FailedStep,
		request.FailureDetail,
		pq.Array(request.Warnings),
		request.PlannedSteps,
		request.CreatedAt,
		request.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert provisioning request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert provisioning request: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s already exists: %w", request.ID, sentinel.ErrConflict)
	}
	return s.upsertSteps(ctx, request)
}

// Update rewrites the request row and upserts the ledger. The cancel flag
// only ever goes false -> true here; RequestCancel owns setting it.
func (s *PostgresStore) Update(ctx context.Context, request *models.ProvisioningRequest) error {
	eventRaw, err := encodeEvent(request.Event)
	if err != nil {
		return err
	}
	query := `
		UPDATE provisioning_requests SET
			event = $2,
			status = $3,
			cancel_requested = cancel_requested OR $4,
			failed_step = $5,
			failure_detail = $6,
			warnings = $7,
			planned_steps = $8,
			completed_at = $9
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(request.ID),
		eventRaw,
		string(request.Status),
		request.CancelRequested,
		request.FailedStep,
		request.FailureDetail,
		pq.Array(request.Warnings),
		request.PlannedSteps,
		request.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update provisioning request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update provisioning request: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	return s.upsertSteps(ctx, request)
}

func (s *PostgresStore) upsertSteps(ctx context.Context, request *models.ProvisioningRequest) error {
	if len(request.Steps) == 0 {
		return nil
	}
	query := `
		INSERT INTO provisioning_steps (
			id, request_id, step_index, name, action, status, target,
			payload, detail, started_at, completed_at,
			can_rollback, rollback_completed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			detail = EXCLUDED.detail,
			completed_at = EXCLUDED.completed_at,
			rollback_completed = EXCLUDED.rollback_completed
	`
	execer := s.execer(ctx)
	for index, step := range request.Steps {
		payloadRaw, err := models.EncodePayload(step.Payload)
		if err != nil {
			return err
		}
		_, err = execer.ExecContext(ctx, query,
			uuid.UUID(step.ID),
			uuid.UUID(request.ID),
			index,
			step.Name,
			string(step.Action),
			string(step.Status),
			step.Target,
			nullBytes(payloadRaw),
			step.Detail,
			step.StartedAt,
			step.CompletedAt,
			step.CanRollback,
			step.RollbackCompleted,
		)
		if err != nil {
			return fmt.Errorf("upsert provisioning step %s: %w", step.Name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.RequestID) (*models.ProvisioningRequest, error) {
	query := `
		SELECT id, employee_id, event, status, cancel_requested,
			   failed_step, failure_detail, warnings, planned_steps,
			   created_at, completed_at
		FROM provisioning_requests
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(requestID))
	request, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	steps, err := s.loadSteps(ctx, []uuid.UUID{uuid.UUID(requestID)})
	if err != nil {
		return nil, err
	}
	request.Steps = steps[requestID]
	return request, nil
}

func (s *PostgresStore) ListByEmployee(ctx context.Context, employeeID id.EmployeeID, limit int) ([]*models.ProvisioningRequest, error) {
	query := `
		SELECT id, employee_id, event, status, cancel_requested,
			   failed_step, failure_detail, warnings, planned_steps,
			   created_at, completed_at
		FROM provisioning_requests
		WHERE employee_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, employeeID.String(), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query provisioning requests: %w", err)
	}
	defer rows.Close()
	return s.collectRequests(ctx, rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.ProvisioningRequest, error) {
	query := `
		SELECT id, employee_id, event, status, cancel_requested,
			   failed_step, failure_detail, warnings, planned_steps,
			   created_at, completed_at
		FROM provisioning_requests
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query provisioning requests: %w", err)
	}
	defer rows.Close()
	return s.collectRequests(ctx, rows)
}

// RequestCancel flips the cooperative cancellation flag. Terminal requests
// cannot be cancelled.
func (s *PostgresStore) RequestCancel(ctx context.Context, requestID id.RequestID) error {
	query := `
		UPDATE provisioning_requests
		SET cancel_requested = TRUE
		WHERE id = $1 AND status = $2
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(requestID), string(models.RequestStatusInProgress))
	if err != nil {
		return fmt.Errorf("request cancellation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request cancellation: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM provisioning_requests WHERE id = $1`, uuid.UUID(requestID)).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("request cancellation: %w", err)
	}
	return fmt.Errorf("request %s is %s: %w", requestID, status, sentinel.ErrInvalidState)
}

func (s *PostgresStore) CancelRequested(ctx context.Context, requestID id.RequestID) (bool, error) {
	var cancelled bool
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM provisioning_requests WHERE id = $1`, uuid.UUID(requestID)).Scan(&cancelled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
		}
		return false, fmt.Errorf("check cancellation: %w", err)
	}
	return cancelled, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ProvisioningRequest, error) {
	var (
		requestID   uuid.UUID
		employeeID  string
		eventRaw    []byte
		status      string
		request     models.ProvisioningRequest
		completedAt sql.NullTime
		warnings    []string
	)
	err := row.Scan(
		&requestID,
		&employeeID,
		&eventRaw,
		&status,
		&request.CancelRequested,
		&request.FailedStep,
		&request.FailureDetail,
		pq.Array(&warnings),
		&request.PlannedSteps,
		&request.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan provisioning request: %w", err)
	}
	event, err := decodeEvent(eventRaw)
	if err != nil {
		return nil, err
	}
	request.ID = id.RequestID(requestID)
	request.EmployeeID = id.EmployeeID(employeeID)
	request.Event = event
	request.Status = models.RequestStatus(status)
	if len(warnings) > 0 {
		request.Warnings = warnings
	}
	if completedAt.Valid {
		request.CompletedAt = &completedAt.Time
	}
	return &request, nil
}

func (s *PostgresStore) collectRequests(ctx context.Context, rows *sql.Rows) ([]*models.ProvisioningRequest, error) {
	var (
		requests []*models.ProvisioningRequest
		ids      []uuid.UUID
	)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
		ids = append(ids, uuid.UUID(request.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provisioning requests: %w", err)
	}
	if len(requests) == 0 {
		return requests, nil
	}
	steps, err := s.loadSteps(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, request := range requests {
		request.Steps = steps[request.ID]
	}
	return requests, nil
}

// loadSteps fetches ledgers for a batch of requests in one round trip.
func (s *PostgresStore) loadSteps(ctx context.Context, requestIDs []uuid.UUID) (map[id.RequestID][]*models.ProvisioningStep, error) {
	query := `
		SELECT id, request_id, name, action, status, target,
			   payload, detail, started_at, completed_at,
			   can_rollback, rollback_completed
		FROM provisioning_steps
		WHERE request_id = ANY($1)
		ORDER BY request_id, step_index
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(requestIDs))
	if err != nil {
		return nil, fmt.Errorf("query provisioning steps: %w", err)
	}
	defer rows.Close()

	out := make(map[id.RequestID][]*models.ProvisioningStep)
	for rows.Next() {
		var (
			stepID      uuid.UUID
			requestID   uuid.UUID
			step        models.ProvisioningStep
			action      string
			status      string
			payloadRaw  []byte
			completedAt sql.NullTime
		)
		err := rows.Scan(
			&stepID,
			&requestID,
			&step.Name,
			&action,
			&status,
			&step.Target,
			&payloadRaw,
			&step.Detail,
			&step.StartedAt,
			&completedAt,
			&step.CanRollback,
			&step.RollbackCompleted,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provisioning step: %w", err)
		}
		payload, err := models.DecodePayload(payloadRaw)
		if err != nil {
			return nil, err
		}
		step.ID = id.StepID(stepID)
		step.Action = models.ActionType(action)
		step.Status = models.StepStatus(status)
		step.Payload = payload
		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}
		out[id.RequestID(requestID)] = append(out[id.RequestID(requestID)], &step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provisioning steps: %w", err)
	}
	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func nullBytes(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
