package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
	"provisor/pkg/platform/httputil"
	"provisor/pkg/requestcontext"
)

// Listing defaults. Callers can raise limit up to maxListLimit.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RequestService reads and cancels provisioning requests. Implemented by the
// saga orchestrator.
type RequestService interface {
	GetRequest(ctx context.Context, requestID id.RequestID) (*models.ProvisioningRequest, error)
	ListRecent(ctx context.Context, limit int) ([]*models.ProvisioningRequest, error)
	ListByEmployee(ctx context.Context, employeeID id.EmployeeID, limit int) ([]*models.ProvisioningRequest, error)
	Cancel(ctx context.Context, requestID id.RequestID) error
}

// requestResponse is the wire form of one provisioning request.
type requestResponse struct {
	ID              string         `json:"id"`
	EmployeeID      string         `json:"employee_id"`
	EventType       string         `json:"event_type"`
	Department      string         `json:"department,omitempty"`
	Status          string         `json:"status"`
	CancelRequested bool           `json:"cancel_requested,omitempty"`
	FailedStep      string         `json:"failed_step,omitempty"`
	FailureDetail   string         `json:"failure_detail,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	PlannedSteps    int            `json:"planned_steps"`
	Steps           []stepResponse `json:"steps"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// stepResponse is the wire form of one ledger step.
type stepResponse struct {
	Name              string     `json:"name"`
	Action            string     `json:"action"`
	Target            string     `json:"target,omitempty"`
	Status            string     `json:"status"`
	Detail            string     `json:"detail,omitempty"`
	CanRollback       bool       `json:"can_rollback"`
	RollbackCompleted bool       `json:"rollback_completed,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func fromProvisioningRequest(request *models.ProvisioningRequest) requestResponse {
	steps := make([]stepResponse, 0, len(request.Steps))
	for _, step := range request.Steps {
		steps = append(steps, stepResponse{
			Name:              step.Name,
			Action:            step.Action.String(),
			Target:            step.Target,
			Status:            string(step.Status),
			Detail:            step.Detail,
			CanRollback:       step.CanRollback,
			RollbackCompleted: step.RollbackCompleted,
			StartedAt:         step.StartedAt,
			CompletedAt:       step.CompletedAt,
		})
	}
	return requestResponse{
		ID:              request.ID.String(),
		EmployeeID:      request.EmployeeID.String(),
		EventType:       request.Event.Type.String(),
		Department:      request.Event.Department,
		Status:          request.Status.String(),
		CancelRequested: request.CancelRequested,
		FailedStep:      request.FailedStep,
		FailureDetail:   request.FailureDetail,
		Warnings:        request.Warnings,
		PlannedSteps:    request.PlannedSteps,
		Steps:           steps,
		CreatedAt:       request.CreatedAt,
		CompletedAt:     request.CompletedAt,
	}
}

// handleGetRequest handles GET /api/v1/provisioning/requests/{id}.
func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.requests.GetRequest(ctx, requestID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load provisioning request",
				"request_id", requestcontext.RequestID(ctx),
				"provisioning_request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromProvisioningRequest(request))
}

// handleListRequests handles GET /api/v1/provisioning/requests. With an
// employee_id query parameter it lists that employee's history, otherwise
// the most recent requests across all employees.
func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var requests []*models.ProvisioningRequest
	if rawEmployee := r.URL.Query().Get("employee_id"); rawEmployee != "" {
		employeeID, err := id.ParseEmployeeID(rawEmployee)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		requests, err = h.requests.ListByEmployee(ctx, employeeID, limit)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list requests by employee",
				"request_id", requestcontext.RequestID(ctx),
				"employee_id", employeeID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
	} else {
		requests, err = h.requests.ListRecent(ctx, limit)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list recent requests",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
	}

	out := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, fromProvisioningRequest(request))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

// handleCancelRequest handles POST /api/v1/provisioning/requests/{id}/cancel.
// Cancellation is cooperative: the flag is set now and the run honors it at
// its next step boundary, hence 202 rather than 200.
func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.requests.Cancel(ctx, requestID); err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) || dErrors.Is(err, dErrors.CodeConflict) {
			h.logger.WarnContext(ctx, "cancel rejected",
				"request_id", requestcontext.RequestID(ctx),
				"provisioning_request_id", requestID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "cancel failed",
				"request_id", requestcontext.RequestID(ctx),
				"provisioning_request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "cancellation requested",
		"request_id", requestcontext.RequestID(ctx),
		"provisioning_request_id", requestID,
		"actor", requestcontext.Actor(ctx),
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"request_id":       requestID.String(),
		"cancel_requested": true,
	})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
