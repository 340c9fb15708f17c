package httptransport

import (
	"context"
	"net/http"
	"strings"

	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
	"provisor/pkg/platform/httputil"
	"provisor/pkg/requestcontext"
)

// LifecycleService runs a provisioning saga for one HR event. Implemented by
// the dispatcher, which serializes runs per employee.
type LifecycleService interface {
	Execute(ctx context.Context, event models.LifecycleEvent) (models.Result, error)
}

// LifecycleEventRequest is the HTTP request body for POST /lifecycle/events.
type LifecycleEventRequest struct {
	EmployeeID         string `json:"employee_id"`
	EventType          string `json:"event_type"`
	DisplayName        string `json:"display_name"`
	ContactAddress     string `json:"contact_address"`
	Department         string `json:"department"`
	JobTitle           string `json:"job_title"`
	Location           string `json:"location"`
	ManagerID          string `json:"manager_id"`
	PreviousDepartment string `json:"previous_department"`

	// Parsed values (populated by Validate)
	parsedEmployeeID id.EmployeeID
	parsedType       id.EventType
}

// Validate parses the identifying fields and then lets the domain event check
// its own invariants.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *LifecycleEventRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	employeeID, err := id.ParseEmployeeID(r.EmployeeID)
	if err != nil {
		return err
	}
	r.parsedEmployeeID = employeeID

	eventType, err := id.ParseEventType(strings.TrimSpace(r.EventType))
	if err != nil {
		return err
	}
	r.parsedType = eventType

	return r.Event().Validate()
}

// Event builds the domain event. Call after Validate.
func (r *LifecycleEventRequest) Event() models.LifecycleEvent {
	return models.LifecycleEvent{
		EmployeeID:         r.parsedEmployeeID,
		Type:               r.parsedType,
		DisplayName:        strings.TrimSpace(r.DisplayName),
		ContactAddress:     strings.TrimSpace(r.ContactAddress),
		Department:         strings.TrimSpace(r.Department),
		JobTitle:           strings.TrimSpace(r.JobTitle),
		Location:           strings.TrimSpace(r.Location),
		ManagerID:          strings.TrimSpace(r.ManagerID),
		PreviousDepartment: strings.TrimSpace(r.PreviousDepartment),
	}
}

// handleLifecycleEvent handles POST /api/v1/lifecycle/events. The saga runs
// synchronously; the response is the run's result ledger summary. Failed runs
// keep the summary in the body with the status mapped from the failure class,
// so callers see how far the run got.
func (h *Handler) handleLifecycleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LifecycleEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.lifecycle.Execute(ctx, req.Event())
	if err != nil {
		// An empty result means the event was rejected before a provisioning
		// request was opened; there is no ledger to report.
		if result.RequestID == "" {
			h.logger.WarnContext(ctx, "lifecycle event rejected",
				"request_id", requestID,
				"employee_id", req.EmployeeID,
				"event_type", req.EventType,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}

		h.logger.ErrorContext(ctx, "provisioning run failed",
			"request_id", requestID,
			"provisioning_request_id", result.RequestID,
			"employee_id", result.EmployeeID,
			"event_type", result.EventType,
			"failed_step", result.FailedStep,
			"error", err.Error(),
		)
		httputil.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.GetCode(err)), result)
		return
	}

	h.logger.InfoContext(ctx, "provisioning run completed",
		"request_id", requestID,
		"provisioning_request_id", result.RequestID,
		"employee_id", result.EmployeeID,
		"event_type", result.EventType,
		"steps", result.TotalSteps,
		"warnings", len(result.Warnings),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
