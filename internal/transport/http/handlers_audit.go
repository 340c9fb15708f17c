package httptransport

import (
	"context"
	"net/http"
	"time"

	"provisor/internal/audit"
	id "provisor/pkg/domain"
	"provisor/pkg/platform/httputil"
	"provisor/pkg/requestcontext"
)

// AuditReader lists recorded audit entries. Implemented by the audit stores.
type AuditReader interface {
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]audit.Entry, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// entryResponse is the wire form of one audit entry.
type entryResponse struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	EmployeeID string    `json:"employee_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Target     string    `json:"target,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
}

func fromEntry(entry audit.Entry) entryResponse {
	return entryResponse{
		ID:         entry.ID.String(),
		RequestID:  entry.RequestID.String(),
		EmployeeID: entry.EmployeeID.String(),
		Action:     string(entry.Action),
		Outcome:    string(entry.Outcome),
		Target:     entry.Target,
		Detail:     entry.Detail,
		Actor:      entry.Actor,
		Timestamp:  entry.Timestamp,
	}
}

// handleListAuditEntries handles GET /api/v1/audit/entries. With a request_id
// query parameter it returns that run's trail in recording order; otherwise
// the most recent entries across all runs.
func (h *Handler) handleListAuditEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var entries []audit.Entry
	if rawID := r.URL.Query().Get("request_id"); rawID != "" {
		requestID, err := id.ParseRequestID(rawID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries, err = h.audit.ListByRequest(ctx, requestID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list audit entries for request",
				"request_id", requestcontext.RequestID(ctx),
				"provisioning_request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
	} else {
		limit, err := parseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries, err = h.audit.ListRecent(ctx, limit)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list recent audit entries",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
	}

	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, fromEntry(entry))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}
