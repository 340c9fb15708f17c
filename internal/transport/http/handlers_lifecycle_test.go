package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"provisor/internal/audit"
	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
)

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLifecycleJoinEndToEnd(t *testing.T) {
	env := newProvisioningRouter(t)

	rec := postJSON(t, env.router, "/api/v1/lifecycle/events", map[string]string{
		"employee_id":     "emp-2002",
		"event_type":      "join",
		"display_name":    "Grace Hopper",
		"contact_address": "grace.hopper@corp.example",
		"department":      "Engineering",
		"job_title":       "Engineer",
		"location":        "US",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected a successful run: %+v", result)
	}
	if result.EventType != "join" || result.EmployeeID != "emp-2002" {
		t.Fatalf("result does not echo the event: %+v", result)
	}
	if result.CompletedSteps != 5 || result.TotalSteps != 5 {
		t.Fatalf("expected all 5 join steps to complete, got %d/%d",
			result.CompletedSteps, result.TotalSteps)
	}
	if result.RequestID == "" {
		t.Fatalf("expected a request id in the response")
	}

	// The run must have actually provisioned the identity.
	identity, err := env.dir.FindByEmployeeID(context.Background(), id.EmployeeID("emp-2002"))
	if err != nil {
		t.Fatalf("identity was not created: %v", err)
	}
	if identity.DisplayName != "Grace Hopper" || !identity.Enabled {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	// And left a complete audit trail behind.
	requestID, err := id.ParseRequestID(result.RequestID)
	if err != nil {
		t.Fatalf("response request id does not parse: %v", err)
	}
	entries, err := env.auditStore.ListByRequest(context.Background(), requestID)
	if err != nil {
		t.Fatalf("failed to read audit trail: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected a start and completion entry at least, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionSagaStarted {
		t.Fatalf("expected the trail to open with %s, got %s",
			audit.ActionSagaStarted, entries[0].Action)
	}
	if entries[len(entries)-1].Action != audit.ActionSagaCompleted {
		t.Fatalf("expected the trail to close with %s, got %s",
			audit.ActionSagaCompleted, entries[len(entries)-1].Action)
	}
}

func TestLifecycleEventValidationRejected(t *testing.T) {
	env := newProvisioningRouter(t)

	// Join without a display name.
	rec := postJSON(t, env.router, "/api/v1/lifecycle/events", map[string]string{
		"employee_id":     "emp-2002",
		"event_type":      "join",
		"contact_address": "grace.hopper@corp.example",
		"department":      "Engineering",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["error"] != "validation" {
		t.Fatalf("expected a validation error, got %q", body["error"])
	}
	if body["error_description"] != "display name is required" {
		t.Fatalf("unexpected description: %q", body["error_description"])
	}

	// Event type outside the join/move/leave set.
	rec = postJSON(t, env.router, "/api/v1/lifecycle/events", map[string]string{
		"employee_id":  "emp-2002",
		"event_type":   "promote",
		"display_name": "Grace Hopper",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown event type, got %d", rec.Code)
	}
}

func TestLifecycleMalformedBodyRejected(t *testing.T) {
	env := newProvisioningRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lifecycle/events",
		bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["error"] != "bad_request" {
		t.Fatalf("expected bad_request, got %q", body["error"])
	}
}

func TestLifecycleMoveUnknownEmployeeReturnsLedger(t *testing.T) {
	env := newProvisioningRouter(t)

	rec := postJSON(t, env.router, "/api/v1/lifecycle/events", map[string]string{
		"employee_id":         "emp-9999",
		"event_type":          "move",
		"display_name":        "Nobody Known",
		"department":          "Platform",
		"previous_department": "Engineering",
	})

	// The run opened a request before failing, so the caller gets the
	// ledger summary with the mapped status rather than a bare error.
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a failed run")
	}
	if result.FailedStep != "resolve_identity" {
		t.Fatalf("expected resolve_identity as the failed step, got %q", result.FailedStep)
	}
	if result.RequestID == "" {
		t.Fatalf("expected the failed request to be addressable")
	}
}
