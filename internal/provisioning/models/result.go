package models

// Result is the caller-facing summary of a saga run. It never carries the
// one-time credential or any directory response bodies.
type Result struct {
	Success    bool   `json:"success"`
	RequestID  string `json:"request_id"`
	EventType  string `json:"event_type"`
	EmployeeID string `json:"employee_id"`

	CompletedSteps int `json:"completed_steps"`
	TotalSteps     int `json:"total_steps"`

	// FailedStep and ErrorMessage are set only when Success is false.
	FailedStep   string `json:"failed_step,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Warnings lists tolerated failures from a successful run.
	Warnings []string `json:"warnings,omitempty"`
}

// ResultFromRequest summarizes a finished request.
func ResultFromRequest(r *ProvisioningRequest) Result {
	return Result{
		Success:        r.Status == RequestStatusCompleted,
		RequestID:      r.ID.String(),
		EventType:      r.Event.Type.String(),
		EmployeeID:     r.EmployeeID.String(),
		CompletedSteps: r.CompletedSteps(),
		TotalSteps:     len(r.Steps),
		FailedStep:     r.FailedStep,
		ErrorMessage:   r.FailureDetail,
		Warnings:       r.Warnings,
	}
}
