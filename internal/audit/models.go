// Package audit records what every provisioning run did to whom. Entries
// flow through a transactional outbox to Kafka and are materialized back
// into a queryable table; Kafka is the source of truth.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	id "provisor/pkg/domain"
)

// Outcome classifies how the audited action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	// OutcomeWarning marks tolerated failures that did not stop the run.
	OutcomeWarning Outcome = "warning"
)

// Action names the audited activity. Step entries carry the step's action
// verbatim; saga lifecycle entries use the constants below.
type Action string

const (
	ActionSagaStarted   Action = "saga_started"
	ActionSagaCompleted Action = "saga_completed"
	ActionSagaFailed    Action = "saga_failed"

	// ActionEntitlementFallback records a department that resolved off the
	// configured matrix, so unconfigured departments leave a trace.
	ActionEntitlementFallback Action = "entitlement_fallback"
)

// RollbackAction names a compensation entry for the given step action.
func RollbackAction(stepAction string) Action {
	return Action("rollback:" + stepAction)
}

// Entry is one audit record. Keep it transport-agnostic so stores and
// sinks can fan out.
type Entry struct {
	ID         id.EntryID
	RequestID  id.RequestID
	EmployeeID id.EmployeeID
	Action     Action
	Outcome    Outcome
	Target     string
	Detail     string
	Actor      string
	Timestamp  time.Time
}

// OutboxRecord is one staged outbox row: the encoded entry plus the key
// it is published under.
type OutboxRecord struct {
	ID      id.EntryID
	Key     string
	Payload []byte
}

// entryDoc is the JSON wire shape shared by the outbox payload, the Kafka
// topic, and the materialized table loaders.
type entryDoc struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	EmployeeID string `json:"employee_id"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	Target     string `json:"target,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Actor      string `json:"actor"`
	Timestamp  string `json:"timestamp"`
}

// EncodeEntry serializes an entry for the outbox and the topic.
func EncodeEntry(entry Entry) ([]byte, error) {
	doc := entryDoc{
		ID:         entry.ID.String(),
		RequestID:  entry.RequestID.String(),
		EmployeeID: entry.EmployeeID.String(),
		Action:     string(entry.Action),
		Outcome:    string(entry.Outcome),
		Target:     entry.Target,
		Detail:     entry.Detail,
		Actor:      entry.Actor,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal audit entry: %w", err)
	}
	return raw, nil
}

// DecodeEntry restores an entry from its wire form.
func DecodeEntry(raw []byte) (Entry, error) {
	var doc entryDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Entry{}, fmt.Errorf("unmarshal audit entry: %w", err)
	}
	entryID, err := id.ParseEntryID(doc.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("audit entry id: %w", err)
	}
	requestID, err := id.ParseRequestID(doc.RequestID)
	if err != nil {
		return Entry{}, fmt.Errorf("audit entry request id: %w", err)
	}
	entry := Entry{
		ID:         entryID,
		RequestID:  requestID,
		EmployeeID: id.EmployeeID(doc.EmployeeID),
		Action:     Action(doc.Action),
		Outcome:    Outcome(doc.Outcome),
		Target:     doc.Target,
		Detail:     doc.Detail,
		Actor:      doc.Actor,
	}
	if doc.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, doc.Timestamp); err == nil {
			entry.Timestamp = ts
		}
	}
	return entry, nil
}
