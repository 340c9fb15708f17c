// Package request persists provisioning requests and their step ledgers.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return ErrNotFound when the requested entity does not exist
//   - Return ErrConflict when a write collides with existing state
//   - Return nil for successful operations
//   - Return wrapped errors with context for infrastructure failures
package request

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	"provisor/pkg/platform/sentinel"
)

// InMemory stores provisioning requests in memory for tests/dev.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.ProvisioningRequest
}

// NewInMemory constructs an empty in-memory request store.
func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.RequestID]*models.ProvisioningRequest)}
}

func (s *InMemory) Create(_ context.Context, request *models.ProvisioningRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; ok {
		return fmt.Errorf("request %s already exists: %w", request.ID, sentinel.ErrConflict)
	}
	s.requests[request.ID] = cloneRequest(request)
	return nil
}

func (s *InMemory) Get(_ context.Context, requestID id.RequestID) (*models.ProvisioningRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	return cloneRequest(request), nil
}

// Update overwrites the stored request with the caller's copy, except the
// cancel flag: cancellation is set through RequestCancel and a saga writing
// its progress must not clear it.
func (s *InMemory) Update(_ context.Context, request *models.ProvisioningRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[request.ID]
	if !ok {
		return fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	clone := cloneRequest(request)
	clone.CancelRequested = clone.CancelRequested || stored.CancelRequested
	s.requests[request.ID] = clone
	return nil
}

func (s *InMemory) ListByEmployee(_ context.Context, employeeID id.EmployeeID, limit int) ([]*models.ProvisioningRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProvisioningRequest
	for _, request := range s.requests {
		if request.EmployeeID == employeeID {
			out = append(out, cloneRequest(request))
		}
	}
	sortNewestFirst(out)
	return truncate(out, limit), nil
}

func (s *InMemory) ListRecent(_ context.Context, limit int) ([]*models.ProvisioningRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ProvisioningRequest, 0, len(s.requests))
	for _, request := range s.requests {
		out = append(out, cloneRequest(request))
	}
	sortNewestFirst(out)
	return truncate(out, limit), nil
}

// RequestCancel flips the cooperative cancellation flag. Terminal requests
// cannot be cancelled.
func (s *InMemory) RequestCancel(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	if request.Status != models.RequestStatusInProgress {
		return fmt.Errorf("request %s is %s: %w", requestID, request.Status, sentinel.ErrInvalidState)
	}
	request.CancelRequested = true
	return nil
}

func (s *InMemory) CancelRequested(_ context.Context, requestID id.RequestID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return false, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	return request.CancelRequested, nil
}

func sortNewestFirst(requests []*models.ProvisioningRequest) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}

func truncate(requests []*models.ProvisioningRequest, limit int) []*models.ProvisioningRequest {
	if limit > 0 && len(requests) > limit {
		return requests[:limit]
	}
	return requests
}

// cloneRequest deep-copies so callers never share mutable state with the
// store's map.
func cloneRequest(r *models.ProvisioningRequest) *models.ProvisioningRequest {
	clone := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		clone.CompletedAt = &t
	}
	if r.Warnings != nil {
		clone.Warnings = append([]string(nil), r.Warnings...)
	}
	if r.Steps != nil {
		clone.Steps = make([]*models.ProvisioningStep, len(r.Steps))
		for i, step := range r.Steps {
			s := *step
			if step.CompletedAt != nil {
				t := *step.CompletedAt
				s.CompletedAt = &t
			}
			clone.Steps[i] = &s
		}
	}
	return &clone
}
