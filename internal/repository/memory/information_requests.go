package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

type requestRow struct {
	request domain.InformationRequest
}

// InformationRequestRepository is the in-memory information request table.
type InformationRequestRepository struct {
	s *Store
}

var _ repository.InformationRequestRepository = (*InformationRequestRepository)(nil)

// InfoRequests returns the information request repository view of the store.
func (s *Store) InfoRequests() *InformationRequestRepository {
	return &InformationRequestRepository{s: s}
}

func (r *InformationRequestRepository) Create(ctx context.Context, req *domain.InformationRequest) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.complaints[req.ComplaintID]; !ok {
		return fmt.Errorf("information request parent %s: %w", req.ComplaintID, repository.ErrNotFound)
	}
	req.Version = 0
	req.RequestedAt = s.now()
	s.requests[req.ID] = requestRow{request: copyRequest(req)}
	id := req.ID
	s.onRollback(ctx, func() { delete(s.requests, id) })
	return nil
}

func (r *InformationRequestRepository) GetByID(_ context.Context, id string) (*domain.InformationRequest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRequest(id)
}

func (r *InformationRequestRepository) FindForUpdate(ctx context.Context, id string) (*domain.InformationRequest, error) {
	if err := r.s.lockRow(ctx, "info_request:"+id); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRequest(id)
}

func (r *InformationRequestRepository) Save(ctx context.Context, req *domain.InformationRequest) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[req.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if row.request.Version != req.Version {
		return fmt.Errorf("information request %s at version %d: %w", req.ID, req.Version, repository.ErrOptimisticConflict)
	}
	previous := row
	req.Version++
	updated := copyRequest(req)
	updated.ComplaintID = previous.request.ComplaintID
	updated.RequestedByID = previous.request.RequestedByID
	updated.RequestMessage = previous.request.RequestMessage
	updated.RequestedAt = previous.request.RequestedAt
	s.requests[req.ID] = requestRow{request: updated}
	s.onRollback(ctx, func() { s.requests[previous.request.ID] = previous })
	return nil
}

func (r *InformationRequestRepository) ListByComplaint(_ context.Context, complaintID string) ([]domain.InformationRequest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.InformationRequest
	for _, row := range s.requests {
		if row.request.ComplaintID == complaintID {
			result = append(result, copyRequest(&row.request))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result, nil
}

func (s *Store) loadRequest(id string) (*domain.InformationRequest, error) {
	row, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	req := copyRequest(&row.request)
	return &req, nil
}

func copyRequest(req *domain.InformationRequest) domain.InformationRequest {
	out := *req
	out.AttachmentIDs = slices.Clone(req.AttachmentIDs)
	if req.ResponseMessage != nil {
		v := *req.ResponseMessage
		out.ResponseMessage = &v
	}
	if req.RespondedAt != nil {
		v := *req.RespondedAt
		out.RespondedAt = &v
	}
	return out
}
