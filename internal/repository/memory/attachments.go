package memory

import (
	"context"
	"fmt"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

// AttachmentRepository is the in-memory attachment table.
type AttachmentRepository struct {
	s *Store
}

var _ repository.AttachmentRepository = (*AttachmentRepository)(nil)

// Attachments returns the attachment repository view of the store.
func (s *Store) Attachments() *AttachmentRepository {
	return &AttachmentRepository{s: s}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.complaints[a.ComplaintID]; !ok {
		return fmt.Errorf("attachment parent %s: %w", a.ComplaintID, repository.ErrNotFound)
	}
	a.CreatedAt = s.now()
	s.attachments[a.ID] = attachmentRow{attachment: *a}
	id := a.ID
	s.onRollback(ctx, func() { delete(s.attachments, id) })
	return nil
}

func (r *AttachmentRepository) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.attachments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := row.attachment
	return &a, nil
}

func (r *AttachmentRepository) ListByComplaint(_ context.Context, complaintID string) ([]domain.Attachment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachmentsOf(complaintID), nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.attachments[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.attachments, id)
	unlinked := map[string][]string{}
	for rid, req := range s.requests {
		kept := req.request.AttachmentIDs[:0:0]
		for _, aid := range req.request.AttachmentIDs {
			if aid == id {
				unlinked[rid] = req.request.AttachmentIDs
				continue
			}
			kept = append(kept, aid)
		}
		req.request.AttachmentIDs = kept
		s.requests[rid] = req
	}
	s.onRollback(ctx, func() {
		s.attachments[id] = row
		for rid, ids := range unlinked {
			req := s.requests[rid]
			req.request.AttachmentIDs = ids
			s.requests[rid] = req
		}
	})
	return nil
}
