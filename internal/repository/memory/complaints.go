package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

type complaintRow struct {
	complaint domain.Complaint
}

type attachmentRow struct {
	attachment domain.Attachment
}

// ComplaintRepository is the in-memory complaint table.
type ComplaintRepository struct {
	s *Store
}

var _ repository.ComplaintRepository = (*ComplaintRepository)(nil)

// Complaints returns the complaint repository view of the store.
func (s *Store) Complaints() *ComplaintRepository {
	return &ComplaintRepository{s: s}
}

func (r *ComplaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.complaints[c.ID]; exists {
		return fmt.Errorf("complaint %s already exists", c.ID)
	}
	for _, row := range s.complaints {
		if row.complaint.TrackingNumber == c.TrackingNumber {
			return fmt.Errorf("tracking number %s: %w", c.TrackingNumber, repository.ErrDuplicateTrackingNumber)
		}
	}
	now := s.now()
	c.Version = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	s.complaints[c.ID] = complaintRow{complaint: copyComplaint(c)}
	id := c.ID
	s.onRollback(ctx, func() { delete(s.complaints, id) })
	return nil
}

func (r *ComplaintRepository) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadComplaint(id)
}

func (r *ComplaintRepository) GetByTrackingNumber(_ context.Context, code string) (*domain.Complaint, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.complaints {
		if row.complaint.TrackingNumber == code {
			return s.loadComplaint(id)
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ComplaintRepository) FindForUpdate(ctx context.Context, id string, agency *domain.GovernmentAgency) (*domain.Complaint, error) {
	if err := r.s.lockRow(ctx, "complaint:"+id); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.loadComplaint(id)
	if err != nil {
		return nil, err
	}
	if agency != nil && c.GovernmentAgency != *agency {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (r *ComplaintRepository) Save(ctx context.Context, c *domain.Complaint) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.complaints[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if row.complaint.Version != c.Version {
		return fmt.Errorf("complaint %s at version %d: %w", c.ID, c.Version, repository.ErrOptimisticConflict)
	}
	previous := row
	c.Version++
	c.UpdatedAt = s.now()
	updated := copyComplaint(c)
	// identity and ownership are immutable
	updated.TrackingNumber = previous.complaint.TrackingNumber
	updated.CitizenID = previous.complaint.CitizenID
	updated.CreatedAt = previous.complaint.CreatedAt
	s.complaints[c.ID] = complaintRow{complaint: updated}
	s.onRollback(ctx, func() { s.complaints[previous.complaint.ID] = previous })
	return nil
}

func (r *ComplaintRepository) Delete(ctx context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.complaints[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.complaints, id)
	removedAttachments := map[string]attachmentRow{}
	for aid, a := range s.attachments {
		if a.attachment.ComplaintID == id {
			removedAttachments[aid] = a
			delete(s.attachments, aid)
		}
	}
	removedRequests := map[string]requestRow{}
	for rid, req := range s.requests {
		if req.request.ComplaintID == id {
			removedRequests[rid] = req
			delete(s.requests, rid)
		}
	}
	s.onRollback(ctx, func() {
		s.complaints[id] = row
		for aid, a := range removedAttachments {
			s.attachments[aid] = a
		}
		for rid, req := range removedRequests {
			s.requests[rid] = req
		}
	})
	return nil
}

func (r *ComplaintRepository) ExistsByTrackingNumber(_ context.Context, code string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.complaints {
		if row.complaint.TrackingNumber == code {
			return true, nil
		}
	}
	return false, nil
}

// loadComplaint returns a detached copy with attachments; callers hold s.mu.
func (s *Store) loadComplaint(id string) (*domain.Complaint, error) {
	row, ok := s.complaints[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := copyComplaint(&row.complaint)
	c.Attachments = s.attachmentsOf(id)
	return &c, nil
}

func (s *Store) attachmentsOf(complaintID string) []domain.Attachment {
	var result []domain.Attachment
	for _, a := range s.attachments {
		if a.attachment.ComplaintID == complaintID {
			result = append(result, a.attachment)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func copyComplaint(c *domain.Complaint) domain.Complaint {
	out := *c
	out.Attachments = nil
	if c.RespondedByID != nil {
		v := *c.RespondedByID
		out.RespondedByID = &v
	}
	if c.RespondedAt != nil {
		v := *c.RespondedAt
		out.RespondedAt = &v
	}
	return out
}
