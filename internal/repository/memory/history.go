package memory

import (
	"context"
	"maps"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

type historyRow struct {
	seq   int64
	entry domain.ComplaintHistory
}

// HistoryRepository is the in-memory append-only history log.
type HistoryRepository struct {
	s *Store
	// failAppend lets tests simulate an audit store outage.
	failAppend error
}

var _ repository.ComplaintHistoryRepository = (*HistoryRepository)(nil)

// History returns the history repository view of the store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{s: s}
}

// FailAppends makes every subsequent Append return err. nil restores normal behavior.
func (r *HistoryRepository) FailAppends(err error) {
	r.s.mu.Lock()
	r.failAppend = err
	r.s.mu.Unlock()
}

func (r *HistoryRepository) Append(ctx context.Context, h *domain.ComplaintHistory) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.failAppend != nil {
		return r.failAppend
	}

	s.seq++
	h.CreatedAt = s.now()
	entry := *h
	entry.Metadata = maps.Clone(h.Metadata)
	s.history = append(s.history, historyRow{seq: s.seq, entry: entry})
	seq := s.seq
	s.onRollback(ctx, func() {
		for i := len(s.history) - 1; i >= 0; i-- {
			if s.history[i].seq == seq {
				s.history = append(s.history[:i], s.history[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *HistoryRepository) ListByComplaint(_ context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.ComplaintHistory
	// s.history is in append order; walk backwards for newest first
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].entry.ComplaintID != complaintID {
			continue
		}
		entry := s.history[i].entry
		entry.Metadata = maps.Clone(entry.Metadata)
		matched = append(matched, entry)
	}
	if offset >= len(matched) {
		return []domain.ComplaintHistory{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *HistoryRepository) CountByComplaint(_ context.Context, complaintID string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, row := range s.history {
		if row.entry.ComplaintID == complaintID {
			total++
		}
	}
	return total, nil
}
