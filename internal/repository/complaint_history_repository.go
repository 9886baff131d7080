package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
)

// ComplaintHistoryRepository stores audit entries. Entries are never updated
// or deleted once appended.
type ComplaintHistoryRepository interface {
	Append(ctx context.Context, entry *domain.ComplaintHistory) error
	// ListByComplaint returns entries newest first by insert order.
	ListByComplaint(ctx context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error)
	CountByComplaint(ctx context.Context, complaintID string) (int64, error)
}

type complaintHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintHistoryRepository builds repository.
func NewComplaintHistoryRepository(pool *pgxpool.Pool) ComplaintHistoryRepository {
	return &complaintHistoryRepository{pool: pool}
}

// Append inserts inside a savepoint so a failed audit write does not abort
// the surrounding transaction.
func (r *complaintHistoryRepository) Append(ctx context.Context, h *domain.ComplaintHistory) error {
	const query = `
        INSERT INTO complaint_history (id, complaint_id, actor_id, actor_kind, actor_name, action_type,
            field_changed, old_value, new_value, metadata, action_description)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING created_at`
	sp, err := persistence.Conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return fmt.Errorf("history savepoint: %w", err)
	}
	defer func() {
		_ = sp.Rollback(ctx)
	}()

	if err := sp.QueryRow(ctx, query,
		h.ID,
		h.ComplaintID,
		h.ActorID,
		h.ActorKind,
		h.ActorName,
		h.ActionType,
		h.FieldChanged,
		h.OldValue,
		h.NewValue,
		h.Metadata,
		h.ActionDescription,
	).Scan(&h.CreatedAt); err != nil {
		return err
	}
	return sp.Commit(ctx)
}

func (r *complaintHistoryRepository) ListByComplaint(ctx context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error) {
	if !isRowID(complaintID) {
		return []domain.ComplaintHistory{}, nil
	}
	const query = `
        SELECT id, complaint_id, actor_id, actor_kind, actor_name, action_type,
               field_changed, old_value, new_value, metadata, action_description, created_at
        FROM complaint_history WHERE complaint_id=$1
        ORDER BY seq DESC
        LIMIT $2 OFFSET $3`
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, complaintID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ComplaintHistory
	for rows.Next() {
		var h domain.ComplaintHistory
		if err := rows.Scan(
			&h.ID,
			&h.ComplaintID,
			&h.ActorID,
			&h.ActorKind,
			&h.ActorName,
			&h.ActionType,
			&h.FieldChanged,
			&h.OldValue,
			&h.NewValue,
			&h.Metadata,
			&h.ActionDescription,
			&h.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *complaintHistoryRepository) CountByComplaint(ctx context.Context, complaintID string) (int64, error) {
	if !isRowID(complaintID) {
		return 0, nil
	}
	var total int64
	err := persistence.Conn(ctx, r.pool).
		QueryRow(ctx, `SELECT COUNT(*) FROM complaint_history WHERE complaint_id=$1`, complaintID).
		Scan(&total)
	return total, err
}
