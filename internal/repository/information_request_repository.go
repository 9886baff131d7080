package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
)

// InformationRequestRepository persists information requests and their
// attachment links.
type InformationRequestRepository interface {
	Create(ctx context.Context, req *domain.InformationRequest) error
	GetByID(ctx context.Context, id string) (*domain.InformationRequest, error)
	FindForUpdate(ctx context.Context, id string) (*domain.InformationRequest, error)
	// Save is a versioned write with the same contract as ComplaintRepository.Save.
	Save(ctx context.Context, req *domain.InformationRequest) error
	ListByComplaint(ctx context.Context, complaintID string) ([]domain.InformationRequest, error)
}

type informationRequestRepository struct {
	pool *pgxpool.Pool
}

// NewInformationRequestRepository creates repository.
func NewInformationRequestRepository(pool *pgxpool.Pool) InformationRequestRepository {
	return &informationRequestRepository{pool: pool}
}

const infoRequestColumns = `id, complaint_id, requested_by_id, requested_by_name, request_message, status,
        requested_at, response_message, responded_at, version`

func (r *informationRequestRepository) Create(ctx context.Context, req *domain.InformationRequest) error {
	const query = `
        INSERT INTO information_requests (id, complaint_id, requested_by_id, requested_by_name, request_message, status, version)
        VALUES ($1,$2,$3,$4,$5,$6,0)
        RETURNING requested_at, version`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		req.ID,
		req.ComplaintID,
		req.RequestedByID,
		req.RequestedByName,
		req.RequestMessage,
		req.Status,
	).Scan(&req.RequestedAt, &req.Version)
}

func (r *informationRequestRepository) GetByID(ctx context.Context, id string) (*domain.InformationRequest, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+infoRequestColumns+` FROM information_requests WHERE id=$1`, id)
}

func (r *informationRequestRepository) FindForUpdate(ctx context.Context, id string) (*domain.InformationRequest, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+infoRequestColumns+` FROM information_requests WHERE id=$1 FOR UPDATE`, id)
}

func (r *informationRequestRepository) Save(ctx context.Context, req *domain.InformationRequest) error {
	const query = `
        UPDATE information_requests SET status=$1, response_message=$2, responded_at=$3, version=version+1
        WHERE id=$4 AND version=$5
        RETURNING version`
	conn := persistence.Conn(ctx, r.pool)
	err := conn.QueryRow(ctx, query,
		req.Status,
		req.ResponseMessage,
		req.RespondedAt,
		req.ID,
		req.Version,
	).Scan(&req.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM information_requests WHERE id=$1)`, req.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return fmt.Errorf("information request %s at version %d: %w", req.ID, req.Version, ErrOptimisticConflict)
	}
	if err != nil {
		return err
	}
	for _, attachmentID := range req.AttachmentIDs {
		if _, err := conn.Exec(ctx, `
            INSERT INTO information_request_attachments (information_request_id, attachment_id)
            VALUES ($1,$2) ON CONFLICT DO NOTHING`, req.ID, attachmentID); err != nil {
			return err
		}
	}
	return nil
}

func (r *informationRequestRepository) ListByComplaint(ctx context.Context, complaintID string) ([]domain.InformationRequest, error) {
	if !isRowID(complaintID) {
		return []domain.InformationRequest{}, nil
	}
	conn := persistence.Conn(ctx, r.pool)
	rows, err := conn.Query(ctx,
		`SELECT `+infoRequestColumns+` FROM information_requests WHERE complaint_id=$1 ORDER BY requested_at DESC`,
		complaintID)
	if err != nil {
		return nil, err
	}
	var result []domain.InformationRequest
	for rows.Next() {
		req, err := scanInfoRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, *req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		ids, err := r.attachmentIDs(ctx, conn, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].AttachmentIDs = ids
	}
	return result, nil
}

func (r *informationRequestRepository) fetchSingle(ctx context.Context, query string, id string) (*domain.InformationRequest, error) {
	conn := persistence.Conn(ctx, r.pool)
	req, err := scanInfoRequest(conn.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ids, err := r.attachmentIDs(ctx, conn, req.ID)
	if err != nil {
		return nil, err
	}
	req.AttachmentIDs = ids
	return req, nil
}

func (r *informationRequestRepository) attachmentIDs(ctx context.Context, conn persistence.DBTX, requestID string) ([]string, error) {
	rows, err := conn.Query(ctx,
		`SELECT attachment_id FROM information_request_attachments WHERE information_request_id=$1`, requestID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanInfoRequest(row pgx.Row) (*domain.InformationRequest, error) {
	var req domain.InformationRequest
	if err := row.Scan(
		&req.ID,
		&req.ComplaintID,
		&req.RequestedByID,
		&req.RequestedByName,
		&req.RequestMessage,
		&req.Status,
		&req.RequestedAt,
		&req.ResponseMessage,
		&req.RespondedAt,
		&req.Version,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
