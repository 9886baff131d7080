package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
)

// AttachmentRepository persists complaint attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByComplaint(ctx context.Context, complaintID string) ([]domain.Attachment, error)
	Delete(ctx context.Context, id string) error
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository creates repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	const query = `
        INSERT INTO complaint_attachments (id, complaint_id, file_name, storage_path, mime_type, size_bytes, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		a.ID,
		a.ComplaintID,
		a.FileName,
		a.StoragePath,
		a.MimeType,
		a.SizeBytes,
		a.UploadedBy,
	).Scan(&a.CreatedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, complaint_id, file_name, storage_path, mime_type, size_bytes, uploaded_by, created_at
        FROM complaint_attachments WHERE id=$1`
	var a domain.Attachment
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&a.ID, &a.ComplaintID, &a.FileName, &a.StoragePath, &a.MimeType, &a.SizeBytes, &a.UploadedBy, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attachmentRepository) ListByComplaint(ctx context.Context, complaintID string) ([]domain.Attachment, error) {
	if !isRowID(complaintID) {
		return []domain.Attachment{}, nil
	}
	return listAttachments(ctx, persistence.Conn(ctx, r.pool), complaintID)
}

func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	if !isRowID(id) {
		return ErrNotFound
	}
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM complaint_attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func listAttachments(ctx context.Context, conn persistence.DBTX, complaintID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, complaint_id, file_name, storage_path, mime_type, size_bytes, uploaded_by, created_at
        FROM complaint_attachments WHERE complaint_id=$1 ORDER BY created_at ASC`
	rows, err := conn.Query(ctx, query, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(
			&a.ID,
			&a.ComplaintID,
			&a.FileName,
			&a.StoragePath,
			&a.MimeType,
			&a.SizeBytes,
			&a.UploadedBy,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
