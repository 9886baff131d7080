package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
)

// ComplaintRepository encapsulates complaint persistence.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	GetByTrackingNumber(ctx context.Context, code string) (*domain.Complaint, error)
	// FindForUpdate reads the row under an exclusive lock. A non-nil agency
	// restricts the lookup to complaints addressed to that agency.
	FindForUpdate(ctx context.Context, id string, agency *domain.GovernmentAgency) (*domain.Complaint, error)
	// Save writes the complaint if complaint.Version still matches the stored
	// version, and increments complaint.Version on success.
	Save(ctx context.Context, complaint *domain.Complaint) error
	Delete(ctx context.Context, id string) error
	ExistsByTrackingNumber(ctx context.Context, code string) (bool, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const uniqueViolation = "23505"

const complaintColumns = `id, tracking_number, citizen_id, complaint_type, governorate, government_agency,
        location, description, solution_suggestion, status, response, responded_at,
        responded_by_id, responded_by_name, version, created_at, updated_at`

func (r *complaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	const query = `
        INSERT INTO complaints (id, tracking_number, citizen_id, complaint_type, governorate, government_agency,
            location, description, solution_suggestion, status, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0)
        RETURNING version, created_at, updated_at`
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		c.ID,
		c.TrackingNumber,
		c.CitizenID,
		c.ComplaintType,
		c.Governorate,
		c.GovernmentAgency,
		c.Location,
		c.Description,
		c.SolutionSuggestion,
		c.Status,
	).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "complaints_tracking_number_key" {
		return fmt.Errorf("tracking number %s: %w", c.TrackingNumber, ErrDuplicateTrackingNumber)
	}
	return err
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *complaintRepository) GetByTrackingNumber(ctx context.Context, code string) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE tracking_number=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *complaintRepository) FindForUpdate(ctx context.Context, id string, agency *domain.GovernmentAgency) (*domain.Complaint, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	if agency != nil {
		query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1 AND government_agency=$2 FOR UPDATE`
		return r.fetchSingle(ctx, query, id, *agency)
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *complaintRepository) Save(ctx context.Context, c *domain.Complaint) error {
	const query = `
        UPDATE complaints SET complaint_type=$1, governorate=$2, government_agency=$3, location=$4,
            description=$5, solution_suggestion=$6, status=$7, response=$8, responded_at=$9,
            responded_by_id=$10, responded_by_name=$11, version=version+1, updated_at=NOW()
        WHERE id=$12 AND version=$13
        RETURNING version, updated_at`
	conn := persistence.Conn(ctx, r.pool)
	err := conn.QueryRow(ctx, query,
		c.ComplaintType,
		c.Governorate,
		c.GovernmentAgency,
		c.Location,
		c.Description,
		c.SolutionSuggestion,
		c.Status,
		c.Response,
		c.RespondedAt,
		c.RespondedByID,
		c.RespondedByName,
		c.ID,
		c.Version,
	).Scan(&c.Version, &c.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM complaints WHERE id=$1)`, c.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("complaint %s at version %d: %w", c.ID, c.Version, ErrOptimisticConflict)
}

func (r *complaintRepository) Delete(ctx context.Context, id string) error {
	if !isRowID(id) {
		return ErrNotFound
	}
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM complaints WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *complaintRepository) ExistsByTrackingNumber(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := persistence.Conn(ctx, r.pool).
		QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM complaints WHERE tracking_number=$1)`, code).
		Scan(&exists)
	return exists, err
}

func (r *complaintRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Complaint, error) {
	conn := persistence.Conn(ctx, r.pool)
	var c domain.Complaint
	if err := conn.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.TrackingNumber,
		&c.CitizenID,
		&c.ComplaintType,
		&c.Governorate,
		&c.GovernmentAgency,
		&c.Location,
		&c.Description,
		&c.SolutionSuggestion,
		&c.Status,
		&c.Response,
		&c.RespondedAt,
		&c.RespondedByID,
		&c.RespondedByName,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	attachments, err := listAttachments(ctx, conn, c.ID)
	if err != nil {
		return nil, err
	}
	c.Attachments = attachments
	return &c, nil
}
