package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// guardPolicy selects which callers may mutate and whether the domain state
// lock applies.
type guardPolicy struct {
	// employees of the complaint's agency; admins always pass
	agencyEmployees bool
	// the citizen who filed the complaint
	owningCitizen bool
	stateLock     bool
}

var (
	employeeMutation = guardPolicy{agencyEmployees: true, stateLock: true}
	agencyWorkflow   = guardPolicy{agencyEmployees: true}
	citizenOwnerEdit = guardPolicy{owningCitizen: true}
)

// ConcurrencyGuard runs the locking discipline in a fixed order: agency
// scope check, pessimistic fetch, state lock check. Writes go back through
// Save, which carries the optimistic version check.
type ConcurrencyGuard struct {
	complaints repository.ComplaintRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewConcurrencyGuard builds the guard.
func NewConcurrencyGuard(complaints repository.ComplaintRepository, metrics *observability.Metrics, logger *zap.Logger) *ConcurrencyGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConcurrencyGuard{complaints: complaints, metrics: metrics, logger: logger}
}

// Acquire returns the complaint locked for the current transaction. It must
// be called inside RunInTx.
func (g *ConcurrencyGuard) Acquire(ctx context.Context, complaintID string, actor domain.Actor, policy guardPolicy) (*domain.Complaint, error) {
	current, err := g.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, mapNotFound(err, "complaint", complaintID)
	}

	var scope *domain.GovernmentAgency
	switch a := actor.(type) {
	case domain.Admin:
		if !policy.agencyEmployees {
			return nil, errorutil.NewUnauthorized("admins cannot perform this operation")
		}
	case domain.Employee:
		if !policy.agencyEmployees {
			return nil, errorutil.NewUnauthorized("employees cannot perform this operation")
		}
		if current.GovernmentAgency != a.Agency {
			return nil, errorutil.NewUnauthorized("complaint belongs to another agency")
		}
		agency := a.Agency
		scope = &agency
	case domain.Citizen:
		if !policy.owningCitizen {
			return nil, errorutil.NewUnauthorized("citizens cannot perform this operation")
		}
		if current.CitizenID != a.ID {
			return nil, errorutil.NewUnauthorized("complaint belongs to another citizen")
		}
	default:
		return nil, errorutil.NewUnauthorized("unknown actor")
	}

	locked, err := g.complaints.FindForUpdate(ctx, complaintID, scope)
	if err != nil {
		return nil, mapNotFound(err, "complaint", complaintID)
	}

	if policy.stateLock {
		if err := g.checkStateLock(locked, actor); err != nil {
			return nil, err
		}
	}
	return locked, nil
}

func (g *ConcurrencyGuard) checkStateLock(complaint *domain.Complaint, actor domain.Actor) error {
	if !complaint.IsLocked() {
		return nil
	}
	switch a := actor.(type) {
	case domain.Admin:
		if *complaint.RespondedByID != a.ID {
			g.metrics.RecordLockOverride()
			g.logger.Info("admin overriding complaint lock",
				zap.String("complaint_id", complaint.ID),
				zap.String("admin_id", a.ID),
				zap.String("locked_by", *complaint.RespondedByID))
		}
		return nil
	case domain.Employee:
		if complaint.LockedAgainst(a.ID) {
			g.metrics.RecordLockDenied()
			return errorutil.NewLocked(*complaint.RespondedByID, complaint.RespondedByName)
		}
		return nil
	default:
		return errorutil.NewLocked(*complaint.RespondedByID, complaint.RespondedByName)
	}
}

// Save performs the versioned write and maps a stale version to an
// optimistic conflict.
func (g *ConcurrencyGuard) Save(ctx context.Context, complaint *domain.Complaint) error {
	err := g.complaints.Save(ctx, complaint)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOptimisticConflict):
		g.metrics.RecordConflict("complaint")
		g.logger.Warn("optimistic conflict on complaint",
			zap.String("complaint_id", complaint.ID),
			zap.Int64("version", complaint.Version))
		return errorutil.NewOptimisticConflict("complaint", err)
	default:
		return mapNotFound(err, "complaint", complaint.ID)
	}
}

func mapNotFound(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}
