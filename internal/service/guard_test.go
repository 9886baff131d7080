package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

type ConcurrencyGuardSuite struct {
	suite.Suite
	f         *fixture
	complaint *domain.Complaint
}

func TestConcurrencyGuardSuite(t *testing.T) {
	suite.Run(t, new(ConcurrencyGuardSuite))
}

func (s *ConcurrencyGuardSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.complaint = s.f.create(s.T())
}

func (s *ConcurrencyGuardSuite) acquire(actor domain.Actor, policy guardPolicy) (*domain.Complaint, error) {
	var locked *domain.Complaint
	err := s.f.store.RunInTx(context.Background(), func(ctx context.Context) error {
		var err error
		locked, err = s.f.guard.Acquire(ctx, s.complaint.ID, actor, policy)
		return err
	})
	return locked, err
}

func (s *ConcurrencyGuardSuite) lockFor(actor domain.Actor) {
	_, err := s.f.complaints.Respond(context.Background(), actor, s.complaint.ID, "on it", domain.ComplaintStatusInProgress)
	s.Require().NoError(err)
}

func (s *ConcurrencyGuardSuite) TestUnknownComplaintIsNotFound() {
	_, err := s.f.guard.Acquire(context.Background(), "missing", employeeE, employeeMutation)
	s.True(errorutil.HasCode(err, errorutil.CodeNotFound))
}

func (s *ConcurrencyGuardSuite) TestAgencyScopeRejectsOutsider() {
	_, err := s.acquire(outsider, employeeMutation)
	s.True(errorutil.HasCode(err, errorutil.CodeUnauthorized))
}

func (s *ConcurrencyGuardSuite) TestPolicyRejectsWrongActorKind() {
	_, err := s.acquire(citizen, employeeMutation)
	s.True(errorutil.HasCode(err, errorutil.CodeUnauthorized))

	_, err = s.acquire(employeeE, citizenOwnerEdit)
	s.True(errorutil.HasCode(err, errorutil.CodeUnauthorized))

	_, err = s.acquire(stranger, citizenOwnerEdit)
	s.True(errorutil.HasCode(err, errorutil.CodeUnauthorized))

	locked, err := s.acquire(citizen, citizenOwnerEdit)
	s.Require().NoError(err)
	s.Equal(s.complaint.ID, locked.ID)
}

func (s *ConcurrencyGuardSuite) TestStateLockBlocksOtherEmployee() {
	s.lockFor(employeeE)

	_, err := s.acquire(employeeF, employeeMutation)
	s.Require().True(errorutil.HasCode(err, errorutil.CodeLocked))
	domainErr := errorutil.ToDomainError(err)
	s.Equal(employeeE.ID, domainErr.Details["locked_by"])
	s.Equal(1.0, testutil.ToFloat64(s.f.metrics.LockDenials))

	_, err = s.acquire(employeeE, employeeMutation)
	s.NoError(err)
}

func (s *ConcurrencyGuardSuite) TestWorkflowPolicyIgnoresStateLock() {
	s.lockFor(employeeE)

	_, err := s.acquire(employeeF, agencyWorkflow)
	s.NoError(err)
	s.Zero(testutil.ToFloat64(s.f.metrics.LockDenials))
}

func (s *ConcurrencyGuardSuite) TestAdminOverrideIsCounted() {
	s.lockFor(employeeE)

	_, err := s.acquire(admin, employeeMutation)
	s.Require().NoError(err)
	s.Equal(1.0, testutil.ToFloat64(s.f.metrics.LockOverrides))
}

func (s *ConcurrencyGuardSuite) TestSaveMapsStaleVersion() {
	stale, err := s.f.store.Complaints().GetByID(context.Background(), s.complaint.ID)
	s.Require().NoError(err)
	s.lockFor(employeeE)

	stale.Description = "overwrite"
	err = s.f.guard.Save(context.Background(), stale)
	s.True(errorutil.HasCode(err, errorutil.CodeOptimisticConflict))
	s.Equal(1.0, testutil.ToFloat64(s.f.metrics.OptimisticConflicts.WithLabelValues("complaint")))
}
