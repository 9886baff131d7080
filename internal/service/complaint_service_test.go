package service

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/tracking"
	"github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

func ptr[T any](v T) *T { return &v }

func TestComplaintService_LockWalkthrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t)
	assert.Equal(t, domain.ComplaintStatusPending, c.Status)
	assert.Regexp(t, `^CMP-\d{8}-[A-Z0-9]{6}$`, c.TrackingNumber)
	assert.Equal(t, []domain.HistoryActionType{domain.ActionCreated}, f.historyActions(t, c.ID))

	locked, err := f.complaints.Respond(ctx, employeeE, c.ID, "looking into it", domain.ComplaintStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, int64(1), locked.Version)
	assert.True(t, locked.IsLocked())
	assert.Equal(t, []domain.HistoryActionType{
		domain.ActionCreated, domain.ActionStatusChanged, domain.ActionLocked,
	}, f.historyActions(t, c.ID))

	_, err = f.complaints.UpdateFields(ctx, employeeF, c.ID, UpdateComplaintInput{Description: ptr("edited by F")})
	require.Error(t, err)
	require.True(t, errorutil.HasCode(err, errorutil.CodeLocked))
	domainErr := errorutil.ToDomainError(err)
	assert.Equal(t, employeeE.ID, domainErr.Details["locked_by"])
	assert.Contains(t, domainErr.Message, employeeE.Name)

	resolved, err := f.complaints.Respond(ctx, employeeE, c.ID, "pipe replaced", domain.ComplaintStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resolved.Version)
	assert.False(t, resolved.IsLocked())
	assert.Equal(t, []domain.HistoryActionType{
		domain.ActionCreated,
		domain.ActionStatusChanged, domain.ActionLocked,
		domain.ActionStatusChanged, domain.ActionUnlocked,
	}, f.historyActions(t, c.ID))

	updated, err := f.complaints.UpdateFields(ctx, employeeF, c.ID, UpdateComplaintInput{Description: ptr("edited by F")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Version)
	assert.Equal(t, "edited by F", updated.Description)

	assert.Equal(t, []string{"created", "status", "status"}, f.notifier.kinds())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockDenials))
}

func TestComplaintService_LockHolderAndAdminMayMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.complaints.Respond(ctx, employeeE, c.ID, "on it", domain.ComplaintStatusInProgress)
	require.NoError(t, err)

	_, err = f.complaints.UpdateFields(ctx, employeeE, c.ID, UpdateComplaintInput{Location: ptr("Mezzeh, street 14")})
	require.NoError(t, err)

	got, err := f.complaints.UpdateFields(ctx, admin, c.ID, UpdateComplaintInput{Description: ptr("admin note")})
	require.NoError(t, err)
	assert.Equal(t, "admin note", got.Description)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockOverrides))

	_, err = f.complaints.Respond(ctx, employeeF, c.ID, "me too", domain.ComplaintStatusResolved)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeLocked))

	_, err = f.complaints.Respond(ctx, admin, c.ID, "closed by admin", domain.ComplaintStatusClosed)
	require.NoError(t, err)
}

func TestComplaintService_AdminResponseKeepsLockHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.complaints.Respond(ctx, employeeE, c.ID, "on it", domain.ComplaintStatusInProgress)
	require.NoError(t, err)
	before := f.historyActions(t, c.ID)

	got, err := f.complaints.Respond(ctx, admin, c.ID, "escalated to the field team", domain.ComplaintStatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, got.RespondedByID)
	assert.Equal(t, employeeE.ID, *got.RespondedByID)
	assert.Equal(t, employeeE.Name, got.RespondedByName)
	assert.Equal(t, "escalated to the field team", got.Response)
	assert.Equal(t, before, f.historyActions(t, c.ID))

	_, err = f.complaints.UpdateFields(ctx, employeeE, c.ID, UpdateComplaintInput{Description: ptr("crew on site")})
	require.NoError(t, err)

	_, err = f.complaints.UpdateFields(ctx, employeeF, c.ID, UpdateComplaintInput{Description: ptr("x")})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeLocked))
}

func TestComplaintService_UpdateFieldsRecordsEachChangedField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	got, err := f.complaints.UpdateFields(ctx, employeeE, c.ID, UpdateComplaintInput{
		Description: ptr("  new description "),
		Location:    ptr(c.Location),
		Status:      ptr(domain.ComplaintStatusInProgress),
	})
	require.NoError(t, err)
	assert.Equal(t, "new description", got.Description)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.RespondedByID)
	assert.Equal(t, employeeE.ID, *got.RespondedByID)

	entries, err := f.history.ListByComplaint(ctx, c.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	// newest first: LOCKED, STATUS_CHANGED, UPDATED_FIELDS, CREATED
	assert.Equal(t, domain.ActionLocked, entries[0].ActionType)
	assert.Equal(t, domain.ActionStatusChanged, entries[1].ActionType)
	field := entries[2]
	assert.Equal(t, domain.ActionUpdatedFields, field.ActionType)
	require.NotNil(t, field.FieldChanged)
	assert.Equal(t, "description", *field.FieldChanged)
	assert.Equal(t, "Water cut for three days", *field.OldValue)
	assert.Equal(t, "new description", *field.NewValue)
	assert.Contains(t, field.ActionDescription, employeeE.Name)
}

func TestComplaintService_UpdateWithoutChangesKeepsVersion(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	got, err := f.complaints.UpdateFields(context.Background(), employeeE, c.ID, UpdateComplaintInput{Description: ptr(c.Description)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Version)
	assert.Len(t, f.historyActions(t, c.ID), 1)
}

func TestComplaintService_AccessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	tests := []struct {
		name string
		call func() error
		code string
	}{
		{"employee cannot create", func() error {
			_, err := f.complaints.Create(ctx, employeeE, validInput())
			return err
		}, errorutil.CodeUnauthorized},
		{"other agency cannot update", func() error {
			_, err := f.complaints.UpdateFields(ctx, outsider, c.ID, UpdateComplaintInput{Description: ptr("x")})
			return err
		}, errorutil.CodeUnauthorized},
		{"citizen cannot respond", func() error {
			_, err := f.complaints.Respond(ctx, citizen, c.ID, "x", domain.ComplaintStatusResolved)
			return err
		}, errorutil.CodeUnauthorized},
		{"citizen cannot delete", func() error {
			return f.complaints.Delete(ctx, citizen, c.ID)
		}, errorutil.CodeUnauthorized},
		{"stranger cannot read", func() error {
			_, err := f.complaints.Get(ctx, stranger, c.ID)
			return err
		}, errorutil.CodeUnauthorized},
		{"other agency cannot read history", func() error {
			_, err := f.complaints.History(ctx, outsider, c.ID, 0, 10)
			return err
		}, errorutil.CodeUnauthorized},
		{"unknown complaint", func() error {
			_, err := f.complaints.Respond(ctx, employeeE, "missing", "x", domain.ComplaintStatusResolved)
			return err
		}, errorutil.CodeNotFound},
		{"empty response", func() error {
			_, err := f.complaints.Respond(ctx, employeeE, c.ID, "  ", domain.ComplaintStatusResolved)
			return err
		}, errorutil.CodeValidation},
		{"blank description", func() error {
			_, err := f.complaints.UpdateFields(ctx, employeeE, c.ID, UpdateComplaintInput{Description: ptr(" ")})
			return err
		}, errorutil.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errorutil.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Len(t, f.historyActions(t, c.ID), 1, "rejected calls must not write history")
}

func TestComplaintService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	input := validInput()
	input.Description = ""
	input.GovernmentAgency = ""

	_, err := f.complaints.Create(context.Background(), citizen, input)
	require.Error(t, err)
	domainErr := errorutil.ToDomainError(err)
	assert.Equal(t, errorutil.CodeValidation, domainErr.Code)
	assert.Contains(t, domainErr.Details, "description")
	assert.Contains(t, domainErr.Details, "government_agency")
}

func TestComplaintService_TransitionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.complaints.Respond(ctx, employeeE, c.ID, "rejected", domain.ComplaintStatusRejected)
	require.NoError(t, err)

	_, err = f.complaints.Respond(ctx, employeeE, c.ID, "reopen", domain.ComplaintStatusInProgress)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	_, err = f.complaints.UpdateFields(ctx, employeeE, c.ID, UpdateComplaintInput{Status: ptr(domain.ComplaintStatusPending)})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	// same status only refreshes the response text
	got, err := f.complaints.Respond(ctx, employeeE, c.ID, "reason clarified", domain.ComplaintStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, "reason clarified", got.Response)
	assert.Equal(t, []domain.HistoryActionType{
		domain.ActionCreated, domain.ActionStatusChanged, domain.ActionUnlocked,
	}, f.historyActions(t, c.ID))
}

func TestComplaintService_ConcurrentRespondsSerialize(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	const writers = 12
	versions := make([]int64, writers)
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			got, err := f.complaints.Respond(context.Background(), employeeE, c.ID, "update", domain.ComplaintStatusInProgress)
			if err != nil {
				return err
			}
			versions[i] = got.Version
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for i, v := range versions {
		assert.Equal(t, int64(i+1), v, "each successful write advances the version by exactly one")
	}
}

func TestComplaintService_ConcurrentEmployeesOnlyOneAcquiresLock(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	const contenders = 8
	var wins, locked atomic.Int32
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		emp := domain.Employee{ID: "emp-" + string(rune('a'+i)), Name: "Employee", Agency: domain.AgencyWater}
		g.Go(func() error {
			_, err := f.complaints.Respond(context.Background(), emp, c.ID, "mine", domain.ComplaintStatusInProgress)
			switch {
			case err == nil:
				wins.Add(1)
			case errorutil.HasCode(err, errorutil.CodeLocked):
				locked.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(contenders-1), locked.Load())

	stored, err := f.store.Complaints().GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

// staleComplaints hands out a snapshot instead of locking, as if the row
// lock had been lost between read and write.
type staleComplaints struct {
	repository.ComplaintRepository
	snapshot *domain.Complaint
}

func (r *staleComplaints) FindForUpdate(context.Context, string, *domain.GovernmentAgency) (*domain.Complaint, error) {
	c := *r.snapshot
	return &c, nil
}

func TestComplaintService_StaleVersionIsOptimisticConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	snapshot, err := f.store.Complaints().GetByID(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.complaints.Respond(ctx, employeeE, c.ID, "first", domain.ComplaintStatusResolved)
	require.NoError(t, err)

	stale := &staleComplaints{ComplaintRepository: f.store.Complaints(), snapshot: snapshot}
	svc := NewComplaintService(ComplaintDependencies{
		TxManager:     f.store,
		ComplaintRepo: stale,
		Guard:         NewConcurrencyGuard(stale, f.metrics, zap.NewNop()),
		History:       f.recorder,
		Metrics:       f.metrics,
	})
	_, err = svc.Respond(ctx, employeeF, c.ID, "second", domain.ComplaintStatusRejected)
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeOptimisticConflict))
	assert.ErrorIs(t, err, repository.ErrOptimisticConflict)
	assert.Equal(t, "complaint was modified by someone else, please reload and retry", errorutil.ToDomainError(err).Message)

	stored, err := f.store.Complaints().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Response)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OptimisticConflicts.WithLabelValues("complaint")))
}

type repeatingGenerator struct {
	codes []string
	calls int
}

func (g *repeatingGenerator) Generate() (string, error) {
	code := g.codes[min(g.calls, len(g.codes)-1)]
	g.calls++
	return code, nil
}

func TestComplaintService_TrackingCollisionsRetryThenExhaust(t *testing.T) {
	const taken = "CMP-20250101-AAAAAA"
	gen := &repeatingGenerator{codes: []string{taken}}
	f := newFixtureWithGenerator(t, gen)
	ctx := context.Background()

	first := f.create(t)
	assert.Equal(t, taken, first.TrackingNumber)
	assert.Equal(t, 1, gen.calls)

	gen.calls = 0
	_, err := f.complaints.Create(ctx, citizen, validInput())
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInternal))
	assert.ErrorIs(t, err, tracking.ErrGenerationExhausted)
	assert.Equal(t, tracking.DefaultMaxAttempts, gen.calls)
	assert.Equal(t, float64(tracking.DefaultMaxAttempts), testutil.ToFloat64(f.metrics.TrackingCollisions))

	// four collisions then a fresh code succeeds on the fifth attempt
	gen.calls = 0
	gen.codes = []string{taken, taken, taken, taken, "CMP-20250101-BBBBBB"}
	second, err := f.complaints.Create(ctx, citizen, validInput())
	require.NoError(t, err)
	assert.Equal(t, "CMP-20250101-BBBBBB", second.TrackingNumber)
	assert.Equal(t, 5, gen.calls)
}

// scriptedAllocator skips the existence check, like an allocator that lost a
// race with a concurrent insert.
type scriptedAllocator struct {
	codes []string
	calls int
}

func (a *scriptedAllocator) Allocate(context.Context) (string, error) {
	code := a.codes[min(a.calls, len(a.codes)-1)]
	a.calls++
	return code, nil
}

func TestComplaintService_TrackingTakenAtInsertIsReallocated(t *testing.T) {
	const taken = "CMP-20250101-AAAAAA"
	f := newFixture(t)
	ctx := context.Background()

	alloc := &scriptedAllocator{codes: []string{taken}}
	f.complaints.tracking = alloc
	first := f.create(t)
	assert.Equal(t, taken, first.TrackingNumber)

	alloc.calls = 0
	alloc.codes = []string{taken, "CMP-20250101-BBBBBB"}
	second, err := f.complaints.Create(ctx, citizen, validInput())
	require.NoError(t, err)
	assert.Equal(t, "CMP-20250101-BBBBBB", second.TrackingNumber)
	assert.Equal(t, 2, alloc.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.TrackingCollisions))
	assert.Equal(t, []domain.HistoryActionType{domain.ActionCreated}, f.historyActions(t, second.ID))

	alloc.calls = 0
	alloc.codes = []string{taken}
	_, err = f.complaints.Create(ctx, citizen, validInput())
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInternal))
	assert.ErrorIs(t, err, repository.ErrDuplicateTrackingNumber)
	assert.Equal(t, maxCreateAttempts, alloc.calls)
}

func TestComplaintService_HistoryFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	f.history.FailAppends(errors.New("audit store down"))
	got, err := f.complaints.Respond(ctx, employeeE, c.ID, "on it", domain.ComplaintStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusInProgress, got.Status)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.HistoryFailures))

	f.history.FailAppends(nil)
	assert.Len(t, f.historyActions(t, c.ID), 1)
}

func TestComplaintService_AttachmentsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.complaints.AddAttachment(ctx, stranger, c.ID, upload("x.pdf", "x"))
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized))
	_, err = f.complaints.AddAttachment(ctx, employeeE, c.ID, upload("x.pdf", "x"))
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized))

	a1, err := f.complaints.AddAttachment(ctx, citizen, c.ID, upload("meter.jpg", "jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("jpeg-bytes")), a1.SizeBytes)
	a2, err := f.complaints.AddAttachment(ctx, citizen, c.ID, upload("bill.pdf", "pdf"))
	require.NoError(t, err)

	require.NoError(t, f.complaints.RemoveAttachment(ctx, citizen, c.ID, a2.ID))
	assert.Equal(t, []string{a2.StoragePath}, f.files.deletedPaths())
	assert.True(t, errorutil.HasCode(f.complaints.RemoveAttachment(ctx, citizen, c.ID, a2.ID), errorutil.CodeNotFound))

	_, err = f.complaints.Respond(ctx, employeeE, c.ID, "on it", domain.ComplaintStatusInProgress)
	require.NoError(t, err)
	assert.True(t, errorutil.HasCode(f.complaints.Delete(ctx, employeeF, c.ID), errorutil.CodeLocked))

	f.files.DeleteFunc = func(string) error { return errBoom }
	require.NoError(t, f.complaints.Delete(ctx, employeeE, c.ID))
	assert.Contains(t, f.files.deletedPaths(), a1.StoragePath)

	_, err = f.complaints.Get(ctx, admin, c.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))

	// the audit trail outlives the complaint
	assert.Equal(t, []domain.HistoryActionType{
		domain.ActionCreated,
		domain.ActionAttachmentAdded, domain.ActionAttachmentAdded, domain.ActionAttachmentRemoved,
		domain.ActionStatusChanged, domain.ActionLocked,
	}, f.historyActions(t, c.ID))
}

func TestComplaintService_AttachmentStorageFailure(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	f.files.SaveFunc = func(string) error { return errBoom }

	_, err := f.complaints.AddAttachment(context.Background(), citizen, c.ID, upload("x.pdf", "x"))
	require.ErrorIs(t, err, errBoom)

	got, err := f.complaints.Get(context.Background(), citizen, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Attachments)
}

func TestComplaintService_ReadSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)
	for i := 0; i < 3; i++ {
		_, err := f.complaints.UpdateFields(ctx, employeeE, c.ID, UpdateComplaintInput{Description: ptr("rev " + string(rune('a'+i)))})
		require.NoError(t, err)
	}

	byCode, err := f.complaints.GetByTrackingNumber(ctx, citizen, " "+c.TrackingNumber+" ")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byCode.ID)

	page, err := f.complaints.History(ctx, employeeE, c.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "rev c", *page.Entries[0].NewValue)

	last, err := f.complaints.History(ctx, citizen, c.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, last.Entries, 2)
	assert.Equal(t, domain.ActionCreated, last.Entries[1].ActionType)
}
