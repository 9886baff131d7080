package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository/memory"
	"github.com/spec-kit/complaint-service/internal/tracking"
)

var (
	citizen   = domain.Citizen{ID: "citizen-1", Name: "Lina"}
	stranger  = domain.Citizen{ID: "citizen-2", Name: "Omar"}
	employeeE = domain.Employee{ID: "emp-e", Name: "Elias", Agency: domain.AgencyWater}
	employeeF = domain.Employee{ID: "emp-f", Name: "Fadi", Agency: domain.AgencyWater}
	outsider  = domain.Employee{ID: "emp-x", Name: "Ziad", Agency: domain.AgencyHealth}
	admin     = domain.Admin{ID: "admin-1", Name: "Root"}
)

type fakeFiles struct {
	mu         sync.Mutex
	saved      map[string]string
	deleted    []string
	SaveFunc   func(name string) error
	DeleteFunc func(path string) error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{saved: map[string]string{}}
}

func (f *fakeFiles) Save(_ context.Context, name string, r io.Reader) (string, int64, error) {
	if f.SaveFunc != nil {
		if err := f.SaveFunc(name); err != nil {
			return "", 0, err
		}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := uuid.NewString() + "-" + name
	f.saved[path] = string(body)
	return path, int64(len(body)), nil
}

func (f *fakeFiles) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, path)
	f.mu.Unlock()
	if f.DeleteFunc != nil {
		return f.DeleteFunc(path)
	}
	return nil
}

func (f *fakeFiles) deletedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type notification struct {
	kind        string
	complaintID string
	oldStatus   domain.ComplaintStatus
	newStatus   domain.ComplaintStatus
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *recordingNotifier) NotifyCreated(_ context.Context, c *domain.Complaint, _ domain.Actor) {
	n.add(notification{kind: "created", complaintID: c.ID})
}

func (n *recordingNotifier) NotifyStatusChanged(_ context.Context, c *domain.Complaint, _ domain.Actor, oldStatus, newStatus domain.ComplaintStatus) {
	n.add(notification{kind: "status", complaintID: c.ID, oldStatus: oldStatus, newStatus: newStatus})
}

func (n *recordingNotifier) NotifyInfoRequested(_ context.Context, c *domain.Complaint, _ domain.Actor, _ *domain.InformationRequest) {
	n.add(notification{kind: "info", complaintID: c.ID})
}

func (n *recordingNotifier) add(call notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.calls))
	for _, c := range n.calls {
		out = append(out, c.kind)
	}
	return out
}

type fixture struct {
	store      *memory.Store
	history    *memory.HistoryRepository
	files      *fakeFiles
	notifier   *recordingNotifier
	metrics    *observability.Metrics
	guard      *ConcurrencyGuard
	recorder   *HistoryRecorder
	complaints *ComplaintService
	requests   *InformationRequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithGenerator(t, tracking.NewRandomGenerator("CMP"))
}

func newFixtureWithGenerator(t *testing.T, gen tracking.CandidateGenerator) *fixture {
	t.Helper()
	store := memory.NewStore()
	history := store.History()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := zap.NewNop()
	allocator := tracking.NewAllocator(gen, store.Complaints(), tracking.DefaultMaxAttempts, logger)
	allocator.OnCollision(metrics.RecordTrackingCollision)

	f := &fixture{
		store:    store,
		history:  history,
		files:    newFakeFiles(),
		notifier: &recordingNotifier{},
		metrics:  metrics,
	}
	f.guard = NewConcurrencyGuard(store.Complaints(), metrics, logger)
	f.recorder = NewHistoryRecorder(history, logger, metrics)
	f.complaints = NewComplaintService(ComplaintDependencies{
		TxManager:      store,
		ComplaintRepo:  store.Complaints(),
		AttachmentRepo: store.Attachments(),
		Guard:          f.guard,
		History:        f.recorder,
		Tracking:       allocator,
		Files:          f.files,
		Notifier:       f.notifier,
		Metrics:        metrics,
		Logger:         logger,
	})
	f.requests = NewInformationRequestService(InformationRequestDependencies{
		TxManager:      store,
		ComplaintRepo:  store.Complaints(),
		RequestRepo:    store.InfoRequests(),
		AttachmentRepo: store.Attachments(),
		Guard:          f.guard,
		History:        f.recorder,
		Files:          f.files,
		Notifier:       f.notifier,
		Metrics:        metrics,
		Logger:         logger,
	})
	return f
}

func validInput() CreateComplaintInput {
	return CreateComplaintInput{
		ComplaintType:    domain.ComplaintTypeInfrastructure,
		Governorate:      domain.GovernorateDamascus,
		GovernmentAgency: domain.AgencyWater,
		Location:         "Mezzeh, street 12",
		Description:      "Water cut for three days",
	}
}

func (f *fixture) create(t *testing.T) *domain.Complaint {
	t.Helper()
	c, err := f.complaints.Create(context.Background(), citizen, validInput())
	require.NoError(t, err)
	return c
}

func (f *fixture) historyActions(t *testing.T, complaintID string) []domain.HistoryActionType {
	t.Helper()
	entries, err := f.history.ListByComplaint(context.Background(), complaintID, 0, 0)
	require.NoError(t, err)
	actions := make([]domain.HistoryActionType, 0, len(entries))
	// oldest first reads more naturally in assertions
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].ActionType)
	}
	return actions
}

func upload(name, body string) FileUpload {
	return FileUpload{FileName: name, MimeType: "application/octet-stream", Body: strings.NewReader(body)}
}

var errBoom = errors.New("boom")
