package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/storage"
	"github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// InformationRequestService runs the request -> respond | cancel workflow
// between agency employees and the citizen who filed a complaint.
type InformationRequestService struct {
	tx          repository.TxManager
	complaints  repository.ComplaintRepository
	requests    repository.InformationRequestRepository
	attachments repository.AttachmentRepository
	guard       *ConcurrencyGuard
	history     *HistoryRecorder
	files       storage.AttachmentStore
	notifier    Notifier
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// InformationRequestDependencies bundles collaborators.
type InformationRequestDependencies struct {
	TxManager      repository.TxManager
	ComplaintRepo  repository.ComplaintRepository
	RequestRepo    repository.InformationRequestRepository
	AttachmentRepo repository.AttachmentRepository
	Guard          *ConcurrencyGuard
	History        *HistoryRecorder
	Files          storage.AttachmentStore
	Notifier       Notifier
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// InfoResponseInput is the citizen's answer; Message or at least one file
// is required.
type InfoResponseInput struct {
	Message string
	Files   []FileUpload
}

// NewInformationRequestService constructs the service.
func NewInformationRequestService(deps InformationRequestDependencies) *InformationRequestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &InformationRequestService{
		tx:          deps.TxManager,
		complaints:  deps.ComplaintRepo,
		requests:    deps.RequestRepo,
		attachments: deps.AttachmentRepo,
		guard:       deps.Guard,
		history:     deps.History,
		files:       deps.Files,
		notifier:    notifier,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Request asks the complaint's citizen for more information. Only employees
// of the complaint's agency may ask.
func (s *InformationRequestService) Request(ctx context.Context, actor domain.Actor, complaintID, message string) (req *domain.InformationRequest, err error) {
	defer func() { s.metrics.RecordMutation("info_request", outcome(err)) }()

	employee, ok := actor.(domain.Employee)
	if !ok {
		return nil, errorutil.NewUnauthorized("only agency employees can request information")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errorutil.NewValidationError("message is required", map[string]any{"field": "message"})
	}

	var complaint *domain.Complaint
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.guard.Acquire(ctx, complaintID, employee, agencyWorkflow)
		if err != nil {
			return err
		}
		req = &domain.InformationRequest{
			ID:              uuid.NewString(),
			ComplaintID:     locked.ID,
			RequestedByID:   employee.ID,
			RequestedByName: employee.Name,
			RequestMessage:  message,
			Status:          domain.InfoRequestPending,
		}
		if err := s.requests.Create(ctx, req); err != nil {
			return mapNotFound(err, "complaint", complaintID)
		}
		s.history.Record(ctx, locked, employee, domain.ActionInfoRequested, HistoryChange{
			NewValue: strPtr(message),
			Metadata: map[string]any{"request_id": req.ID},
		})
		complaint = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyInfoRequested(ctx, complaint, employee, req)
	return req, nil
}

// Respond answers a pending request. Only the citizen owning the complaint
// may respond, and only once.
func (s *InformationRequestService) Respond(ctx context.Context, actor domain.Actor, requestID string, input InfoResponseInput) (req *domain.InformationRequest, err error) {
	defer func() { s.metrics.RecordMutation("info_respond", outcome(err)) }()

	citizen, ok := actor.(domain.Citizen)
	if !ok {
		return nil, errorutil.NewUnauthorized("only the complaint owner can respond")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" && len(input.Files) == 0 {
		return nil, errorutil.NewValidationError("a message or at least one file is required", nil)
	}
	if len(input.Files) > 0 && s.files == nil {
		return nil, errorutil.NewInternalError(errors.New("attachment storage is not configured"))
	}

	current, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err, "information request", requestID)
	}
	complaint, err := s.complaints.GetByID(ctx, current.ComplaintID)
	if err != nil {
		return nil, mapNotFound(err, "complaint", current.ComplaintID)
	}
	if complaint.CitizenID != citizen.ID {
		return nil, errorutil.NewUnauthorized("complaint belongs to another citizen")
	}

	var stored []string
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.lockPending(ctx, requestID)
		if err != nil {
			return err
		}

		for _, f := range input.Files {
			name := strings.TrimSpace(f.FileName)
			if name == "" || f.Body == nil {
				return errorutil.NewValidationError("file name is required", map[string]any{"field": "files"})
			}
			path, size, err := s.files.Save(ctx, name, f.Body)
			if err != nil {
				return fmt.Errorf("store attachment: %w", err)
			}
			stored = append(stored, path)
			attachment := &domain.Attachment{
				ID:          uuid.NewString(),
				ComplaintID: locked.ComplaintID,
				FileName:    name,
				StoragePath: path,
				MimeType:    f.MimeType,
				SizeBytes:   size,
				UploadedBy:  citizen.ID,
			}
			if err := s.attachments.Create(ctx, attachment); err != nil {
				return mapNotFound(err, "complaint", locked.ComplaintID)
			}
			locked.AttachmentIDs = append(locked.AttachmentIDs, attachment.ID)
		}

		now := s.now().UTC()
		locked.Status = domain.InfoRequestResponded
		locked.RespondedAt = &now
		if message != "" {
			locked.ResponseMessage = &message
		}
		if err := s.save(ctx, locked); err != nil {
			return err
		}
		s.history.Record(ctx, complaint, citizen, domain.ActionInfoProvided, HistoryChange{
			NewValue: locked.ResponseMessage,
			Metadata: map[string]any{
				"request_id":     locked.ID,
				"attachment_ids": locked.AttachmentIDs,
			},
		})
		req = locked
		return nil
	})
	if err != nil {
		for _, path := range stored {
			s.releaseFile(ctx, current.ComplaintID, path)
		}
		return nil, err
	}
	return req, nil
}

// Cancel withdraws a pending request. Only the requesting employee or an
// admin may cancel.
func (s *InformationRequestService) Cancel(ctx context.Context, actor domain.Actor, requestID string) (req *domain.InformationRequest, err error) {
	defer func() { s.metrics.RecordMutation("info_cancel", outcome(err)) }()

	current, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err, "information request", requestID)
	}
	switch a := actor.(type) {
	case domain.Admin:
	case domain.Employee:
		if a.ID != current.RequestedByID {
			return nil, errorutil.NewUnauthorized("only the requesting employee can cancel this request")
		}
	default:
		return nil, errorutil.NewUnauthorized("only the requesting employee can cancel this request")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.lockPending(ctx, requestID)
		if err != nil {
			return err
		}
		locked.Status = domain.InfoRequestCancelled
		if err := s.save(ctx, locked); err != nil {
			return err
		}
		complaint, err := s.complaints.GetByID(ctx, locked.ComplaintID)
		if err != nil {
			return mapNotFound(err, "complaint", locked.ComplaintID)
		}
		s.history.Record(ctx, complaint, actor, domain.ActionInfoRequestCancelled, HistoryChange{
			OldValue: strPtr(string(domain.InfoRequestPending)),
			NewValue: strPtr(string(domain.InfoRequestCancelled)),
			Metadata: map[string]any{"request_id": locked.ID},
		})
		req = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// List returns the requests of a complaint visible to actor, newest first.
func (s *InformationRequestService) List(ctx context.Context, actor domain.Actor, complaintID string) ([]domain.InformationRequest, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, mapNotFound(err, "complaint", complaintID)
	}
	if err := authorizeRead(actor, complaint); err != nil {
		return nil, err
	}
	return s.requests.ListByComplaint(ctx, complaintID)
}

// lockPending takes the request row lock and rejects requests that already
// left PENDING.
func (s *InformationRequestService) lockPending(ctx context.Context, requestID string) (*domain.InformationRequest, error) {
	locked, err := s.requests.FindForUpdate(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err, "information request", requestID)
	}
	if locked.Status != domain.InfoRequestPending {
		return nil, errorutil.NewConflict(
			fmt.Sprintf("information request is already %s", strings.ToLower(string(locked.Status))),
			map[string]any{"status": locked.Status},
		)
	}
	return locked, nil
}

func (s *InformationRequestService) save(ctx context.Context, req *domain.InformationRequest) error {
	err := s.requests.Save(ctx, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOptimisticConflict):
		s.metrics.RecordConflict("information_request")
		return errorutil.NewOptimisticConflict("information request", err)
	default:
		return mapNotFound(err, "information request", req.ID)
	}
}

func (s *InformationRequestService) releaseFile(ctx context.Context, complaintID, path string) {
	if s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, path); err != nil {
		s.logger.Warn("failed to release attachment file",
			zap.String("complaint_id", complaintID),
			zap.String("path", path),
			zap.Error(err))
	}
}
