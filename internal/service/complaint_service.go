package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/storage"
	"github.com/spec-kit/complaint-service/internal/tracking"
	"github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// maxCreateAttempts bounds how often Create re-allocates a tracking number
// that was taken between allocation and insert.
const maxCreateAttempts = 3

// TrackingAllocator hands out unique tracking numbers.
type TrackingAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// ComplaintService runs the complaint lifecycle.
type ComplaintService struct {
	tx          repository.TxManager
	complaints  repository.ComplaintRepository
	attachments repository.AttachmentRepository
	guard       *ConcurrencyGuard
	history     *HistoryRecorder
	tracking    TrackingAllocator
	files       storage.AttachmentStore
	notifier    Notifier
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	TxManager      repository.TxManager
	ComplaintRepo  repository.ComplaintRepository
	AttachmentRepo repository.AttachmentRepository
	Guard          *ConcurrencyGuard
	History        *HistoryRecorder
	Tracking       TrackingAllocator
	Files          storage.AttachmentStore
	Notifier       Notifier
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// CreateComplaintInput describes a new complaint.
type CreateComplaintInput struct {
	ComplaintType      domain.ComplaintType
	Governorate        domain.Governorate
	GovernmentAgency   domain.GovernmentAgency
	Location           string
	Description        string
	SolutionSuggestion string
}

// UpdateComplaintInput is a partial update; nil fields are left unchanged.
type UpdateComplaintInput struct {
	Location           *string
	Description        *string
	SolutionSuggestion *string
	Status             *domain.ComplaintStatus
}

// FileUpload is an attachment payload on its way to storage.
type FileUpload struct {
	FileName string
	MimeType string
	Body     io.Reader
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ComplaintService{
		tx:          deps.TxManager,
		complaints:  deps.ComplaintRepo,
		attachments: deps.AttachmentRepo,
		guard:       deps.Guard,
		history:     deps.History,
		tracking:    deps.Tracking,
		files:       deps.Files,
		notifier:    notifier,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Create files a complaint on behalf of a citizen.
func (s *ComplaintService) Create(ctx context.Context, actor domain.Actor, input CreateComplaintInput) (complaint *domain.Complaint, err error) {
	defer func() { s.recordOutcome("create", err) }()

	citizen, ok := actor.(domain.Citizen)
	if !ok {
		return nil, errorutil.NewUnauthorized("only citizens can submit complaints")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	// the allocator's existence check and the insert are separate statements;
	// a code taken in between surfaces as a duplicate and is re-allocated
	for attempt := 1; ; attempt++ {
		code, err := s.tracking.Allocate(ctx)
		if err != nil {
			if errors.Is(err, tracking.ErrGenerationExhausted) {
				s.logger.Error("tracking number allocation exhausted", zap.Error(err))
			}
			return nil, errorutil.NewInternalError(err)
		}

		complaint = &domain.Complaint{
			ID:                 uuid.NewString(),
			TrackingNumber:     code,
			CitizenID:          citizen.ID,
			ComplaintType:      input.ComplaintType,
			Governorate:        input.Governorate,
			GovernmentAgency:   input.GovernmentAgency,
			Location:           strings.TrimSpace(input.Location),
			Description:        strings.TrimSpace(input.Description),
			SolutionSuggestion: strings.TrimSpace(input.SolutionSuggestion),
			Status:             domain.ComplaintStatusPending,
		}
		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.complaints.Create(ctx, complaint); err != nil {
				return err
			}
			s.history.Record(ctx, complaint, actor, domain.ActionCreated, HistoryChange{
				NewValue: strPtr(string(complaint.Status)),
				Metadata: map[string]any{"tracking_number": complaint.TrackingNumber},
			})
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateTrackingNumber) {
			return nil, err
		}
		s.metrics.RecordTrackingCollision()
		if attempt >= maxCreateAttempts {
			s.logger.Error("tracking number kept colliding on insert", zap.Int("attempts", attempt))
			return nil, errorutil.NewInternalError(err)
		}
		s.logger.Warn("tracking number taken at insert, re-allocating",
			zap.String("tracking_number", code), zap.Int("attempt", attempt))
	}

	s.notifier.NotifyCreated(ctx, complaint, actor)
	return complaint, nil
}

// UpdateFields applies a partial update by an employee of the complaint's
// agency or an admin.
func (s *ComplaintService) UpdateFields(ctx context.Context, actor domain.Actor, complaintID string, input UpdateComplaintInput) (complaint *domain.Complaint, err error) {
	defer func() { s.recordOutcome("update_fields", err) }()

	if err := validateUpdate(input); err != nil {
		return nil, err
	}

	var oldStatus domain.ComplaintStatus
	statusChanged := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.guard.Acquire(ctx, complaintID, actor, employeeMutation)
		if err != nil {
			return err
		}
		oldStatus = locked.Status

		changes := diffFields(locked, input)
		if input.Status != nil && *input.Status != locked.Status {
			if !domain.CanTransition(locked.Status, *input.Status) {
				return invalidTransition(locked.Status, *input.Status)
			}
			locked.Status = *input.Status
			if locked.Status == domain.ComplaintStatusInProgress {
				s.assignResponder(locked, actor)
			}
			statusChanged = true
		}
		if len(changes) == 0 && !statusChanged {
			complaint = locked
			return nil
		}

		if err := s.guard.Save(ctx, locked); err != nil {
			return err
		}
		for _, change := range changes {
			s.history.Record(ctx, locked, actor, domain.ActionUpdatedFields, change)
		}
		if statusChanged {
			s.recordStatusChange(ctx, locked, actor, oldStatus)
		}
		complaint = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if statusChanged {
		s.notifier.NotifyStatusChanged(ctx, complaint, actor, oldStatus, complaint.Status)
	}
	return complaint, nil
}

// Respond records an official response and optionally moves the complaint
// to a new status. Moving into IN_PROGRESS locks the complaint for the
// responder; moving into a terminal status releases it.
func (s *ComplaintService) Respond(ctx context.Context, actor domain.Actor, complaintID, response string, newStatus domain.ComplaintStatus) (complaint *domain.Complaint, err error) {
	defer func() { s.recordOutcome("respond", err) }()

	response = strings.TrimSpace(response)
	if response == "" {
		return nil, errorutil.NewValidationError("response is required", map[string]any{"field": "response"})
	}
	if !newStatus.Valid() {
		return nil, errorutil.NewValidationError("invalid status", map[string]any{"status": newStatus})
	}

	var oldStatus domain.ComplaintStatus
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.guard.Acquire(ctx, complaintID, actor, employeeMutation)
		if err != nil {
			return err
		}
		oldStatus = locked.Status
		if newStatus != oldStatus && !domain.CanTransition(oldStatus, newStatus) {
			return invalidTransition(oldStatus, newStatus)
		}

		locked.Response = response
		locked.Status = newStatus
		// a response that leaves a held complaint IN_PROGRESS does not move the lock
		if newStatus != oldStatus || !locked.IsLocked() {
			s.assignResponder(locked, actor)
		}
		if err := s.guard.Save(ctx, locked); err != nil {
			return err
		}
		if newStatus != oldStatus {
			s.recordStatusChange(ctx, locked, actor, oldStatus)
		}
		complaint = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if newStatus != oldStatus {
		s.notifier.NotifyStatusChanged(ctx, complaint, actor, oldStatus, newStatus)
	}
	return complaint, nil
}

// Delete removes a complaint and its attachments. Stored files are released
// after the row is gone; a failure to release one is only logged.
func (s *ComplaintService) Delete(ctx context.Context, actor domain.Actor, complaintID string) (err error) {
	defer func() { s.recordOutcome("delete", err) }()

	var files []domain.Attachment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.guard.Acquire(ctx, complaintID, actor, employeeMutation)
		if err != nil {
			return err
		}
		files = locked.Attachments
		return mapNotFound(s.complaints.Delete(ctx, locked.ID), "complaint", complaintID)
	})
	if err != nil {
		return err
	}

	for _, a := range files {
		s.releaseFile(ctx, complaintID, a.StoragePath)
	}
	s.logger.Info("complaint deleted",
		zap.String("complaint_id", complaintID),
		zap.String("actor_id", actor.ActorID()),
		zap.Int("attachments", len(files)))
	return nil
}

// AddAttachment stores a file on a complaint owned by the calling citizen.
func (s *ComplaintService) AddAttachment(ctx context.Context, actor domain.Actor, complaintID string, upload FileUpload) (attachment *domain.Attachment, err error) {
	defer func() { s.recordOutcome("add_attachment", err) }()

	name := strings.TrimSpace(upload.FileName)
	if name == "" || upload.Body == nil {
		return nil, errorutil.NewValidationError("file is required", map[string]any{"field": "file"})
	}
	if s.files == nil {
		return nil, errorutil.NewInternalError(errors.New("attachment storage is not configured"))
	}

	var storedPath string
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.guard.Acquire(ctx, complaintID, actor, citizenOwnerEdit)
		if err != nil {
			return err
		}
		path, size, err := s.files.Save(ctx, name, upload.Body)
		if err != nil {
			return fmt.Errorf("store attachment: %w", err)
		}
		storedPath = path

		attachment = &domain.Attachment{
			ID:          uuid.NewString(),
			ComplaintID: locked.ID,
			FileName:    name,
			StoragePath: path,
			MimeType:    upload.MimeType,
			SizeBytes:   size,
			UploadedBy:  actor.ActorID(),
		}
		if err := s.attachments.Create(ctx, attachment); err != nil {
			return mapNotFound(err, "complaint", complaintID)
		}
		s.history.Record(ctx, locked, actor, domain.ActionAttachmentAdded, HistoryChange{
			NewValue: strPtr(name),
			Metadata: map[string]any{"attachment_id": attachment.ID, "size_bytes": size},
		})
		return nil
	})
	if err != nil {
		if storedPath != "" {
			s.releaseFile(ctx, complaintID, storedPath)
		}
		return nil, err
	}
	return attachment, nil
}

// RemoveAttachment deletes a file from a complaint owned by the calling citizen.
func (s *ComplaintService) RemoveAttachment(ctx context.Context, actor domain.Actor, complaintID, attachmentID string) (err error) {
	defer func() { s.recordOutcome("remove_attachment", err) }()

	var removed *domain.Attachment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.guard.Acquire(ctx, complaintID, actor, citizenOwnerEdit)
		if err != nil {
			return err
		}
		attachment, err := s.attachments.GetByID(ctx, attachmentID)
		if err != nil || attachment.ComplaintID != locked.ID {
			return errorutil.NewNotFound("attachment", map[string]any{"id": attachmentID})
		}
		if err := s.attachments.Delete(ctx, attachmentID); err != nil {
			return mapNotFound(err, "attachment", attachmentID)
		}
		s.history.Record(ctx, locked, actor, domain.ActionAttachmentRemoved, HistoryChange{
			OldValue: strPtr(attachment.FileName),
			Metadata: map[string]any{"attachment_id": attachment.ID},
		})
		removed = attachment
		return nil
	})
	if err != nil {
		return err
	}
	s.releaseFile(ctx, complaintID, removed.StoragePath)
	return nil
}

// Get returns a complaint visible to actor.
func (s *ComplaintService) Get(ctx context.Context, actor domain.Actor, complaintID string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, mapNotFound(err, "complaint", complaintID)
	}
	if err := authorizeRead(actor, complaint); err != nil {
		return nil, err
	}
	return complaint, nil
}

// GetByTrackingNumber looks a complaint up by its public code.
func (s *ComplaintService) GetByTrackingNumber(ctx context.Context, actor domain.Actor, code string) (*domain.Complaint, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errorutil.NewValidationError("tracking number is required", nil)
	}
	complaint, err := s.complaints.GetByTrackingNumber(ctx, code)
	if err != nil {
		return nil, mapNotFound(err, "complaint", code)
	}
	if err := authorizeRead(actor, complaint); err != nil {
		return nil, err
	}
	return complaint, nil
}

// History returns a page of the complaint's audit trail, newest first.
func (s *ComplaintService) History(ctx context.Context, actor domain.Actor, complaintID string, page, size int) (*HistoryPage, error) {
	if _, err := s.Get(ctx, actor, complaintID); err != nil {
		return nil, err
	}
	return s.history.Page(ctx, complaintID, page, size)
}

func (s *ComplaintService) assignResponder(c *domain.Complaint, actor domain.Actor) {
	now := s.now().UTC()
	id := actor.ActorID()
	c.RespondedAt = &now
	c.RespondedByID = &id
	c.RespondedByName = actor.DisplayName()
}

// recordStatusChange writes STATUS_CHANGED followed by the derived lock
// entry, in that order.
func (s *ComplaintService) recordStatusChange(ctx context.Context, c *domain.Complaint, actor domain.Actor, oldStatus domain.ComplaintStatus) {
	s.history.Record(ctx, c, actor, domain.ActionStatusChanged, HistoryChange{
		Field:    "status",
		OldValue: strPtr(string(oldStatus)),
		NewValue: strPtr(string(c.Status)),
	})
	switch {
	case c.Status == domain.ComplaintStatusInProgress:
		s.history.Record(ctx, c, actor, domain.ActionLocked, HistoryChange{
			Metadata: map[string]any{"locked_by": actor.ActorID()},
		})
	case c.Status.Terminal():
		s.history.Record(ctx, c, actor, domain.ActionUnlocked, HistoryChange{
			Metadata: map[string]any{"final_status": string(c.Status)},
		})
	}
}

func (s *ComplaintService) releaseFile(ctx context.Context, complaintID, path string) {
	if s.files == nil || path == "" {
		return
	}
	if err := s.files.Delete(ctx, path); err != nil {
		s.logger.Warn("failed to release attachment file",
			zap.String("complaint_id", complaintID),
			zap.String("path", path),
			zap.Error(err))
	}
}

func (s *ComplaintService) recordOutcome(operation string, err error) {
	s.metrics.RecordMutation(operation, outcome(err))
}

// diffFields applies the tracked text fields and returns one change per
// field that actually differs.
func diffFields(c *domain.Complaint, input UpdateComplaintInput) []HistoryChange {
	var changes []HistoryChange
	apply := func(field string, target *string, next *string) {
		if next == nil {
			return
		}
		value := strings.TrimSpace(*next)
		if value == *target {
			return
		}
		changes = append(changes, HistoryChange{
			Field:    field,
			OldValue: strPtr(*target),
			NewValue: strPtr(value),
		})
		*target = value
	}
	apply("description", &c.Description, input.Description)
	apply("location", &c.Location, input.Location)
	apply("solution_suggestion", &c.SolutionSuggestion, input.SolutionSuggestion)
	return changes
}

func validateCreate(input CreateComplaintInput) error {
	details := map[string]any{}
	if !input.ComplaintType.Valid() {
		details["complaint_type"] = "required"
	}
	if !input.Governorate.Valid() {
		details["governorate"] = "required"
	}
	if !input.GovernmentAgency.Valid() {
		details["government_agency"] = "required"
	}
	if strings.TrimSpace(input.Location) == "" {
		details["location"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		details["description"] = "required"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid complaint", details)
	}
	return nil
}

func validateUpdate(input UpdateComplaintInput) error {
	details := map[string]any{}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		details["description"] = "must not be empty"
	}
	if input.Location != nil && strings.TrimSpace(*input.Location) == "" {
		details["location"] = "must not be empty"
	}
	if input.Status != nil && !input.Status.Valid() {
		details["status"] = "invalid"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid update", details)
	}
	return nil
}

func invalidTransition(from, to domain.ComplaintStatus) error {
	return errorutil.NewValidationError(
		fmt.Sprintf("cannot move complaint from %s to %s", from, to),
		map[string]any{"current_status": from, "target_status": to},
	)
}

// authorizeRead lets citizens see their own complaints, employees their
// agency's, and admins everything.
func authorizeRead(actor domain.Actor, c *domain.Complaint) error {
	switch a := actor.(type) {
	case domain.Admin:
		return nil
	case domain.Employee:
		if a.Agency == c.GovernmentAgency {
			return nil
		}
		return errorutil.NewUnauthorized("complaint belongs to another agency")
	case domain.Citizen:
		if a.ID == c.CitizenID {
			return nil
		}
		return errorutil.NewUnauthorized("complaint belongs to another citizen")
	default:
		return errorutil.NewUnauthorized("unknown actor")
	}
}

func outcome(err error) string {
	if err == nil {
		return observability.ResultSuccess
	}
	domainErr := errorutil.ToDomainError(err)
	switch domainErr.Code {
	case errorutil.CodeLocked:
		return observability.ResultLocked
	case errorutil.CodeOptimisticConflict:
		return observability.ResultConflict
	case errorutil.CodeInternal:
		return observability.ResultError
	default:
		return observability.ResultRejected
	}
}
