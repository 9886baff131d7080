package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/pkg/util/textutil"
)

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// HistoryChange carries the optional detail of a history entry.
type HistoryChange struct {
	Field    string
	OldValue *string
	NewValue *string
	Metadata map[string]any
}

// HistoryPage is one page of a complaint's audit trail, newest first.
type HistoryPage struct {
	Entries []domain.ComplaintHistory
	Total   int64
	Page    int
	Size    int
}

// HistoryRecorder appends audit entries inside the caller's transaction.
// A failed append is logged and counted but never fails the mutation.
type HistoryRecorder struct {
	repo    repository.ComplaintHistoryRepository
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHistoryRecorder builds the recorder.
func NewHistoryRecorder(repo repository.ComplaintHistoryRepository, logger *zap.Logger, metrics *observability.Metrics) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{repo: repo, logger: logger, metrics: metrics}
}

// Record appends one entry for complaint.
func (r *HistoryRecorder) Record(ctx context.Context, complaint *domain.Complaint, actor domain.Actor, action domain.HistoryActionType, change HistoryChange) {
	entry := &domain.ComplaintHistory{
		ID:                uuid.NewString(),
		ComplaintID:       complaint.ID,
		ActionType:        action,
		OldValue:          change.OldValue,
		NewValue:          change.NewValue,
		Metadata:          change.Metadata,
		ActionDescription: describe(action, actorName(actor), change),
	}
	if actor != nil {
		entry.ActorID = actor.ActorID()
		entry.ActorKind = actor.Kind()
		entry.ActorName = actor.DisplayName()
	}
	if change.Field != "" {
		field := change.Field
		entry.FieldChanged = &field
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		r.metrics.RecordHistoryFailure()
		r.logger.Error("failed to record complaint history",
			zap.String("complaint_id", complaint.ID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// Page returns entries newest first. page is zero based; size is clamped to
// [1, 100] and defaults to 20.
func (r *HistoryRecorder) Page(ctx context.Context, complaintID string, page, size int) (*HistoryPage, error) {
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = defaultHistoryPageSize
	case size > maxHistoryPageSize:
		size = maxHistoryPageSize
	}
	entries, err := r.repo.ListByComplaint(ctx, complaintID, size, page*size)
	if err != nil {
		return nil, err
	}
	total, err := r.repo.CountByComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Entries: entries, Total: total, Page: page, Size: size}, nil
}

func describe(action domain.HistoryActionType, actor string, change HistoryChange) string {
	switch action {
	case domain.ActionCreated:
		return fmt.Sprintf("Complaint submitted by %s", actor)
	case domain.ActionStatusChanged:
		return fmt.Sprintf("%s changed status from %s to %s", actor, deref(change.OldValue), deref(change.NewValue))
	case domain.ActionUpdatedFields:
		return fmt.Sprintf("%s changed %s from %q to %q", actor, change.Field,
			textutil.Preview(deref(change.OldValue), 60), textutil.Preview(deref(change.NewValue), 60))
	case domain.ActionAttachmentAdded:
		return fmt.Sprintf("%s attached %s", actor, deref(change.NewValue))
	case domain.ActionAttachmentRemoved:
		return fmt.Sprintf("%s removed attachment %s", actor, deref(change.OldValue))
	case domain.ActionLocked:
		return fmt.Sprintf("Complaint locked for processing by %s", actor)
	case domain.ActionUnlocked:
		return fmt.Sprintf("Complaint released by %s", actor)
	case domain.ActionInfoRequested:
		return fmt.Sprintf("%s requested additional information", actor)
	case domain.ActionInfoProvided:
		return fmt.Sprintf("%s provided the requested information", actor)
	case domain.ActionInfoRequestCancelled:
		return fmt.Sprintf("%s cancelled an information request", actor)
	default:
		return fmt.Sprintf("action %s performed by %s", action, actor)
	}
}

func actorName(actor domain.Actor) string {
	if actor == nil {
		return "system"
	}
	if name := strings.TrimSpace(actor.DisplayName()); name != "" {
		return name
	}
	return actor.ActorID()
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func strPtr(v string) *string {
	return &v
}

