package service

import (
	"context"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Notifier is told about lifecycle events after the mutation commits.
// Implementations must not block on delivery failures.
type Notifier interface {
	NotifyCreated(ctx context.Context, complaint *domain.Complaint, actor domain.Actor)
	NotifyStatusChanged(ctx context.Context, complaint *domain.Complaint, actor domain.Actor, oldStatus, newStatus domain.ComplaintStatus)
	NotifyInfoRequested(ctx context.Context, complaint *domain.Complaint, actor domain.Actor, req *domain.InformationRequest)
}

type noopNotifier struct{}

func (noopNotifier) NotifyCreated(context.Context, *domain.Complaint, domain.Actor) {}

func (noopNotifier) NotifyStatusChanged(context.Context, *domain.Complaint, domain.Actor, domain.ComplaintStatus, domain.ComplaintStatus) {
}

func (noopNotifier) NotifyInfoRequested(context.Context, *domain.Complaint, domain.Actor, *domain.InformationRequest) {
}
