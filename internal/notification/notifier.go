package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/pkg/util/textutil"
)

// EventNotifier turns lifecycle notifications into dispatcher events.
// Delivery is fire-and-forget: failures are logged and never returned.
type EventNotifier struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEventNotifier builds a notifier publishing on dispatcher.
func NewEventNotifier(dispatcher events.Dispatcher, logger *zap.Logger) *EventNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventNotifier{dispatcher: dispatcher, logger: logger}
}

func (n *EventNotifier) NotifyCreated(ctx context.Context, complaint *domain.Complaint, actor domain.Actor) {
	n.publish(ctx, complaint, actor, events.EventComplaintCreated, events.ComplaintCreatedPayload{
		Agency:        complaint.GovernmentAgency,
		Governorate:   complaint.Governorate,
		ComplaintType: complaint.ComplaintType,
	})
}

func (n *EventNotifier) NotifyStatusChanged(ctx context.Context, complaint *domain.Complaint, actor domain.Actor, oldStatus, newStatus domain.ComplaintStatus) {
	n.publish(ctx, complaint, actor, events.EventComplaintStatusChanged, events.ComplaintStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Response:  complaint.Response,
	})
}

func (n *EventNotifier) NotifyInfoRequested(ctx context.Context, complaint *domain.Complaint, actor domain.Actor, req *domain.InformationRequest) {
	n.publish(ctx, complaint, actor, events.EventInfoRequested, events.InfoRequestedPayload{
		RequestID:      req.ID,
		MessagePreview: textutil.Preview(req.RequestMessage, 120),
	})
}

func (n *EventNotifier) publish(ctx context.Context, complaint *domain.Complaint, actor domain.Actor, eventType events.EventType, payload any) {
	if n.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ComplaintID:    complaint.ID,
		TrackingNumber: complaint.TrackingNumber,
		CitizenID:      complaint.CitizenID,
		Actor:          events.ActorOf(actor),
		Timestamp:      time.Now().UTC(),
		Payload:        payload,
	}
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		n.logger.Warn("notification dispatch failed",
			zap.String("complaint_id", complaint.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

