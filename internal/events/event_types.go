package events

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint_created"
	EventComplaintStatusChanged EventType = "complaint_status_changed"
	EventInfoRequested          EventType = "complaint_info_requested"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind domain.ActorKind `json:"kind"`
	ID   string           `json:"id"`
	Name string           `json:"name,omitempty"`
}

// ActorOf converts a domain actor for publication.
func ActorOf(actor domain.Actor) Actor {
	if actor == nil {
		return Actor{}
	}
	return Actor{Kind: actor.Kind(), ID: actor.ActorID(), Name: actor.DisplayName()}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	ComplaintID    string    `json:"complaint_id"`
	TrackingNumber string    `json:"tracking_number"`
	CitizenID      string    `json:"citizen_id"`
	Actor          Actor     `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	Agency        domain.GovernmentAgency `json:"agency"`
	Governorate   domain.Governorate      `json:"governorate"`
	ComplaintType domain.ComplaintType    `json:"complaint_type"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus domain.ComplaintStatus `json:"old_status"`
	NewStatus domain.ComplaintStatus `json:"new_status"`
	Response  string                 `json:"response,omitempty"`
}

// InfoRequestedPayload payload.
type InfoRequestedPayload struct {
	RequestID      string `json:"request_id"`
	MessagePreview string `json:"message_preview"`
}
