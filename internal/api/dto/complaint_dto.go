package dto

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	ComplaintType      domain.ComplaintType    `json:"complaint_type"`
	Governorate        domain.Governorate      `json:"governorate"`
	GovernmentAgency   domain.GovernmentAgency `json:"government_agency"`
	Location           string                  `json:"location"`
	Description        string                  `json:"description"`
	SolutionSuggestion string                  `json:"solution_suggestion"`
}

// UpdateComplaintRequest is a partial update; omitted fields stay unchanged.
type UpdateComplaintRequest struct {
	Location           *string                 `json:"location"`
	Description        *string                 `json:"description"`
	SolutionSuggestion *string                 `json:"solution_suggestion"`
	Status             *domain.ComplaintStatus `json:"status"`
}

// RespondRequest payload.
type RespondRequest struct {
	Response string                 `json:"response"`
	Status   domain.ComplaintStatus `json:"status"`
}

// ComplaintResponse is the public view of a complaint.
type ComplaintResponse struct {
	ID                 string                  `json:"id"`
	TrackingNumber     string                  `json:"tracking_number"`
	CitizenID          string                  `json:"citizen_id"`
	ComplaintType      domain.ComplaintType    `json:"complaint_type"`
	Governorate        domain.Governorate      `json:"governorate"`
	GovernmentAgency   domain.GovernmentAgency `json:"government_agency"`
	Location           string                  `json:"location"`
	Description        string                  `json:"description"`
	SolutionSuggestion string                  `json:"solution_suggestion,omitempty"`
	Status             domain.ComplaintStatus  `json:"status"`
	Response           string                  `json:"response,omitempty"`
	RespondedAt        *time.Time              `json:"responded_at,omitempty"`
	RespondedByID      *string                 `json:"responded_by_id,omitempty"`
	RespondedByName    string                  `json:"responded_by_name,omitempty"`
	Locked             bool                    `json:"locked"`
	Version            int64                   `json:"version"`
	Attachments        []AttachmentResponse    `json:"attachments"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntryResponse is one audit trail entry.
type HistoryEntryResponse struct {
	ID                string                   `json:"id"`
	ActionType        domain.HistoryActionType `json:"action_type"`
	ActorID           string                   `json:"actor_id"`
	ActorKind         domain.ActorKind         `json:"actor_kind"`
	ActorName         string                   `json:"actor_name,omitempty"`
	FieldChanged      *string                  `json:"field_changed,omitempty"`
	OldValue          *string                  `json:"old_value,omitempty"`
	NewValue          *string                  `json:"new_value,omitempty"`
	Metadata          map[string]any           `json:"metadata,omitempty"`
	ActionDescription string                   `json:"action_description"`
	CreatedAt         time.Time                `json:"created_at"`
}

// HistoryPageResponse wraps a history page.
type HistoryPageResponse struct {
	Items []HistoryEntryResponse `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
}

// CreateInfoRequestRequest payload.
type CreateInfoRequestRequest struct {
	Message string `json:"message"`
}

// InfoRespondRequest is the JSON form of a citizen answer; files require
// multipart.
type InfoRespondRequest struct {
	Message string `json:"message"`
}

// InfoRequestResponse is the public view of an information request.
type InfoRequestResponse struct {
	ID              string                   `json:"id"`
	ComplaintID     string                   `json:"complaint_id"`
	RequestedByID   string                   `json:"requested_by_id"`
	RequestedByName string                   `json:"requested_by_name,omitempty"`
	RequestMessage  string                   `json:"request_message"`
	Status          domain.InfoRequestStatus `json:"status"`
	RequestedAt     time.Time                `json:"requested_at"`
	ResponseMessage *string                  `json:"response_message,omitempty"`
	RespondedAt     *time.Time               `json:"responded_at,omitempty"`
	AttachmentIDs   []string                 `json:"attachment_ids"`
	Version         int64                    `json:"version"`
}
