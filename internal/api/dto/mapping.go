package dto

import (
	"github.com/spec-kit/complaint-service/internal/domain"
)

// FromComplaint maps the aggregate to its response.
func FromComplaint(c *domain.Complaint) ComplaintResponse {
	attachments := make([]AttachmentResponse, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		attachments = append(attachments, FromAttachment(&a))
	}
	return ComplaintResponse{
		ID:                 c.ID,
		TrackingNumber:     c.TrackingNumber,
		CitizenID:          c.CitizenID,
		ComplaintType:      c.ComplaintType,
		Governorate:        c.Governorate,
		GovernmentAgency:   c.GovernmentAgency,
		Location:           c.Location,
		Description:        c.Description,
		SolutionSuggestion: c.SolutionSuggestion,
		Status:             c.Status,
		Response:           c.Response,
		RespondedAt:        c.RespondedAt,
		RespondedByID:      c.RespondedByID,
		RespondedByName:    c.RespondedByName,
		Locked:             c.IsLocked(),
		Version:            c.Version,
		Attachments:        attachments,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func FromAttachment(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:        a.ID,
		FileName:  a.FileName,
		MimeType:  a.MimeType,
		SizeBytes: a.SizeBytes,
		CreatedAt: a.CreatedAt,
	}
}

func FromHistory(entries []domain.ComplaintHistory) []HistoryEntryResponse {
	items := make([]HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		items = append(items, HistoryEntryResponse{
			ID:                h.ID,
			ActionType:        h.ActionType,
			ActorID:           h.ActorID,
			ActorKind:         h.ActorKind,
			ActorName:         h.ActorName,
			FieldChanged:      h.FieldChanged,
			OldValue:          h.OldValue,
			NewValue:          h.NewValue,
			Metadata:          h.Metadata,
			ActionDescription: h.ActionDescription,
			CreatedAt:         h.CreatedAt,
		})
	}
	return items
}

func FromInfoRequest(r *domain.InformationRequest) InfoRequestResponse {
	ids := r.AttachmentIDs
	if ids == nil {
		ids = []string{}
	}
	return InfoRequestResponse{
		ID:              r.ID,
		ComplaintID:     r.ComplaintID,
		RequestedByID:   r.RequestedByID,
		RequestedByName: r.RequestedByName,
		RequestMessage:  r.RequestMessage,
		Status:          r.Status,
		RequestedAt:     r.RequestedAt,
		ResponseMessage: r.ResponseMessage,
		RespondedAt:     r.RespondedAt,
		AttachmentIDs:   ids,
		Version:         r.Version,
	}
}
