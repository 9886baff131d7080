package domain

import "time"

// InfoRequestStatus enumerates information request states.
type InfoRequestStatus string

const (
	InfoRequestPending   InfoRequestStatus = "PENDING"
	InfoRequestResponded InfoRequestStatus = "RESPONDED"
	InfoRequestCancelled InfoRequestStatus = "CANCELLED"
)

// InformationRequest is an employee's request for more detail from the
// complaint owner. It references attachments by id without owning them.
type InformationRequest struct {
	ID              string
	ComplaintID     string
	RequestedByID   string
	RequestedByName string
	RequestMessage  string
	Status          InfoRequestStatus
	RequestedAt     time.Time
	ResponseMessage *string
	RespondedAt     *time.Time
	AttachmentIDs   []string
	Version         int64
}
