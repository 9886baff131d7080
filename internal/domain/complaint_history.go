package domain

import "time"

// HistoryActionType captures what a history entry documents.
type HistoryActionType string

const (
	ActionCreated              HistoryActionType = "CREATED"
	ActionStatusChanged        HistoryActionType = "STATUS_CHANGED"
	ActionUpdatedFields        HistoryActionType = "UPDATED_FIELDS"
	ActionAttachmentAdded      HistoryActionType = "ATTACHMENT_ADDED"
	ActionAttachmentRemoved    HistoryActionType = "ATTACHMENT_REMOVED"
	ActionLocked               HistoryActionType = "LOCKED"
	ActionUnlocked             HistoryActionType = "UNLOCKED"
	ActionInfoRequested        HistoryActionType = "INFO_REQUESTED"
	ActionInfoProvided         HistoryActionType = "INFO_PROVIDED"
	ActionInfoRequestCancelled HistoryActionType = "INFO_REQUEST_CANCELLED"
)

// ComplaintHistory is an immutable audit trail entry.
type ComplaintHistory struct {
	ID                string
	ComplaintID       string
	ActorID           string
	ActorKind         ActorKind
	ActorName         string
	ActionType        HistoryActionType
	FieldChanged      *string
	OldValue          *string
	NewValue          *string
	Metadata          map[string]any
	ActionDescription string
	CreatedAt         time.Time
}
