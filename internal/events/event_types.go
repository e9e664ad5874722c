package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketDeleted         EventType = "ticket_deleted"
	EventTicketMessageAdded    EventType = "ticket_message_added"
	EventAttachmentUploaded    EventType = "attachment_uploaded"
	EventAttachmentDeleted     EventType = "attachment_deleted"
)

// Actor is the account that caused the event.
type Actor struct {
	AccountID int64       `json:"account_id"`
	Role      domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type TicketCreatedPayload struct {
	Number    string                `json:"number"`
	CreatorID int64                 `json:"creator_id"`
	Category  domain.TicketCategory `json:"category"`
	Priority  domain.TicketPriority `json:"priority"`
	Title     string                `json:"title"`
}

type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	CreatorID int64               `json:"creator_id"`
}

type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

type TicketAssignedPayload struct {
	OldAssigneeID *int64 `json:"old_assignee_id,omitempty"`
	NewAssigneeID *int64 `json:"new_assignee_id,omitempty"`
}

type TicketDeletedPayload struct {
	Number      string `json:"number"`
	Attachments int    `json:"attachments"`
}

// TicketMessageAddedPayload carries the requester so notifications can
// reach them. Internal messages must never be routed to the requester.
type TicketMessageAddedPayload struct {
	MessageID   int64             `json:"message_id"`
	Visibility  domain.Visibility `json:"visibility"`
	AuthorID    int64             `json:"author_id"`
	RequesterID int64             `json:"requester_id"`
	BodyPreview string            `json:"body_preview"`
}

type AttachmentUploadedPayload struct {
	AttachmentID int64  `json:"attachment_id"`
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
}

type AttachmentDeletedPayload struct {
	AttachmentID int64  `json:"attachment_id"`
	FileName     string `json:"file_name"`
}
