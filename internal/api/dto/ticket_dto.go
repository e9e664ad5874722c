package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"required"`
	Category    domain.TicketCategory `json:"category" validate:"required,oneof=hardware software network access other"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority" validate:"required,oneof=low medium high critical"`
}

// UpdateAssigneeRequest payload. A null assignee_id unassigns the ticket.
type UpdateAssigneeRequest struct {
	AssigneeID *int64 `json:"assignee_id" validate:"omitempty,gt=0"`
}

// CreateMessageRequest payload. Visibility defaults to public.
type CreateMessageRequest struct {
	Body       string            `json:"body" validate:"required"`
	Visibility domain.Visibility `json:"visibility" validate:"omitempty,oneof=public internal"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         int64                 `json:"id"`
	Number     string                `json:"number"`
	Title      string                `json:"title"`
	Category   domain.TicketCategory `json:"category"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatorID  int64                 `json:"creator_id"`
	AssigneeID *int64                `json:"assignee_id"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	ClosedAt   *time.Time            `json:"closed_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string                  `json:"description"`
	Messages    []TicketMessageResponse `json:"messages"`
	Attachments []AttachmentResponse    `json:"attachments"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Items    []TicketSummary `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID         int64             `json:"id"`
	AuthorID   int64             `json:"author_id"`
	AuthorRole domain.Role       `json:"author_role"`
	Body       string            `json:"body"`
	Visibility domain.Visibility `json:"visibility"`
	IsInternal bool              `json:"is_internal"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AttachmentResponse metadata. The storage locator is never exposed.
type AttachmentResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	UploaderID int64     `json:"uploader_id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:         t.ID,
		Number:     t.Number,
		Title:      t.Title,
		Category:   t.Category,
		Status:     t.Status,
		Priority:   t.Priority,
		CreatorID:  t.CreatorID,
		AssigneeID: t.AssigneeID,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		ClosedAt:   t.ClosedAt,
	}
}

// NewTicketDetail maps a ticket with its thread and attachments.
func NewTicketDetail(t *domain.Ticket, msgs []domain.TicketMessage, attachments []domain.Attachment) TicketDetailResponse {
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		Description:   t.Description,
		Messages:      NewMessageList(msgs),
		Attachments:   NewAttachmentList(attachments),
	}
}

// NewMessageResponse maps a message.
func NewMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:         m.ID,
		AuthorID:   m.AuthorID,
		AuthorRole: m.AuthorRole,
		Body:       m.Body,
		Visibility: m.Visibility(),
		IsInternal: m.IsInternal,
		CreatedAt:  m.CreatedAt,
	}
}

// NewMessageList maps a thread, keeping its order.
func NewMessageList(msgs []domain.TicketMessage) []TicketMessageResponse {
	out := make([]TicketMessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

// NewAttachmentResponse maps attachment metadata.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		TicketID:   a.TicketID,
		UploaderID: a.UploaderID,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		Checksum:   a.Checksum,
		CreatedAt:  a.CreatedAt,
	}
}

// NewAttachmentList maps attachment metadata in upload order.
func NewAttachmentList(list []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(list))
	for i := range list {
		out = append(out, NewAttachmentResponse(&list[i]))
	}
	return out
}
