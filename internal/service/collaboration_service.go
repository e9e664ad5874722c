package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// CollaborationService is the single entry point for ticket-scoped work.
// It resolves the caller's relationship to the ticket, checks the access
// policy and then delegates to the registry, thread and ledger, which
// never see roles themselves.
type CollaborationService struct {
	registry   *TicketRegistry
	thread     *MessageThread
	ledger     *AttachmentLedger
	policy     *AccessPolicy
	accounts   repository.AccountRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      clock.Clock
	logger     *zap.Logger
}

// CollaborationDependencies bundles the collaborators.
type CollaborationDependencies struct {
	Registry    *TicketRegistry
	Thread      *MessageThread
	Ledger      *AttachmentLedger
	Policy      *AccessPolicy
	AccountRepo repository.AccountRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Clock       clock.Clock
	Logger      *zap.Logger
}

// TicketView is a ticket with its thread and attachments, filtered for the viewer.
type TicketView struct {
	Ticket      domain.Ticket
	Messages    []domain.TicketMessage
	Attachments []domain.Attachment
}

// TicketListFilter narrows ListTickets. Page is 1-based.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	Page       int
	PageSize   int
}

// TicketPage is one page of ListTickets.
type TicketPage struct {
	Tickets  []domain.Ticket
	Total    int64
	Page     int
	PageSize int
}

// NewCollaborationService constructs the facade.
func NewCollaborationService(deps CollaborationDependencies) *CollaborationService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CollaborationService{
		registry:   deps.Registry,
		thread:     deps.Thread,
		ledger:     deps.Ledger,
		policy:     deps.Policy,
		accounts:   deps.AccountRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// CreateTicket opens a ticket owned by the caller.
func (s *CollaborationService) CreateTicket(ctx context.Context, identity domain.Identity, input CreateTicketInput) (ticket *domain.Ticket, err error) {
	defer s.observe("create_ticket", identity, 0, &err)

	if err = s.check(identity, nil, PermTicketCreate); err != nil {
		return nil, err
	}
	ticket, err = s.registry.Create(ctx, identity.AccountID, input)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketCreated, identity, ticket.ID, events.TicketCreatedPayload{
		Number:    ticket.Number,
		CreatorID: ticket.CreatorID,
		Category:  ticket.Category,
		Priority:  ticket.Priority,
		Title:     ticket.Title,
	})
	return ticket, nil
}

// ListTickets returns tickets the caller may see: their own for members,
// all for administrators.
func (s *CollaborationService) ListTickets(ctx context.Context, identity domain.Identity, filter TicketListFilter) (page *TicketPage, err error) {
	defer s.observe("list_tickets", identity, 0, &err)

	if err = s.check(identity, nil, PermTicketList); err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Categories: filter.Categories,
		Limit:      filter.PageSize,
	}.Normalize()
	repoFilter.Offset = (filter.Page - 1) * repoFilter.Limit
	if !identity.IsAdministrator() {
		owner := identity.AccountID
		repoFilter.CreatorID = &owner
	}

	tickets, total, err := s.registry.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	return &TicketPage{Tickets: tickets, Total: total, Page: filter.Page, PageSize: repoFilter.Limit}, nil
}

// GetTicket returns the ticket with its thread and attachments.
func (s *CollaborationService) GetTicket(ctx context.Context, identity domain.Identity, ticketID int64) (view *TicketView, err error) {
	defer s.observe("get_ticket", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermTicketView)
	if err != nil {
		return nil, err
	}
	msgs, err := s.thread.List(ctx, ticket.ID, identity.Role)
	if err != nil {
		return nil, err
	}
	attachments, err := s.ledger.List(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketView{Ticket: *ticket, Messages: msgs, Attachments: attachments}, nil
}

// ListMessages returns the thread as the caller may see it.
func (s *CollaborationService) ListMessages(ctx context.Context, identity domain.Identity, ticketID int64) (msgs []domain.TicketMessage, err error) {
	defer s.observe("list_messages", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermTicketView)
	if err != nil {
		return nil, err
	}
	return s.thread.List(ctx, ticket.ID, identity.Role)
}

// AddMessage appends to the thread. Members always post public messages.
func (s *CollaborationService) AddMessage(ctx context.Context, identity domain.Identity, ticketID int64, body string, visibility domain.Visibility) (msg *domain.TicketMessage, err error) {
	defer s.observe("add_message", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermMessageCreate)
	if err != nil {
		return nil, err
	}
	msg, err = s.thread.Append(ctx, ticket.ID, identity.AccountID, identity.Role, body, visibility)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketMessageAdded, identity, ticket.ID, events.TicketMessageAddedPayload{
		MessageID:   msg.ID,
		Visibility:  msg.Visibility(),
		AuthorID:    msg.AuthorID,
		RequesterID: ticket.CreatorID,
		BodyPreview: stringPreview(msg.Body, 120),
	})
	return msg, nil
}

// UpdateStatus sets the ticket status. Administrators only.
func (s *CollaborationService) UpdateStatus(ctx context.Context, identity domain.Identity, ticketID int64, status domain.TicketStatus) (ticket *domain.Ticket, err error) {
	defer s.observe("update_status", identity, ticketID, &err)

	before, err := s.authorize(ctx, identity, ticketID, PermTicketUpdate)
	if err != nil {
		return nil, err
	}
	oldStatus := before.Status
	ticket, err = s.registry.UpdateStatus(ctx, ticketID, status)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketStatusChanged, identity, ticket.ID, events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
		CreatorID: ticket.CreatorID,
	})
	return ticket, nil
}

// UpdatePriority sets the ticket priority. Administrators only.
func (s *CollaborationService) UpdatePriority(ctx context.Context, identity domain.Identity, ticketID int64, priority domain.TicketPriority) (ticket *domain.Ticket, err error) {
	defer s.observe("update_priority", identity, ticketID, &err)

	before, err := s.authorize(ctx, identity, ticketID, PermTicketUpdate)
	if err != nil {
		return nil, err
	}
	oldPriority := before.Priority
	ticket, err = s.registry.UpdatePriority(ctx, ticketID, priority)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketPriorityChanged, identity, ticket.ID, events.TicketPriorityChangedPayload{
		OldPriority: oldPriority,
		NewPriority: ticket.Priority,
	})
	return ticket, nil
}

// UpdateAssignee assigns the ticket to an active administrator, or
// unassigns it when assigneeID is nil. Administrators only.
func (s *CollaborationService) UpdateAssignee(ctx context.Context, identity domain.Identity, ticketID int64, assigneeID *int64) (ticket *domain.Ticket, err error) {
	defer s.observe("update_assignee", identity, ticketID, &err)

	before, err := s.authorize(ctx, identity, ticketID, PermTicketUpdate)
	if err != nil {
		return nil, err
	}
	if assigneeID != nil {
		if err = s.checkAssignee(ctx, *assigneeID); err != nil {
			return nil, err
		}
	}
	oldAssignee := before.AssigneeID
	ticket, err = s.registry.UpdateAssignee(ctx, ticketID, assigneeID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketAssigned, identity, ticket.ID, events.TicketAssignedPayload{
		OldAssigneeID: oldAssignee,
		NewAssigneeID: ticket.AssigneeID,
	})
	return ticket, nil
}

// DeleteTicket removes the ticket, its thread and its attachments.
// Attachments go first, each blob before its record; if any of them
// fails the ticket is left in place. Attachments removed before the
// failure stay removed, so calling DeleteTicket again finishes the job.
func (s *CollaborationService) DeleteTicket(ctx context.Context, identity domain.Identity, ticketID int64) (err error) {
	defer s.observe("delete_ticket", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermTicketDelete)
	if err != nil {
		return err
	}
	attachments, err := s.ledger.List(ctx, ticket.ID)
	if err != nil {
		return err
	}
	for i, a := range attachments {
		if _, err = s.ledger.Delete(ctx, a.ID); err != nil {
			s.logger.Warn("ticket delete incomplete",
				zap.Int64("ticket_id", ticket.ID),
				zap.Int64("attachment_id", a.ID),
				zap.Int("attachments_removed", i),
				zap.Int("attachments_left", len(attachments)-i))
			return fmt.Errorf("delete attachment %d (%d of %d removed): %w", a.ID, i, len(attachments), err)
		}
	}
	deleted, err := s.registry.Delete(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return errorutil.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	s.publish(ctx, events.EventTicketDeleted, identity, ticket.ID, events.TicketDeletedPayload{
		Number:      ticket.Number,
		Attachments: len(attachments),
	})
	return nil
}

// ListAttachments returns all attachments on the ticket.
func (s *CollaborationService) ListAttachments(ctx context.Context, identity domain.Identity, ticketID int64) (list []domain.Attachment, err error) {
	defer s.observe("list_attachments", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermTicketView)
	if err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, ticket.ID)
}

// UploadAttachment attaches a file to the ticket.
func (s *CollaborationService) UploadAttachment(ctx context.Context, identity domain.Identity, ticketID int64, input UploadInput) (attachment *domain.Attachment, err error) {
	defer s.observe("upload_attachment", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermAttachmentCreate)
	if err != nil {
		return nil, err
	}
	attachment, err = s.ledger.Upload(ctx, ticket.ID, identity.AccountID, input)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventAttachmentUploaded, identity, ticket.ID, events.AttachmentUploadedPayload{
		AttachmentID: attachment.ID,
		FileName:     attachment.FileName,
		MimeType:     attachment.MimeType,
		SizeBytes:    attachment.SizeBytes,
	})
	return attachment, nil
}

// DownloadAttachment returns an attachment's metadata and bytes.
func (s *CollaborationService) DownloadAttachment(ctx context.Context, identity domain.Identity, ticketID, attachmentID int64) (attachment *domain.Attachment, data []byte, err error) {
	defer s.observe("download_attachment", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermTicketView)
	if err != nil {
		return nil, nil, err
	}
	if _, err = s.attachmentOf(ctx, ticket, attachmentID); err != nil {
		return nil, nil, err
	}
	return s.ledger.Download(ctx, attachmentID)
}

// DeleteAttachment removes one attachment. Administrators only.
func (s *CollaborationService) DeleteAttachment(ctx context.Context, identity domain.Identity, ticketID, attachmentID int64) (err error) {
	defer s.observe("delete_attachment", identity, ticketID, &err)

	ticket, err := s.authorize(ctx, identity, ticketID, PermAttachmentDelete)
	if err != nil {
		return err
	}
	attachment, err := s.attachmentOf(ctx, ticket, attachmentID)
	if err != nil {
		return err
	}
	deleted, err := s.ledger.Delete(ctx, attachmentID)
	if err != nil {
		return err
	}
	if !deleted {
		return errorutil.NewNotFound("attachment", map[string]any{"id": attachmentID})
	}
	s.publish(ctx, events.EventAttachmentDeleted, identity, ticket.ID, events.AttachmentDeletedPayload{
		AttachmentID: attachment.ID,
		FileName:     attachment.FileName,
	})
	return nil
}

// authorize loads the ticket and checks perm against it. A missing ticket
// is NOT_FOUND for every caller.
func (s *CollaborationService) authorize(ctx context.Context, identity domain.Identity, ticketID int64, perm Permission) (*domain.Ticket, error) {
	ticket, err := s.registry.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.check(identity, ticket, perm); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *CollaborationService) check(identity domain.Identity, ticket *domain.Ticket, perm Permission) error {
	allowed, err := s.policy.Allowed(identity, ticket, perm)
	if err != nil {
		return fmt.Errorf("evaluate access policy: %w", err)
	}
	if !allowed {
		return errorutil.NewForbidden(fmt.Sprintf("not allowed to %s %s", perm.Action, perm.Resource))
	}
	return nil
}

// attachmentOf loads an attachment and makes sure it belongs to ticket.
func (s *CollaborationService) attachmentOf(ctx context.Context, ticket *domain.Ticket, attachmentID int64) (*domain.Attachment, error) {
	attachment, err := s.ledger.Get(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment.TicketID != ticket.ID {
		return nil, errorutil.NewNotFound("attachment", map[string]any{"id": attachmentID})
	}
	return attachment, nil
}

func (s *CollaborationService) checkAssignee(ctx context.Context, accountID int64) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return validationField("assignee_id", "assignee does not exist")
	}
	if err != nil {
		return err
	}
	if account.Role != domain.RoleAdministrator || !account.Active {
		return validationField("assignee_id", "assignee must be an active administrator")
	}
	return nil
}

func (s *CollaborationService) publish(ctx context.Context, eventType events.EventType, identity domain.Identity, ticketID int64, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{AccountID: identity.AccountID, Role: identity.Role},
		Timestamp: s.clock.Now(),
		Payload:   payload,
	})
}

func (s *CollaborationService) observe(operation string, identity domain.Identity, ticketID int64, errp *error) {
	err := *errp
	s.metrics.RecordOperation(operation, err)
	if err == nil {
		return
	}

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Int64("account_id", identity.AccountID),
		zap.String("role", string(identity.Role)),
		zap.Int64("ticket_id", ticketID),
	}
	if errorutil.IsInternal(err) {
		s.logger.Error("collaboration operation failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("collaboration operation rejected",
		append(fields, zap.String("code", errorutil.ToDomainError(err).Code))...)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
