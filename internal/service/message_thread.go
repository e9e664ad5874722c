package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// MessageThread owns the append-only conversation on a ticket.
type MessageThread struct {
	messages repository.TicketMessageRepository
	clock    clock.Clock
	logger   *zap.Logger
}

// ThreadDependencies bundles what the thread needs. Clock is wrapped in
// clock.Monotonic so no two messages share a timestamp.
type ThreadDependencies struct {
	MessageRepo repository.TicketMessageRepository
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewMessageThread constructs the thread component.
func NewMessageThread(deps ThreadDependencies) *MessageThread {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mono, ok := deps.Clock.(*clock.Monotonic)
	if !ok {
		mono = clock.NewMonotonic(deps.Clock)
	}
	return &MessageThread{messages: deps.MessageRepo, clock: mono, logger: deps.Logger}
}

// Append stores a message. The stored visibility is internal only when an
// administrator asked for internal; the requested value is never trusted
// on its own.
func (t *MessageThread) Append(ctx context.Context, ticketID, authorID int64, authorRole domain.Role, body string, requested domain.Visibility) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationField("body", "message body is required")
	}

	visibility := domain.ResolveVisibility(authorRole, requested)
	if requested == domain.VisibilityInternal && visibility != domain.VisibilityInternal {
		t.logger.Debug("internal visibility downgraded to public",
			zap.Int64("ticket_id", ticketID),
			zap.Int64("author_id", authorID))
	}

	msg := &domain.TicketMessage{
		TicketID:   ticketID,
		AuthorID:   authorID,
		AuthorRole: authorRole,
		Body:       body,
		IsInternal: visibility == domain.VisibilityInternal,
		CreatedAt:  t.clock.Now(),
	}
	if err := t.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// List returns the thread oldest first. Administrators see every message;
// everyone else gets the same order with internal messages removed.
func (t *MessageThread) List(ctx context.Context, ticketID int64, viewerRole domain.Role) ([]domain.TicketMessage, error) {
	includeInternal := viewerRole == domain.RoleAdministrator
	msgs, err := t.messages.ListByTicket(ctx, ticketID, includeInternal)
	if err != nil {
		return nil, err
	}
	if includeInternal {
		return msgs, nil
	}
	visible := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.IsInternal {
			visible = append(visible, msg)
		}
	}
	return visible, nil
}
