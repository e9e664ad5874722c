package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const maxNumberAttempts = 5

// TicketRegistry owns ticket records and their status. It does not know
// about roles; callers authorize first.
type TicketRegistry struct {
	tickets repository.TicketRepository
	numbers *NumberGenerator
	clock   clock.Clock
	logger  *zap.Logger
}

// RegistryDependencies bundles what the registry needs.
type RegistryDependencies struct {
	TicketRepo repository.TicketRepository
	Clock      clock.Clock
	Logger     *zap.Logger
}

// CreateTicketInput describes a new ticket.
type CreateTicketInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
}

// NewTicketRegistry constructs the registry.
func NewTicketRegistry(deps RegistryDependencies) *TicketRegistry {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketRegistry{
		tickets: deps.TicketRepo,
		numbers: NewNumberGenerator(deps.TicketRepo),
		clock:   deps.Clock,
		logger:  deps.Logger,
	}
}

// Create validates input and stores a new open, unassigned ticket.
func (r *TicketRegistry) Create(ctx context.Context, creatorID int64, input CreateTicketInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	switch {
	case title == "":
		return nil, validationField("title", "title is required")
	case utf8.RuneCountInString(title) > domain.MaxTitleLength:
		return nil, validationField("title", fmt.Sprintf("title must be at most %d characters", domain.MaxTitleLength))
	case description == "":
		return nil, validationField("description", "description is required")
	case input.Category == "":
		return nil, validationField("category", "category is required")
	case !input.Category.IsValid():
		return nil, validationField("category", fmt.Sprintf("unknown category %q", input.Category))
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.IsValid() {
		return nil, validationField("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	now := r.clock.Now()
	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := r.numbers.Next(ctx, now)
		if err != nil {
			return nil, err
		}
		ticket := &domain.Ticket{
			Number:      number,
			CreatorID:   creatorID,
			Title:       title,
			Description: description,
			Category:    input.Category,
			Priority:    priority,
			Status:      domain.TicketStatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = r.tickets.Create(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}

		lastErr = errorutil.NewConflict("duplicate ticket number", map[string]any{"number": number})
		r.numbers.Forget(now.UTC().Year())
		r.logger.Warn("ticket number collision, regenerating",
			zap.String("number", number),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("could not allocate a ticket number after %d attempts: %v", maxNumberAttempts, lastErr)
}

// Get loads a ticket.
func (r *TicketRegistry) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := r.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket", id)
	}
	return ticket, nil
}

// List returns a page of tickets and the total match count.
func (r *TicketRegistry) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int64, error) {
	return r.tickets.List(ctx, filter)
}

// UpdateStatus moves a ticket to any status. Closing stamps ClosedAt;
// leaving closed clears it. Only the status columns are written.
func (r *TicketRegistry) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.IsValid() {
		return nil, validationField("status", fmt.Sprintf("unknown status %q", status))
	}
	ticket, err := r.tickets.UpdateStatus(ctx, id, status, r.clock.Now())
	if err != nil {
		return nil, notFoundOr(err, "ticket", id)
	}
	return ticket, nil
}

// UpdatePriority sets the ticket priority.
func (r *TicketRegistry) UpdatePriority(ctx context.Context, id int64, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !priority.IsValid() {
		return nil, validationField("priority", fmt.Sprintf("unknown priority %q", priority))
	}
	ticket, err := r.tickets.UpdatePriority(ctx, id, priority, r.clock.Now())
	if err != nil {
		return nil, notFoundOr(err, "ticket", id)
	}
	return ticket, nil
}

// UpdateAssignee sets or clears (nil) the assignee.
func (r *TicketRegistry) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64) (*domain.Ticket, error) {
	ticket, err := r.tickets.UpdateAssignee(ctx, id, assigneeID, r.clock.Now())
	if err != nil {
		return nil, notFoundOr(err, "ticket", id)
	}
	return ticket, nil
}

// Delete removes the ticket and its messages. It reports false if the
// ticket did not exist.
func (r *TicketRegistry) Delete(ctx context.Context, id int64) (bool, error) {
	return r.tickets.Delete(ctx, id)
}
