package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler exposes ticket and thread operations.
type TicketsHandler struct {
	service *service.CollaborationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(svc *service.CollaborationService) *TicketsHandler {
	return &TicketsHandler{service: svc}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), identity, service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// ListTickets GET /tickets?status=&priority=&category=&page=&page_size=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}

	page, err := h.service.ListTickets(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(page.Tickets))
	for i := range page.Tickets {
		items = append(items, dto.NewTicketSummary(&page.Tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetTicket(c.UserContext(), identity, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(&view.Ticket, view.Messages, view.Attachments)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), identity, ticketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), identity, ticketID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// UpdatePriority PATCH /tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdatePriority(c.UserContext(), identity, ticketID, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// UpdateAssignee PATCH /tickets/:id/assignee.
func (h *TicketsHandler) UpdateAssignee(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAssigneeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateAssignee(c.UserContext(), identity, ticketID, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), identity, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageList(msgs)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	identity, ticketID, err := h.scope(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	msg, err := h.service.AddMessage(c.UserContext(), identity, ticketID, req.Body, req.Visibility)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

func (h *TicketsHandler) scope(c *fiber.Ctx) (domain.Identity, int64, error) {
	identity, err := identityOf(c)
	if err != nil {
		return domain.Identity{}, 0, err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return domain.Identity{}, 0, err
	}
	return identity, ticketID, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 20),
	}
	for _, raw := range splitQuery(c.Query("status")) {
		s, err := domain.ParseTicketStatus(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	for _, raw := range splitQuery(c.Query("priority")) {
		p, err := domain.ParseTicketPriority(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
		}
		filter.Priorities = append(filter.Priorities, p)
	}
	for _, raw := range splitQuery(c.Query("category")) {
		cat, err := domain.ParseTicketCategory(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "category"})
		}
		filter.Categories = append(filter.Categories, cat)
	}
	return filter, nil
}
