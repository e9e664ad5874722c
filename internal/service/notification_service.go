package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

// Recipient audiences for notifications.
const (
	AudienceRequester = "requester"
	AudienceStaff     = "staff"
)

// Notification is one stubbed delivery.
type Notification struct {
	Channel   string
	Audience  string
	EventType events.EventType
	TicketID  int64
	AccountID int64
}

// Notifier delivers a notification. The default implementation logs it.
type Notifier func(ctx context.Context, n Notification)

// NotificationService turns domain events into email and webhook stubs.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	notify     Notifier
}

// NewNotificationService creates the service. A nil notifier logs deliveries.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, notify Notifier) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = LogNotifier(logger)
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		notify:     notify,
	}
}

// LogNotifier is the stub delivery: it logs the notification at debug level.
func LogNotifier(logger *zap.Logger) Notifier {
	return func(_ context.Context, msg Notification) {
		logger.Debug("notification stub",
			zap.String("channel", msg.Channel),
			zap.String("audience", msg.Audience),
			zap.String("event_type", string(msg.EventType)),
			zap.Int64("ticket_id", msg.TicketID),
			zap.Int64("account_id", msg.AccountID))
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handleWebhookOnly)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleWebhookOnly)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleWebhookOnly)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventAttachmentUploaded, n.handleWebhookOnly)
	n.dispatcher.Subscribe(events.EventAttachmentDeleted, n.handleWebhookOnly)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID))
	if p, ok := event.Payload.(events.TicketCreatedPayload); ok {
		n.sendEmail(ctx, event, AudienceRequester, p.CreatorID)
	}
	n.sendEmail(ctx, event, AudienceStaff, 0)
	n.sendWebhook(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.Int64("ticket_id", event.TicketID))
	if p, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		n.sendEmail(ctx, event, AudienceRequester, p.CreatorID)
	}
	n.sendWebhook(ctx, event)
	return nil
}

// handleTicketMessageAdded notifies the other side of the conversation.
// Internal notes only reach staff.
func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("TicketMessageAdded",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("visibility", string(p.Visibility)))

	if p.Visibility == domain.VisibilityInternal {
		n.sendEmail(ctx, event, AudienceStaff, 0)
		return nil
	}
	if p.AuthorID != p.RequesterID {
		n.sendEmail(ctx, event, AudienceRequester, p.RequesterID)
	}
	if event.Actor.Role != domain.RoleAdministrator {
		n.sendEmail(ctx, event, AudienceStaff, 0)
	}
	return nil
}

func (n *NotificationService) handleWebhookOnly(ctx context.Context, event events.Event) error {
	n.sendWebhook(ctx, event)
	return nil
}

func (n *NotificationService) sendEmail(ctx context.Context, event events.Event, audience string, accountID int64) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.notify(ctx, Notification{
		Channel:   "email",
		Audience:  audience,
		EventType: event.Type,
		TicketID:  event.TicketID,
		AccountID: accountID,
	})
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.notify(ctx, Notification{
		Channel:   "webhook",
		Audience:  AudienceStaff,
		EventType: event.Type,
		TicketID:  event.TicketID,
	})
}
