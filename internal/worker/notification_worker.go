package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/service"
)

// NotificationWorker delivers notifications off the request path. Events are
// turned into notifications synchronously by the NotificationService and
// queued here; a single goroutine drains the queue.
type NotificationWorker struct {
	queue   chan service.Notification
	deliver service.Notifier
	logger  *zap.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewNotificationWorker builds a worker with the given queue size.
func NewNotificationWorker(deliver service.Notifier, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		queue:   make(chan service.Notification, queueSize),
		deliver: deliver,
		logger:  logger,
	}
}

// Enqueue is a service.Notifier. A full or stopped queue drops the notification.
func (w *NotificationWorker) Enqueue(_ context.Context, n service.Notification) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- n:
	default:
		w.logger.Warn("notification queue full, dropping",
			zap.String("event_type", string(n.EventType)),
			zap.Int64("ticket_id", n.TicketID))
	}
}

// Start launches the delivery loop. It stops when ctx is cancelled or Stop is called.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-w.queue:
				if !ok {
					return
				}
				w.deliver(ctx, n)
			}
		}
	}()
}

// Stop closes the queue and waits for queued notifications to drain.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
