package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

func TestNotificationWorkerDeliversQueued(t *testing.T) {
	var (
		mu        sync.Mutex
		delivered []service.Notification
	)
	w := NewNotificationWorker(func(_ context.Context, n service.Notification) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, n)
	}, 4, nil)

	w.Start(context.Background())
	w.Enqueue(context.Background(), service.Notification{Channel: "email", EventType: events.EventTicketCreated, TicketID: 1})
	w.Enqueue(context.Background(), service.Notification{Channel: "webhook", EventType: events.EventTicketDeleted, TicketID: 2})
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, delivered, 2)
	assert.Equal(t, int64(1), delivered[0].TicketID)
}

func TestNotificationWorkerDropsWhenFull(t *testing.T) {
	w := NewNotificationWorker(func(context.Context, service.Notification) {}, 1, nil)

	w.Enqueue(context.Background(), service.Notification{TicketID: 1})
	w.Enqueue(context.Background(), service.Notification{TicketID: 2})

	assert.Len(t, w.queue, 1)
	w.Stop()
}
