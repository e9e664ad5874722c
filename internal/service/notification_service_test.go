package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

func TestNotificationRouting(t *testing.T) {
	const requester = int64(10)

	tests := []struct {
		name  string
		event events.Event
		want  []string // channel/audience
	}{
		{
			name: "internal note never reaches the requester",
			event: events.Event{
				Type:  events.EventTicketMessageAdded,
				Actor: events.Actor{AccountID: 1, Role: domain.RoleAdministrator},
				Payload: events.TicketMessageAddedPayload{
					Visibility: domain.VisibilityInternal, AuthorID: 1, RequesterID: requester,
				},
			},
			want: []string{"email/staff"},
		},
		{
			name: "public reply from staff goes to the requester",
			event: events.Event{
				Type:  events.EventTicketMessageAdded,
				Actor: events.Actor{AccountID: 1, Role: domain.RoleAdministrator},
				Payload: events.TicketMessageAddedPayload{
					Visibility: domain.VisibilityPublic, AuthorID: 1, RequesterID: requester,
				},
			},
			want: []string{"email/requester"},
		},
		{
			name: "requester reply goes to staff",
			event: events.Event{
				Type:  events.EventTicketMessageAdded,
				Actor: events.Actor{AccountID: requester, Role: domain.RoleMember},
				Payload: events.TicketMessageAddedPayload{
					Visibility: domain.VisibilityPublic, AuthorID: requester, RequesterID: requester,
				},
			},
			want: []string{"email/staff"},
		},
		{
			name:  "status change notifies requester and webhook",
			event: events.Event{Type: events.EventTicketStatusChanged, Payload: events.TicketStatusChangedPayload{CreatorID: requester}},
			want:  []string{"email/requester", "webhook/staff"},
		},
		{
			name:  "attachment upload only hits the webhook",
			event: events.Event{Type: events.EventAttachmentUploaded, Payload: events.AttachmentUploadedPayload{}},
			want:  []string{"webhook/staff"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := events.NewInMemoryDispatcher(nil)
			var got []string
			var requesterHits []int64
			svc := NewNotificationService(dispatcher, nil, config.NotificationConfig{
				EmailFrom:  "helpdesk@example.com",
				WebhookURL: "https://hooks.example.com/helpdesk",
			}, func(_ context.Context, n Notification) {
				got = append(got, n.Channel+"/"+n.Audience)
				if n.Audience == AudienceRequester {
					requesterHits = append(requesterHits, n.AccountID)
				}
			})
			svc.RegisterHandlers()

			_ = dispatcher.Publish(context.Background(), tt.event)
			assert.Equal(t, tt.want, got)
			for _, id := range requesterHits {
				assert.Equal(t, requester, id)
			}
		})
	}
}

func TestNotificationChannelsDisabledWithoutConfig(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	calls := 0
	NewNotificationService(dispatcher, nil, config.NotificationConfig{}, func(context.Context, Notification) {
		calls++
	}).RegisterHandlers()

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{CreatorID: 1},
	})
	assert.Zero(t, calls)
}
