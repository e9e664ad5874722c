package service

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCreateTicketStartsOpenAndUnassigned(t *testing.T) {
	h := newHarness(t)

	tk := h.ticket(t, h.alice)

	assert.Equal(t, domain.TicketStatusOpen, tk.Status)
	assert.Nil(t, tk.AssigneeID)
	assert.Nil(t, tk.ClosedAt)
	assert.Equal(t, domain.TicketPriorityMedium, tk.Priority)
	assert.Equal(t, h.alice.AccountID, tk.CreatorID)
	assert.Equal(t, testNow, tk.CreatedAt)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, h.events.types())
}

func TestTicketNumbersAreDistinctPerYear(t *testing.T) {
	h := newHarness(t)
	pattern := regexp.MustCompile(`^TKT-2026-\d{4}$`)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		tk := h.ticket(t, h.alice)
		assert.Regexp(t, pattern, tk.Number)
		assert.False(t, seen[tk.Number], "duplicate number %s", tk.Number)
		seen[tk.Number] = true
	}
	assert.True(t, seen["TKT-2026-0001"])
	assert.True(t, seen["TKT-2026-0003"])
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateTicketInput
	}{
		{"missing title", CreateTicketInput{Description: "d", Category: domain.TicketCategoryOther}},
		{"missing description", CreateTicketInput{Title: "t", Category: domain.TicketCategoryOther}},
		{"missing category", CreateTicketInput{Title: "t", Description: "d"}},
		{"unknown category", CreateTicketInput{Title: "t", Description: "d", Category: "billing"}},
		{"unknown priority", CreateTicketInput{Title: "t", Description: "d", Category: domain.TicketCategoryOther, Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateTicket(ctx, h.alice, tt.input)
			assert.True(t, errorutil.IsValidation(err), "got %v", err)
		})
	}
}

func TestNonOwnerMemberIsForbiddenEverywhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	att := h.upload(t, h.alice, tk.ID, []byte("hello"))
	assignee := h.admin.AccountID

	ops := map[string]func() error{
		"get":               func() error { _, err := h.svc.GetTicket(ctx, h.bob, tk.ID); return err },
		"list messages":     func() error { _, err := h.svc.ListMessages(ctx, h.bob, tk.ID); return err },
		"add message":       func() error { _, err := h.svc.AddMessage(ctx, h.bob, tk.ID, "me too", ""); return err },
		"update status":     func() error { _, err := h.svc.UpdateStatus(ctx, h.bob, tk.ID, domain.TicketStatusClosed); return err },
		"update priority":   func() error { _, err := h.svc.UpdatePriority(ctx, h.bob, tk.ID, domain.TicketPriorityHigh); return err },
		"update assignee":   func() error { _, err := h.svc.UpdateAssignee(ctx, h.bob, tk.ID, &assignee); return err },
		"delete ticket":     func() error { return h.svc.DeleteTicket(ctx, h.bob, tk.ID) },
		"list attachments":  func() error { _, err := h.svc.ListAttachments(ctx, h.bob, tk.ID); return err },
		"upload":            func() error { _, err := h.svc.UploadAttachment(ctx, h.bob, tk.ID, textUpload("x.txt", []byte("x"))); return err },
		"download":          func() error { _, _, err := h.svc.DownloadAttachment(ctx, h.bob, tk.ID, att.ID); return err },
		"delete attachment": func() error { return h.svc.DeleteAttachment(ctx, h.bob, tk.ID, att.ID) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			assert.True(t, errorutil.IsForbidden(err), "got %v", err)
		})
	}

	// nothing changed
	view, err := h.svc.GetTicket(ctx, h.admin, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, view.Ticket.Status)
	assert.Empty(t, view.Messages)
	assert.Len(t, view.Attachments, 1)
}

func TestOwnerCannotUseAdministratorOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	att := h.upload(t, h.alice, tk.ID, []byte("hello"))

	_, err := h.svc.UpdateStatus(ctx, h.alice, tk.ID, domain.TicketStatusResolved)
	assert.True(t, errorutil.IsForbidden(err))
	_, err = h.svc.UpdatePriority(ctx, h.alice, tk.ID, domain.TicketPriorityCritical)
	assert.True(t, errorutil.IsForbidden(err))
	_, err = h.svc.UpdateAssignee(ctx, h.alice, tk.ID, nil)
	assert.True(t, errorutil.IsForbidden(err))
	assert.True(t, errorutil.IsForbidden(h.svc.DeleteTicket(ctx, h.alice, tk.ID)))
	assert.True(t, errorutil.IsForbidden(h.svc.DeleteAttachment(ctx, h.alice, tk.ID, att.ID)))

	_, _, err = h.svc.DownloadAttachment(ctx, h.alice, tk.ID, att.ID)
	assert.NoError(t, err)
}

func TestOwnershipIsCreatorOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	_, err := h.svc.GetTicket(ctx, h.bob, tk.ID)
	assert.True(t, errorutil.IsForbidden(err))

	// assigning to an administrator does not make that admin the owner,
	// and the creator keeps access
	assignee := h.admin.AccountID
	_, err = h.svc.UpdateAssignee(ctx, h.admin, tk.ID, &assignee)
	require.NoError(t, err)

	view, err := h.svc.GetTicket(ctx, h.alice, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, h.alice.AccountID, view.Ticket.CreatorID)
	require.NotNil(t, view.Ticket.AssigneeID)
	assert.Equal(t, assignee, *view.Ticket.AssigneeID)
}

func TestMissingTicketIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.GetTicket(ctx, h.bob, 999)
	assert.True(t, errorutil.IsNotFound(err))
	_, err = h.svc.AddMessage(ctx, h.admin, 999, "hi", domain.VisibilityPublic)
	assert.True(t, errorutil.IsNotFound(err))
	assert.True(t, errorutil.IsNotFound(h.svc.DeleteTicket(ctx, h.admin, 999)))
}

func TestUnknownRoleIsForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guest := domain.Identity{AccountID: 77, Role: domain.Role("guest")}

	_, err := h.svc.CreateTicket(ctx, guest, CreateTicketInput{Title: "t", Description: "d", Category: domain.TicketCategoryOther})
	assert.True(t, errorutil.IsForbidden(err))
	_, err = h.svc.ListTickets(ctx, guest, TicketListFilter{})
	assert.True(t, errorutil.IsForbidden(err))
}

func TestInternalNoteVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	note, err := h.svc.AddMessage(ctx, h.admin, tk.ID, "internal note", domain.VisibilityInternal)
	require.NoError(t, err)
	assert.True(t, note.IsInternal)

	_, err = h.svc.AddMessage(ctx, h.admin, tk.ID, "We are looking into it", domain.VisibilityPublic)
	require.NoError(t, err)

	memberView, err := h.svc.ListMessages(ctx, h.alice, tk.ID)
	require.NoError(t, err)
	require.Len(t, memberView, 1)
	assert.Equal(t, "We are looking into it", memberView[0].Body)

	adminView, err := h.svc.ListMessages(ctx, h.admin, tk.ID)
	require.NoError(t, err)
	require.Len(t, adminView, 2)
	assert.Equal(t, "internal note", adminView[0].Body)
	assert.True(t, adminView[0].IsInternal)

	ticketView, err := h.svc.GetTicket(ctx, h.alice, tk.ID)
	require.NoError(t, err)
	for _, m := range ticketView.Messages {
		assert.False(t, m.IsInternal)
	}
}

func TestMemberCannotPostInternal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	msg, err := h.svc.AddMessage(ctx, h.alice, tk.ID, "please hide this", domain.VisibilityInternal)
	require.NoError(t, err)
	assert.False(t, msg.IsInternal)

	adminView, err := h.svc.ListMessages(ctx, h.admin, tk.ID)
	require.NoError(t, err)
	require.Len(t, adminView, 1)
	assert.False(t, adminView[0].IsInternal, "persisted visibility must be public")
}

func TestMemberThreadReadsAreStable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	for i, vis := range []domain.Visibility{domain.VisibilityPublic, domain.VisibilityInternal, domain.VisibilityPublic, domain.VisibilityInternal} {
		_, err := h.svc.AddMessage(ctx, h.admin, tk.ID, string(rune('a'+i)), vis)
		require.NoError(t, err)
	}
	_, err := h.svc.AddMessage(ctx, h.alice, tk.ID, "thanks", "")
	require.NoError(t, err)

	first, err := h.svc.ListMessages(ctx, h.alice, tk.ID)
	require.NoError(t, err)
	second, err := h.svc.ListMessages(ctx, h.alice, tk.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, []string{"a", "c", "thanks"}, []string{first[0].Body, first[1].Body, first[2].Body})
}

func TestMessagesGetDistinctTimestampsUnderFrozenClock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	a, err := h.svc.AddMessage(ctx, h.alice, tk.ID, "one", "")
	require.NoError(t, err)
	b, err := h.svc.AddMessage(ctx, h.admin, tk.ID, "two", "")
	require.NoError(t, err)

	assert.True(t, b.CreatedAt.After(a.CreatedAt))
}

func TestAddMessageRequiresBody(t *testing.T) {
	h := newHarness(t)
	tk := h.ticket(t, h.alice)

	_, err := h.svc.AddMessage(context.Background(), h.alice, tk.ID, "   ", "")
	assert.True(t, errorutil.IsValidation(err))
}

func TestListTicketsScopesMembersToOwnTickets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ticket(t, h.alice)
	h.ticket(t, h.alice)
	h.ticket(t, h.bob)

	alicePage, err := h.svc.ListTickets(ctx, h.alice, TicketListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, alicePage.Total)
	for _, tk := range alicePage.Tickets {
		assert.Equal(t, h.alice.AccountID, tk.CreatorID)
	}

	adminPage, err := h.svc.ListTickets(ctx, h.admin, TicketListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, adminPage.Total)

	paged, err := h.svc.ListTickets(ctx, h.admin, TicketListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, paged.Tickets, 1)
	assert.Equal(t, 2, paged.Page)
}

func TestStatusAndPriorityUpdates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	h.clock.Advance(time.Hour)
	closed, err := h.svc.UpdateStatus(ctx, h.admin, tk.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, testNow.Add(time.Hour), closed.UpdatedAt)

	reopened, err := h.svc.UpdateStatus(ctx, h.admin, tk.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	_, err = h.svc.UpdateStatus(ctx, h.admin, tk.ID, "reopened")
	assert.True(t, errorutil.IsValidation(err))

	high, err := h.svc.UpdatePriority(ctx, h.admin, tk.ID, domain.TicketPriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, high.Priority)
	assert.Equal(t, tk.Number, high.Number)
}

func TestUpdateAssigneeRequiresActiveAdministrator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	retired := h.account(t, "retired@example.com", domain.RoleAdministrator, false)

	for name, id := range map[string]int64{
		"member":          h.bob.AccountID,
		"inactive admin":  retired.AccountID,
		"unknown account": 4242,
	} {
		t.Run(name, func(t *testing.T) {
			target := id
			_, err := h.svc.UpdateAssignee(ctx, h.admin, tk.ID, &target)
			assert.True(t, errorutil.IsValidation(err), "got %v", err)
		})
	}

	admin := h.admin.AccountID
	assigned, err := h.svc.UpdateAssignee(ctx, h.admin, tk.ID, &admin)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)

	cleared, err := h.svc.UpdateAssignee(ctx, h.admin, tk.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssigneeID)
}

func TestAttachmentRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	content := []byte("line one\nline two\x00binary\xff")

	att := h.upload(t, h.alice, tk.ID, content)
	assert.Equal(t, int64(len(content)), att.SizeBytes)
	assert.NotEmpty(t, att.Checksum)

	meta, data, err := h.svc.DownloadAttachment(ctx, h.admin, tk.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "notes.txt", meta.FileName)
	assert.Equal(t, "text/plain", meta.MimeType)
}

func TestUploadSizeBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	exact := bytes.Repeat([]byte{'a'}, int(testMaxBytes))
	_, err := h.svc.UploadAttachment(ctx, h.alice, tk.ID, textUpload("exact.txt", exact))
	require.NoError(t, err)

	over := append(exact, 'b')
	_, err = h.svc.UploadAttachment(ctx, h.alice, tk.ID, textUpload("over.txt", over))
	assert.True(t, errorutil.IsPayloadTooLarge(err), "got %v", err)

	// declared small, actual large
	lying := UploadInput{FileName: "lie.txt", MimeType: "text/plain", Size: 10, Content: bytes.NewReader(over)}
	_, err = h.svc.UploadAttachment(ctx, h.alice, tk.ID, lying)
	assert.True(t, errorutil.IsPayloadTooLarge(err), "got %v", err)

	assert.Equal(t, 1, h.memory.Len())
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	in := textUpload("run.bin", []byte{0x7f, 'E', 'L', 'F'})
	in.MimeType = "application/x-executable"
	_, err := h.svc.UploadAttachment(ctx, h.alice, tk.ID, in)
	assert.True(t, errorutil.IsUnsupportedType(err), "got %v", err)
	assert.Zero(t, h.memory.Len())

	in = textUpload("photo.png", []byte("png"))
	in.MimeType = "Image/PNG; charset=binary"
	att, err := h.svc.UploadAttachment(ctx, h.alice, tk.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.MimeType)
}

func TestDeleteAttachmentKeepsMetadataWhenBlobDeleteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	att := h.upload(t, h.alice, tk.ID, []byte("keep me"))

	h.blobs.deleteFn = func(context.Context, string) error { return errors.New("disk unavailable") }

	err := h.svc.DeleteAttachment(ctx, h.admin, tk.ID, att.ID)
	require.Error(t, err)
	assert.True(t, errorutil.IsInternal(err))

	list, err := h.svc.ListAttachments(ctx, h.admin, tk.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, att.ID, list[0].ID)
	_, data, err := h.svc.DownloadAttachment(ctx, h.admin, tk.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("keep me"), data)
}

func TestDeleteAttachment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	other := h.ticket(t, h.alice)
	att := h.upload(t, h.alice, tk.ID, []byte("bye"))

	err := h.svc.DeleteAttachment(ctx, h.admin, other.ID, att.ID)
	assert.True(t, errorutil.IsNotFound(err), "attachment is scoped to its ticket")

	require.NoError(t, h.svc.DeleteAttachment(ctx, h.admin, tk.ID, att.ID))
	assert.Zero(t, h.memory.Len())

	_, _, err = h.svc.DownloadAttachment(ctx, h.admin, tk.ID, att.ID)
	assert.True(t, errorutil.IsNotFound(err))
	assert.True(t, errorutil.IsNotFound(h.svc.DeleteAttachment(ctx, h.admin, tk.ID, att.ID)))
}

func TestDownloadWithMissingBlobIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	att := h.upload(t, h.alice, tk.ID, []byte("gone"))

	require.NoError(t, h.memory.Delete(ctx, att.Locator))

	_, _, err := h.svc.DownloadAttachment(ctx, h.alice, tk.ID, att.ID)
	assert.True(t, errorutil.IsNotFound(err))
}

func TestDeleteTicketRemovesEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	h.upload(t, h.alice, tk.ID, []byte("one"))
	h.upload(t, h.alice, tk.ID, []byte("two"))
	_, err := h.svc.AddMessage(ctx, h.alice, tk.ID, "hello", "")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteTicket(ctx, h.admin, tk.ID))

	assert.Zero(t, h.memory.Len())
	_, err = h.svc.GetTicket(ctx, h.admin, tk.ID)
	assert.True(t, errorutil.IsNotFound(err))
	assert.Contains(t, h.events.types(), events.EventTicketDeleted)
}

func TestDeleteTicketStopsWhenAttachmentDeleteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	h.upload(t, h.alice, tk.ID, []byte("stuck"))

	h.blobs.deleteFn = func(context.Context, string) error { return errors.New("blob backend down") }

	err := h.svc.DeleteTicket(ctx, h.admin, tk.ID)
	require.Error(t, err)

	view, err := h.svc.GetTicket(ctx, h.admin, tk.ID)
	require.NoError(t, err)
	assert.Len(t, view.Attachments, 1)
}

func TestDeleteTicketCanBeRetriedAfterPartialAttachmentFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	first := h.upload(t, h.alice, tk.ID, []byte("one"))
	second := h.upload(t, h.alice, tk.ID, []byte("two"))

	h.blobs.deleteFn = func(ctx context.Context, locator string) error {
		if locator == second.Locator {
			return errors.New("blob backend down")
		}
		return h.memory.Delete(ctx, locator)
	}

	err := h.svc.DeleteTicket(ctx, h.admin, tk.ID)
	require.Error(t, err)
	assert.True(t, errorutil.IsInternal(err))
	assert.Contains(t, err.Error(), "1 of 2 removed")

	view, err := h.svc.GetTicket(ctx, h.admin, tk.ID)
	require.NoError(t, err)
	require.Len(t, view.Attachments, 1)
	assert.Equal(t, second.ID, view.Attachments[0].ID)
	_, _, err = h.svc.DownloadAttachment(ctx, h.admin, tk.ID, first.ID)
	assert.True(t, errorutil.IsNotFound(err), "the removed attachment has no record left")
	_, data, err := h.svc.DownloadAttachment(ctx, h.admin, tk.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	h.blobs.deleteFn = nil
	require.NoError(t, h.svc.DeleteTicket(ctx, h.admin, tk.ID))
	assert.Zero(t, h.memory.Len())
	_, err = h.svc.GetTicket(ctx, h.admin, tk.ID)
	assert.True(t, errorutil.IsNotFound(err))
}

func TestUploadRemovesBlobWhenMetadataInsertFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	// a fixed locator makes the second insert violate the unique index
	h.blobs.putFn = func(ctx context.Context, data []byte) (string, error) {
		_, _ = h.memory.Put(ctx, data)
		return "fixed-locator", nil
	}
	_, err := h.svc.UploadAttachment(ctx, h.alice, tk.ID, textUpload("a.txt", []byte("a")))
	require.NoError(t, err)

	deleted := ""
	h.blobs.deleteFn = func(_ context.Context, locator string) error {
		deleted = locator
		return nil
	}
	_, err = h.svc.UploadAttachment(ctx, h.alice, tk.ID, textUpload("b.txt", []byte("b")))
	require.Error(t, err)
	assert.True(t, errorutil.IsInternal(err))
	assert.Equal(t, "fixed-locator", deleted)
}

func TestOperationsAreCounted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)
	_, _ = h.svc.GetTicket(ctx, h.bob, tk.ID)

	count, err := testutil.GatherAndCount(h.metrics.Gatherer(), "helpdesk_collaboration_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per (operation, outcome)")
}

func TestMessageEventCarriesRequester(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	_, err := h.svc.AddMessage(ctx, h.admin, tk.ID, "internal note", domain.VisibilityInternal)
	require.NoError(t, err)

	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	last := h.events.events[len(h.events.events)-1]
	require.Equal(t, events.EventTicketMessageAdded, last.Type)
	payload, ok := last.Payload.(events.TicketMessageAddedPayload)
	require.True(t, ok)
	assert.Equal(t, h.alice.AccountID, payload.RequesterID)
	assert.Equal(t, domain.VisibilityInternal, payload.Visibility)
	assert.NotEmpty(t, last.ID)
}
