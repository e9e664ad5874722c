package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/spec-kit/helpdesk/internal/blob"
	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/sqlite"
)

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

const testMaxBytes int64 = 5 << 20

// fakeBlobStore wraps a real store and lets a test replace single calls.
type fakeBlobStore struct {
	blob.Store
	putFn    func(ctx context.Context, data []byte) (string, error)
	deleteFn func(ctx context.Context, locator string) error
}

func (f *fakeBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	if f.putFn != nil {
		return f.putFn(ctx, data)
	}
	return f.Store.Put(ctx, data)
}

func (f *fakeBlobStore) Delete(ctx context.Context, locator string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, locator)
	}
	return f.Store.Delete(ctx, locator)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc      *CollaborationService
	db       *gorm.DB
	blobs    *fakeBlobStore
	memory   *blob.MemoryStore
	clock    *clock.Fixed
	accounts repository.AccountRepository
	metrics  *observability.Metrics
	events   *recorder

	admin domain.Identity
	alice domain.Identity
	bob   domain.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := persistence.NewSQLite(config.SQLiteConfig{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, sqlite.AutoMigrate(store.DB))

	h := &harness{
		db:       store.DB,
		memory:   blob.NewMemoryStore(),
		clock:    clock.NewFixed(testNow),
		accounts: sqlite.NewAccountRepository(store.DB),
		metrics:  observability.NewMetrics(),
		events:   &recorder{},
	}
	h.blobs = &fakeBlobStore{Store: h.memory}

	policy, err := NewAccessPolicy()
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketPriorityChanged,
		events.EventTicketAssigned, events.EventTicketDeleted, events.EventTicketMessageAdded,
		events.EventAttachmentUploaded, events.EventAttachmentDeleted,
	} {
		dispatcher.Subscribe(et, h.events.handle)
	}

	h.svc = NewCollaborationService(CollaborationDependencies{
		Registry: NewTicketRegistry(RegistryDependencies{
			TicketRepo: sqlite.NewTicketRepository(store.DB),
			Clock:      h.clock,
		}),
		Thread: NewMessageThread(ThreadDependencies{
			MessageRepo: sqlite.NewTicketMessageRepository(store.DB),
			Clock:       h.clock,
		}),
		Ledger: NewAttachmentLedger(LedgerDependencies{
			AttachmentRepo: sqlite.NewAttachmentRepository(store.DB),
			Blobs:          h.blobs,
			Clock:          h.clock,
			MaxBytes:       testMaxBytes,
			AllowedTypes:   config.DefaultAllowedTypes,
		}),
		Policy:      policy,
		AccountRepo: h.accounts,
		Dispatcher:  dispatcher,
		Metrics:     h.metrics,
		Clock:       h.clock,
	})

	h.admin = h.account(t, "admin@example.com", domain.RoleAdministrator, true)
	h.alice = h.account(t, "alice@example.com", domain.RoleMember, true)
	h.bob = h.account(t, "bob@example.com", domain.RoleMember, true)
	return h
}

func (h *harness) account(t *testing.T, email string, role domain.Role, active bool) domain.Identity {
	t.Helper()
	a := &domain.Account{
		Name:         email,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		Active:       active,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, h.accounts.Create(context.Background(), a))
	return domain.Identity{AccountID: a.ID, Role: role}
}

func (h *harness) ticket(t *testing.T, owner domain.Identity) *domain.Ticket {
	t.Helper()
	tk, err := h.svc.CreateTicket(context.Background(), owner, CreateTicketInput{
		Title:       "Printer on 3rd floor jams",
		Description: "Every second page jams since Monday",
		Category:    domain.TicketCategoryHardware,
	})
	require.NoError(t, err)
	return tk
}

func (h *harness) upload(t *testing.T, who domain.Identity, ticketID int64, content []byte) *domain.Attachment {
	t.Helper()
	a, err := h.svc.UploadAttachment(context.Background(), who, ticketID, textUpload("notes.txt", content))
	require.NoError(t, err)
	return a
}

func textUpload(name string, content []byte) UploadInput {
	return UploadInput{
		FileName: name,
		MimeType: "text/plain",
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}
}
