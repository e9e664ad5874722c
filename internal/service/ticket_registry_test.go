package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/sqlite"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type mockTicketRepo struct {
	repository.TicketRepository
	createFn    func(ctx context.Context, t *domain.Ticket) error
	maxNumberFn func(ctx context.Context, prefix string) (string, error)
}

func (m *mockTicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	return m.createFn(ctx, t)
}

func (m *mockTicketRepo) MaxNumber(ctx context.Context, prefix string) (string, error) {
	if m.maxNumberFn == nil {
		return "", nil
	}
	return m.maxNumberFn(ctx, prefix)
}

var validInput = CreateTicketInput{
	Title:       "Laptop will not boot",
	Description: "Black screen after the update",
	Category:    domain.TicketCategoryHardware,
	Priority:    domain.TicketPriorityHigh,
}

func TestRegistryRegeneratesNumberOnCollision(t *testing.T) {
	var tried []string
	reseeds := 0
	repo := &mockTicketRepo{
		createFn: func(_ context.Context, tk *domain.Ticket) error {
			tried = append(tried, tk.Number)
			if len(tried) < 3 {
				return repository.ErrDuplicate
			}
			tk.ID = 1
			return nil
		},
		maxNumberFn: func(context.Context, string) (string, error) {
			reseeds++
			// another writer took the next number each time we reseed
			return "TKT-2026-" + []string{"0000", "0001", "0002"}[reseeds-1], nil
		},
	}
	reg := NewTicketRegistry(RegistryDependencies{TicketRepo: repo, Clock: clock.NewFixed(testNow)})

	tk, err := reg.Create(context.Background(), 7, validInput)
	require.NoError(t, err)
	assert.Equal(t, []string{"TKT-2026-0001", "TKT-2026-0002", "TKT-2026-0003"}, tried)
	assert.Equal(t, "TKT-2026-0003", tk.Number)
	assert.Equal(t, 3, reseeds)
}

func TestRegistryGivesUpAfterRepeatedCollisions(t *testing.T) {
	attempts := 0
	repo := &mockTicketRepo{
		createFn: func(context.Context, *domain.Ticket) error {
			attempts++
			return repository.ErrDuplicate
		},
	}
	reg := NewTicketRegistry(RegistryDependencies{TicketRepo: repo, Clock: clock.NewFixed(testNow)})

	_, err := reg.Create(context.Background(), 7, validInput)
	require.Error(t, err)
	assert.Equal(t, maxNumberAttempts, attempts)
	assert.True(t, errorutil.IsInternal(err), "exhaustion surfaces as an infrastructure failure")
	assert.False(t, errorutil.IsConflict(err))
}

func TestRegistryPropagatesStoreFailure(t *testing.T) {
	repo := &mockTicketRepo{
		createFn: func(context.Context, *domain.Ticket) error { return errors.New("connection reset") },
	}
	reg := NewTicketRegistry(RegistryDependencies{TicketRepo: repo})

	_, err := reg.Create(context.Background(), 7, validInput)
	assert.True(t, errorutil.IsInternal(err))
}

func TestNumberGeneratorSequence(t *testing.T) {
	repo := &mockTicketRepo{
		maxNumberFn: func(_ context.Context, prefix string) (string, error) {
			if prefix == "TKT-2026-" {
				return "TKT-2026-0041", nil
			}
			return "", nil
		},
	}
	gen := NewNumberGenerator(repo)
	ctx := context.Background()

	n, err := gen.Next(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, "TKT-2026-0042", n)

	n, err = gen.Next(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, "TKT-2026-0043", n)

	n, err = gen.Next(ctx, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "TKT-2027-0001", n, "sequence restarts each year")
}

func TestNumberGeneratorOverflow(t *testing.T) {
	repo := &mockTicketRepo{
		maxNumberFn: func(context.Context, string) (string, error) { return "TKT-2026-9999", nil },
	}
	_, err := NewNumberGenerator(repo).Next(context.Background(), testNow)
	assert.Error(t, err)
}

// interleavingTicketRepo runs a hook right before a priority or assignee
// write reaches the store, standing in for another request landing there.
type interleavingTicketRepo struct {
	repository.TicketRepository
	beforeWrite func()
}

func (r *interleavingTicketRepo) hook() {
	if fn := r.beforeWrite; fn != nil {
		r.beforeWrite = nil
		fn()
	}
}

func (r *interleavingTicketRepo) UpdatePriority(ctx context.Context, id int64, p domain.TicketPriority, at time.Time) (*domain.Ticket, error) {
	r.hook()
	return r.TicketRepository.UpdatePriority(ctx, id, p, at)
}

func (r *interleavingTicketRepo) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64, at time.Time) (*domain.Ticket, error) {
	r.hook()
	return r.TicketRepository.UpdateAssignee(ctx, id, assigneeID, at)
}

func TestRegistryConcurrentFieldUpdatesBothSurvive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := h.ticket(t, h.alice)

	repo := &interleavingTicketRepo{TicketRepository: sqlite.NewTicketRepository(h.db)}
	reg := NewTicketRegistry(RegistryDependencies{TicketRepo: repo, Clock: h.clock})

	t.Run("status lands while priority is in flight", func(t *testing.T) {
		repo.beforeWrite = func() {
			_, err := reg.UpdateStatus(ctx, tk.ID, domain.TicketStatusResolved)
			require.NoError(t, err)
		}
		updated, err := reg.UpdatePriority(ctx, tk.ID, domain.TicketPriorityCritical)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, updated.Status)
		assert.Equal(t, domain.TicketPriorityCritical, updated.Priority)
	})

	t.Run("status lands while assignee is in flight", func(t *testing.T) {
		repo.beforeWrite = func() {
			_, err := reg.UpdateStatus(ctx, tk.ID, domain.TicketStatusClosed)
			require.NoError(t, err)
		}
		updated, err := reg.UpdateAssignee(ctx, tk.ID, &h.admin.AccountID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusClosed, updated.Status)
		assert.NotNil(t, updated.ClosedAt)
	})

	stored, err := reg.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.Equal(t, domain.TicketPriorityCritical, stored.Priority)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, h.admin.AccountID, *stored.AssigneeID)
}

func TestRegistryUpdatesMissingTicket(t *testing.T) {
	h := newHarness(t)
	reg := NewTicketRegistry(RegistryDependencies{TicketRepo: sqlite.NewTicketRepository(h.db), Clock: h.clock})
	ctx := context.Background()

	_, err := reg.UpdateStatus(ctx, 404, domain.TicketStatusClosed)
	assert.True(t, errorutil.IsNotFound(err))
	_, err = reg.UpdatePriority(ctx, 404, domain.TicketPriorityLow)
	assert.True(t, errorutil.IsNotFound(err))
	_, err = reg.UpdateAssignee(ctx, 404, nil)
	assert.True(t, errorutil.IsNotFound(err))
}
