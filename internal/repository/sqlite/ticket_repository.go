package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository returns a gorm-backed repository.TicketRepository.
func NewTicketRepository(db *gorm.DB) repository.TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	model := ticketFromDomain(ticket)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translate(err)
	}
	ticket.ID = model.ID
	return nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	columns := map[string]any{"status": string(status), "closed_at": nil, "updated_at": at}
	if status == domain.TicketStatusClosed {
		columns["closed_at"] = gorm.Expr("COALESCE(closed_at, ?)", at)
	}
	return r.update(ctx, id, columns)
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, id int64, priority domain.TicketPriority, at time.Time) (*domain.Ticket, error) {
	return r.update(ctx, id, map[string]any{"priority": string(priority), "updated_at": at})
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64, at time.Time) (*domain.Ticket, error) {
	return r.update(ctx, id, map[string]any{"assignee_id": assigneeID, "updated_at": at})
}

// update writes only the given columns and reads the row back in the same
// transaction.
func (r *ticketRepository) update(ctx context.Context, id int64, columns map[string]any) (*domain.Ticket, error) {
	var model ticketModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ticketModel{}).Where("id = ?", id).Updates(columns)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return tx.First(&model, id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	ticket := model.toDomain()
	return &ticket, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var model ticketModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		return nil, translate(err)
	}
	ticket := model.toDomain()
	return &ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&messageModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&ticketModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int64, error) {
	filter = filter.Normalize()
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.CreatorID != nil {
			db = db.Where("creator_id = ?", *filter.CreatorID)
		}
		if len(filter.Statuses) > 0 {
			db = db.Where("status IN ?", filter.Statuses)
		}
		if len(filter.Priorities) > 0 {
			db = db.Where("priority IN ?", filter.Priorities)
		}
		if len(filter.Categories) > 0 {
			db = db.Where("category IN ?", filter.Categories)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&ticketModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []ticketModel
	if err := r.db.WithContext(ctx).Scopes(scope).
		Order("updated_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	tickets := make([]domain.Ticket, 0, len(models))
	for i := range models {
		tickets = append(tickets, models[i].toDomain())
	}
	return tickets, total, nil
}

func (r *ticketRepository) MaxNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).Model(&ticketModel{}).
		Where("number LIKE ?", prefix+"%").
		Order("number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}
