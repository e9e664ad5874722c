package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type ticketMessageRepository struct {
	db *gorm.DB
}

// NewTicketMessageRepository returns a gorm-backed repository.TicketMessageRepository.
func NewTicketMessageRepository(db *gorm.DB) repository.TicketMessageRepository {
	return &ticketMessageRepository{db: db}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	model := messageFromDomain(msg)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translate(err)
	}
	msg.ID = model.ID
	return nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketMessage, error) {
	q := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID)
	if !includeInternal {
		q = q.Where("is_internal = ?", sqlFalse)
	}

	var models []messageModel
	if err := q.Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	messages := make([]domain.TicketMessage, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].toDomain())
	}
	return messages, nil
}
