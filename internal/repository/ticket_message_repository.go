package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketMessageRepository manages ticket thread messages. Messages are
// append-only, so there is no update or single-row delete.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	// ListByTicket returns the thread in (created_at, id) order. Internal
	// messages are omitted unless includeInternal is set.
	ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_id, author_role, body, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorID,
		msg.AuthorRole,
		msg.Body,
		msg.IsInternal,
		msg.CreatedAt,
	).Scan(&msg.ID)
	return translatePgError(err)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketMessage, error) {
	query := `
        SELECT id, ticket_id, author_id, author_role, body, is_internal, created_at
        FROM ticket_messages WHERE ticket_id=$1`
	if !includeInternal {
		query += ` AND is_internal = FALSE`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&msg.AuthorRole,
			&msg.Body,
			&msg.IsInternal,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
