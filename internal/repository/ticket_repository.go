package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// UpdateStatus, UpdatePriority and UpdateAssignee each write only their
	// own column(s) and updated_at, and return the stored row.
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, at time.Time) (*domain.Ticket, error)
	UpdatePriority(ctx context.Context, id int64, priority domain.TicketPriority, at time.Time) (*domain.Ticket, error)
	UpdateAssignee(ctx context.Context, id int64, assigneeID *int64, at time.Time) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// Delete removes the ticket and its messages together. It reports
	// false when the ticket did not exist.
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error)
	// MaxNumber returns the highest ticket number starting with prefix, or "".
	MaxNumber(ctx context.Context, prefix string) (string, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, creator_id, assignee_id, title, description, category,
               priority, status, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, creator_id, assignee_id, title, description, category, priority, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		ticket.Number,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID)
	return translatePgError(err)
}

// UpdateStatus stamps closed_at the first time a ticket is closed and
// clears it whenever the ticket leaves closed.
func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	return r.updateReturning(ctx,
		`status=$1, closed_at=CASE WHEN $2 THEN COALESCE(closed_at, $3) ELSE NULL END, updated_at=$3 WHERE id=$4`,
		status, status == domain.TicketStatusClosed, at, id)
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, id int64, priority domain.TicketPriority, at time.Time) (*domain.Ticket, error) {
	return r.updateReturning(ctx, `priority=$1, updated_at=$2 WHERE id=$3`, priority, at, id)
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64, at time.Time) (*domain.Ticket, error) {
	return r.updateReturning(ctx, `assignee_id=$1, updated_at=$2 WHERE id=$3`, assigneeID, at, id)
}

func (r *ticketRepository) updateReturning(ctx context.Context, setWhere string, args ...any) (*domain.Ticket, error) {
	query := `UPDATE tickets SET ` + setWhere + ` RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translatePgError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translatePgError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM ticket_messages WHERE ticket_id=$1`, id); err != nil {
		return false, fmt.Errorf("delete messages: %w", err)
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete ticket: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error) {
	filter = filter.Normalize()
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, inClause("status", filter.Statuses, &args))
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, inClause("priority", filter.Priorities, &args))
	}
	if len(filter.Categories) > 0 {
		clauses = append(clauses, inClause("category", filter.Categories, &args))
	}
	where := strings.Join(clauses, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func (r *ticketRepository) MaxNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx,
		`SELECT number FROM tickets WHERE number LIKE $1 ORDER BY number DESC LIMIT 1`,
		prefix+"%",
	).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func inClause[T ~string](column string, values []T, args *[]any) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, string(v))
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
