package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AttachmentRepository persists attachment metadata. Bytes live in a blob store.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id int64) (*domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
	Delete(ctx context.Context, id int64) error
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

const attachmentColumns = `id, ticket_id, uploader_id, file_name, locator, size_bytes, mime_type, checksum, created_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (ticket_id, uploader_id, file_name, locator, size_bytes, mime_type, checksum, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.UploaderID,
		attachment.FileName,
		attachment.Locator,
		attachment.SizeBytes,
		attachment.MimeType,
		attachment.Checksum,
		attachment.CreatedAt,
	).Scan(&attachment.ID)
	return translatePgError(err)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	var a domain.Attachment
	err := r.pool.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=$1`, id).Scan(
		&a.ID, &a.TicketID, &a.UploaderID, &a.FileName, &a.Locator,
		&a.SizeBytes, &a.MimeType, &a.Checksum, &a.CreatedAt,
	)
	if err != nil {
		return nil, translatePgError(err)
	}
	return &a, nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(
			&a.ID, &a.TicketID, &a.UploaderID, &a.FileName, &a.Locator,
			&a.SizeBytes, &a.MimeType, &a.Checksum, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *attachmentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
