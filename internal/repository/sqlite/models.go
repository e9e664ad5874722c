// Package sqlite implements the repositories on SQLite through gorm.
//
// SQLite has no boolean column type. Every flag is stored as an INTEGER
// holding 0 or 1 and is converted only through sqlBool, on both the write
// and the read path.
package sqlite

import (
	"time"

	"gorm.io/gorm"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// sqlBool is the stored form of a boolean flag.
type sqlBool int8

const (
	sqlFalse sqlBool = 0
	sqlTrue  sqlBool = 1
)

func toSQLBool(b bool) sqlBool {
	if b {
		return sqlTrue
	}
	return sqlFalse
}

// Bool treats any non-zero value as true.
func (b sqlBool) Bool() bool {
	return b != sqlFalse
}

type accountModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	Active       sqlBool   `gorm:"type:integer;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (accountModel) TableName() string { return "accounts" }

type ticketModel struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Number      string     `gorm:"not null;uniqueIndex"`
	CreatorID   int64      `gorm:"not null;index"`
	AssigneeID  *int64
	Title       string     `gorm:"size:200;not null"`
	Description string     `gorm:"not null"`
	Category    string     `gorm:"not null"`
	Priority    string     `gorm:"not null"`
	Status      string     `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false;index"`
	ClosedAt    *time.Time
}

func (ticketModel) TableName() string { return "tickets" }

type messageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	TicketID   int64     `gorm:"not null;index:idx_ticket_messages_thread,priority:1"`
	AuthorID   int64     `gorm:"not null"`
	AuthorRole string    `gorm:"not null"`
	Body       string    `gorm:"not null"`
	IsInternal sqlBool   `gorm:"type:integer;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false;index:idx_ticket_messages_thread,priority:2"`

	Ticket *ticketModel `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE"`
}

func (messageModel) TableName() string { return "ticket_messages" }

type attachmentModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	TicketID   int64     `gorm:"not null;index"`
	UploaderID int64     `gorm:"not null"`
	FileName   string    `gorm:"not null"`
	Locator    string    `gorm:"not null;uniqueIndex"`
	SizeBytes  int64     `gorm:"not null"`
	MimeType   string    `gorm:"not null"`
	Checksum   string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`

	// Restrict: a ticket cannot be deleted while attachment rows still
	// reference it, and an upload to a deleted ticket fails its insert.
	Ticket *ticketModel `gorm:"foreignKey:TicketID;constraint:OnDelete:RESTRICT"`
}

func (attachmentModel) TableName() string { return "attachments" }

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&accountModel{}, &ticketModel{}, &messageModel{}, &attachmentModel{})
}

func accountFromDomain(a *domain.Account) *accountModel {
	return &accountModel{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Active:       toSQLBool(a.Active),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (m *accountModel) toDomain() *domain.Account {
	return &domain.Account{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Active:       m.Active.Bool(),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func ticketFromDomain(t *domain.Ticket) *ticketModel {
	return &ticketModel{
		ID:          t.ID,
		Number:      t.Number,
		CreatorID:   t.CreatorID,
		AssigneeID:  t.AssigneeID,
		Title:       t.Title,
		Description: t.Description,
		Category:    string(t.Category),
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

func (m *ticketModel) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:          m.ID,
		Number:      m.Number,
		CreatorID:   m.CreatorID,
		AssigneeID:  m.AssigneeID,
		Title:       m.Title,
		Description: m.Description,
		Category:    domain.TicketCategory(m.Category),
		Priority:    domain.TicketPriority(m.Priority),
		Status:      domain.TicketStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		ClosedAt:    m.ClosedAt,
	}
}

func messageFromDomain(msg *domain.TicketMessage) *messageModel {
	return &messageModel{
		ID:         msg.ID,
		TicketID:   msg.TicketID,
		AuthorID:   msg.AuthorID,
		AuthorRole: string(msg.AuthorRole),
		Body:       msg.Body,
		IsInternal: toSQLBool(msg.IsInternal),
		CreatedAt:  msg.CreatedAt,
	}
}

func (m *messageModel) toDomain() domain.TicketMessage {
	return domain.TicketMessage{
		ID:         m.ID,
		TicketID:   m.TicketID,
		AuthorID:   m.AuthorID,
		AuthorRole: domain.Role(m.AuthorRole),
		Body:       m.Body,
		IsInternal: m.IsInternal.Bool(),
		CreatedAt:  m.CreatedAt,
	}
}

func attachmentFromDomain(a *domain.Attachment) *attachmentModel {
	return &attachmentModel{
		ID:         a.ID,
		TicketID:   a.TicketID,
		UploaderID: a.UploaderID,
		FileName:   a.FileName,
		Locator:    a.Locator,
		SizeBytes:  a.SizeBytes,
		MimeType:   a.MimeType,
		Checksum:   a.Checksum,
		CreatedAt:  a.CreatedAt,
	}
}

func (m *attachmentModel) toDomain() domain.Attachment {
	return domain.Attachment{
		ID:         m.ID,
		TicketID:   m.TicketID,
		UploaderID: m.UploaderID,
		FileName:   m.FileName,
		Locator:    m.Locator,
		SizeBytes:  m.SizeBytes,
		MimeType:   m.MimeType,
		Checksum:   m.Checksum,
		CreatedAt:  m.CreatedAt,
	}
}
