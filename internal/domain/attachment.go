package domain

import "time"

// Attachment binds an uploaded file to a ticket. Bytes live in the blob store under Locator.
type Attachment struct {
	ID         int64
	TicketID   int64
	UploaderID int64
	FileName   string
	Locator    string
	SizeBytes  int64
	MimeType   string
	Checksum   string
	CreatedAt  time.Time
}
