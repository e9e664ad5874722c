package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/blob"
	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AttachmentLedger binds uploaded files to tickets. Metadata goes to the
// record store, bytes to the blob store.
type AttachmentLedger struct {
	attachments repository.AttachmentRepository
	blobs       blob.Store
	clock       clock.Clock
	logger      *zap.Logger
	maxBytes    int64
	allowed     map[string]struct{}
}

// LedgerDependencies bundles what the ledger needs.
type LedgerDependencies struct {
	AttachmentRepo repository.AttachmentRepository
	Blobs          blob.Store
	Clock          clock.Clock
	Logger         *zap.Logger
	MaxBytes       int64
	AllowedTypes   []string
}

// UploadInput is one file to attach. Size is the declared size and is
// checked before Content is read.
type UploadInput struct {
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// NewAttachmentLedger constructs the ledger.
func NewAttachmentLedger(deps LedgerDependencies) *AttachmentLedger {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(deps.AllowedTypes))
	for _, t := range deps.AllowedTypes {
		if norm, err := normalizeMimeType(t); err == nil {
			allowed[norm] = struct{}{}
		}
	}
	return &AttachmentLedger{
		attachments: deps.AttachmentRepo,
		blobs:       deps.Blobs,
		clock:       deps.Clock,
		logger:      deps.Logger,
		maxBytes:    deps.MaxBytes,
		allowed:     allowed,
	}
}

// MaxBytes is the configured size ceiling.
func (l *AttachmentLedger) MaxBytes() int64 { return l.maxBytes }

// Upload validates the file, writes the bytes and records the metadata.
// Nothing is written when validation fails. If the metadata insert fails
// the blob is removed again.
func (l *AttachmentLedger) Upload(ctx context.Context, ticketID, uploaderID int64, in UploadInput) (*domain.Attachment, error) {
	if in.Size < 0 {
		return nil, validationField("size", "size must not be negative")
	}
	if in.Size > l.maxBytes {
		return nil, errorutil.NewPayloadTooLarge(l.maxBytes)
	}
	mimeType, err := normalizeMimeType(in.MimeType)
	if err != nil {
		return nil, errorutil.NewUnsupportedType(strings.TrimSpace(in.MimeType))
	}
	if _, ok := l.allowed[mimeType]; !ok {
		return nil, errorutil.NewUnsupportedType(mimeType)
	}
	fileName := cleanFileName(in.FileName)
	if fileName == "" {
		return nil, validationField("file_name", "file name is required")
	}
	if in.Content == nil {
		return nil, validationField("file", "file content is required")
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, errorutil.NewPayloadTooLarge(l.maxBytes)
	}
	if int64(len(data)) != in.Size {
		return nil, errorutil.NewValidationError("declared size does not match content",
			map[string]any{"declared": in.Size, "actual": len(data)})
	}

	locator, err := l.blobs.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("store attachment bytes: %w", err)
	}

	attachment := &domain.Attachment{
		TicketID:   ticketID,
		UploaderID: uploaderID,
		FileName:   fileName,
		Locator:    locator,
		SizeBytes:  int64(len(data)),
		MimeType:   mimeType,
		Checksum:   checksum(data),
		CreatedAt:  l.clock.Now(),
	}
	if err := l.attachments.Create(ctx, attachment); err != nil {
		if delErr := l.blobs.Delete(ctx, locator); delErr != nil {
			l.logger.Error("blob left behind after failed metadata insert",
				zap.Int64("ticket_id", ticketID),
				zap.Error(delErr))
			l.logger.Debug("orphaned blob", zap.String("locator", locator))
		}
		return nil, fmt.Errorf("record attachment: %w", err)
	}
	return attachment, nil
}

// List returns every attachment on the ticket in upload order.
func (l *AttachmentLedger) List(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	return l.attachments.ListByTicket(ctx, ticketID)
}

// Get loads attachment metadata.
func (l *AttachmentLedger) Get(ctx context.Context, id int64) (*domain.Attachment, error) {
	a, err := l.attachments.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "attachment", id)
	}
	return a, nil
}

// Download returns metadata and bytes. A locator the blob store cannot
// resolve is reported the same way as missing metadata.
func (l *AttachmentLedger) Download(ctx context.Context, id int64) (*domain.Attachment, []byte, error) {
	a, err := l.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := l.blobs.Get(ctx, a.Locator)
	if errors.Is(err, blob.ErrNotFound) {
		l.logger.Warn("attachment bytes missing", zap.Int64("attachment_id", id))
		return nil, nil, errorutil.NewNotFound("attachment", map[string]any{"id": id})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load attachment bytes: %w", err)
	}
	if a.Checksum != "" && checksum(data) != a.Checksum {
		return nil, nil, fmt.Errorf("attachment %d failed integrity check", id)
	}
	return a, data, nil
}

// Delete removes the blob and then the metadata. If the blob cannot be
// removed the metadata stays and the error is returned. A blob that is
// already gone counts as removed. Reports false if no such attachment.
func (l *AttachmentLedger) Delete(ctx context.Context, id int64) (bool, error) {
	a, err := l.attachments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := l.blobs.Delete(ctx, a.Locator); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return false, fmt.Errorf("delete attachment bytes: %w", err)
	}

	err = l.attachments.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete attachment record: %w", err)
	}
	return true, nil
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// normalizeMimeType lower-cases the media type and drops parameters.
func normalizeMimeType(raw string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return mediaType, nil
}

func cleanFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
