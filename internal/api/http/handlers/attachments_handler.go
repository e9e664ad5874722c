package handlers

import (
	"mime"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// ChecksumHeader carries the BLAKE3 digest of a downloaded attachment.
const ChecksumHeader = "X-Checksum-Blake3"

// AttachmentsHandler exposes the attachment ledger.
type AttachmentsHandler struct {
	service *service.CollaborationService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(svc *service.CollaborationService) *AttachmentsHandler {
	return &AttachmentsHandler{service: svc}
}

// List GET /tickets/:id/attachments.
func (h *AttachmentsHandler) List(c *fiber.Ctx) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.service.ListAttachments(c.UserContext(), identity, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentList(list)})
}

// Upload POST /tickets/:id/attachments, multipart field "file".
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart field \"file\" is required", map[string]any{"field": "file"})
	}
	file, err := fh.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	attachment, err := h.service.UploadAttachment(c.UserContext(), identity, ticketID, service.UploadInput{
		FileName: fh.Filename,
		MimeType: fh.Header.Get(fiber.HeaderContentType),
		Size:     fh.Size,
		Content:  file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// Download GET /tickets/:id/attachments/:attachmentId.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	attachmentID, err := pathID(c, "attachmentId")
	if err != nil {
		return err
	}
	attachment, data, err := h.service.DownloadAttachment(c.UserContext(), identity, ticketID, attachmentID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, attachment.MimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": attachment.FileName}))
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	if attachment.Checksum != "" {
		c.Set(ChecksumHeader, attachment.Checksum)
	}
	return c.Send(data)
}

// Delete DELETE /tickets/:id/attachments/:attachmentId.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	attachmentID, err := pathID(c, "attachmentId")
	if err != nil {
		return err
	}
	if err := h.service.DeleteAttachment(c.UserContext(), identity, ticketID, attachmentID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
