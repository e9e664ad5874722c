package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes exposed to clients.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA_TYPE"
	CodeInternal         = "INTERNAL_ERROR"
)

const pgUniqueViolation = "23505"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewPayloadTooLarge reports an attachment above the configured ceiling.
func NewPayloadTooLarge(limit int64) error {
	return NewDomainError(CodePayloadTooLarge, "attachment exceeds size limit", http.StatusRequestEntityTooLarge,
		map[string]any{"max_bytes": limit})
}

// NewUnsupportedType reports a MIME type outside the allow-list.
func NewUnsupportedType(mimeType string) error {
	return NewDomainError(CodeUnsupportedMedia, "attachment type not allowed", http.StatusUnsupportedMediaType,
		map[string]any{"mime_type": mimeType})
}

// NewInternalError wraps an infrastructure failure. The cause is kept for logging only.
func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

func IsValidation(err error) bool      { return hasCode(err, CodeValidation) }
func IsNotFound(err error) bool        { return hasCode(err, CodeNotFound) }
func IsForbidden(err error) bool       { return hasCode(err, CodeForbidden) }
func IsUnauthorized(err error) bool    { return hasCode(err, CodeUnauthorized) }
func IsConflict(err error) bool        { return hasCode(err, CodeConflict) }
func IsPayloadTooLarge(err error) bool { return hasCode(err, CodePayloadTooLarge) }
func IsUnsupportedType(err error) bool { return hasCode(err, CodeUnsupportedMedia) }

// IsInternal reports whether err is an infrastructure failure rather than a domain error kind.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	return ToDomainError(err).Code == CodeInternal
}

// IsDuplicateError checks whether a storage error is a unique-key violation.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
