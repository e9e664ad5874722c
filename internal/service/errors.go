package service

import (
	"errors"

	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// notFoundOr turns repository.ErrNotFound into a NOT_FOUND domain error and
// passes every other error through.
func notFoundOr(err error, resource string, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func validationField(field, message string) error {
	return errorutil.NewValidationError(message, map[string]any{"field": field})
}
