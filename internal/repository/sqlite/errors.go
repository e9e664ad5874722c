package sqlite

import (
	"errors"

	"gorm.io/gorm"

	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errorutil.IsDuplicateError(err):
		return errors.Join(repository.ErrDuplicate, err)
	}
	return err
}
