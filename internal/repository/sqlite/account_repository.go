package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a gorm-backed repository.AccountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	model := accountFromDomain(account)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translate(err)
	}
	account.ID = model.ID
	return nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	res := r.db.WithContext(ctx).Model(&accountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"name":          account.Name,
			"email":         account.Email,
			"password_hash": account.PasswordHash,
			"role":          string(account.Role),
			"active":        toSQLBool(account.Active),
			"updated_at":    account.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var model accountModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		return nil, translate(err)
	}
	return model.toDomain(), nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var model accountModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.toDomain(), nil
}
