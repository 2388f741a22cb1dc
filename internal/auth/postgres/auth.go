package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	userDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.findAccount(ctx, "email = ?", email)
}

func (r *Repository) FindAccountByID(ctx context.Context, id int64) (*auth.Account, error) {
	return r.findAccount(ctx, "id = ?", id)
}

func (r *Repository) findAccount(ctx context.Context, where string, arg interface{}) (*auth.Account, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var u userDatamodel.User
	err := r.db.WithContext(ctx).Preload("Role").Where(where, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}

	account := &auth.Account{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		PasswordHash:       u.PasswordHash,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		RoleID:             u.RoleID,
	}
	if u.Role != nil {
		account.RoleName = u.Role.Name
		account.Capabilities = auth.Capabilities{
			CanSubmit:  u.Role.CanSubmit,
			CanApprove: u.Role.CanApprove,
			CanProcess: u.Role.CanProcess,
			IsAdmin:    u.Role.IsAdmin,
		}
	}
	return account, nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string, mustChange bool) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password_hash":        passwordHash,
			"must_change_password": mustChange,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}
