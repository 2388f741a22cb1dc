package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-reporting/internal"
	expenseDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/expense"
	roleDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-reporting/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type reportCount struct {
	UserID  int64
	Reports int64
}

func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var rows []userDatamodel.User
	err := r.db.WithContext(ctx).
		Preload("Role").
		Preload("Manager").
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	var counts []reportCount
	err = r.db.WithContext(ctx).Model(&expenseDatamodel.ExpenseReport{}).
		Select("user_id, COUNT(*) AS reports").
		Group("user_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byUser := make(map[int64]int64, len(counts))
	for _, c := range counts {
		byUser[c.UserID] = c.Reports
	}

	users := make([]*user.User, len(rows))
	for i := range rows {
		users[i] = user.FromDataModel(&rows[i])
		users[i].ReportCount = byUser[rows[i].ID]
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.first(ctx, "users.id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(ctx, "LOWER(users.email) = LOWER(?)", email)
}

func (r *UserRepository) first(ctx context.Context, where string, arg interface{}) (*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var m userDatamodel.User
	err := r.db.WithContext(ctx).
		Preload("Role").
		Preload("Manager").
		Where(where, arg).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&m), nil
}

func (r *UserRepository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&roleDatamodel.Role{}).Where("id = ?", roleID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	m := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Omit("Role", "Manager").Create(m).Error; err != nil {
		return err
	}
	u.ID = m.ID
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"name":       u.Name,
			"email":      u.Email,
			"role_id":    u.RoleID,
			"manager_id": u.ManagerID,
			"is_active":  u.IsActive,
			"updated_at": u.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
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

// Delete removes a user without history. Direct reports become top-level.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reports, steps int64
		if err := tx.Model(&expenseDatamodel.ExpenseReport{}).Where("user_id = ?", id).Count(&reports).Error; err != nil {
			return err
		}
		if err := tx.Model(&expenseDatamodel.ApprovalStep{}).Where("approved_by_user_id = ?", id).Count(&steps).Error; err != nil {
			return err
		}
		if reports > 0 || steps > 0 {
			return internal.ErrUserHasHistory
		}

		if err := tx.Model(&userDatamodel.User{}).Where("manager_id = ?", id).Update("manager_id", nil).Error; err != nil {
			return err
		}

		res := tx.Delete(&userDatamodel.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrUserNotFound
		}
		return nil
	})
}

func (r *UserRepository) ListManagers(ctx context.Context) ([]user.Manager, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	managers := []user.Manager{}
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Select("users.id, users.name, users.email").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.can_approve = ?", true).
		Order("users.name ASC").
		Scan(&managers).Error
	if err != nil {
		return nil, err
	}
	return managers, nil
}
