package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-reporting/internal"
	roleDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-reporting/internal/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

type roleUsage struct {
	RoleID int64
	Users  int64
}

func (r *RoleRepository) List(ctx context.Context) ([]*role.Role, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var rows []roleDatamodel.Role
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	var usage []roleUsage
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Select("role_id, COUNT(*) AS users").
		Group("role_id").
		Scan(&usage).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(usage))
	for _, u := range usage {
		counts[u.RoleID] = u.Users
	}

	roles := make([]*role.Role, len(rows))
	for i := range rows {
		roles[i] = role.FromDataModel(&rows[i])
		roles[i].UserCount = counts[rows[i].ID]
	}
	return roles, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*role.Role, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*role.Role, error) {
	return r.first(ctx, "LOWER(name) = LOWER(?)", name)
}

func (r *RoleRepository) first(ctx context.Context, where string, arg interface{}) (*role.Role, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var m roleDatamodel.Role
	if err := r.db.WithContext(ctx).Where(where, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return role.FromDataModel(&m), nil
}

func (r *RoleRepository) Create(ctx context.Context, rl *role.Role) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	m := role.ToDataModel(rl)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	rl.ID = m.ID
	return nil
}

func (r *RoleRepository) Update(ctx context.Context, rl *role.Role) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&roleDatamodel.Role{}).
		Where("id = ?", rl.ID).
		Updates(map[string]interface{}{
			"name":        rl.Name,
			"description": rl.Description,
			"can_submit":  rl.CanSubmit,
			"can_approve": rl.CanApprove,
			"can_process": rl.CanProcess,
			"is_admin":    rl.IsAdmin,
			"updated_at":  rl.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&userDatamodel.User{}).Where("role_id = ?", id).Count(&users).Error; err != nil {
			return err
		}
		if users > 0 {
			return internal.ErrRoleInUse
		}

		res := tx.Delete(&roleDatamodel.Role{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}
		return nil
	})
}
