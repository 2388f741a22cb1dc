package user

import (
	"time"

	roleDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/role"
)

type User struct {
	ID                 int64               `gorm:"primaryKey"`
	Email              string              `gorm:"column:email;uniqueIndex;not null"`
	Name               string              `gorm:"column:name;not null"`
	PasswordHash       string              `gorm:"column:password_hash;not null"`
	RoleID             int64               `gorm:"column:role_id;not null;index"`
	Role               *roleDatamodel.Role `gorm:"foreignKey:RoleID"`
	ManagerID          *int64              `gorm:"column:manager_id;index"`
	Manager            *User               `gorm:"foreignKey:ManagerID"`
	IsActive           bool                `gorm:"column:is_active;not null"`
	MustChangePassword bool                `gorm:"column:must_change_password;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
