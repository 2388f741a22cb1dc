package role

import "time"

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description *string   `gorm:"column:description"`
	CanSubmit   bool      `gorm:"column:can_submit;not null"`
	CanApprove  bool      `gorm:"column:can_approve;not null"`
	CanProcess  bool      `gorm:"column:can_process;not null"`
	IsAdmin     bool      `gorm:"column:is_admin;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string {
	return "roles"
}
