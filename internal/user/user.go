package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/user"
)

type User struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	RoleID             int64     `json:"roleId"`
	RoleName           string    `json:"roleName,omitempty"`
	ManagerID          *int64    `json:"managerId"`
	ManagerName        string    `json:"managerName,omitempty"`
	IsActive           bool      `json:"isActive"`
	MustChangePassword bool      `json:"mustChangePassword"`
	ReportCount        int64     `json:"reportCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Manager is the short form used to populate manager pickers.
type Manager struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		PasswordHash:       u.PasswordHash,
		RoleID:             u.RoleID,
		ManagerID:          u.ManagerID,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// FromDataModel maps a user row; Role and Manager are read when preloaded.
func FromDataModel(u *userDatamodel.User) *User {
	out := &User{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		PasswordHash:       u.PasswordHash,
		RoleID:             u.RoleID,
		ManagerID:          u.ManagerID,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
	if u.Role != nil {
		out.RoleName = u.Role.Name
	}
	if u.Manager != nil {
		out.ManagerName = u.Manager.Name
	}
	return out
}
