package role

import (
	"time"

	roleDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/role"
)

// Role is a named bundle of capability flags assigned to users.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CanSubmit   bool      `json:"canSubmit"`
	CanApprove  bool      `json:"canApprove"`
	CanProcess  bool      `json:"canProcess"`
	IsAdmin     bool      `json:"isAdmin"`
	UserCount   int64     `json:"userCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func ToDataModel(r *Role) *roleDatamodel.Role {
	return &roleDatamodel.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CanSubmit:   r.CanSubmit,
		CanApprove:  r.CanApprove,
		CanProcess:  r.CanProcess,
		IsAdmin:     r.IsAdmin,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func FromDataModel(r *roleDatamodel.Role) *Role {
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CanSubmit:   r.CanSubmit,
		CanApprove:  r.CanApprove,
		CanProcess:  r.CanProcess,
		IsAdmin:     r.IsAdmin,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
