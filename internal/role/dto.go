package role

import (
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/core/common/validation"
)

// RoleDTO is the body of POST and PUT /admin/roles. PUT replaces every field.
type RoleDTO struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	CanSubmit   bool    `json:"canSubmit"`
	CanApprove  bool    `json:"canApprove"`
	CanProcess  bool    `json:"canProcess"`
	IsAdmin     bool    `json:"isAdmin"`
}

func (d *RoleDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	if d.Description != nil {
		desc := strings.TrimSpace(*d.Description)
		if desc == "" {
			d.Description = nil
		} else {
			d.Description = &desc
		}
	}
}

func (d RoleDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

func (d RoleDTO) apply(r *Role) {
	r.Name = d.Name
	r.Description = d.Description
	r.CanSubmit = d.CanSubmit
	r.CanApprove = d.CanApprove
	r.CanProcess = d.CanProcess
	r.IsAdmin = d.IsAdmin
}
