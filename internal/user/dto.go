package user

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/core/common/validation"
)

// OptionalID tells an absent JSON field apart from an explicit null.
type OptionalID struct {
	Set   bool
	Value *int64
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

type CreateUserDTO struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8"`
	RoleID    int64  `json:"roleId" validate:"required,gt=0"`
	ManagerID *int64 `json:"managerId,omitempty" validate:"omitempty,gt=0"`
}

func (d *CreateUserDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = normalizeEmail(d.Email)
}

func (d CreateUserDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

// UpdateUserDTO is the body of PUT /admin/users/{id}. Absent fields are
// left alone; "managerId": null makes the user top-level.
type UpdateUserDTO struct {
	Name      *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email     *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	RoleID    *int64     `json:"roleId,omitempty" validate:"omitempty,gt=0"`
	ManagerID OptionalID `json:"managerId"`
	IsActive  *bool      `json:"isActive,omitempty"`
}

func (d *UpdateUserDTO) Normalize() {
	if d.Name != nil {
		n := strings.TrimSpace(*d.Name)
		d.Name = &n
	}
	if d.Email != nil {
		e := normalizeEmail(*d.Email)
		d.Email = &e
	}
}

func (d UpdateUserDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.ManagerID.Value != nil {
		v.Field("managerId", *d.ManagerID.Value).Positive(internal.ErrCodeValidationFailed)
	}
	return validation.Merge(validation.Struct(d), v.Validate())
}

type ResetPasswordDTO struct {
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

func (d ResetPasswordDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
