package auth

import (
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/core/common/validation"
)

const MinPasswordLength = 8

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (d *LoginDTO) Normalize() {
	d.Email = strings.TrimSpace(d.Email)
}

func (d LoginDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func (d ChangePasswordDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

// SessionResponse is what login, me and change-password return.
type SessionResponse struct {
	User      *Session `json:"user"`
	ExpiresAt string   `json:"expiresAt,omitempty"`
}
