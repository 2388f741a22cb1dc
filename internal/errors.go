package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized    ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden       ErrorType = "FORBIDDEN"
	ErrorTypeConflict        ErrorType = "CONFLICT"
	ErrorTypeTooManyRequests ErrorType = "TOO_MANY_REQUESTS"
	ErrorTypeInternal        ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidAction    ErrorCode = "INVALID_ACTION"
	ErrCodeCommentRequired  ErrorCode = "COMMENT_REQUIRED"

	ErrCodeExpenseNotFound    ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeStaleStatus        ErrorCode = "STALE_STATUS"
	ErrCodeCannotModify       ErrorCode = "CANNOT_MODIFY_EXPENSE"
	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"

	ErrCodeUnauthenticated        ErrorCode = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials     ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive           ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired           ErrorCode = "TOKEN_EXPIRED"
	ErrCodePasswordChangeRequired ErrorCode = "PASSWORD_CHANGE_REQUIRED"
	ErrCodeRateLimited            ErrorCode = "RATE_LIMITED"

	ErrCodeUserNotFound   ErrorCode = "USER_NOT_FOUND"
	ErrCodeEmailTaken     ErrorCode = "EMAIL_TAKEN"
	ErrCodeUserHasHistory ErrorCode = "USER_HAS_HISTORY"
	ErrCodeSelfDelete     ErrorCode = "SELF_DELETE"

	ErrCodeRoleNotFound  ErrorCode = "ROLE_NOT_FOUND"
	ErrCodeRoleInUse     ErrorCode = "ROLE_IN_USE"
	ErrCodeRoleNameTaken ErrorCode = "ROLE_NAME_TAKEN"

	ErrCodeAttachmentTooLarge   ErrorCode = "ATTACHMENT_TOO_LARGE"
	ErrCodeAttachmentType       ErrorCode = "ATTACHMENT_TYPE_NOT_ALLOWED"
	ErrCodeAttachmentSignature  ErrorCode = "ATTACHMENT_SIGNATURE_MISMATCH"
	ErrCodeAttachmentNotFound   ErrorCode = "ATTACHMENT_NOT_FOUND"
	ErrCodeAttachmentMissingKey ErrorCode = "ATTACHMENT_MISSING"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
		messages := make([]string, len(validationErrors.Errors))
		for i, err := range validationErrors.Errors {
			messages[i] = err.Message
		}
		return strings.Join(messages, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel errors compare with errors.Is
// even after WithCause/WithDetails copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy; the package level sentinels must stay untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewTooManyRequestsError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTooManyRequests,
		Code:       ErrCodeRateLimited,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var commentRequired = ValidationErrors{Errors: []ValidationError{
	{Field: "comment", Message: "comment is required for this action", Code: string(ErrCodeCommentRequired)},
}}

var (
	ErrExpenseNotFound    = NewNotFoundError("Expense not found", ErrCodeExpenseNotFound)
	ErrUnauthorizedAccess = NewForbiddenError("Access denied", ErrCodeUnauthorizedAccess)
	ErrInvalidTransition  = NewValidationError("Invalid action for the current status", ErrCodeInvalidTransition)
	ErrStaleStatus        = NewConflictError("Expense status changed by another request", ErrCodeStaleStatus)
	ErrCannotModify       = NewValidationError("Only draft expenses can be modified", ErrCodeCannotModify)
	ErrCommentRequired    = NewValidationError("Comment is required for this action", ErrCodeCommentRequired).WithDetails(commentRequired)

	ErrUnauthenticated        = NewUnauthorizedError("Unauthorized", ErrCodeUnauthenticated)
	ErrInvalidCredentials     = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive           = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken           = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired           = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrPasswordChangeRequired = NewForbiddenError("Password change required", ErrCodePasswordChangeRequired)

	ErrUserNotFound   = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrEmailTaken     = NewConflictError("Email already exists", ErrCodeEmailTaken)
	ErrUserHasHistory = NewConflictError("User has expense history and cannot be deleted", ErrCodeUserHasHistory)
	ErrSelfDelete     = NewValidationError("Cannot delete your own account", ErrCodeSelfDelete)

	ErrRoleNotFound  = NewNotFoundError("Role not found", ErrCodeRoleNotFound)
	ErrRoleInUse     = NewConflictError("Role is assigned to users and cannot be deleted", ErrCodeRoleInUse)
	ErrRoleNameTaken = NewConflictError("Role name already exists", ErrCodeRoleNameTaken)

	ErrAttachmentNotFound = NewNotFoundError("Attachment not found", ErrCodeAttachmentNotFound)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
