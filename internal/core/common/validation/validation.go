package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	errors "github.com/frahmantamala/expense-reporting/internal"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{FieldName: name, Value: value}
	v.fields = append(v.fields, fv)
	return fv
}

func (fv *FieldValidator) fail(message string, code errors.ErrorCode) *errors.AppError {
	return errors.NewValidationFieldError(fv.FieldName, message, code)
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = strings.TrimSpace(v) == ""
		case *string:
			missing = v == nil || strings.TrimSpace(*v) == ""
		case int64:
			missing = v == 0
		case time.Time:
			missing = v.IsZero()
		case decimal.Decimal:
			missing = v.IsZero()
		case nil:
			missing = true
		}
		if missing {
			return fv.fail(fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

// Positive rejects zero and negative decimal amounts and ids.
func (fv *FieldValidator) Positive(code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		positive := true
		switch v := value.(type) {
		case decimal.Decimal:
			positive = v.IsPositive()
		case int64:
			positive = v > 0
		}
		if !positive {
			return fv.fail(fmt.Sprintf("%s must be greater than 0", fv.FieldName), code)
		}
		return nil
	})
	return fv
}

// Money rejects decimals with more than scale fractional digits or more
// than intDigits integer digits, matching a NUMERIC(intDigits+scale, scale)
// column.
func (fv *FieldValidator) Money(intDigits, scale int32, code errors.ErrorCode) *FieldValidator {
	limit := decimal.New(1, intDigits)
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		v, ok := value.(decimal.Decimal)
		if !ok {
			return nil
		}
		if !v.Equal(v.Round(scale)) {
			return fv.fail(fmt.Sprintf("%s must have at most %d decimal places", fv.FieldName, scale), code)
		}
		if v.Abs().GreaterThanOrEqual(limit) {
			return fv.fail(fmt.Sprintf("%s must be less than %s", fv.FieldName, limit.String()), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinLength(min int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && len(v) < min {
			return fv.fail(fmt.Sprintf("%s must be at least %d characters", fv.FieldName, min), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && len(v) > max {
			return fv.fail(fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) NotFuture() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(time.Time); ok && v.After(time.Now()) {
			return fv.fail(fmt.Sprintf("%s cannot be in the future", fv.FieldName), errors.ErrCodeInvalidDate)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(fn ValidatorFunc) *FieldValidator {
	fv.Validators = append(fv.Validators, fn)
	return fv
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validate := range field.Validators {
			appErr := validate(field.Value)
			if appErr == nil {
				continue
			}
			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
			} else {
				validationErrors = append(validationErrors, errors.ValidationError{
					Field:   field.FieldName,
					Message: appErr.Message,
					Code:    string(appErr.Code),
				})
			}
			// first failure per field is enough
			break
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

// ----------------- STRUCT TAGS -----------------

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so clients see the field they sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct runs the `validate` struct tags and converts failures into a
// VALIDATION_FAILED AppError with one entry per field.
func Struct(s interface{}) *errors.AppError {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}

	details := make([]errors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, errors.ValidationError{
			Field:   fe.Field(),
			Message: describe(fe),
			Code:    string(errors.ErrCodeValidationFailed),
		})
	}

	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: details})
}

// Merge combines the details of several validation failures into one error.
func Merge(errs ...*errors.AppError) *errors.AppError {
	var details []errors.ValidationError
	for _, e := range errs {
		if e == nil {
			continue
		}
		if d, ok := e.Details.(errors.ValidationErrors); ok {
			details = append(details, d.Errors...)
			continue
		}
		details = append(details, errors.ValidationError{Message: e.Message, Code: string(e.Code)})
	}
	if len(details) == 0 {
		return nil
	}
	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: details})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
