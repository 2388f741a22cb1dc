package expense

import (
	"strings"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Amounts are stored as NUMERIC(12,2).
const (
	amountIntDigits = 10
	amountScale     = 2
)

type LineItemDTO struct {
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CreateExpenseDTO is the body of POST /expenses. Status is DRAFT unless
// SUBMITTED is asked for explicitly.
type CreateExpenseDTO struct {
	Title         string          `json:"title" validate:"required,max=200"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category      *string         `json:"category,omitempty" validate:"omitempty,max=100"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	DateOfExpense string          `json:"dateOfExpense" validate:"required,datetime=2006-01-02"`
	Status        string          `json:"status,omitempty" validate:"omitempty,oneof=DRAFT SUBMITTED"`
	LineItems     []LineItemDTO   `json:"lineItems,omitempty" validate:"dive"`
}

func (d *CreateExpenseDTO) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	d.Status = strings.ToUpper(strings.TrimSpace(d.Status))
	d.Category = trimOptional(d.Category)
	d.Description = trimOptional(d.Description)
	if len(d.LineItems) > 0 {
		d.Amount = SumLineItems(toLineItems(d.LineItems))
	}
}

func (d CreateExpenseDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("amount", d.Amount).Positive(internal.ErrCodeInvalidAmount).Money(amountIntDigits, amountScale, internal.ErrCodeInvalidAmount)
	if date, err := time.Parse(dateLayout, d.DateOfExpense); err == nil {
		v.Field("dateOfExpense", date).NotFuture()
	}
	return validation.Merge(validation.Struct(d), v.Validate(), validateLineItems(d.LineItems))
}

func (d CreateExpenseDTO) InitialStatus() Status {
	if d.Status == string(StatusSubmitted) {
		return StatusSubmitted
	}
	return StatusDraft
}

// UpdateExpenseDTO is the body of PATCH /expenses/{id}. Nil fields are left
// unchanged; a non-nil LineItems replaces the set and resets the amount.
type UpdateExpenseDTO struct {
	Title         *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category      *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Currency      *string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	DateOfExpense *string          `json:"dateOfExpense,omitempty" validate:"omitempty,datetime=2006-01-02"`
	LineItems     *[]LineItemDTO   `json:"lineItems,omitempty"`
}

func (d *UpdateExpenseDTO) Normalize() {
	if d.Title != nil {
		t := strings.TrimSpace(*d.Title)
		d.Title = &t
	}
	if d.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*d.Currency))
		d.Currency = &c
	}
	if d.LineItems != nil && len(*d.LineItems) > 0 {
		sum := SumLineItems(toLineItems(*d.LineItems))
		d.Amount = &sum
	}
}

func (d UpdateExpenseDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.Amount != nil {
		v.Field("amount", *d.Amount).Positive(internal.ErrCodeInvalidAmount).Money(amountIntDigits, amountScale, internal.ErrCodeInvalidAmount)
	}
	if d.DateOfExpense != nil {
		if date, err := time.Parse(dateLayout, *d.DateOfExpense); err == nil {
			v.Field("dateOfExpense", date).NotFuture()
		}
	}
	var items *internal.AppError
	if d.LineItems != nil {
		items = validateLineItems(*d.LineItems)
	}
	return validation.Merge(validation.Struct(d), v.Validate(), items)
}

// Apply copies the set fields onto e.
func (d UpdateExpenseDTO) Apply(e *Expense) {
	if d.Title != nil {
		e.Title = *d.Title
	}
	if d.Description != nil {
		e.Description = trimOptional(d.Description)
	}
	if d.Category != nil {
		e.Category = trimOptional(d.Category)
	}
	if d.Amount != nil {
		e.Amount = *d.Amount
	}
	if d.Currency != nil && *d.Currency != "" {
		e.Currency = *d.Currency
	}
	if d.DateOfExpense != nil {
		if date, err := time.Parse(dateLayout, *d.DateOfExpense); err == nil {
			e.DateOfExpense = date
		}
	}
	if d.LineItems != nil {
		e.LineItems = toLineItems(*d.LineItems)
	}
}

// ActionDTO is the body of POST /approvals/action.
type ActionDTO struct {
	ExpenseID int64  `json:"expenseId" validate:"required,gt=0"`
	Action    string `json:"action" validate:"required"`
	Comment   string `json:"comment,omitempty" validate:"max=2000"`
}

func (d ActionDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

type ActionResponse struct {
	Success bool   `json:"success"`
	Status  Status `json:"status"`
}

func validateLineItems(items []LineItemDTO) *internal.AppError {
	v := validation.NewValidator()
	for _, li := range items {
		v.Field("lineItems.amount", li.Amount).Positive(internal.ErrCodeInvalidAmount).Money(amountIntDigits, amountScale, internal.ErrCodeInvalidAmount)
	}
	return v.Validate()
}

func toLineItems(items []LineItemDTO) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, li := range items {
		item := LineItem{Description: strings.TrimSpace(li.Description), Amount: li.Amount}
		if li.Date != "" {
			if d, err := time.Parse(dateLayout, li.Date); err == nil {
				item.Date = &d
			}
		}
		out = append(out, item)
	}
	return out
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
