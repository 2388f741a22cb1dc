package expense

import (
	"time"

	userDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/user"
	"github.com/shopspring/decimal"
)

type ExpenseReport struct {
	ID            int64               `gorm:"primaryKey"`
	UserID        int64               `gorm:"column:user_id;not null;index"`
	Owner         *userDatamodel.User `gorm:"foreignKey:UserID"`
	Title         string              `gorm:"column:title;not null"`
	Description   *string             `gorm:"column:description"`
	Category      *string             `gorm:"column:category"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;not null"`
	DateOfExpense time.Time           `gorm:"column:date_of_expense;type:date;not null"`
	CurrentStatus string              `gorm:"column:current_status;not null;index"`
	LineItems     []LineItem          `gorm:"foreignKey:ExpenseReportID"`
	Attachments   []Attachment        `gorm:"foreignKey:ExpenseReportID"`
	ApprovalSteps []ApprovalStep      `gorm:"foreignKey:ExpenseReportID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (ExpenseReport) TableName() string {
	return "expense_reports"
}

type LineItem struct {
	ID              int64           `gorm:"primaryKey"`
	ExpenseReportID int64           `gorm:"column:expense_report_id;not null;index"`
	Description     string          `gorm:"column:description;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Date            *time.Time      `gorm:"column:date;type:date"`
}

func (LineItem) TableName() string {
	return "line_items"
}

type Attachment struct {
	ID              int64     `gorm:"primaryKey"`
	ExpenseReportID int64     `gorm:"column:expense_report_id;not null;index"`
	FileName        string    `gorm:"column:file_name;not null"`
	FileURL         string    `gorm:"column:file_url;not null"`
	MimeType        string    `gorm:"column:mime_type;not null"`
	Size            int64     `gorm:"column:size;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Attachment) TableName() string {
	return "attachments"
}

// ApprovalStep rows are insert-only.
type ApprovalStep struct {
	ID               int64               `gorm:"primaryKey"`
	ExpenseReportID  int64               `gorm:"column:expense_report_id;not null;index"`
	StepType         string              `gorm:"column:step_type;not null"`
	Status           string              `gorm:"column:status;not null"`
	ApprovedByUserID *int64              `gorm:"column:approved_by_user_id;index"`
	ApprovedBy       *userDatamodel.User `gorm:"foreignKey:ApprovedByUserID"`
	Comment          *string             `gorm:"column:comment"`
	ResolvedAt       *time.Time          `gorm:"column:resolved_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (ApprovalStep) TableName() string {
	return "approval_steps"
}
