package expense

import (
	"time"

	expenseDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/expense"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

type Expense struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"userId"`
	Owner         *Owner          `json:"owner,omitempty"`
	Title         string          `json:"title"`
	Description   *string         `json:"description,omitempty"`
	Category      *string         `json:"category,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DateOfExpense time.Time       `json:"dateOfExpense"`
	CurrentStatus Status          `json:"currentStatus"`
	LineItems     []LineItem      `json:"lineItems,omitempty"`
	Attachments   []Attachment    `json:"attachments,omitempty"`
	ApprovalSteps []ApprovalStep  `json:"approvalSteps,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Owner is the submitting user as shown next to a report.
type Owner struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ManagerID *int64 `json:"managerId,omitempty"`
}

type LineItem struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        *time.Time      `json:"date,omitempty"`
}

type Attachment struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"fileName"`
	FileURL   string    `json:"fileUrl"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type ApprovalStep struct {
	ID               int64      `json:"id"`
	StepType         StepType   `json:"stepType"`
	Status           string     `json:"status"`
	ApprovedByUserID *int64     `json:"approvedByUserId,omitempty"`
	ApprovedByName   string     `json:"approvedByName,omitempty"`
	Comment          *string    `json:"comment,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// OwnerManagerID is nil for top-level owners and for reports loaded
// without their owner.
func (e *Expense) OwnerManagerID() *int64 {
	if e.Owner == nil {
		return nil
	}
	return e.Owner.ManagerID
}

// LastStepType is the type of the newest step, or empty without history.
func (e *Expense) LastStepType() StepType {
	var last *ApprovalStep
	for i := range e.ApprovalSteps {
		s := &e.ApprovalSteps[i]
		if last == nil || s.CreatedAt.After(last.CreatedAt) ||
			(s.CreatedAt.Equal(last.CreatedAt) && s.ID > last.ID) {
			last = s
		}
	}
	if last == nil {
		return ""
	}
	return last.StepType
}

// SumLineItems totals line item amounts.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Amount)
	}
	return total
}

func ToDataModel(e *Expense) *expenseDatamodel.ExpenseReport {
	m := &expenseDatamodel.ExpenseReport{
		ID:            e.ID,
		UserID:        e.UserID,
		Title:         e.Title,
		Description:   e.Description,
		Category:      e.Category,
		Amount:        e.Amount,
		Currency:      e.Currency,
		DateOfExpense: e.DateOfExpense,
		CurrentStatus: string(e.CurrentStatus),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	for _, li := range e.LineItems {
		m.LineItems = append(m.LineItems, expenseDatamodel.LineItem{
			ID:              li.ID,
			ExpenseReportID: e.ID,
			Description:     li.Description,
			Amount:          li.Amount,
			Date:            li.Date,
		})
	}
	return m
}

func FromDataModel(m *expenseDatamodel.ExpenseReport) *Expense {
	e := &Expense{
		ID:            m.ID,
		UserID:        m.UserID,
		Title:         m.Title,
		Description:   m.Description,
		Category:      m.Category,
		Amount:        m.Amount,
		Currency:      m.Currency,
		DateOfExpense: m.DateOfExpense,
		CurrentStatus: Status(m.CurrentStatus),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Owner != nil {
		e.Owner = &Owner{
			ID:        m.Owner.ID,
			Name:      m.Owner.Name,
			Email:     m.Owner.Email,
			ManagerID: m.Owner.ManagerID,
		}
	}
	for _, li := range m.LineItems {
		e.LineItems = append(e.LineItems, LineItem{
			ID:          li.ID,
			Description: li.Description,
			Amount:      li.Amount,
			Date:        li.Date,
		})
	}
	for _, a := range m.Attachments {
		e.Attachments = append(e.Attachments, Attachment{
			ID:        a.ID,
			FileName:  a.FileName,
			FileURL:   a.FileURL,
			MimeType:  a.MimeType,
			Size:      a.Size,
			CreatedAt: a.CreatedAt,
		})
	}
	for _, s := range m.ApprovalSteps {
		step := ApprovalStep{
			ID:               s.ID,
			StepType:         StepType(s.StepType),
			Status:           s.Status,
			ApprovedByUserID: s.ApprovedByUserID,
			Comment:          s.Comment,
			ResolvedAt:       s.ResolvedAt,
			CreatedAt:        s.CreatedAt,
		}
		if s.ApprovedBy != nil {
			step.ApprovedByName = s.ApprovedBy.Name
		}
		e.ApprovalSteps = append(e.ApprovalSteps, step)
	}
	return e
}

func FromDataModelSlice(rows []*expenseDatamodel.ExpenseReport) []*Expense {
	result := make([]*Expense, len(rows))
	for i, r := range rows {
		result[i] = FromDataModel(r)
	}
	return result
}

// StepDataModel builds the row appended alongside a transition.
func StepDataModel(expenseID int64, s *StepRecord, at time.Time) *expenseDatamodel.ApprovalStep {
	actor := s.ActorID
	comment := s.Comment
	resolved := at
	return &expenseDatamodel.ApprovalStep{
		ExpenseReportID:  expenseID,
		StepType:         string(s.StepType),
		Status:           s.Status,
		ApprovedByUserID: &actor,
		Comment:          &comment,
		ResolvedAt:       &resolved,
		CreatedAt:        at,
	}
}
