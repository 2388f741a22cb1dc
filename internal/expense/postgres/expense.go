package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	expenseDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-reporting/internal/expense"
	"gorm.io/gorm"
)

// ExpenseRepository implements expense.RepositoryAPI using GORM
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	m := expense.ToDataModel(e)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
	for i := range e.LineItems {
		if i < len(m.LineItems) {
			e.LineItems[i].ID = m.LineItems[i].ID
		}
	}
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var m expenseDatamodel.ExpenseReport
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("ApprovalSteps", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("ApprovalSteps.ApprovedBy").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return expense.FromDataModel(&m), nil
}

func (r *ExpenseRepository) List(ctx context.Context, scope expense.Scope) ([]*expense.Expense, error) {
	if scope.None {
		return []*expense.Expense{}, nil
	}

	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	q := r.db.WithContext(ctx).
		Model(&expenseDatamodel.ExpenseReport{}).
		Select("expense_reports.*").
		Joins("JOIN users ON users.id = expense_reports.user_id").
		Preload("Owner").
		Preload("Attachments")
	q = applyScope(q, scope)

	var rows []*expenseDatamodel.ExpenseReport
	if err := q.Order("expense_reports.created_at DESC, expense_reports.id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return expense.FromDataModelSlice(rows), nil
}

// applyScope turns a visibility scope into SQL. Queue clauses need the
// owner's manager_id, hence the users join.
func applyScope(q *gorm.DB, scope expense.Scope) *gorm.DB {
	if scope.OwnerID != 0 {
		q = q.Where("expense_reports.user_id = ?", scope.OwnerID)
	}
	if scope.Status != "" {
		q = q.Where("expense_reports.current_status = ?", string(scope.Status))
	}
	if len(scope.Clauses) == 0 {
		return q
	}

	parts := make([]string, 0, len(scope.Clauses))
	args := make([]interface{}, 0, len(scope.Clauses)*2)
	for _, c := range scope.Clauses {
		part := "expense_reports.current_status = ?"
		args = append(args, string(c.Status))
		switch {
		case c.TopLevel:
			part += " AND users.manager_id IS NULL"
		case c.ManagerID != nil:
			part += " AND users.manager_id = ?"
			args = append(args, *c.ManagerID)
		}
		parts = append(parts, "("+part+")")
	}
	return q.Where("("+strings.Join(parts, " OR ")+")", args...)
}

func (r *ExpenseRepository) UpdateDraft(ctx context.Context, e *expense.Expense) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&expenseDatamodel.ExpenseReport{}).
			Where("id = ? AND current_status = ?", e.ID, string(expense.StatusDraft)).
			Updates(map[string]interface{}{
				"title":           e.Title,
				"description":     e.Description,
				"category":        e.Category,
				"amount":          e.Amount,
				"currency":        e.Currency,
				"date_of_expense": e.DateOfExpense,
				"updated_at":      e.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.missingOr(tx, e.ID, internal.ErrCannotModify)
		}

		if err := tx.Where("expense_report_id = ?", e.ID).Delete(&expenseDatamodel.LineItem{}).Error; err != nil {
			return err
		}
		if len(e.LineItems) == 0 {
			return nil
		}
		items := expense.ToDataModel(e).LineItems
		for i := range items {
			items[i].ID = 0
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		for i := range e.LineItems {
			e.LineItems[i].ID = items[i].ID
		}
		return nil
	})
}

func (r *ExpenseRepository) DeleteDraft(ctx context.Context, id int64) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_report_id = ?", id).Delete(&expenseDatamodel.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("expense_report_id = ?", id).Delete(&expenseDatamodel.Attachment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND current_status = ?", id, string(expense.StatusDraft)).
			Delete(&expenseDatamodel.ExpenseReport{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.missingOr(tx, id, internal.ErrCannotModify)
		}
		return nil
	})
}

// ApplyTransition is the only writer of current_status after creation. The
// conditional update makes concurrent reviewers race safely: the loser sees
// zero rows and gets ErrStaleStatus.
func (r *ExpenseRepository) ApplyTransition(ctx context.Context, id int64, from, to expense.Status, step *expense.StepRecord, at time.Time) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&expenseDatamodel.ExpenseReport{}).
			Where("id = ? AND current_status = ?", id, string(from)).
			Updates(map[string]interface{}{
				"current_status": string(to),
				"updated_at":     at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.missingOr(tx, id, internal.ErrStaleStatus)
		}

		if step == nil {
			return nil
		}
		return tx.Create(expense.StepDataModel(id, step, at)).Error
	})
}

func (r *ExpenseRepository) missingOr(tx *gorm.DB, id int64, otherwise error) error {
	var count int64
	if err := tx.Model(&expenseDatamodel.ExpenseReport{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return internal.ErrExpenseNotFound
	}
	return otherwise
}
