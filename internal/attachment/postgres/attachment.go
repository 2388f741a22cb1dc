package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/attachment"
	expenseDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/expense"
	"gorm.io/gorm"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) ExpenseOwner(ctx context.Context, expenseID int64) (int64, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var report expenseDatamodel.ExpenseReport
	err := r.db.WithContext(ctx).Select("id", "user_id").First(&report, expenseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, internal.ErrExpenseNotFound
		}
		return 0, err
	}
	return report.UserID, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, a *attachment.Attachment) error {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	m := attachment.ToDataModel(a)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	return nil
}

func (r *AttachmentRepository) Get(ctx context.Context, expenseID, attachmentID int64) (*attachment.Attachment, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	var m expenseDatamodel.Attachment
	err := r.db.WithContext(ctx).
		Where("id = ? AND expense_report_id = ?", attachmentID, expenseID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAttachmentNotFound
		}
		return nil, err
	}
	return attachment.FromDataModel(&m), nil
}
