package postgres

import (
	"context"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/dashboard"
	"github.com/jmoiron/sqlx"
)

const rowsQuery = `
SELECT e.amount, e.current_status, e.category, e.date_of_expense, u.manager_id
FROM expense_reports e
JOIN users u ON u.id = e.user_id`

type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) Rows(ctx context.Context) ([]dashboard.Row, error) {
	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	rows := []dashboard.Row{}
	if err := r.db.SelectContext(ctx, &rows, rowsQuery); err != nil {
		return nil, err
	}
	return rows, nil
}
