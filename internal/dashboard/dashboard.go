package dashboard

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/expense-reporting/internal/expense"
	"github.com/shopspring/decimal"
)

const (
	uncategorized = "uncategorized"
	monthWindow   = 12
	monthLabel    = "Jan 2006"
)

// Row is one expense report joined with its owner's manager.
type Row struct {
	Amount        decimal.Decimal `db:"amount"`
	Status        string          `db:"current_status"`
	Category      sql.NullString  `db:"category"`
	DateOfExpense time.Time       `db:"date_of_expense"`
	ManagerID     sql.NullInt64   `db:"manager_id"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

type MonthTotal struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type Summary struct {
	TotalRequested    decimal.Decimal `json:"totalRequested"`
	TotalApproved     decimal.Decimal `json:"totalApproved"`
	TotalExecuted     decimal.Decimal `json:"totalExecuted"`
	PendingValidation int             `json:"pendingValidation"`
	ByCategory        []CategoryTotal `json:"byCategory"`
	MonthlyExecuted   []MonthTotal    `json:"monthlyExecuted"`
	TotalCount        int             `json:"totalCount"`
	StatusCounts      map[string]int  `json:"statusCounts"`
}

// Compute aggregates rows into the accounting summary. Months are the
// twelve calendar months ending with the one containing now.
func Compute(rows []Row, now time.Time) Summary {
	sum := Summary{
		TotalRequested: decimal.Zero,
		TotalApproved:  decimal.Zero,
		TotalExecuted:  decimal.Zero,
		ByCategory:     []CategoryTotal{},
		StatusCounts:   make(map[string]int, len(expense.AllStatuses)),
	}
	for _, st := range expense.AllStatuses {
		sum.StatusCounts[string(st)] = 0
	}

	months, monthIndex := trailingMonths(now)
	categories := make(map[string]*CategoryTotal)

	for _, row := range rows {
		status := expense.Status(row.Status)
		sum.TotalCount++
		sum.StatusCounts[row.Status]++

		var managerID *int64
		if row.ManagerID.Valid {
			id := row.ManagerID.Int64
			managerID = &id
		}
		eligible := expense.AccountingEligible(status, managerID)

		if countsAsRequested(status) {
			sum.TotalRequested = sum.TotalRequested.Add(row.Amount)
		}
		if eligible {
			sum.TotalApproved = sum.TotalApproved.Add(row.Amount)
		}
		if eligible || status == expense.StatusDetailsRequested {
			sum.PendingValidation++
		}
		if status == expense.StatusPaid {
			sum.TotalExecuted = sum.TotalExecuted.Add(row.Amount)
			key := monthKey(row.DateOfExpense)
			if i, ok := monthIndex[key]; ok {
				months[i].Amount = months[i].Amount.Add(row.Amount)
			}
		}

		if status != expense.StatusDraft && !status.Rejected() {
			name := strings.TrimSpace(row.Category.String)
			if name == "" {
				name = uncategorized
			}
			ct, ok := categories[name]
			if !ok {
				ct = &CategoryTotal{Category: name, Amount: decimal.Zero}
				categories[name] = ct
			}
			ct.Amount = ct.Amount.Add(row.Amount)
			ct.Count++
		}
	}

	for _, ct := range categories {
		sum.ByCategory = append(sum.ByCategory, *ct)
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		a, b := sum.ByCategory[i], sum.ByCategory[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})
	sum.MonthlyExecuted = months
	return sum
}

func countsAsRequested(s expense.Status) bool {
	return s != expense.StatusDraft && !s.Terminal()
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func trailingMonths(now time.Time) ([]MonthTotal, map[string]int) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	months := make([]MonthTotal, monthWindow)
	index := make(map[string]int, monthWindow)
	for i := 0; i < monthWindow; i++ {
		m := first.AddDate(0, i-(monthWindow-1), 0)
		months[i] = MonthTotal{Month: m.Format(monthLabel), Amount: decimal.Zero}
		index[monthKey(m)] = i
	}
	return months, index
}
