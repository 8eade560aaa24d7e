// Package sheets exports expense activity to a spreadsheet.
package sheets

import (
	"context"
	"time"

	"budgetly/internal/core"
)

// ActivityRow is one exported line: a single expense mutation.
type ActivityRow struct {
	Kind      string
	ExpenseID int64
	UserID    int64
	Title     string
	Amount    core.Money
	Category  string
	Date      time.Time
	At        time.Time
}

// Ports for outbound adapters.
type ActivityAppender interface {
	AppendActivity(ctx context.Context, row ActivityRow) (rowRef string, err error)
}

// Values renders the row in sheet column order:
// date, kind, expense id, user id, title, amount, category, recorded at.
func (r ActivityRow) Values() []any {
	return []any{
		r.Date.UTC().Format("2006-01-02"),
		r.Kind,
		r.ExpenseID,
		r.UserID,
		r.Title,
		r.Amount.String(),
		r.Category,
		r.At.UTC().Format(time.RFC3339),
	}
}
