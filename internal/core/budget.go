package core

import "time"

// Budget is the spending ceiling of one user for one month. ID zero marks
// the placeholder returned when nothing has been stored yet.
type Budget struct {
	ID        int64
	UserID    int64
	Month     MonthKey
	Amount    Money
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlaceholderBudget is the "no budget set" value for a month.
func PlaceholderBudget(userID int64, month MonthKey) Budget {
	return Budget{UserID: userID, Month: month}
}

// IsSet distinguishes a stored budget (even a zero one) from the placeholder.
func (b Budget) IsSet() bool {
	return b.ID != 0
}

// BudgetStatus combines a budget with the month's spending.
type BudgetStatus struct {
	Budget    Budget
	Spent     Money
	Count     int
	Remaining Money
	Exceeded  bool
	// Progress is min(1, spent/amount); nil when the budget amount is zero.
	Progress *float64
}

// NewBudgetStatus derives remaining, exceeded and progress.
func NewBudgetStatus(b Budget, s MonthlySummary) BudgetStatus {
	st := BudgetStatus{
		Budget:    b,
		Spent:     s.TotalAmount,
		Count:     s.Count,
		Remaining: b.Amount.Sub(s.TotalAmount),
	}
	st.Exceeded = st.Remaining.Cents < 0
	if b.Amount.Cents > 0 {
		p := float64(s.TotalAmount.Cents) / float64(b.Amount.Cents)
		if p > 1 {
			p = 1
		}
		st.Progress = &p
	}
	return st
}
