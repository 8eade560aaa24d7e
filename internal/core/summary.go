package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// MonthlySummary is the derived spending view for one user and month.
type MonthlySummary struct {
	Month             MonthKey
	Start             time.Time
	End               time.Time
	TotalAmount       Money
	Count             int
	CategoryBreakdown map[Category]Money
}

// Summarize aggregates expenses that fall in the month of key. Expenses
// outside the window are ignored so callers may pass a superset.
func Summarize(key MonthKey, loc *time.Location, expenses []Expense) MonthlySummary {
	start, end := key.Window(loc)
	s := MonthlySummary{
		Month:             key,
		Start:             start,
		End:               end,
		CategoryBreakdown: make(map[Category]Money),
	}
	for _, e := range expenses {
		if e.Date.Before(start) || !e.Date.Before(end) {
			continue
		}
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		s.Count++
		s.CategoryBreakdown[e.Category] = s.CategoryBreakdown[e.Category].Add(e.Amount)
	}
	return s
}

// Categories returns the breakdown sorted by descending amount, then name.
func (s MonthlySummary) Categories() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.CategoryBreakdown))
	for c, m := range s.CategoryBreakdown {
		out = append(out, CategoryAmount{Category: c, Amount: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Reconciles reports whether the category totals add up to the month total.
func (s MonthlySummary) Reconciles() bool {
	var sum Money
	for _, m := range s.CategoryBreakdown {
		sum = sum.Add(m)
	}
	return sum == s.TotalAmount
}
