package http

import (
	"time"

	"budgetly/internal/core"
)

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type expenseResponse struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"userId"`
	Title     string        `json:"title"`
	Amount    core.Money    `json:"amount"`
	Category  core.Category `json:"category"`
	Date      time.Time     `json:"date"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Amount:    e.Amount,
		Category:  e.Category,
		Date:      e.Date,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// budgetResponse omits id and timestamps for the unsaved placeholder.
type budgetResponse struct {
	ID        int64         `json:"id,omitempty"`
	Month     core.MonthKey `json:"month"`
	Amount    core.Money    `json:"amount"`
	IsSet     bool          `json:"isSet"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	resp := budgetResponse{
		ID:     b.ID,
		Month:  b.Month,
		Amount: b.Amount,
		IsSet:  b.IsSet(),
	}
	if b.IsSet() {
		created, updated := b.CreatedAt, b.UpdatedAt
		resp.CreatedAt, resp.UpdatedAt = &created, &updated
	}
	return resp
}

type summaryResponse struct {
	Month             core.MonthKey                `json:"month"`
	TotalAmount       core.Money                   `json:"totalAmount"`
	Count             int                          `json:"count"`
	CategoryBreakdown map[core.Category]core.Money `json:"categoryBreakdown"`
}

func toSummaryResponse(s core.MonthlySummary) summaryResponse {
	breakdown := s.CategoryBreakdown
	if breakdown == nil {
		breakdown = map[core.Category]core.Money{}
	}
	return summaryResponse{
		Month:             s.Month,
		TotalAmount:       s.TotalAmount,
		Count:             s.Count,
		CategoryBreakdown: breakdown,
	}
}

type budgetStatusResponse struct {
	Budget    budgetResponse `json:"budget"`
	Spent     core.Money     `json:"spent"`
	Count     int            `json:"count"`
	Remaining core.Money     `json:"remaining"`
	Exceeded  bool           `json:"exceeded"`
	Progress  *float64       `json:"progress,omitempty"`
}

func toBudgetStatusResponse(st core.BudgetStatus) budgetStatusResponse {
	return budgetStatusResponse{
		Budget:    toBudgetResponse(st.Budget),
		Spent:     st.Spent,
		Count:     st.Count,
		Remaining: st.Remaining,
		Exceeded:  st.Exceeded,
		Progress:  st.Progress,
	}
}
