package http

import (
	"net/http"
	"strings"
	"time"

	"budgetly/internal/core"
)

// expenseRequest is shared by create and update. Pointer fields tell
// "absent" apart from "empty" for partial updates.
type expenseRequest struct {
	Title    *string     `json:"title"`
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
	Date     *string     `json:"date"`
	Notes    *string     `json:"notes"`
}

func (req expenseRequest) toPatch(loc *time.Location) (core.ExpensePatch, error) {
	var p core.ExpensePatch
	if req.Title != nil {
		title := sanitizeInput(*req.Title)
		p.Title = &title
	}
	p.Amount = req.Amount
	if req.Category != nil {
		c, err := core.ParseCategory(*req.Category)
		if err != nil {
			return p, err
		}
		p.Category = &c
	}
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		d, err := ParseDate("date", *req.Date, loc, false)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if req.Notes != nil {
		notes := sanitizeInput(*req.Notes)
		p.Notes = &notes
	}
	return p, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create_expense", err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, "create_expense", core.NewValidationError("amount", "amount is required"))
		return
	}
	patch, err := req.toPatch(s.svc.Summaries.Location())
	if err != nil {
		writeError(w, r, "create_expense", err)
		return
	}

	// The service fills in the default category and date.
	e := patch.Apply(core.Expense{UserID: mustUserID(r)})
	created, err := s.svc.Expenses.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, "create_expense", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toExpenseResponse(created)).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseExpenseFilter(r.URL.Query(), s.svc.Summaries.Location())
	if err != nil {
		writeError(w, r, "list_expenses", err)
		return
	}
	expenses, err := s.svc.Expenses.ListExpenses(r.Context(), mustUserID(r), filter)
	if err != nil {
		writeError(w, r, "list_expenses", err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		writeError(w, r, "get_expense", err)
		return
	}
	e, err := s.svc.Expenses.GetExpense(r.Context(), mustUserID(r), id)
	if err != nil {
		writeError(w, r, "get_expense", err)
		return
	}
	NewJSONResponse().Body(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		writeError(w, r, "update_expense", err)
		return
	}
	var req expenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "update_expense", err)
		return
	}
	patch, err := req.toPatch(s.svc.Summaries.Location())
	if err != nil {
		writeError(w, r, "update_expense", err)
		return
	}
	updated, err := s.svc.Expenses.UpdateExpense(r.Context(), mustUserID(r), id, patch)
	if err != nil {
		writeError(w, r, "update_expense", err)
		return
	}
	NewJSONResponse().Body(toExpenseResponse(updated)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		writeError(w, r, "delete_expense", err)
		return
	}
	if err := s.svc.Expenses.DeleteExpense(r.Context(), mustUserID(r), id); err != nil {
		writeError(w, r, "delete_expense", err)
		return
	}
	NewJSONResponse().Message("expense deleted").Write(w)
}
