package http

import (
	"net/http"

	"budgetly/internal/core"
)

type budgetRequest struct {
	Month  string      `json:"month"`
	Amount *core.Money `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "set_budget", err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, "set_budget", core.NewValidationError("amount", "amount is required"))
		return
	}
	b, err := s.svc.Budgets.SetBudget(r.Context(), mustUserID(r), sanitizeInput(req.Month), *req.Amount)
	if err != nil {
		writeError(w, r, "set_budget", err)
		return
	}
	NewJSONResponse().Body(toBudgetResponse(b)).Write(w)
}

// handleCurrentBudget returns the stored budget of the current month, or a
// zero-amount placeholder that is not persisted.
func (s *Server) handleCurrentBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.CurrentBudget(r.Context(), mustUserID(r), s.now())
	if err != nil {
		writeError(w, r, "current_budget", err)
		return
	}
	NewJSONResponse().Body(toBudgetResponse(b)).Write(w)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Budgets.Status(r.Context(), mustUserID(r), s.now())
	if err != nil {
		writeError(w, r, "budget_status", err)
		return
	}
	NewJSONResponse().Body(toBudgetStatusResponse(st)).Write(w)
}

// handleMonthlySummary summarises the current month, or the one named by
// the optional ?month=YYYY-MM query.
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), s.now(), s.svc.Summaries.Location())
	if err != nil {
		writeError(w, r, "monthly_summary", err)
		return
	}
	summary, err := s.svc.Summaries.ForMonth(r.Context(), mustUserID(r), month)
	if err != nil {
		writeError(w, r, "monthly_summary", err)
		return
	}
	NewJSONResponse().Body(toSummaryResponse(summary)).Write(w)
}
