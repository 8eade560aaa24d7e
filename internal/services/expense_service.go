package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// ExpenseService orchestrates expense writes across the store, the summary
// cache and the activity queue.
type ExpenseService struct {
	expenses  ports.ExpenseStore
	summaries *SummaryService
	publisher ports.ActivityPublisher
	now       func() time.Time
	logger    *log.Logger
}

// NewExpenseService builds the service. publisher may be nil.
func NewExpenseService(expenses ports.ExpenseStore, summaries *SummaryService, publisher ports.ActivityPublisher, now func() time.Time, logger *log.Logger) *ExpenseService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		expenses:  expenses,
		summaries: summaries,
		publisher: publisher,
		now:       now,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

// CreateExpense stores e for its owner. An empty category becomes "other"
// and a zero date becomes the current time.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = 0
	if e.Category == "" {
		e.Category = core.CategoryOther
	}
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.expenses.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.summaries.InvalidateAt(created.UserID, created.Date)
	s.publish(ctx, ports.ActivityCreated, created)
	return created, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, core.NewValidationError("to", "must not be before from")
	}
	out, err := s.expenses.List(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	return s.expenses.Get(ctx, userID, id)
}

// UpdateExpense applies a partial update to one of the user's expenses.
func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, id int64, patch core.ExpensePatch) (core.Expense, error) {
	current, err := s.expenses.Get(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.expenses.Update(ctx, next)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.summaries.InvalidateAt(userID, current.Date, updated.Date)
	s.publish(ctx, ports.ActivityUpdated, updated)
	return updated, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id int64) error {
	current, err := s.expenses.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.expenses.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	s.summaries.InvalidateAt(userID, current.Date)
	s.publish(ctx, ports.ActivityDeleted, current)
	return nil
}

// publish never fails the request: the expense is already stored.
func (s *ExpenseService) publish(ctx context.Context, kind ports.ActivityKind, e core.Expense) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishExpenseActivity(ctx, ports.Activity{Kind: kind, Expense: e, At: s.now()})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense activity",
			log.FieldExpenseID, e.ID,
			log.FieldOperation, string(kind),
			log.FieldError, err)
	}
}
