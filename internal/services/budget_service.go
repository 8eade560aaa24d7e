package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"

	"golang.org/x/sync/errgroup"
)

// BudgetService resolves and stores monthly budgets and derives their status.
type BudgetService struct {
	budgets   ports.BudgetStore
	summaries *SummaryService
	logger    *log.Logger
}

func NewBudgetService(budgets ports.BudgetStore, summaries *SummaryService, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetService{
		budgets:   budgets,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentBudget),
	}
}

// CurrentBudget returns the stored budget of the month containing now, or an
// unpersisted zero placeholder.
func (s *BudgetService) CurrentBudget(ctx context.Context, userID int64, now time.Time) (core.Budget, error) {
	return s.ForMonth(ctx, userID, core.MonthOf(now, s.summaries.Location()))
}

func (s *BudgetService) ForMonth(ctx context.Context, userID int64, month core.MonthKey) (core.Budget, error) {
	b, err := s.budgets.Get(ctx, userID, month)
	if errors.Is(err, core.ErrNotFound) {
		return core.PlaceholderBudget(userID, month), nil
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// SetBudget validates and upserts the budget for month. Repeating the call
// with the same arguments leaves the same single record.
func (s *BudgetService) SetBudget(ctx context.Context, userID int64, month string, amount core.Money) (core.Budget, error) {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return core.Budget{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.Budget{}, err
	}
	b, err := s.budgets.Upsert(ctx, userID, key, amount)
	if err != nil {
		return core.Budget{}, fmt.Errorf("set budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget set",
		log.FieldUserID, userID,
		log.FieldMonth, month,
		log.FieldAmountCents, amount.Cents)
	return b, nil
}

// Status combines the current budget with the current month's spending.
func (s *BudgetService) Status(ctx context.Context, userID int64, now time.Time) (core.BudgetStatus, error) {
	month := core.MonthOf(now, s.summaries.Location())

	var (
		budget  core.Budget
		summary core.MonthlySummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budget, err = s.ForMonth(gctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = s.summaries.ForMonth(gctx, userID, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.BudgetStatus{}, err
	}
	return core.NewBudgetStatus(budget, summary), nil
}
