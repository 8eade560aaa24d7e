// Package services provides the business operations behind the HTTP API.
package services

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"budgetly/internal/cache"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// SummaryService computes monthly spending summaries in a fixed reference
// time zone and caches them per (user, month).
type SummaryService struct {
	expenses ports.ExpenseStore
	loc      *time.Location
	cache    cache.Cache[core.MonthlySummary]
	logger   *log.Logger

	// generation advances on every invalidation; a summary read under an
	// older generation is returned but not cached.
	mu         sync.Mutex
	generation uint64
}

// NewSummaryService builds the service. c may be nil to disable caching.
func NewSummaryService(expenses ports.ExpenseStore, loc *time.Location, c cache.Cache[core.MonthlySummary], logger *log.Logger) *SummaryService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SummaryService{
		expenses: expenses,
		loc:      loc,
		cache:    c,
		logger:   logger.WithComponent(log.ComponentSummary),
	}
}

// Location is the reference time zone for month boundaries.
func (s *SummaryService) Location() *time.Location { return s.loc }

// MonthlySummary summarizes the month containing now.
func (s *SummaryService) MonthlySummary(ctx context.Context, userID int64, now time.Time) (core.MonthlySummary, error) {
	return s.ForMonth(ctx, userID, core.MonthOf(now, s.loc))
}

// ForMonth summarizes an explicit month.
func (s *SummaryService) ForMonth(ctx context.Context, userID int64, month core.MonthKey) (core.MonthlySummary, error) {
	key := summaryKey(userID, month)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cloneSummary(cached), nil
		}
	}

	gen := s.currentGeneration()
	start, end := month.Window(s.loc)
	expenses, err := s.expenses.ListRange(ctx, userID, start, end)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("list expenses for %s: %w", month, err)
	}
	summary := core.Summarize(month, s.loc, expenses)

	if s.cache != nil {
		s.mu.Lock()
		if s.generation == gen {
			s.cache.Set(key, cloneSummary(summary))
		}
		s.mu.Unlock()
	}
	s.logger.DebugContext(ctx, "Monthly summary computed",
		log.FieldUserID, userID,
		log.FieldMonth, string(month),
		"count", summary.Count)
	return summary, nil
}

// Invalidate drops cached summaries of the given months.
func (s *SummaryService) Invalidate(userID int64, months ...core.MonthKey) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	for _, m := range months {
		s.cache.Delete(summaryKey(userID, m))
	}
}

func (s *SummaryService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// InvalidateAt drops the cached summary of the month containing t.
func (s *SummaryService) InvalidateAt(userID int64, t ...time.Time) {
	months := make([]core.MonthKey, 0, len(t))
	for _, v := range t {
		months = append(months, core.MonthOf(v, s.loc))
	}
	s.Invalidate(userID, months...)
}

func summaryKey(userID int64, month core.MonthKey) string {
	return fmt.Sprintf("%d:%s", userID, month)
}

func cloneSummary(s core.MonthlySummary) core.MonthlySummary {
	s.CategoryBreakdown = maps.Clone(s.CategoryBreakdown)
	return s
}
