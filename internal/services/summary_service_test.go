package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetly/internal/cache"
	"budgetly/internal/core"
	"budgetly/internal/storage/memory"
)

func TestMonthlySummaryScenario(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ada := f.user(t, "ada@example.com")
	bob := f.user(t, "bob@example.com")

	f.expense(t, ada.ID, core.CategoryFood, 12000, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))
	f.expense(t, ada.ID, core.CategoryTravel, 8000, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	f.expense(t, ada.ID, core.CategoryFood, 3000, time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC))
	f.expense(t, ada.ID, core.CategoryBills, 5000, time.Date(2024, 2, 27, 9, 0, 0, 0, time.UTC))
	f.expense(t, bob.ID, core.CategoryFood, 99900, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))

	s, err := f.summaries.MonthlySummary(context.Background(), ada.ID, now)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalAmount.Cents != 23000 || s.Count != 3 {
		t.Fatalf("unexpected totals: total=%d count=%d", s.TotalAmount.Cents, s.Count)
	}
	want := map[core.Category]int64{core.CategoryFood: 15000, core.CategoryTravel: 8000}
	if len(s.CategoryBreakdown) != len(want) {
		t.Fatalf("unexpected breakdown %v", s.CategoryBreakdown)
	}
	for c, cents := range want {
		if s.CategoryBreakdown[c].Cents != cents {
			t.Fatalf("%s: expected %d, got %d", c, cents, s.CategoryBreakdown[c].Cents)
		}
	}
}

func TestMonthlySummaryEmptyMonth(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	ada := f.user(t, "ada@example.com")

	s, err := f.summaries.MonthlySummary(context.Background(), ada.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalAmount.Cents != 0 || s.Count != 0 || len(s.CategoryBreakdown) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestMonthlySummaryUsesReferenceZone(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	store := memory.New()
	ada, _ := store.Users().Create(context.Background(), core.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x"})
	// 23:30 UTC on Feb 29 is March 1st in Rome.
	_, _ = store.Expenses().Create(context.Background(), core.Expense{
		UserID: ada.ID, Title: "late", Amount: core.Cents(500), Category: core.CategoryFood,
		Date: time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC),
	})

	svc := NewSummaryService(store.Expenses(), rome, nil, nil)
	s, err := svc.ForMonth(context.Background(), ada.ID, "2024-03")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Count != 1 {
		t.Fatalf("expected expense to fall in March in Rome, got %+v", s)
	}
}

func TestMonthlySummaryCacheInvalidation(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ada := f.user(t, "ada@example.com")
	ctx := context.Background()

	e := f.expense(t, ada.ID, core.CategoryFood, 1000, now)
	first, _ := f.summaries.MonthlySummary(ctx, ada.ID, now)
	if first.TotalAmount.Cents != 1000 {
		t.Fatalf("unexpected first total %d", first.TotalAmount.Cents)
	}

	// Mutating the returned map must not leak into the cache.
	first.CategoryBreakdown[core.CategoryBills] = core.Cents(1)

	f.expense(t, ada.ID, core.CategoryTravel, 500, now)
	second, _ := f.summaries.MonthlySummary(ctx, ada.ID, now)
	if second.TotalAmount.Cents != 1500 {
		t.Fatalf("create did not invalidate: %d", second.TotalAmount.Cents)
	}
	if _, ok := second.CategoryBreakdown[core.CategoryBills]; ok {
		t.Fatalf("cached map was mutated by caller")
	}

	// Moving the expense to February invalidates both months.
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if _, err := f.expenses.UpdateExpense(ctx, ada.ID, e.ID, core.ExpensePatch{Date: &feb}); err != nil {
		t.Fatalf("update: %v", err)
	}
	march, _ := f.summaries.MonthlySummary(ctx, ada.ID, now)
	february, _ := f.summaries.ForMonth(ctx, ada.ID, "2024-02")
	if march.TotalAmount.Cents != 500 || february.TotalAmount.Cents != 1000 {
		t.Fatalf("unexpected totals march=%d february=%d", march.TotalAmount.Cents, february.TotalAmount.Cents)
	}
}

func TestMonthlySummaryWriteDuringReadIsNotCached(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	clock := newClock(now)
	store := memory.NewWithClock(clock.Now)
	ctx := context.Background()
	ada, _ := store.Users().Create(ctx, core.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x"})

	reads := &interleavedRange{ExpenseStore: store.Expenses()}
	summaries := NewSummaryService(reads, time.UTC, cache.NewLRUCache[core.MonthlySummary](16, time.Hour), nil)
	expenses := NewExpenseService(store.Expenses(), summaries, nil, clock.Now, nil)

	reads.afterRead = func() {
		if _, err := expenses.CreateExpense(ctx, core.Expense{
			UserID: ada.ID, Title: "lunch", Amount: core.Cents(1200), Category: core.CategoryFood, Date: now,
		}); err != nil {
			t.Errorf("create expense: %v", err)
		}
	}
	before, err := summaries.MonthlySummary(ctx, ada.ID, now)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if before.Count != 0 {
		t.Fatalf("read should predate the write, got count=%d", before.Count)
	}

	after, err := summaries.MonthlySummary(ctx, ada.ID, now)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if after.Count != 1 || after.TotalAmount.Cents != 1200 {
		t.Fatalf("stale summary after write: count=%d total=%d", after.Count, after.TotalAmount.Cents)
	}
}

func TestMonthlySummaryStorageFailure(t *testing.T) {
	store := memory.New()
	boom := errors.New("disk on fire")
	svc := NewSummaryService(brokenRange{store.Expenses(), boom}, time.UTC, nil, nil)

	if _, err := svc.ForMonth(context.Background(), 1, "2024-03"); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
