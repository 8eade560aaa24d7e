package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"
)

func TestCreateExpenseDefaults(t *testing.T) {
	now := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ada := f.user(t, "ada@example.com")

	e, err := f.expenses.CreateExpense(context.Background(), core.Expense{UserID: ada.ID, Title: "Coffee", Amount: core.Cents(250)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Category != core.CategoryOther || !e.Date.Equal(now) || e.ID == 0 {
		t.Fatalf("unexpected defaults %+v", e)
	}
	if len(f.publisher.activities) != 1 || f.publisher.activities[0].Kind != ports.ActivityCreated {
		t.Fatalf("expected one created activity, got %+v", f.publisher.activities)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	ada := f.user(t, "ada@example.com")

	_, err := f.expenses.CreateExpense(context.Background(), core.Expense{UserID: ada.ID, Title: "", Amount: core.Cents(1)})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = f.expenses.CreateExpense(context.Background(), core.Expense{UserID: ada.ID, Title: "x", Amount: core.Cents(1), Category: "rent"})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.publisher.activities) != 0 {
		t.Fatalf("no activity expected for rejected input")
	}
}

func TestExpenseOwnership(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	ada := f.user(t, "ada@example.com")
	bob := f.user(t, "bob@example.com")
	ctx := context.Background()
	e := f.expense(t, ada.ID, core.CategoryFood, 100, f.clock.Now())

	title := "stolen"
	if _, err := f.expenses.UpdateExpense(ctx, bob.ID, e.ID, core.ExpensePatch{Title: &title}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.expenses.DeleteExpense(ctx, bob.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.expenses.GetExpense(ctx, bob.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	ada := f.user(t, "ada@example.com")
	ctx := context.Background()
	e := f.expense(t, ada.ID, core.CategoryFood, 100, f.clock.Now())

	amount := core.Cents(4200)
	travel := core.CategoryTravel
	updated, err := f.expenses.UpdateExpense(ctx, ada.ID, e.ID, core.ExpensePatch{Amount: &amount, Category: &travel})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 4200 || updated.Category != core.CategoryTravel || updated.Title != e.Title {
		t.Fatalf("unexpected update %+v", updated)
	}

	bad := core.Category("rent")
	if _, err := f.expenses.UpdateExpense(ctx, ada.ID, e.ID, core.ExpensePatch{Category: &bad}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := f.expenses.DeleteExpense(ctx, ada.ID, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.expenses.GetExpense(ctx, ada.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected deleted, got %v", err)
	}

	kinds := []ports.ActivityKind{}
	for _, a := range f.publisher.activities {
		kinds = append(kinds, a.Kind)
	}
	want := []ports.ActivityKind{ports.ActivityCreated, ports.ActivityUpdated, ports.ActivityDeleted}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected activities %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected activities %v", kinds)
		}
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	f.publisher.err = errors.New("broker down")
	ada := f.user(t, "ada@example.com")

	if _, err := f.expenses.CreateExpense(context.Background(), core.Expense{UserID: ada.ID, Title: "x", Amount: core.Cents(1)}); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
}

func TestListExpensesRejectsInvertedRange(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	_, err := f.expenses.ListExpenses(context.Background(), 1, core.ExpenseFilter{
		From: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
