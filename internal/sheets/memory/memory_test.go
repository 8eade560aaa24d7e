package memory

import (
	"context"
	"testing"

	"budgetly/internal/core"
	"budgetly/internal/sheets"
)

func TestMemoryStoreAppend(t *testing.T) {
	s := New()

	ref, err := s.AppendActivity(context.Background(), sheets.ActivityRow{
		Kind:      "created",
		ExpenseID: 1,
		UserID:    2,
		Title:     "t",
		Amount:    core.Cents(123),
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	if _, err := s.AppendActivity(context.Background(), sheets.ActivityRow{}); err == nil {
		t.Fatal("expected error for row without expense id")
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].Amount.Cents != 123 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	rows[0].Title = "changed"
	if s.Rows()[0].Title != "t" {
		t.Error("Rows should return a copy")
	}
}
