package core

import (
	"testing"
	"time"
)

func TestMonthOf(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 UTC on Mar 31 is already April in Rome.
	instant := time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)
	if got := MonthOf(instant, time.UTC); got != "2024-03" {
		t.Fatalf("UTC month = %s", got)
	}
	if got := MonthOf(instant, rome); got != "2024-04" {
		t.Fatalf("Rome month = %s", got)
	}
	if got := MonthOf(time.Date(987, 1, 5, 0, 0, 0, 0, time.UTC), time.UTC); got != "0987-01" {
		t.Fatalf("expected zero padded year, got %s", got)
	}
}

func TestParseMonthKey(t *testing.T) {
	for _, ok := range []string{"2024-03", "1999-12", "2024-01"} {
		if _, err := ParseMonthKey(ok); err != nil {
			t.Fatalf("%q expected ok, got %v", ok, err)
		}
	}
	for _, bad := range []string{"", "2024-3", "2024-13", "2024-00", "24-03", "2024/03", "2024-03-01", "abcd-ef"} {
		if _, err := ParseMonthKey(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestMonthWindow(t *testing.T) {
	start, end := MonthKey("2024-02").Window(time.UTC)
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", end)
	}
	key := MonthKey("2024-12")
	last := time.Date(2024, 12, 31, 23, 59, 59, 999_999_999, time.UTC)
	if !key.Contains(last, time.UTC) {
		t.Fatalf("last instant of month must be inside")
	}
	if key.Contains(last.Add(time.Nanosecond), time.UTC) {
		t.Fatalf("first instant of next month must be outside")
	}
}
