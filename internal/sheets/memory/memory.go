package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetly/internal/sheets"
)

// Store keeps appended rows in memory. Used by tests and local runs without a
// spreadsheet.
type Store struct {
	mu   sync.Mutex
	rows []sheets.ActivityRow
}

var _ sheets.ActivityAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendActivity stores the row and returns a synthetic row reference.
func (s *Store) AppendActivity(_ context.Context, row sheets.ActivityRow) (string, error) {
	if row.ExpenseID <= 0 {
		return "", fmt.Errorf("activity row without expense id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.ActivityRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.ActivityRow(nil), s.rows...)
}
