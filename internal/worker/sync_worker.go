package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetly/internal/amqp"
	"budgetly/internal/log"
	"budgetly/internal/sheets"
)

// SyncWorker mirrors expense activity into a spreadsheet.
type SyncWorker struct {
	sheets sheets.ActivityAppender
	logger *log.Logger
}

func NewSyncWorker(appender sheets.ActivityAppender, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{sheets: appender, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleActivityMessage appends one activity row. Append failures are
// returned as-is so the message is redelivered.
func (w *SyncWorker) HandleActivityMessage(ctx context.Context, msg *amqp.ExpenseActivityMessage) error {
	if msg.ExpenseID <= 0 {
		return amqp.Permanent(errors.New("activity message without expense id"))
	}

	ref, err := w.sheets.AppendActivity(ctx, RowFromMessage(msg))
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.logger.InfoContext(ctx, "Synced expense activity",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldUserID, msg.UserID,
		log.FieldOperation, string(msg.Kind),
		"sheets_ref", ref)
	return nil
}

// RowFromMessage converts a queue message into a sheet row.
func RowFromMessage(msg *amqp.ExpenseActivityMessage) sheets.ActivityRow {
	return sheets.ActivityRow{
		Kind:      string(msg.Kind),
		ExpenseID: msg.ExpenseID,
		UserID:    msg.UserID,
		Title:     msg.Title,
		Amount:    msg.Amount(),
		Category:  msg.Category,
		Date:      msg.Date,
		At:        msg.Timestamp,
	}
}
