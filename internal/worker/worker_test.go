package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"budgetly/internal/amqp"
	"budgetly/internal/core"
	"budgetly/internal/ports"
	"budgetly/internal/sheets"
	"budgetly/internal/sheets/memory"
)

type fakeMailer struct {
	sent        []ports.MailMessage
	err         error
	hadDeadline bool
}

func (f *fakeMailer) Send(ctx context.Context, m ports.MailMessage) error {
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func TestMailWorker_HandleResetMail(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		msg           amqp.ResetMailMessage
		mailErr       error
		wantErr       bool
		wantPermanent bool
		wantSent      int
	}{
		{
			name:     "delivers",
			msg:      amqp.ResetMailMessage{To: "ann@example.com", Subject: "s", Body: "b", Timestamp: now.Add(-time.Minute)},
			wantSent: 1,
		},
		{
			name:          "missing recipient is permanent",
			msg:           amqp.ResetMailMessage{Subject: "s"},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "expired code is dropped",
			msg:           amqp.ResetMailMessage{To: "ann@example.com", Timestamp: now.Add(-core.DefaultResetTTL - time.Second)},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "send failure is not retried",
			msg:           amqp.ResetMailMessage{To: "ann@example.com", Timestamp: now},
			mailErr:       errors.New("brevo request failed: 502"),
			wantErr:       true,
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{err: tt.mailErr}
			w := NewMailWorker(mailer, time.Second, nil)
			w.now = func() time.Time { return now }

			err := w.HandleResetMail(context.Background(), &tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleResetMail() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantPermanent && !errors.Is(err, amqp.ErrPermanent) {
				t.Errorf("expected permanent error, got %v", err)
			}
			if len(mailer.sent) != tt.wantSent {
				t.Errorf("sent %d, want %d", len(mailer.sent), tt.wantSent)
			}
			if tt.wantSent > 0 && !mailer.hadDeadline {
				t.Error("send should run under a deadline")
			}
		})
	}
}

func TestMailWorker_WithMaxAge(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	mailer := &fakeMailer{}
	w := NewMailWorker(mailer, time.Second, nil).WithMaxAge(5 * time.Minute)
	w.now = func() time.Time { return now }

	err := w.HandleResetMail(context.Background(), &amqp.ResetMailMessage{To: "ann@example.com", Timestamp: now.Add(-6 * time.Minute)})
	if !errors.Is(err, amqp.ErrPermanent) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("stale message was sent")
	}
}

type failingAppender struct{ err error }

func (f failingAppender) AppendActivity(context.Context, sheets.ActivityRow) (string, error) {
	return "", f.err
}

func TestSyncWorker_HandleActivityMessage(t *testing.T) {
	store := memory.New()
	w := NewSyncWorker(store, nil)

	date := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	msg := &amqp.ExpenseActivityMessage{
		Kind:        ports.ActivityDeleted,
		ExpenseID:   5,
		UserID:      2,
		Title:       "Taxi",
		AmountCents: 1800,
		Category:    "travel",
		Date:        date,
		Timestamp:   date.Add(time.Hour),
	}
	if err := w.HandleActivityMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleActivityMessage() error = %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Kind != "deleted" || rows[0].Amount.String() != "18.00" || !rows[0].At.Equal(msg.Timestamp) {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestSyncWorker_Errors(t *testing.T) {
	w := NewSyncWorker(failingAppender{err: errors.New("quota exceeded")}, nil)

	err := w.HandleActivityMessage(context.Background(), &amqp.ExpenseActivityMessage{ExpenseID: 1})
	if err == nil || errors.Is(err, amqp.ErrPermanent) {
		t.Errorf("append failures should be retryable, got %v", err)
	}

	err = w.HandleActivityMessage(context.Background(), &amqp.ExpenseActivityMessage{})
	if !errors.Is(err, amqp.ErrPermanent) {
		t.Errorf("missing expense id should be permanent, got %v", err)
	}
}

func TestSupervisor_RestartsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var attempts []int
	s := NewSupervisor(nil)
	s.Backoff = func(attempt int) time.Duration {
		attempts = append(attempts, attempt)
		return time.Millisecond
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, "q", func(ctx context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}
			return errors.New("message channel closed")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after cancellation")
	}
	if calls.Load() != 3 {
		t.Errorf("consume called %d times, want 3", calls.Load())
	}
	if len(attempts) != 2 || attempts[0] != 0 || attempts[1] != 1 {
		t.Errorf("backoff attempts = %v, want [0 1]", attempts)
	}
}
