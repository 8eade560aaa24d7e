// Package worker holds the queue consumers run by cmd/budgetly-worker.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"budgetly/internal/amqp"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

const DefaultMailTimeout = 10 * time.Second

// MailWorker delivers queued reset e-mails. Delivery is at-most-once: any
// send failure drops the message instead of requeueing it, so a user never
// receives a stale code after a newer one.
type MailWorker struct {
	mailer  ports.Mailer
	timeout time.Duration
	// maxAge drops messages whose code has already expired.
	maxAge time.Duration
	now    func() time.Time
	logger *log.Logger
}

func NewMailWorker(mailer ports.Mailer, timeout time.Duration, logger *log.Logger) *MailWorker {
	if timeout <= 0 {
		timeout = DefaultMailTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &MailWorker{
		mailer:  mailer,
		timeout: timeout,
		maxAge:  core.DefaultResetTTL,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// WithMaxAge sets how old a message may be before it is dropped. It should
// match the reset code TTL.
func (w *MailWorker) WithMaxAge(d time.Duration) *MailWorker {
	if d > 0 {
		w.maxAge = d
	}
	return w
}

// HandleResetMail sends one message.
func (w *MailWorker) HandleResetMail(ctx context.Context, msg *amqp.ResetMailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return amqp.Permanent(errors.New("reset mail without recipient"))
	}
	if age := w.now().Sub(msg.Timestamp); !msg.Timestamp.IsZero() && age > w.maxAge {
		w.logger.WarnContext(ctx, "Dropping expired reset mail", "age", age.Round(time.Second))
		return amqp.Permanent(errors.New("reset mail expired before delivery"))
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.mailer.Send(ctx, msg.Mail()); err != nil {
		w.logger.ErrorContext(ctx, "Reset mail delivery failed", log.FieldError, err)
		return amqp.Permanent(err)
	}
	w.logger.InfoContext(ctx, "Reset mail delivered")
	return nil
}
