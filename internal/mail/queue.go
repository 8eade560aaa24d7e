package mail

import (
	"context"
	"time"

	"budgetly/internal/amqp"
	"budgetly/internal/ports"
)

// ResetMailPublisher is the part of the AMQP client the queue mailer needs.
type ResetMailPublisher interface {
	PublishResetMail(ctx context.Context, msg *amqp.ResetMailMessage) error
}

// QueueMailer hands messages to the worker over AMQP instead of sending them.
type QueueMailer struct {
	publisher ResetMailPublisher
	now       func() time.Time
}

var _ ports.Mailer = (*QueueMailer)(nil)

func NewQueueMailer(p ResetMailPublisher, now func() time.Time) *QueueMailer {
	if now == nil {
		now = time.Now
	}
	return &QueueMailer{publisher: p, now: now}
}

func (q *QueueMailer) Send(ctx context.Context, m ports.MailMessage) error {
	return q.publisher.PublishResetMail(ctx, amqp.NewResetMailMessage(m, q.now().UTC()))
}
