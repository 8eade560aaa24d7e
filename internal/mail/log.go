package mail

import (
	"context"

	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// LogMailer only logs. Bodies carry one-time codes, so they are logged at
// debug level only.
type LogMailer struct {
	logger *log.Logger
}

var _ ports.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogMailer{logger: logger.WithComponent(log.ComponentMail)}
}

func (l *LogMailer) Send(ctx context.Context, m ports.MailMessage) error {
	l.logger.InfoContext(ctx, "Mail captured", log.FieldTransport, "log", "subject", m.Subject)
	l.logger.DebugContext(ctx, "Mail body", "body", m.Body)
	return nil
}
