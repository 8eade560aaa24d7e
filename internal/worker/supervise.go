package worker

import (
	"context"
	"errors"
	"time"

	"budgetly/internal/amqp"
	"budgetly/internal/log"
)

// Supervisor restarts a consumer loop with exponential backoff until its
// context is cancelled.
type Supervisor struct {
	Backoff func(attempt int) time.Duration
	Logger  *log.Logger
}

func NewSupervisor(logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Supervisor{Backoff: amqp.Backoff, Logger: logger.WithComponent(log.ComponentWorker)}
}

// Run calls consume until ctx is done. A consume call that ran longer than
// a minute resets the backoff.
func (s *Supervisor) Run(ctx context.Context, name string, consume func(context.Context) error) {
	attempt := 0
	for {
		started := time.Now()
		err := consume(ctx)
		if ctx.Err() != nil {
			s.Logger.InfoContext(ctx, "Consumer stopped", log.FieldQueue, name)
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		if time.Since(started) > time.Minute {
			attempt = 0
		}
		wait := s.Backoff(attempt)
		s.Logger.WarnContext(ctx, "Consumer exited, restarting",
			log.FieldQueue, name,
			log.FieldError, err,
			"attempt", attempt+1,
			"backoff", wait)
		attempt++

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
