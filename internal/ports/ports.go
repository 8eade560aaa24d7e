// Package ports declares the outbound collaborators of the services: the
// record stores, the mailer and the activity publisher.
package ports

import (
	"context"
	"time"

	"budgetly/internal/core"
)

type (
	UserStore interface {
		// FindByEmail looks up a user by normalized email. core.ErrNotFound when absent.
		FindByEmail(ctx context.Context, email string) (core.User, error)
		FindByID(ctx context.Context, id int64) (core.User, error)
		// Create inserts a new user. core.ErrConflict when the email is taken.
		Create(ctx context.Context, u core.User) (core.User, error)
		// UpdateProfile replaces name and email. core.ErrConflict when the email is taken.
		UpdateProfile(ctx context.Context, id int64, name, email string) (core.User, error)
		UpdateCredential(ctx context.Context, id int64, passwordHash string) error
		// SetPendingReset overwrites any earlier pending code.
		SetPendingReset(ctx context.Context, id int64, p core.PendingReset) error
		// CompleteReset replaces the credential and clears the pending state in
		// one step, but only while code is still the pending one.
		// core.ErrNotFound when the code is no longer pending.
		CompleteReset(ctx context.Context, id int64, code, passwordHash string) error
	}

	ExpenseStore interface {
		Create(ctx context.Context, e core.Expense) (core.Expense, error)
		// Get is owner scoped: another user's expense is core.ErrNotFound.
		Get(ctx context.Context, userID, id int64) (core.Expense, error)
		// List returns the user's expenses matching f, newest date first.
		List(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error)
		// ListRange returns expenses with start <= date < end.
		ListRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error)
		Update(ctx context.Context, e core.Expense) (core.Expense, error)
		Delete(ctx context.Context, userID, id int64) error
	}

	BudgetStore interface {
		// Get returns core.ErrNotFound when no budget is stored for the month.
		Get(ctx context.Context, userID int64, month core.MonthKey) (core.Budget, error)
		// Upsert keeps one row per (user, month) and overwrites the amount.
		Upsert(ctx context.Context, userID int64, month core.MonthKey, amount core.Money) (core.Budget, error)
	}

	// Store bundles the three record stores of one backend.
	Store interface {
		Users() UserStore
		Expenses() ExpenseStore
		Budgets() BudgetStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// MailMessage is a plain-text message to a single recipient.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

type (
	Mailer interface {
		Send(ctx context.Context, m MailMessage) error
	}

	// ActivityPublisher announces expense mutations to downstream consumers.
	ActivityPublisher interface {
		PublishExpenseActivity(ctx context.Context, a Activity) error
	}
)

// ActivityKind names an expense mutation.
type ActivityKind string

const (
	ActivityCreated ActivityKind = "created"
	ActivityUpdated ActivityKind = "updated"
	ActivityDeleted ActivityKind = "deleted"
)

// Activity describes one expense mutation.
type Activity struct {
	Kind    ActivityKind
	Expense core.Expense
	At      time.Time
}
