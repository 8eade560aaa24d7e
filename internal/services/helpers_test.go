package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"budgetly/internal/cache"
	"budgetly/internal/core"
	"budgetly/internal/ports"
	"budgetly/internal/storage/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// plainHasher keeps tests fast; bcrypt is covered in internal/auth.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(hash, p string) (bool, error) {
	if !strings.HasPrefix(hash, "hashed:") {
		return false, errors.New("malformed hash")
	}
	return hash == "hashed:"+p, nil
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []ports.MailMessage
	err      error
	onSend   func(ctx context.Context)
	deadline bool
}

func (m *fakeMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, m.deadline = ctx.Deadline()
	if m.onSend != nil {
		m.onSend(ctx)
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) ports.MailMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

type fakePublisher struct {
	mu         sync.Mutex
	activities []ports.Activity
	err        error
}

func (p *fakePublisher) PublishExpenseActivity(_ context.Context, a ports.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activities = append(p.activities, a)
	return p.err
}

type fixture struct {
	store     *memory.Store
	clock     *testClock
	summaries *SummaryService
	budgets   *BudgetService
	expenses  *ExpenseService
	publisher *fakePublisher
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	clock := newClock(now)
	store := memory.NewWithClock(clock.Now)
	summaries := NewSummaryService(store.Expenses(), time.UTC, cache.NewLRUCache[core.MonthlySummary](16, time.Hour), nil)
	publisher := &fakePublisher{}
	return &fixture{
		store:     store,
		clock:     clock,
		summaries: summaries,
		budgets:   NewBudgetService(store.Budgets(), summaries, nil),
		expenses:  NewExpenseService(store.Expenses(), summaries, publisher, clock.Now, nil),
		publisher: publisher,
	}
}

func (f *fixture) user(t *testing.T, email string) core.User {
	t.Helper()
	u, err := f.store.Users().Create(context.Background(), core.User{Email: email, Name: "Test", PasswordHash: "hashed:password1"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) expense(t *testing.T, userID int64, c core.Category, cents int64, date time.Time) core.Expense {
	t.Helper()
	e, err := f.expenses.CreateExpense(context.Background(), core.Expense{
		UserID: userID, Title: string(c), Amount: core.Cents(cents), Category: c, Date: date,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

type brokenRange struct {
	ports.ExpenseStore
	err error
}

func (b brokenRange) ListRange(context.Context, int64, time.Time, time.Time) ([]core.Expense, error) {
	return nil, b.err
}

// interleavedRange runs afterRead once, between reading a range and returning
// it, so a write can land while a summary is being computed.
type interleavedRange struct {
	ports.ExpenseStore
	afterRead func()
}

func (r *interleavedRange) ListRange(ctx context.Context, userID int64, from, to time.Time) ([]core.Expense, error) {
	expenses, err := r.ExpenseStore.ListRange(ctx, userID, from, to)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return expenses, err
}
