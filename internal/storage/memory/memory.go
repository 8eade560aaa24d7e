// Package memory is an in-process record store for tests and local demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"
)

type budgetKey struct {
	user  int64
	month core.MonthKey
}

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	users    map[int64]core.User
	expenses map[int64]core.Expense
	budgets  map[budgetKey]core.Budget
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock stamps created/updated times with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:      now,
		users:    map[int64]core.User{},
		expenses: map[int64]core.Expense{},
		budgets:  map[budgetKey]core.Budget{},
	}
}

func (s *Store) Users() ports.UserStore       { return userStore{s} }
func (s *Store) Expenses() ports.ExpenseStore { return expenseStore{s} }
func (s *Store) Budgets() ports.BudgetStore   { return budgetStore{s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

type userStore struct{ s *Store }

func (u userStore) FindByEmail(_ context.Context, email string) (core.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, usr := range u.s.users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (u userStore) FindByID(_ context.Context, id int64) (core.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return usr, nil
}

func (u userStore) emailTaken(email string, except int64) bool {
	for id, usr := range u.s.users {
		if id != except && usr.Email == email {
			return true
		}
	}
	return false
}

func (u userStore) Create(_ context.Context, usr core.User) (core.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.emailTaken(usr.Email, 0) {
		return core.User{}, core.ErrConflict
	}
	now := u.s.now().UTC()
	usr.ID = u.s.id()
	usr.Reset = core.NoPendingReset{}
	usr.CreatedAt, usr.UpdatedAt = now, now
	u.s.users[usr.ID] = usr
	return usr, nil
}

func (u userStore) UpdateProfile(_ context.Context, id int64, name, email string) (core.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	if u.emailTaken(email, id) {
		return core.User{}, core.ErrConflict
	}
	usr.Name, usr.Email = name, email
	usr.UpdatedAt = u.s.now().UTC()
	u.s.users[id] = usr
	return usr, nil
}

func (u userStore) mutate(id int64, fn func(*core.User) error) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	if err := fn(&usr); err != nil {
		return err
	}
	usr.UpdatedAt = u.s.now().UTC()
	u.s.users[id] = usr
	return nil
}

func (u userStore) UpdateCredential(_ context.Context, id int64, hash string) error {
	return u.mutate(id, func(usr *core.User) error {
		usr.PasswordHash = hash
		return nil
	})
}

func (u userStore) SetPendingReset(_ context.Context, id int64, p core.PendingReset) error {
	return u.mutate(id, func(usr *core.User) error {
		usr.Reset = p
		return nil
	})
}

func (u userStore) CompleteReset(_ context.Context, id int64, code, hash string) error {
	return u.mutate(id, func(usr *core.User) error {
		p, ok := usr.Reset.(core.PendingReset)
		if !ok || p.Code != code {
			return core.ErrNotFound
		}
		usr.PasswordHash = hash
		usr.Reset = core.NoPendingReset{}
		return nil
	})
}

type expenseStore struct{ s *Store }

func (e expenseStore) Create(_ context.Context, exp core.Expense) (core.Expense, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.users[exp.UserID]; !ok {
		return core.Expense{}, core.ErrNotFound
	}
	now := e.s.now().UTC()
	exp.ID = e.s.id()
	exp.CreatedAt, exp.UpdatedAt = now, now
	e.s.expenses[exp.ID] = exp
	return exp, nil
}

func (e expenseStore) Get(_ context.Context, userID, id int64) (core.Expense, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	exp, ok := e.s.expenses[id]
	if !ok || exp.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return exp, nil
}

func (e expenseStore) List(_ context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	out := e.collect(userID, f.Matches)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (e expenseStore) ListRange(_ context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	out := e.collect(userID, func(exp core.Expense) bool {
		return !exp.Date.Before(start) && exp.Date.Before(end)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (e expenseStore) collect(userID int64, keep func(core.Expense) bool) []core.Expense {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var out []core.Expense
	for _, exp := range e.s.expenses {
		if exp.UserID == userID && keep(exp) {
			out = append(out, exp)
		}
	}
	return out
}

func (e expenseStore) Update(_ context.Context, exp core.Expense) (core.Expense, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	old, ok := e.s.expenses[exp.ID]
	if !ok || old.UserID != exp.UserID {
		return core.Expense{}, core.ErrNotFound
	}
	exp.CreatedAt = old.CreatedAt
	exp.UpdatedAt = e.s.now().UTC()
	e.s.expenses[exp.ID] = exp
	return exp, nil
}

func (e expenseStore) Delete(_ context.Context, userID, id int64) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	exp, ok := e.s.expenses[id]
	if !ok || exp.UserID != userID {
		return core.ErrNotFound
	}
	delete(e.s.expenses, id)
	return nil
}

type budgetStore struct{ s *Store }

func (b budgetStore) Get(_ context.Context, userID int64, month core.MonthKey) (core.Budget, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	bud, ok := b.s.budgets[budgetKey{userID, month}]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	return bud, nil
}

func (b budgetStore) Upsert(_ context.Context, userID int64, month core.MonthKey, amount core.Money) (core.Budget, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.users[userID]; !ok {
		return core.Budget{}, core.ErrNotFound
	}
	key := budgetKey{userID, month}
	now := b.s.now().UTC()
	bud, ok := b.s.budgets[key]
	if !ok {
		bud = core.Budget{ID: b.s.id(), UserID: userID, Month: month, CreatedAt: now}
	}
	bud.Amount = amount
	bud.UpdatedAt = now
	b.s.budgets[key] = bud
	return bud, nil
}
