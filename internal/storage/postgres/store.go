// Package postgres is the Postgres-backed record store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ ports.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for users, expenses and budgets.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects, runs migrations and returns the store.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Users() ports.UserStore       { return userStore{s.pool} }
func (s *Store) Expenses() ports.ExpenseStore { return expenseStore{s.pool} }
func (s *Store) Budgets() ports.BudgetStore   { return budgetStore{s.pool} }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

type userStore struct{ pool *pgxpool.Pool }

const userColumns = `id, email, name, password_hash, reset_code, reset_expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (core.User, error) {
	var (
		u       core.User
		code    *string
		expires *time.Time
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &code, &expires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return core.User{}, notFound(err)
	}
	u.Reset = core.NoPendingReset{}
	if code != nil && expires != nil {
		u.Reset = core.PendingReset{Code: *code, ExpiresAt: expires.UTC()}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (s userStore) FindByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s userStore) FindByID(ctx context.Context, id int64) (core.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s userStore) Create(ctx context.Context, u core.User) (core.User, error) {
	const query = `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	created, err := scanUser(s.pool.QueryRow(ctx, query, u.Email, u.Name, u.PasswordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrConflict
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s userStore) UpdateProfile(ctx context.Context, id int64, name, email string) (core.User, error) {
	const query = `
		UPDATE users SET name = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, query, id, name, email))
	switch {
	case err == nil:
		return u, nil
	case isUniqueViolation(err):
		return core.User{}, core.ErrConflict
	case errors.Is(err, core.ErrNotFound):
		return core.User{}, err
	default:
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
}

func (s userStore) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s userStore) UpdateCredential(ctx context.Context, id int64, passwordHash string) error {
	return s.exec(ctx, "update credential",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

func (s userStore) SetPendingReset(ctx context.Context, id int64, p core.PendingReset) error {
	return s.exec(ctx, "set pending reset",
		`UPDATE users SET reset_code = $2, reset_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		id, p.Code, p.ExpiresAt)
}

func (s userStore) CompleteReset(ctx context.Context, id int64, code, passwordHash string) error {
	return s.exec(ctx, "complete reset", `
		UPDATE users
		SET password_hash = $3, reset_code = NULL, reset_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND reset_code = $2`,
		id, code, passwordHash)
}

type expenseStore struct{ pool *pgxpool.Pool }

const expenseColumns = `id, user_id, title, amount_cents, category, date, notes, created_at, updated_at`

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e        core.Expense
		category string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount.Cents, &category, &e.Date, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return core.Expense{}, notFound(err)
	}
	e.Category = core.Category(category)
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func (s expenseStore) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	const query = `
		INSERT INTO expenses (user_id, title, amount_cents, category, date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + expenseColumns
	created, err := scanExpense(s.pool.QueryRow(ctx, query,
		e.UserID, e.Title, e.Amount.Cents, string(e.Category), e.Date, e.Notes))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return created, nil
}

func (s expenseStore) Get(ctx context.Context, userID, id int64) (core.Expense, error) {
	return scanExpense(s.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s expenseStore) List(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = $1`
	args := []any{userID}
	if f.Category != "" {
		args = append(args, string(f.Category))
		query += ` AND category = $` + strconv.Itoa(len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += ` AND date >= $` + strconv.Itoa(len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += ` AND date <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY date DESC, id DESC`
	return s.collect(ctx, "list expenses", query, args...)
}

func (s expenseStore) ListRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	return s.collect(ctx, "list expenses in range", `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date ASC, id ASC`, userID, start, end)
}

func (s expenseStore) collect(ctx context.Context, op, query string, args ...any) ([]core.Expense, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Expense, error) {
		return scanExpense(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s expenseStore) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	const query = `
		UPDATE expenses
		SET title = $3, amount_cents = $4, category = $5, date = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + expenseColumns
	updated, err := scanExpense(s.pool.QueryRow(ctx, query,
		e.ID, e.UserID, e.Title, e.Amount.Cents, string(e.Category), e.Date, e.Notes))
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return updated, err
}

func (s expenseStore) Delete(ctx context.Context, userID, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

type budgetStore struct{ pool *pgxpool.Pool }

const budgetColumns = `id, user_id, month, amount_cents, created_at, updated_at`

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b     core.Budget
		month string
	)
	if err := row.Scan(&b.ID, &b.UserID, &month, &b.Amount.Cents, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return core.Budget{}, notFound(err)
	}
	b.Month = core.MonthKey(month)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func (s budgetStore) Get(ctx context.Context, userID int64, month core.MonthKey) (core.Budget, error) {
	return scanBudget(s.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 AND month = $2`, userID, string(month)))
}

func (s budgetStore) Upsert(ctx context.Context, userID int64, month core.MonthKey, amount core.Money) (core.Budget, error) {
	const query = `
		INSERT INTO budgets (user_id, month, amount_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, month) DO UPDATE
		SET amount_cents = EXCLUDED.amount_cents, updated_at = NOW()
		RETURNING ` + budgetColumns
	b, err := scanBudget(s.pool.QueryRow(ctx, query, userID, string(month), amount.Cents))
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}
