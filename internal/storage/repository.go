package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository is the default record store. Timestamps are stored as
// UTC unix milliseconds and amounts as integer cents.
type SQLiteRepository struct {
	db       *sql.DB
	users    *userRepo
	expenses *expenseRepo
	budgets  *budgetRepo
	now      func() time.Time
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dsnFor(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &SQLiteRepository{db: db, now: time.Now}
	r.users = &userRepo{r}
	r.expenses = &expenseRepo{r}
	r.budgets = &budgetRepo{r}
	return r, nil
}

func dsnFor(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Users() ports.UserStore       { return r.users }
func (r *SQLiteRepository) Expenses() ports.ExpenseStore { return r.expenses }
func (r *SQLiteRepository) Budgets() ports.BudgetStore   { return r.budgets }

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Users

type userRepo struct{ r *SQLiteRepository }

const userColumns = `id, email, name, password_hash, reset_code, reset_expires_at, created_at, updated_at`

func scanUser(row rowScanner) (core.User, error) {
	var (
		u                core.User
		code             sql.NullString
		expires          sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &code, &expires, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	u.Reset = core.NoPendingReset{}
	if code.Valid && expires.Valid {
		u.Reset = core.PendingReset{Code: code.String, ExpiresAt: fromMillis(expires.Int64)}
	}
	return u, nil
}

func (s *userRepo) FindByEmail(ctx context.Context, email string) (core.User, error) {
	row := s.r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, err
}

func (s *userRepo) FindByID(ctx context.Context, id int64) (core.User, error) {
	row := s.r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, err
}

func (s *userRepo) Create(ctx context.Context, u core.User) (core.User, error) {
	now := toMillis(s.r.now())
	row := s.r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		u.Email, u.Name, u.PasswordHash, now, now)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrConflict
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "id", created.ID)
	return created, nil
}

func (s *userRepo) UpdateProfile(ctx context.Context, id int64, name, email string) (core.User, error) {
	row := s.r.db.QueryRowContext(ctx, `
		UPDATE users SET name = ?, email = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+userColumns,
		name, email, toMillis(s.r.now()), id)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrConflict
		}
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (s *userRepo) UpdateCredential(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(s.r.now()), id)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return requireRow(res)
}

func (s *userRepo) SetPendingReset(ctx context.Context, id int64, p core.PendingReset) error {
	res, err := s.r.db.ExecContext(ctx,
		`UPDATE users SET reset_code = ?, reset_expires_at = ?, updated_at = ? WHERE id = ?`,
		p.Code, toMillis(p.ExpiresAt), toMillis(s.r.now()), id)
	if err != nil {
		return fmt.Errorf("set pending reset: %w", err)
	}
	return requireRow(res)
}

func (s *userRepo) CompleteReset(ctx context.Context, id int64, code, passwordHash string) error {
	res, err := s.r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, reset_code = NULL, reset_expires_at = NULL, updated_at = ?
		WHERE id = ? AND reset_code = ?`,
		passwordHash, toMillis(s.r.now()), id, code)
	if err != nil {
		return fmt.Errorf("complete reset: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Expenses

type expenseRepo struct{ r *SQLiteRepository }

const expenseColumns = `id, user_id, title, amount_cents, category, date, notes, created_at, updated_at`

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                      core.Expense
		category               string
		date, created, updated int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount.Cents, &category, &date, &e.Notes, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, core.ErrNotFound
		}
		return core.Expense{}, err
	}
	e.Category = core.Category(category)
	e.Date = fromMillis(date)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return e, nil
}

func (s *expenseRepo) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := toMillis(s.r.now())
	row := s.r.db.QueryRowContext(ctx, `
		INSERT INTO expenses (user_id, title, amount_cents, category, date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+expenseColumns,
		e.UserID, e.Title, e.Amount.Cents, string(e.Category), toMillis(e.Date), e.Notes, now, now)
	created, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"user_id", created.UserID,
		"amount_cents", created.Amount.Cents,
		"category", created.Category)
	return created, nil
}

func (s *expenseRepo) Get(ctx context.Context, userID, id int64) (core.Expense, error) {
	row := s.r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, err
}

func (s *expenseRepo) List(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, toMillis(f.To))
	}
	query += ` ORDER BY date DESC, id DESC`
	return s.query(ctx, "list expenses", query, args...)
}

func (s *expenseRepo) ListRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	return s.query(ctx, "list expenses in range", `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC, id ASC`,
		userID, toMillis(start), toMillis(end))
}

func (s *expenseRepo) query(ctx context.Context, op, query string, args ...any) ([]core.Expense, error) {
	rows, err := s.r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *expenseRepo) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	row := s.r.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, category = ?, date = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+expenseColumns,
		e.Title, e.Amount.Cents, string(e.Category), toMillis(e.Date), e.Notes, toMillis(s.r.now()),
		e.ID, e.UserID)
	updated, err := scanExpense(row)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return updated, err
}

func (s *expenseRepo) Delete(ctx context.Context, userID, id int64) error {
	res, err := s.r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res)
}

// Budgets

type budgetRepo struct{ r *SQLiteRepository }

const budgetColumns = `id, user_id, month, amount_cents, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		month            string
		created, updated int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &month, &b.Amount.Cents, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, core.ErrNotFound
		}
		return core.Budget{}, err
	}
	b.Month = core.MonthKey(month)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func (s *budgetRepo) Get(ctx context.Context, userID int64, month core.MonthKey) (core.Budget, error) {
	row := s.r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND month = ?`, userID, string(month))
	b, err := scanBudget(row)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, err
}

func (s *budgetRepo) Upsert(ctx context.Context, userID int64, month core.MonthKey, amount core.Money) (core.Budget, error) {
	now := toMillis(s.r.now())
	row := s.r.db.QueryRowContext(ctx, `
		INSERT INTO budgets (user_id, month, amount_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE
		SET amount_cents = excluded.amount_cents, updated_at = excluded.updated_at
		RETURNING `+budgetColumns,
		userID, string(month), amount.Cents, now, now)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}
