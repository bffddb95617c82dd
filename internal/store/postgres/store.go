// Package postgres implements ledger.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

const uniqueViolation = "23505"

// Store is a PostgreSQL-backed ledger.Store.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open connects to dsn and creates any missing tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const txColumns = `id, user_id, tx_date, kind, amount, category, description, created_at, idempotency_key, recurring_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (model.Transaction, error) {
	var tx model.Transaction
	var kind string
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Date, &kind, &tx.Amount, &tx.Category,
		&tx.Description, &tx.CreatedAt, &tx.IdempotencyKey, &tx.RecurringID); err != nil {
		return model.Transaction{}, err
	}
	tx.Kind = model.Kind(kind)
	tx.Date = period.DateOf(tx.Date)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

// InsertTransaction implements ledger.TransactionStore.
func (s *Store) InsertTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO transactions (user_id, tx_date, kind, amount, category, category_key, description, created_at, idempotency_key, recurring_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING id`,
		tx.UserID, tx.Date.Format(time.DateOnly), string(tx.Kind), tx.Amount, tx.Category,
		textnorm.Fold(tx.Category), tx.Description, tx.CreatedAt, tx.IdempotencyKey, tx.RecurringID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := scanTransaction(s.db.QueryRowContext(ctx,
			`SELECT `+txColumns+` FROM transactions WHERE idempotency_key = $1`, tx.IdempotencyKey))
		if err != nil {
			return model.Transaction{}, false, fmt.Errorf("reading transaction by idempotency key: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("inserting transaction: %w", err)
	}
	tx.ID = id
	tx.Date = period.DateOf(tx.Date)
	return tx, true, nil
}

// ListTransactions implements ledger.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, f ledger.Filter, p ledger.Page) ([]model.Transaction, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "id > "+arg(p.AfterID))
	if f.UserID != 0 {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if !f.From.IsZero() {
		where = append(where, "tx_date >= "+arg(f.From.Format(time.DateOnly)))
	}
	if !f.To.IsZero() {
		where = append(where, "tx_date <= "+arg(f.To.Format(time.DateOnly)))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		where = append(where, "kind = ANY("+arg(pq.Array(kinds))+")")
	}
	if f.Category != "" {
		where = append(where, "category_key = "+arg(textnorm.Fold(f.Category)))
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if p.Limit > 0 {
		query += " LIMIT " + arg(p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// DeleteTransaction implements ledger.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting transaction: %w", err)
	}
	return affected(res)
}

// ListCategories implements ledger.CategoryStore.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM categories WHERE user_id = $1 ORDER BY name COLLATE "C"`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c := model.Category{UserID: userID, IsCustom: true}
		if err := rows.Scan(&c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCategory implements ledger.CategoryStore.
func (s *Store) AddCategory(ctx context.Context, c model.Category) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO categories (user_id, name_key, name) VALUES ($1, $2, $3)
ON CONFLICT (user_id, name_key) DO NOTHING`,
		c.UserID, textnorm.Fold(c.Name), c.Name)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("adding category: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrDuplicate
	}
	return nil
}

// RemoveCategory implements ledger.CategoryStore.
func (s *Store) RemoveCategory(ctx context.Context, userID int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE user_id = $1 AND name_key = $2`, userID, textnorm.Fold(name))
	if err != nil {
		return false, fmt.Errorf("removing category: %w", err)
	}
	return affected(res)
}

const goalColumns = `id, user_id, name, target, saved_amount, created_at`

func scanGoal(row scanner) (model.SavingsGoal, error) {
	var g model.SavingsGoal
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Target, &g.Current, &g.CreatedAt); err != nil {
		return model.SavingsGoal{}, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

// InsertGoal implements ledger.GoalStore.
func (s *Store) InsertGoal(ctx context.Context, g model.SavingsGoal) (model.SavingsGoal, error) {
	saved, err := scanGoal(s.db.QueryRowContext(ctx, `
INSERT INTO savings_goals (user_id, name, target, saved_amount, created_at) VALUES ($1, $2, $3, $4, $5)
RETURNING `+goalColumns,
		g.UserID, g.Name, g.Target, g.Current, g.CreatedAt))
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("inserting goal: %w", err)
	}
	return saved, nil
}

// GetGoal implements ledger.GoalStore.
func (s *Store) GetGoal(ctx context.Context, userID, id int64) (model.SavingsGoal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SavingsGoal{}, ledger.ErrNotFound
	}
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("reading goal: %w", err)
	}
	return g, nil
}

// ListGoals implements ledger.GoalStore.
func (s *Store) ListGoals(ctx context.Context, userID int64) ([]model.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	defer rows.Close()

	var out []model.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AddGoalProgress implements ledger.GoalStore.
func (s *Store) AddGoalProgress(ctx context.Context, userID, id int64, amount decimal.Decimal) (model.SavingsGoal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx, `
UPDATE savings_goals SET saved_amount = saved_amount + $1 WHERE id = $2 AND user_id = $3
RETURNING `+goalColumns,
		amount, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SavingsGoal{}, ledger.ErrNotFound
	}
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("adding goal progress: %w", err)
	}
	return g, nil
}

// UpsertBudget implements ledger.BudgetStore.
func (s *Store) UpsertBudget(ctx context.Context, b model.Budget) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO budgets (user_id, scope, category_key, period, category, limit_amount)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, scope, category_key, period)
DO UPDATE SET category = EXCLUDED.category, limit_amount = EXCLUDED.limit_amount`,
		b.UserID, string(b.Scope), textnorm.Fold(b.Category), b.Period.String(), b.Category, b.Limit)
	if err != nil {
		return fmt.Errorf("upserting budget: %w", err)
	}
	return nil
}

// ListBudgets implements ledger.BudgetStore.
func (s *Store) ListBudgets(ctx context.Context, userID int64, p period.Period) ([]model.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT scope, category, limit_amount FROM budgets
WHERE user_id = $1 AND period = $2
ORDER BY scope DESC, category COLLATE "C"`,
		userID, p.String())
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	defer rows.Close()

	var out []model.Budget
	for rows.Next() {
		b := model.Budget{UserID: userID, Period: p}
		var scope string
		if err := rows.Scan(&scope, &b.Category, &b.Limit); err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		b.Scope = model.BudgetScope(scope)
		out = append(out, b)
	}
	return out, rows.Err()
}

const recurringColumns = `id, user_id, amount, day_of_month, description, active`

func scanRecurring(row scanner) (model.RecurringPayment, error) {
	var r model.RecurringPayment
	err := row.Scan(&r.ID, &r.UserID, &r.Amount, &r.DayOfMonth, &r.Description, &r.Active)
	return r, err
}

// InsertRecurring implements ledger.RecurringStore.
func (s *Store) InsertRecurring(ctx context.Context, r model.RecurringPayment) (model.RecurringPayment, error) {
	saved, err := scanRecurring(s.db.QueryRowContext(ctx, `
INSERT INTO recurring_payments (user_id, amount, day_of_month, description, active) VALUES ($1, $2, $3, $4, $5)
RETURNING `+recurringColumns,
		r.UserID, r.Amount, r.DayOfMonth, r.Description, r.Active))
	if err != nil {
		return model.RecurringPayment{}, fmt.Errorf("inserting recurring payment: %w", err)
	}
	return saved, nil
}

// GetRecurring implements ledger.RecurringStore.
func (s *Store) GetRecurring(ctx context.Context, userID, id int64) (model.RecurringPayment, error) {
	r, err := scanRecurring(s.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RecurringPayment{}, ledger.ErrNotFound
	}
	if err != nil {
		return model.RecurringPayment{}, fmt.Errorf("reading recurring payment: %w", err)
	}
	return r, nil
}

// ListRecurring implements ledger.RecurringStore.
func (s *Store) ListRecurring(ctx context.Context, userID int64) ([]model.RecurringPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing recurring payments: %w", err)
	}
	defer rows.Close()

	var out []model.RecurringPayment
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recurring payment: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const reminderColumns = `id, user_id, chat_id, day_of_month, due_date, description, fired_for, active`

func scanReminder(row scanner) (model.Reminder, error) {
	var r model.Reminder
	var due sql.NullTime
	var fired string
	if err := row.Scan(&r.ID, &r.UserID, &r.ChatID, &r.DayOfMonth, &due, &r.Description, &fired, &r.Active); err != nil {
		return model.Reminder{}, err
	}
	if due.Valid {
		r.Date = period.DateOf(due.Time)
	}
	if fired != "" {
		p, err := period.Parse(fired)
		if err != nil {
			return model.Reminder{}, fmt.Errorf("reminder %d: %w", r.ID, err)
		}
		r.FiredFor = p
	}
	return r, nil
}

// InsertReminder implements ledger.ReminderStore.
func (s *Store) InsertReminder(ctx context.Context, r model.Reminder) (model.Reminder, error) {
	var due sql.NullString
	if !r.Date.IsZero() {
		due = sql.NullString{String: r.Date.Format(time.DateOnly), Valid: true}
	}
	saved, err := scanReminder(s.db.QueryRowContext(ctx, `
INSERT INTO reminders (user_id, chat_id, day_of_month, due_date, description, fired_for, active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+reminderColumns,
		r.UserID, r.ChatID, r.DayOfMonth, due, r.Description, r.FiredFor.String(), r.Active))
	if err != nil {
		return model.Reminder{}, fmt.Errorf("inserting reminder: %w", err)
	}
	return saved, nil
}

// ListReminders implements ledger.ReminderStore.
func (s *Store) ListReminders(ctx context.Context, userID int64) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReminderOwners implements ledger.ReminderStore.
func (s *Store) ReminderOwners(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM reminders WHERE active ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing reminder owners: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning reminder owner: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkReminderFired implements ledger.ReminderStore.
func (s *Store) MarkReminderFired(ctx context.Context, userID, id int64, p period.Period) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET fired_for = $1 WHERE id = $2 AND user_id = $3 AND fired_for <> $1`,
		p.String(), id, userID)
	if err != nil {
		return false, fmt.Errorf("stamping reminder: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reminders WHERE id = $1 AND user_id = $2)`, id, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("stamping reminder: %w", err)
	}
	if !exists {
		return false, ledger.ErrNotFound
	}
	return false, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// purgeTables lists every table keyed by user_id.
var purgeTables = []string{"transactions", "categories", "savings_goals", "budgets", "recurring_payments", "reminders"}

// PurgeUser implements ledger.Purger.
func (s *Store) PurgeUser(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("purging user %d: %w", userID, err)
	}
	defer tx.Rollback()

	for _, table := range purgeTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("purging %s for user %d: %w", table, userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("purging user %d: %w", userID, err)
	}
	return nil
}
