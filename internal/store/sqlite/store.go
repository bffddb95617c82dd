package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// Store is a ledger.Store backed by an SQLite file through gorm.
type Store struct {
	db *gorm.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY under concurrent commits.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&transactionRow{},
		&categoryRow{},
		&goalRow{},
		&budgetRow{},
		&recurringRow{},
		&reminderRow{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertTransaction implements ledger.TransactionStore.
func (s *Store) InsertTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, bool, error) {
	db := s.db.WithContext(ctx)

	if existing, ok, err := s.findByKey(db, tx.IdempotencyKey); err != nil || ok {
		return existing, false, err
	}

	row := toTransactionRow(tx)
	row.ID = 0
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return model.Transaction{}, false, fmt.Errorf("inserting transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a race with a concurrent commit of the same key.
		existing, _, err := s.findByKey(db, tx.IdempotencyKey)
		return existing, false, err
	}

	saved, err := row.model()
	if err != nil {
		return model.Transaction{}, false, err
	}
	return saved, true, nil
}

func (s *Store) findByKey(db *gorm.DB, key string) (model.Transaction, bool, error) {
	var row transactionRow
	err := db.Where("idempotency_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Transaction{}, false, nil
	}
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("looking up idempotency key: %w", err)
	}
	tx, err := row.model()
	if err != nil {
		return model.Transaction{}, false, err
	}
	return tx, true, nil
}

// ListTransactions implements ledger.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, f ledger.Filter, p ledger.Page) ([]model.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&transactionRow{}).Where("id > ?", p.AfterID)
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if !f.From.IsZero() {
		q = q.Where("tx_date >= ?", f.From.Format(dateFormat))
	}
	if !f.To.IsZero() {
		q = q.Where("tx_date <= ?", f.To.Format(dateFormat))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		q = q.Where("kind IN ?", kinds)
	}
	if f.Category != "" {
		q = q.Where("category_key = ?", textnorm.Fold(f.Category))
	}
	q = q.Order("id")
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}

	var rows []transactionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	out := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// DeleteTransaction implements ledger.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&transactionRow{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting transaction: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListCategories implements ledger.CategoryStore.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	var rows []categoryRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	out := make([]model.Category, len(rows))
	for i, r := range rows {
		out[i] = model.Category{UserID: r.UserID, Name: r.Name, IsCustom: true}
	}
	return out, nil
}

// AddCategory implements ledger.CategoryStore.
func (s *Store) AddCategory(ctx context.Context, c model.Category) error {
	row := categoryRow{UserID: c.UserID, Key: textnorm.Fold(c.Name), Name: c.Name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&categoryRow{}).Where("user_id = ? AND name_key = ?", row.UserID, row.Key).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ledger.ErrDuplicate
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ledger.ErrDuplicate
	}
	if err != nil && !errors.Is(err, ledger.ErrDuplicate) {
		return fmt.Errorf("adding category: %w", err)
	}
	return err
}

// RemoveCategory implements ledger.CategoryStore.
func (s *Store) RemoveCategory(ctx context.Context, userID int64, name string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND name_key = ?", userID, textnorm.Fold(name)).Delete(&categoryRow{})
	if res.Error != nil {
		return false, fmt.Errorf("removing category: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// InsertGoal implements ledger.GoalStore.
func (s *Store) InsertGoal(ctx context.Context, g model.SavingsGoal) (model.SavingsGoal, error) {
	row := goalRow{
		UserID:    g.UserID,
		Name:      g.Name,
		Target:    g.Target.String(),
		Current:   g.Current.String(),
		CreatedAt: g.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.SavingsGoal{}, fmt.Errorf("inserting goal: %w", err)
	}
	return row.model()
}

// GetGoal implements ledger.GoalStore.
func (s *Store) GetGoal(ctx context.Context, userID, id int64) (model.SavingsGoal, error) {
	var row goalRow
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SavingsGoal{}, ledger.ErrNotFound
	}
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("reading goal: %w", err)
	}
	return row.model()
}

// ListGoals implements ledger.GoalStore.
func (s *Store) ListGoals(ctx context.Context, userID int64) ([]model.SavingsGoal, error) {
	var rows []goalRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	out := make([]model.SavingsGoal, 0, len(rows))
	for _, r := range rows {
		g, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// AddGoalProgress implements ledger.GoalStore.
func (s *Store) AddGoalProgress(ctx context.Context, userID, id int64, amount decimal.Decimal) (model.SavingsGoal, error) {
	var updated model.SavingsGoal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row goalRow
		err := tx.Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrNotFound
		}
		if err != nil {
			return err
		}
		g, err := row.model()
		if err != nil {
			return err
		}
		g.Current = g.Current.Add(amount)
		if err := tx.Model(&row).Update("current", g.Current.String()).Error; err != nil {
			return err
		}
		updated = g
		return nil
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return model.SavingsGoal{}, err
	}
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("adding goal progress: %w", err)
	}
	return updated, nil
}

// UpsertBudget implements ledger.BudgetStore.
func (s *Store) UpsertBudget(ctx context.Context, b model.Budget) error {
	row := budgetRow{
		UserID:      b.UserID,
		Scope:       string(b.Scope),
		CategoryKey: textnorm.Fold(b.Category),
		Period:      b.Period.String(),
		Category:    b.Category,
		LimitAmount: b.Limit.String(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "scope"}, {Name: "category_key"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "limit_amount"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upserting budget: %w", err)
	}
	return nil
}

// ListBudgets implements ledger.BudgetStore.
func (s *Store) ListBudgets(ctx context.Context, userID int64, p period.Period) ([]model.Budget, error) {
	var rows []budgetRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, p.String()).
		Order("scope DESC").Order("category").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	out := make([]model.Budget, 0, len(rows))
	for _, r := range rows {
		b, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// InsertRecurring implements ledger.RecurringStore.
func (s *Store) InsertRecurring(ctx context.Context, r model.RecurringPayment) (model.RecurringPayment, error) {
	row := recurringRow{
		UserID:      r.UserID,
		Amount:      r.Amount.String(),
		DayOfMonth:  r.DayOfMonth,
		Description: r.Description,
		Active:      r.Active,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.RecurringPayment{}, fmt.Errorf("inserting recurring payment: %w", err)
	}
	return row.model()
}

// GetRecurring implements ledger.RecurringStore.
func (s *Store) GetRecurring(ctx context.Context, userID, id int64) (model.RecurringPayment, error) {
	var row recurringRow
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.RecurringPayment{}, ledger.ErrNotFound
	}
	if err != nil {
		return model.RecurringPayment{}, fmt.Errorf("reading recurring payment: %w", err)
	}
	return row.model()
}

// ListRecurring implements ledger.RecurringStore.
func (s *Store) ListRecurring(ctx context.Context, userID int64) ([]model.RecurringPayment, error) {
	var rows []recurringRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing recurring payments: %w", err)
	}
	out := make([]model.RecurringPayment, 0, len(rows))
	for _, r := range rows {
		rp, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, nil
}

// InsertReminder implements ledger.ReminderStore.
func (s *Store) InsertReminder(ctx context.Context, r model.Reminder) (model.Reminder, error) {
	row := reminderRow{
		UserID:      r.UserID,
		ChatID:      r.ChatID,
		DayOfMonth:  r.DayOfMonth,
		Description: r.Description,
		FiredFor:    r.FiredFor.String(),
		Active:      r.Active,
	}
	if !r.Date.IsZero() {
		row.Date = r.Date.Format(dateFormat)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Reminder{}, fmt.Errorf("inserting reminder: %w", err)
	}
	return row.model()
}

// ListReminders implements ledger.ReminderStore.
func (s *Store) ListReminders(ctx context.Context, userID int64) ([]model.Reminder, error) {
	var rows []reminderRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	out := make([]model.Reminder, 0, len(rows))
	for _, r := range rows {
		rem, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, nil
}

// ReminderOwners implements ledger.ReminderStore.
func (s *Store) ReminderOwners(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&reminderRow{}).
		Where("active = ?", true).
		Distinct("user_id").Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing reminder owners: %w", err)
	}
	return ids, nil
}

// MarkReminderFired implements ledger.ReminderStore.
func (s *Store) MarkReminderFired(ctx context.Context, userID, id int64, p period.Period) (bool, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&reminderRow{}).
		Where("id = ? AND user_id = ? AND fired_for <> ?", id, userID, p.String()).
		Update("fired_for", p.String())
	if res.Error != nil {
		return false, fmt.Errorf("stamping reminder: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var n int64
	if err := db.Model(&reminderRow{}).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("stamping reminder: %w", err)
	}
	if n == 0 {
		return false, ledger.ErrNotFound
	}
	return false, nil
}

// PurgeUser implements ledger.Purger.
func (s *Store) PurgeUser(ctx context.Context, userID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range []any{&transactionRow{}, &categoryRow{}, &goalRow{}, &budgetRow{}, &recurringRow{}, &reminderRow{}} {
			if err := tx.Where("user_id = ?", userID).Delete(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purging user %d: %w", userID, err)
	}
	return nil
}
