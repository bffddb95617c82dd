package postgres

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  tx_date DATE NOT NULL,
  kind TEXT NOT NULL,
  amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
  category TEXT NOT NULL,
  category_key TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  idempotency_key TEXT NOT NULL UNIQUE,
  recurring_id BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tx_user_date ON transactions(user_id, tx_date);

CREATE TABLE IF NOT EXISTS categories (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  name_key TEXT NOT NULL,
  name TEXT NOT NULL,
  UNIQUE(user_id, name_key)
);

CREATE TABLE IF NOT EXISTS savings_goals (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  target NUMERIC(14,2) NOT NULL CHECK (target > 0),
  saved_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_goals_user ON savings_goals(user_id);

-- One row per user, scope, category and month.
CREATE TABLE IF NOT EXISTS budgets (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  scope TEXT NOT NULL,
  category_key TEXT NOT NULL DEFAULT '',
  period TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  limit_amount NUMERIC(14,2) NOT NULL CHECK (limit_amount > 0),
  UNIQUE(user_id, scope, category_key, period)
);

CREATE TABLE IF NOT EXISTS recurring_payments (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
  day_of_month INTEGER NOT NULL CHECK (day_of_month >= 1 AND day_of_month <= 31),
  description TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS reminders (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  chat_id BIGINT NOT NULL DEFAULT 0,
  day_of_month INTEGER NOT NULL DEFAULT 0,
  due_date DATE,
  description TEXT NOT NULL,
  fired_for TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id);
`
