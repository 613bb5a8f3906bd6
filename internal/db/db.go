// Package db provides the SQLite database wrapper and model types for inkd.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB and provides migration support.
type DB struct {
	*sql.DB
}

// New opens a SQLite connection with WAL mode and foreign keys enabled.
// Driver name is "sqlite" (modernc.org/sqlite, not mattn/go-sqlite3).
func New(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("db.New: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db.New: ping: %w", err)
	}
	// One writer at a time: every credit debit runs as a single serialized transaction.
	sqlDB.SetMaxOpenConns(1)
	return &DB{sqlDB}, nil
}

// Migrate runs all CREATE TABLE IF NOT EXISTS migrations exactly once per schema version.
func (d *DB) Migrate() error {
	if _, err := d.Exec(ddlSettings); err != nil {
		return fmt.Errorf("db.Migrate: settings table: %w", err)
	}

	// INSERT OR IGNORE keeps values edited through the API.
	defaults := []struct{ k, v string }{
		{"telegram_token", ""},
		{"telegram_chat_id", ""},
		{"low_credit_threshold", "500"},
		{"session_expiry_hours", "24"},
		{"brute_force_max_attempts", "5"},
		{"brute_force_block_minutes", "15"},
	}
	for _, s := range defaults {
		if _, err := d.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, s.k, s.v); err != nil {
			return fmt.Errorf("db.Migrate: seed setting %q: %w", s.k, err)
		}
	}

	var version int
	row := d.QueryRow(`SELECT value FROM settings WHERE key='schema_version' LIMIT 1`)
	_ = row.Scan(&version) // row may not exist yet (version=0).

	if version >= schemaVersion {
		return nil
	}

	tables := []string{
		ddlUsers,
		ddlSessions,
		ddlLoginAttempts,
		ddlUserCredits,
		ddlCreditTransactions,
		ddlWordUsage,
		ddlPayments,
		ddlWebhooks,
		ddlLogs,
	}
	for _, ddl := range tables {
		if _, err := d.Exec(ddl); err != nil {
			return fmt.Errorf("db.Migrate: %w", err)
		}
	}

	_, err := d.Exec(`INSERT INTO settings (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, schemaVersion)
	if err != nil {
		return fmt.Errorf("db.Migrate: schema_version upsert: %w", err)
	}
	return nil
}

const schemaVersion = 1

// ── Model Types ──────────────────────────────────────────────────────────────

// User represents an admin user.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents an authenticated admin session.
type Session struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CreditAccount is a caller's prepaid word-credit balance.
type CreditAccount struct {
	UserID      string    `json:"user_id"`
	WordCredits int64     `json:"word_credits"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreditTransaction is one balance movement (debit, grant, refund, purchase).
type CreditTransaction struct {
	ID           int       `json:"id"`
	UserID       string    `json:"user_id"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// WordUsage records the outcome of one transformation request.
type WordUsage struct {
	ID         int       `json:"id"`
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	TonePreset string    `json:"tone_preset"`
	Words      int64     `json:"words"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Date       string    `json:"date"`
	CreatedAt  time.Time `json:"created_at"`
}

// Payment is a PayPal payment created through the purchase flow.
type Payment struct {
	ID        int          `json:"id"`
	PaymentID string       `json:"payment_id"`
	UserID    string       `json:"user_id"`
	PlanName  string       `json:"plan_name"`
	Amount    string       `json:"amount"`
	Currency  string       `json:"currency"`
	State     string       `json:"state"`
	PayerID   string       `json:"payer_id,omitempty"`
	Executed  sql.NullTime `json:"executed_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Webhook defines an outbound webhook subscription.
type Webhook struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	URL        string       `json:"url"`
	Events     string       `json:"events"`
	Secret     string       `json:"-"`
	Enabled    bool         `json:"enabled"`
	LastStatus int          `json:"last_status"`
	LastFired  sql.NullTime `json:"last_fired,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ── DDL Statements ───────────────────────────────────────────────────────────

const ddlSettings = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);`

const ddlUsers = `CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT    NOT NULL UNIQUE,
	password_hash TEXT    NOT NULL,
	created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlSessions = `CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token      TEXT    NOT NULL UNIQUE,
	expires_at DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlLoginAttempts = `CREATE TABLE IF NOT EXISTS login_attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ip         TEXT    NOT NULL,
	success    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlUserCredits = `CREATE TABLE IF NOT EXISTS user_credits (
	user_id      TEXT    PRIMARY KEY,
	word_credits INTEGER NOT NULL DEFAULT 0 CHECK (word_credits >= 0),
	updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlCreditTransactions = `CREATE TABLE IF NOT EXISTS credit_transactions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       TEXT    NOT NULL,
	delta         INTEGER NOT NULL,
	balance_after INTEGER NOT NULL,
	reason        TEXT    NOT NULL DEFAULT '',
	created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlWordUsage = `CREATE TABLE IF NOT EXISTS word_usage (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT    NOT NULL,
	user_id     TEXT    NOT NULL,
	tone_preset TEXT    NOT NULL DEFAULT '',
	words       INTEGER NOT NULL DEFAULT 0,
	status      TEXT    NOT NULL DEFAULT 'ok',
	error       TEXT    NOT NULL DEFAULT '',
	date        TEXT    NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlPayments = `CREATE TABLE IF NOT EXISTS payments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	payment_id  TEXT    NOT NULL UNIQUE,
	user_id     TEXT    NOT NULL DEFAULT '',
	plan_name   TEXT    NOT NULL DEFAULT '',
	amount      TEXT    NOT NULL,
	currency    TEXT    NOT NULL DEFAULT 'USD',
	state       TEXT    NOT NULL DEFAULT 'created',
	payer_id    TEXT    NOT NULL DEFAULT '',
	executed_at DATETIME,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlWebhooks = `CREATE TABLE IF NOT EXISTS webhooks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	events      TEXT    NOT NULL DEFAULT '',
	secret      TEXT    NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL DEFAULT 1,
	last_status INTEGER NOT NULL DEFAULT 0,
	last_fired  DATETIME,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlLogs = `CREATE TABLE IF NOT EXISTS logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT    NOT NULL DEFAULT '',
	level      TEXT    NOT NULL DEFAULT 'info',
	message    TEXT    NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// ── Helpers ───────────────────────────────────────────────────────────────────

// WriteLog inserts a log line into the logs table.
func (d *DB) WriteLog(userID, level, message string) {
	_, _ = d.Exec(
		`INSERT INTO logs (user_id, level, message) VALUES (?,?,?)`,
		userID, level, message,
	)
}

// GetSetting retrieves a settings value by key, returning fallback if not found.
func (d *DB) GetSetting(key, fallback string) string {
	var v string
	if err := d.QueryRow(`SELECT value FROM settings WHERE key=?`, key).Scan(&v); err != nil {
		return fallback
	}
	return v
}

// SetSetting upserts a settings key-value pair.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.Exec(
		`INSERT INTO settings (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("db.SetSetting: %w", err)
	}
	return nil
}
