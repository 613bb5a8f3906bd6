package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Manjussha/inkd/internal/db"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS user_credits (
	user_id      TEXT        PRIMARY KEY,
	word_credits BIGINT      NOT NULL DEFAULT 0 CHECK (word_credits >= 0),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS credit_transactions (
	id            BIGSERIAL   PRIMARY KEY,
	user_id       TEXT        NOT NULL,
	delta         BIGINT      NOT NULL,
	balance_after BIGINT      NOT NULL,
	reason        TEXT        NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_credit_tx_user ON credit_transactions(user_id, id);`

// PostgresLedger keeps balances in Postgres so several inkd instances can
// share one ledger. The schema mirrors the SQLite one.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger connects to dsn and creates the tables if needed.
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	if dsn == "" {
		return nil, fmt.Errorf("credit.NewPostgresLedger: DATABASE_URL is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("credit.NewPostgresLedger: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("credit.NewPostgresLedger: ping", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("credit.NewPostgresLedger: migrate: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() { l.pool.Close() }

// Balance returns the caller's current balance.
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx,
		`SELECT word_credits FROM user_credits WHERE user_id=$1`, userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, unavailable("credit.Balance", err)
	}
	return balance, nil
}

// Debit atomically subtracts amount when the balance covers it, using the
// same guarded UPDATE as SQLiteLedger. Row locking makes concurrent debits
// for one caller queue behind each other.
func (l *PostgresLedger) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, unavailable("credit.Debit: begin tx", err)
	}
	defer tx.Rollback(ctx)

	var after int64
	err = tx.QueryRow(ctx, `
		UPDATE user_credits
		SET word_credits = word_credits - $2, updated_at = now()
		WHERE user_id = $1 AND word_credits >= $2
		RETURNING word_credits`,
		userID, amount,
	).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		var balance int64
		err := tx.QueryRow(ctx,
			`SELECT word_credits FROM user_credits WHERE user_id=$1`, userID,
		).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		if err != nil {
			return 0, unavailable("credit.Debit: balance", err)
		}
		return balance, &InsufficientError{Balance: balance, Required: amount}
	}
	if err != nil {
		return 0, unavailable("credit.Debit: update", err)
	}

	if err := pgInsertTransaction(ctx, tx, userID, -amount, after, ReasonDebit); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, unavailable("credit.Debit: commit", err)
	}
	return after, nil
}

// Credit adds amount to the caller's balance, creating the account if needed.
func (l *PostgresLedger) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, unavailable("credit.Credit: begin tx", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT word_credits FROM user_credits WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, unavailable("credit.Credit: balance", err)
	}
	if overflows(current, amount) {
		return current, ErrBalanceOverflow
	}

	var after int64
	err = tx.QueryRow(ctx, `
		INSERT INTO user_credits (user_id, word_credits) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET word_credits = user_credits.word_credits + EXCLUDED.word_credits, updated_at = now()
		RETURNING word_credits`,
		userID, amount,
	).Scan(&after)
	if err != nil {
		return 0, unavailable("credit.Credit: upsert", err)
	}
	if err := pgInsertTransaction(ctx, tx, userID, amount, after, reason); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, unavailable("credit.Credit: commit", err)
	}
	return after, nil
}

// Account returns the full account row.
func (l *PostgresLedger) Account(ctx context.Context, userID string) (*db.CreditAccount, error) {
	var a db.CreditAccount
	err := l.pool.QueryRow(ctx,
		`SELECT user_id, word_credits, updated_at FROM user_credits WHERE user_id=$1`, userID,
	).Scan(&a.UserID, &a.WordCredits, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable("credit.Account", err)
	}
	return &a, nil
}

// History returns the most recent balance movements for a caller, newest first.
func (l *PostgresLedger) History(ctx context.Context, userID string, limit int) ([]db.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, delta, balance_after, reason, created_at
		FROM credit_transactions WHERE user_id=$1
		ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, unavailable("credit.History", err)
	}
	defer rows.Close()

	var out []db.CreditTransaction
	for rows.Next() {
		var t db.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &t.BalanceAfter, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("credit.History: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func pgInsertTransaction(ctx context.Context, tx pgx.Tx, userID string, delta, after int64, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions (user_id, delta, balance_after, reason) VALUES ($1, $2, $3, $4)`,
		userID, delta, after, reason,
	)
	if err != nil {
		return unavailable("credit.insertTransaction", err)
	}
	return nil
}
