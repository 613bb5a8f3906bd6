package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Manjussha/inkd/internal/db"
)

// SQLiteLedger stores balances in the user_credits table.
// Every movement is appended to credit_transactions in the same transaction.
type SQLiteLedger struct {
	database *db.DB
}

// NewSQLiteLedger creates a SQLiteLedger.
func NewSQLiteLedger(database *db.DB) *SQLiteLedger {
	return &SQLiteLedger{database: database}
}

// Balance returns the caller's current balance.
func (l *SQLiteLedger) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.database.QueryRowContext(ctx,
		`SELECT word_credits FROM user_credits WHERE user_id=?`, userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, unavailable("credit.Balance", err)
	}
	return balance, nil
}

// Debit atomically subtracts amount when the balance covers it.
// The guarded UPDATE is the compare step: it matches no row when the
// balance is short, so no interleaving of concurrent debits can overdraw.
func (l *SQLiteLedger) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := l.database.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("credit.Debit: begin tx", err)
	}
	defer tx.Rollback()

	var after int64
	err = tx.QueryRowContext(ctx, `
		UPDATE user_credits
		SET word_credits = word_credits - ?, updated_at = ?
		WHERE user_id = ? AND word_credits >= ?
		RETURNING word_credits`,
		amount, time.Now(), userID, amount,
	).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT word_credits FROM user_credits WHERE user_id=?`, userID,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
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

	if err := insertTransaction(ctx, tx, userID, -amount, after, ReasonDebit); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("credit.Debit: commit", err)
	}
	return after, nil
}

// Credit adds amount to the caller's balance, creating the account if needed.
func (l *SQLiteLedger) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := l.database.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("credit.Credit: begin tx", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT word_credits FROM user_credits WHERE user_id=?`, userID,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, unavailable("credit.Credit: balance", err)
	}
	if overflows(current, amount) {
		return current, ErrBalanceOverflow
	}

	var after int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_credits (user_id, word_credits, updated_at) VALUES (?,?,?)
		ON CONFLICT(user_id) DO UPDATE
		SET word_credits = word_credits + excluded.word_credits, updated_at = excluded.updated_at
		RETURNING word_credits`,
		userID, amount, time.Now(),
	).Scan(&after)
	if err != nil {
		return 0, unavailable("credit.Credit: upsert", err)
	}
	if err := insertTransaction(ctx, tx, userID, amount, after, reason); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("credit.Credit: commit", err)
	}
	return after, nil
}

// Account returns the full account row.
func (l *SQLiteLedger) Account(ctx context.Context, userID string) (*db.CreditAccount, error) {
	var a db.CreditAccount
	err := l.database.QueryRowContext(ctx,
		`SELECT user_id, word_credits, updated_at FROM user_credits WHERE user_id=?`, userID,
	).Scan(&a.UserID, &a.WordCredits, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable("credit.Account", err)
	}
	return &a, nil
}

// History returns the most recent balance movements for a caller, newest first.
func (l *SQLiteLedger) History(ctx context.Context, userID string, limit int) ([]db.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.database.QueryContext(ctx, `
		SELECT id, user_id, delta, balance_after, reason, created_at
		FROM credit_transactions WHERE user_id=?
		ORDER BY id DESC LIMIT ?`, userID, limit)
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

func insertTransaction(ctx context.Context, tx *sql.Tx, userID string, delta, after int64, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (user_id, delta, balance_after, reason) VALUES (?,?,?,?)`,
		userID, delta, after, reason,
	)
	if err != nil {
		return unavailable("credit.insertTransaction", err)
	}
	return nil
}
