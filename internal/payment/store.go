package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Manjussha/inkd/internal/db"
)

// ErrPaymentNotFound is returned when a payment id was never created here.
var ErrPaymentNotFound = errors.New("payment: not found")

// Store persists payments in the payments table.
type Store struct {
	database *db.DB
}

// NewStore creates a Store.
func NewStore(database *db.DB) *Store {
	return &Store{database: database}
}

// Created saves a payment returned by CreatePayment.
func (s *Store) Created(ctx context.Context, userID, planName string, p *Payment) error {
	amount, _ := p.Total()
	_, err := s.database.ExecContext(ctx, `
		INSERT INTO payments (payment_id, user_id, plan_name, amount, currency, state)
		VALUES (?,?,?,?,?,?)`,
		p.ID, userID, planName, amount.Total, amount.Currency, stateOr(p.State, "created"),
	)
	if err != nil {
		return fmt.Errorf("payment.Store.Created: %w", err)
	}
	return nil
}

// Executed marks a payment as executed by payerID with its final state.
func (s *Store) Executed(ctx context.Context, paymentID, payerID, state string) error {
	res, err := s.database.ExecContext(ctx, `
		UPDATE payments SET state=?, payer_id=?, executed_at=? WHERE payment_id=?`,
		stateOr(state, "approved"), payerID, time.Now(), paymentID,
	)
	if err != nil {
		return fmt.Errorf("payment.Store.Executed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// Get returns a stored payment.
func (s *Store) Get(ctx context.Context, paymentID string) (*db.Payment, error) {
	var p db.Payment
	err := s.database.QueryRowContext(ctx, `
		SELECT id, payment_id, user_id, plan_name, amount, currency, state, payer_id, executed_at, created_at
		FROM payments WHERE payment_id=?`, paymentID,
	).Scan(&p.ID, &p.PaymentID, &p.UserID, &p.PlanName, &p.Amount, &p.Currency,
		&p.State, &p.PayerID, &p.Executed, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment.Store.Get: %w", err)
	}
	return &p, nil
}

func stateOr(state, fallback string) string {
	if state == "" {
		return fallback
	}
	return state
}
