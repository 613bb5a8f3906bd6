// Package credit implements the per-caller word-credit ledger.
//
// Money-like balances live here. A Debit is the only way credit leaves an
// account and it is atomic per caller: it succeeds only when the current
// balance covers the full amount, so two concurrent debits can never
// overdraw an account together.
package credit

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for ledger operations.
var (
	ErrAccountNotFound    = errors.New("credit: account not found")
	ErrInsufficientCredit = errors.New("credit: insufficient credit")
	ErrInvalidAmount      = errors.New("credit: amount must be positive")
	ErrBalanceOverflow    = errors.New("credit: balance would overflow")
	ErrUnavailable        = errors.New("credit: ledger unavailable")
)

// InsufficientError carries the balance observed when a debit was refused.
type InsufficientError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("credit: insufficient credit: have %d, need %d", e.Balance, e.Required)
}

func (e *InsufficientError) Unwrap() error { return ErrInsufficientCredit }

// Ledger is the balance store the transformation pipeline depends on.
type Ledger interface {
	// Balance returns the caller's committed balance.
	Balance(ctx context.Context, userID string) (int64, error)
	// Debit subtracts amount only if the balance covers it, atomically per caller.
	// Returns the new balance, or an *InsufficientError without changing anything.
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	// Credit adds amount, creating the account when it does not exist.
	Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error)
}

// Reasons recorded with balance movements.
const (
	ReasonDebit    = "humanize"
	ReasonGrant    = "grant"
	ReasonRefund   = "refund"
	ReasonPurchase = "purchase"
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// overflows reports whether crediting amount to balance exceeds int64.
func overflows(balance, amount int64) bool {
	return amount > math.MaxInt64-balance
}
