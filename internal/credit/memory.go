package credit

import (
	"context"
	"sync"
)

type account struct {
	mu      sync.Mutex
	balance int64
}

// MemoryLedger keeps balances in process memory.
// Each account has its own mutex, which is the serialization point for
// the read-check-write of a debit. Different callers never contend.
type MemoryLedger struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{accounts: make(map[string]*account)}
}

func (l *MemoryLedger) get(userID string) *account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[userID]
}

// Balance returns the caller's current balance.
func (l *MemoryLedger) Balance(_ context.Context, userID string) (int64, error) {
	a := l.get(userID)
	if a == nil {
		return 0, ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

// Debit subtracts amount under the caller's lock when the balance covers it.
func (l *MemoryLedger) Debit(_ context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	a := l.get(userID)
	if a == nil {
		return 0, ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance < amount {
		return a.balance, &InsufficientError{Balance: a.balance, Required: amount}
	}
	a.balance -= amount
	return a.balance, nil
}

// Credit adds amount, creating the account when it does not exist.
func (l *MemoryLedger) Credit(_ context.Context, userID string, amount int64, _ string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	a, ok := l.accounts[userID]
	if !ok {
		a = &account{}
		l.accounts[userID] = a
	}
	l.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if overflows(a.balance, amount) {
		return a.balance, ErrBalanceOverflow
	}
	a.balance += amount
	return a.balance, nil
}
