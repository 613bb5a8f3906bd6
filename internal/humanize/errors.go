package humanize

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Service.Handle. Every failure wraps exactly one.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrGenerationFailed   = errors.New("generation failed")
)

// InsufficientCreditError is returned when the balance does not cover the word count.
// Nothing was debited and the provider was not called.
type InsufficientCreditError struct {
	Current  int64
	Required int64
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: have %d, need %d", e.Current, e.Required)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// LedgerError is a store or transport failure while reading or debiting a balance.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger unavailable: %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() []error { return []error{ErrLedgerUnavailable, e.Err} }

// GenerationError is a provider failure after the debit committed.
// RemainingCredits is the ledger's true balance: the charge stands unless Refunded.
type GenerationError struct {
	Detail           string
	Timeout          bool
	RateLimited      bool
	Refunded         bool
	RemainingCredits int64
	Err              error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Timeout:
		return "generation failed: provider timed out: " + e.Detail
	case e.RateLimited:
		return "generation failed: provider rate limited: " + e.Detail
	default:
		return "generation failed: " + e.Detail
	}
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGenerationFailed, e.Err} }
