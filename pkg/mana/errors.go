// Copyright 2025 ICN Federation
//
package mana

import (
	"errors"
	"fmt"
)

// ErrLedgerUnavailable signals a transient backend failure; callers must
// treat the job this occurred within as failed for that attempt.
var ErrLedgerUnavailable = errors.New("mana: ledger unavailable")

// InsufficientManaError is returned by Debit when balance < amount.
type InsufficientManaError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientManaError) Error() string {
	return fmt.Sprintf("mana: insufficient balance: required %d, available %d", e.Required, e.Available)
}
