package services

import (
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/db"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrSameWalletTransfer      = errors.New("cannot transfer to same wallet")
	ErrTargetNotFound          = errors.New("target wallet not found")
	ErrCurrencyInUse           = errors.New("currency is in use")
	ErrDefaultCurrency         = errors.New("default currency cannot be removed or deactivated")
	ErrWalletInUse             = errors.New("wallet is in use")
	ErrCategoryInUse           = errors.New("category is in use")
	ErrDuplicate               = errors.New("duplicate")
	ErrSubscriptionInactive    = errors.New("subscription is not active")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrGoalCancelled           = errors.New("goal is cancelled")
)

// ValidationError names the input field and the rule it broke.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Rule)
}

func invalid(field, rule string) error {
	return &ValidationError{Field: field, Rule: rule}
}

// lookup maps a missing row to ErrNotFound.
func lookup(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// conflict maps constraint violations raised on write to service errors.
func conflict(err error, inUse error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err) && inUse != nil:
		return inUse
	}
	return err
}
