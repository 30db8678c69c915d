package domain

import "errors"

var (
	// ErrInvalidAmount is returned when a command carries a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds is returned when a withdrawal would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound is returned when an account has no events on the log.
	ErrNotFound = errors.New("account not found")

	// ErrConflict is returned for a duplicate create or a lost optimistic-concurrency race.
	ErrConflict = errors.New("conflict: account already exists or a concurrent writer won")
)
