package models

import "errors"

// Store errors. Backends wrap driver failures onto these with %w.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("concurrent modification")
	ErrStoreUnavailable  = errors.New("store unavailable")

	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Precondition errors, raised by the coordinator before any store access and
// re-checked by stores so a bad call can never commit.
var (
	ErrInvalidAmount = errors.New("amount must be a positive value with at most two decimal places")
	ErrSameAccount   = errors.New("source and destination are the same account")
)
