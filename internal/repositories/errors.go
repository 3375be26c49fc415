package repositories

import "errors"

var (
	// ErrNotFound is wrapped by every lookup that finds no record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyPaid is returned when an order's paid flag is already set.
	ErrAlreadyPaid = errors.New("order already paid")
)
