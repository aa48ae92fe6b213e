package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")

	// ErrJobActive is returned when a requester already has a running job.
	ErrJobActive = errors.New("another translation is already running")

	ErrExtractionFailed = errors.New("text extraction failed")
	ErrNoText           = errors.New("no extractable text in document")
)

// InsufficientBalanceError carries the exact deficit so the surface layer can
// tell the user how many stars are missing.
type InsufficientBalanceError struct {
	Cost    int64
	Balance int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: cost %d, balance %d (short %d)", e.Cost, e.Balance, e.Deficit())
}

func (e *InsufficientBalanceError) Deficit() int64 {
	return e.Cost - e.Balance
}
