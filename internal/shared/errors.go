package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a business-rule failure caused by caller input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateReference indicates a reference number collision.
	ErrDuplicateReference = errors.New("duplicate reference number")
	// ErrInvariantViolation indicates an operation that would break a
	// structural invariant (deactivating a node with history, editing a
	// record already consumed downstream).
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInsufficientFunds indicates a debit that would drive a financial
	// account balance negative. Wrapped by finacct.InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
