package main

import "errors"

// Failure kinds surfaced to callers. Every operation wraps one of these with
// fmt.Errorf("%w: ...") so clients can tell a permissions problem from a
// funding problem from a sequencing problem.
var (
	// ErrUnauthorized - the caller lacks the role required by the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotOwner - the caller holds the right role but is not the principal
	// entitled to act on this product.
	ErrNotOwner = errors.New("not owner")
	// ErrInvalidState - the product is not in the state the operation expects.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientFunds - the settlement token refused the escrow pull.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound - unknown uid, code or principal.
	ErrNotFound = errors.New("not found")
)
