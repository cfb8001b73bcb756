// Package escrow - Error kinds returned by the escrow state machine.
package escrow

import "errors"

// Escrow errors. Every mutating operation returns either a success value
// or exactly one of these; failed operations leave no trace.
var (
	// ErrPaused is returned by Create while the access gate is paused.
	ErrPaused = errors.New("escrow gate is paused")

	// ErrUnauthorized is returned when the caller is not allowed to
	// perform the operation (wrong claimer, refunder or owner).
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrZeroAmount is returned when the amount is not positive.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrInvalidRecipient is returned when the recipient is missing or
	// equals the sender.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrInvalidHashLock is returned when the hash lock is not a
	// 32-byte digest.
	ErrInvalidHashLock = errors.New("invalid hash lock")

	// ErrInvalidTimelock is returned when the timelock is not far
	// enough past the current height.
	ErrInvalidTimelock = errors.New("invalid timelock")

	// ErrInsufficientFunds is returned when the sender cannot cover
	// the escrowed amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound is returned by mutating operations for unknown ids.
	ErrNotFound = errors.New("htlc not found")

	// ErrExpired is returned by Claim at or past the timelock height.
	ErrExpired = errors.New("htlc expired")

	// ErrNotExpired is returned by Refund before the timelock height.
	ErrNotExpired = errors.New("htlc not yet expired")

	// ErrInvalidPreimage is returned when the preimage does not hash
	// to the hash lock.
	ErrInvalidPreimage = errors.New("invalid preimage")

	// ErrAlreadyClaimed is returned when the HTLC was already claimed.
	ErrAlreadyClaimed = errors.New("htlc already claimed")

	// ErrAlreadyRefunded is returned when the HTLC was already refunded.
	ErrAlreadyRefunded = errors.New("htlc already refunded")
)
