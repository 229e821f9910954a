package wallet

import "errors"

var (
	// ErrInvalidAmount means the amount was zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds means the debit would take the targeted
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound means no wallet exists for the principal.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletLocked means the GFE wallet is administratively frozen.
	ErrWalletLocked = errors.New("gfe wallet is locked")

	// ErrBelowThreshold means the withdrawal amount is under the
	// profile's minimum.
	ErrBelowThreshold = errors.New("amount below withdrawal threshold")

	// ErrInvalidWithdrawalState means a settlement transition was
	// attempted from a state that does not allow it.
	ErrInvalidWithdrawalState = errors.New("invalid withdrawal state transition")

	// ErrWithdrawalNotFound means no withdrawal request matched.
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
)
