package ledger

import "errors"

var (
	// ErrValidation marks malformed input; nothing is mutated.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientFunds means the wallet's available balance cannot cover
	// the requested debit.
	ErrInsufficientFunds = errors.New("insufficient available balance")

	// ErrWalletNotFound covers absent or inactive wallets.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when creating a second wallet for the same
	// (user, currency) pair.
	ErrWalletExists = errors.New("wallet already exists for this currency")

	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrConflict means an atomic wallet update lost a race and a single
	// retry did not resolve it.
	ErrConflict = errors.New("concurrent update conflict")
)
