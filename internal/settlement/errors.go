package settlement

import "errors"

var (
	// Quote creation.
	ErrInvalidAmount   = errors.New("amount must be a positive integer")
	ErrUnsupportedUnit = errors.New("unsupported currency unit")

	// Lookup and terminal-state conflicts.
	ErrQuoteNotFound = errors.New("quote not found")
	ErrQuoteExpired  = errors.New("quote expired")
	ErrAlreadyPaid   = errors.New("quote already paid")

	// Local token validation; a new token is needed.
	ErrUntrustedMint  = errors.New("mint not accepted")
	ErrAmountMismatch = errors.New("token amount does not match quote amount")
	ErrUnitMismatch   = errors.New("token unit does not match quote unit")

	// Redemption outcomes. ErrMintUnreachable is the only retryable one.
	ErrProofInvalid    = errors.New("mint rejected proofs")
	ErrMintUnreachable = errors.New("mint unreachable")
)
