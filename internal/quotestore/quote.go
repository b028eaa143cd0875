package quotestore

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a payment quote. Transitions are one-way:
// pending -> paid or pending -> expired, nothing leaves a terminal state.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
)

var (
	ErrNotFound = errors.New("quote not found")

	// ErrStale is returned by a conditional status update that lost to a
	// concurrent transition; the quote was no longer pending.
	ErrStale = errors.New("quote no longer pending")
)

type Request struct {
	ID             string
	Amount         int64
	Unit           string
	AcceptedMints  []string
	PaymentRequest string
	ExpiresAt      time.Time
}

// Settlement records the outcome of a successful redemption. A quote carries
// at most one, ever.
type Settlement struct {
	Mint      string
	Amount    int64
	SettledAt time.Time
}

type Quote struct {
	ID             string
	Amount         int64
	Unit           string
	AcceptedMints  []string
	Status         Status
	PaymentRequest string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Settlement     *Settlement
}
