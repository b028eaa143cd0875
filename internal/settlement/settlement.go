// Package settlement holds the quote lifecycle: issuing NUT-18 payment
// requests, settling submitted tokens exactly once, and expiring quotes
// past their deadline.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cashupos/pos/internal/nut18"
	"github.com/cashupos/pos/internal/quotestore"
)

const defaultUnit = "sat"

type Config struct {
	// AcceptedMints is the issuer allow-list snapshotted onto every quote.
	AcceptedMints []string

	// Units are the supported currency units. Defaults to just "sat".
	Units []string

	// QuoteTTL is how long a quote stays payable.
	QuoteTTL time.Duration

	// PaymentURL is the transport target embedded in payment requests.
	PaymentURL string
}

type quoteStore interface {
	Create(context.Context, *quotestore.Request) (*quotestore.Quote, error)
	Get(ctx context.Context, id string) (*quotestore.Quote, error)
	MarkPaid(ctx context.Context, id string, s quotestore.Settlement) (*quotestore.Quote, error)
	MarkExpired(ctx context.Context, id string) (*quotestore.Quote, error)
	ListExpired(ctx context.Context, now time.Time) ([]quotestore.Quote, error)
}

// RedeemOutcome is what the wallet reports after claiming a token's proofs
// with its issuing mint.
type RedeemOutcome struct {
	Mint   string
	Amount int64
	Unit   string
}

type redeemer interface {
	Redeem(ctx context.Context, payload nut18.PaymentPayload) (*RedeemOutcome, error)
}

func New(cfg Config, store quoteStore, wallet redeemer) (*Service, error) {
	if len(cfg.AcceptedMints) == 0 {
		return nil, fmt.Errorf("must set accepted_mints")
	}
	if cfg.PaymentURL == "" {
		return nil, fmt.Errorf("must set payment_url")
	}
	if cfg.QuoteTTL <= 0 {
		return nil, fmt.Errorf("quote ttl must be positive")
	}

	mints := make([]string, 0, len(cfg.AcceptedMints))
	for _, m := range cfg.AcceptedMints {
		mints = append(mints, normalizeMint(m))
	}

	units := cfg.Units
	if len(units) == 0 {
		units = []string{defaultUnit}
	}

	return &Service{
		store:      store,
		wallet:     wallet,
		mints:      mints,
		units:      units,
		ttl:        cfg.QuoteTTL,
		paymentURL: cfg.PaymentURL,
		locks:      newLocker(),
	}, nil
}

type Service struct {
	store      quoteStore
	wallet     redeemer
	mints      []string
	units      []string
	ttl        time.Duration
	paymentURL string
	locks      *locker
}

// CreateQuote issues a new pending quote and its encoded payment request.
// The request embeds id, amount, unit, and the accepted mints so a payer
// needs no further backend calls.
func (s *Service) CreateQuote(ctx context.Context, amount int64, unit string) (*quotestore.Quote, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	unit, ok := s.unitFor(unit)
	if !ok {
		return nil, ErrUnsupportedUnit
	}

	id := uuid.New().String()

	request := nut18.PaymentRequest{
		PaymentID: id,
		Amount:    uint64(amount),
		Unit:      unit,
		SingleUse: true,
		Mints:     s.mints,
		Transports: []nut18.Transport{
			{Type: nut18.TransportPost, Target: s.paymentURL},
		},
	}
	encoded, err := request.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}

	quote, err := s.store.Create(ctx, &quotestore.Request{
		ID:             id,
		Amount:         amount,
		Unit:           unit,
		AcceptedMints:  s.mints,
		PaymentRequest: encoded,
		ExpiresAt:      time.Now().UTC().Add(s.ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("store.Create: %w", err)
	}

	return quote, nil
}

// CheckQuote returns the current state of a quote. A pending quote past its
// deadline is expired on the way out, so callers never see a payable state
// that no submission could settle.
func (s *Service) CheckQuote(ctx context.Context, id string) (*quotestore.Quote, error) {
	quote, err := s.getQuote(ctx, id)
	if err != nil {
		return nil, err
	}

	if quote.Status == quotestore.StatusPending && time.Now().After(quote.ExpiresAt) {
		return s.expire(ctx, id)
	}

	return quote, nil
}

// Settle validates a submitted token against the quote and, if the wallet
// redeems it, transitions the quote to paid. Exactly one submission can
// win; every other outcome leaves the quote as it was.
func (s *Service) Settle(ctx context.Context, id string, payload nut18.PaymentPayload) (*quotestore.Quote, error) {
	quote, err := s.getQuote(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := terminalErr(quote.Status); err != nil {
		return nil, err
	}

	if time.Now().After(quote.ExpiresAt) {
		expired, err := s.expire(ctx, id)
		if err != nil {
			return nil, err
		}
		// A racing settlement may have won before the deadline hit.
		if expired.Status == quotestore.StatusPaid {
			return nil, ErrAlreadyPaid
		}
		return nil, ErrQuoteExpired
	}

	// Cheap local checks before the networked redemption.
	if !s.trusts(payload.Mint) {
		return nil, ErrUntrustedMint
	}
	if payload.Amount() != quote.Amount {
		return nil, ErrAmountMismatch
	}
	if !strings.EqualFold(payload.Unit, quote.Unit) {
		return nil, ErrUnitMismatch
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	// Re-check under the lock; another attempt may have won between the
	// first read and here.
	quote, err = s.getQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := terminalErr(quote.Status); err != nil {
		return nil, err
	}

	outcome, err := s.wallet.Redeem(ctx, payload)
	if err != nil {
		return nil, err
	}

	// The settlement always records the quote amount. A wallet that takes
	// swap fees reports less than the payer sent; the quote was still paid
	// in full from the payer's side, so log the shortfall and move on.
	if outcome.Amount != quote.Amount {
		log.Printf("wallet redeemed %d for quote %v, declared %d", outcome.Amount, id, quote.Amount)
	}

	// Redemption is done, so the paid write must survive a caller that
	// hung up while the wallet was claiming proofs; it runs on a detached
	// context. A crash in between still leaves the quote pending:
	// resubmitting the same token then fails at the mint with
	// ErrProofInvalid, and that pairing is the operator's cue to
	// reconcile the quote by hand.
	paid, err := s.store.MarkPaid(context.Background(), id, quotestore.Settlement{
		Mint:      normalizeMint(payload.Mint),
		Amount:    quote.Amount,
		SettledAt: time.Now().UTC(),
	})
	switch {
	case err == nil:
		return paid, nil
	case errors.Is(err, quotestore.ErrStale):
		// Cannot happen while we hold the lock, but the store is the
		// final authority on the transition.
		return nil, ErrAlreadyPaid
	default:
		return nil, fmt.Errorf("store.MarkPaid: %w", err)
	}
}

func (s *Service) getQuote(ctx context.Context, id string) (*quotestore.Quote, error) {
	quote, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return quote, nil
	case errors.Is(err, quotestore.ErrNotFound):
		return nil, ErrQuoteNotFound
	default:
		return nil, fmt.Errorf("store.Get: %w", err)
	}
}

// expire transitions a pending quote to expired under the per-quote lock.
// Whatever terminal state the quote ends up in is returned.
func (s *Service) expire(ctx context.Context, id string) (*quotestore.Quote, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	quote, err := s.getQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != quotestore.StatusPending {
		return quote, nil
	}

	expired, err := s.store.MarkExpired(ctx, id)
	switch {
	case err == nil:
		quotesExpiredCounter.Inc()
		return expired, nil
	case errors.Is(err, quotestore.ErrStale):
		return s.getQuote(ctx, id)
	default:
		return nil, fmt.Errorf("store.MarkExpired: %w", err)
	}
}

func (s *Service) trusts(mint string) bool {
	mint = normalizeMint(mint)
	for _, m := range s.mints {
		if m == mint {
			return true
		}
	}
	return false
}

// unitFor resolves a requested unit against the supported set. An empty
// unit selects the default.
func (s *Service) unitFor(unit string) (string, bool) {
	if unit == "" {
		return s.units[0], true
	}
	for _, u := range s.units {
		if strings.EqualFold(u, unit) {
			return u, true
		}
	}
	return "", false
}

func terminalErr(status quotestore.Status) error {
	switch status {
	case quotestore.StatusPaid:
		return ErrAlreadyPaid
	case quotestore.StatusExpired:
		return ErrQuoteExpired
	}
	return nil
}

func normalizeMint(mint string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(mint), "/"))
}
