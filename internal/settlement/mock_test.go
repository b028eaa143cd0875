package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/cashupos/pos/internal/nut18"
	"github.com/cashupos/pos/internal/quotestore"
)

// memStore is an in-memory quoteStore with the same conditional-update
// semantics as the real one.
type memStore struct {
	mu     sync.Mutex
	quotes map[string]*quotestore.Quote

	CreateErr error
	GetErr    error
	MarkErr   error
}

func newMemStore() *memStore {
	return &memStore{quotes: make(map[string]*quotestore.Quote)}
}

func (m *memStore) Create(ctx context.Context, req *quotestore.Request) (*quotestore.Quote, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q := &quotestore.Quote{
		ID:             req.ID,
		Amount:         req.Amount,
		Unit:           req.Unit,
		AcceptedMints:  req.AcceptedMints,
		Status:         quotestore.StatusPending,
		PaymentRequest: req.PaymentRequest,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      req.ExpiresAt,
	}
	m.quotes[req.ID] = q

	cp := *q
	return &cp, nil
}

func (m *memStore) Get(ctx context.Context, id string) (*quotestore.Quote, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[id]
	if !ok {
		return nil, quotestore.ErrNotFound
	}

	cp := *q
	return &cp, nil
}

func (m *memStore) MarkPaid(ctx context.Context, id string, s quotestore.Settlement) (*quotestore.Quote, error) {
	// database/sql aborts on a dead context; so does this store.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.MarkErr != nil {
		return nil, m.MarkErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[id]
	if !ok {
		return nil, quotestore.ErrNotFound
	}
	if q.Status != quotestore.StatusPending {
		return nil, quotestore.ErrStale
	}

	q.Status = quotestore.StatusPaid
	q.Settlement = &s

	cp := *q
	return &cp, nil
}

func (m *memStore) MarkExpired(ctx context.Context, id string) (*quotestore.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.MarkErr != nil {
		return nil, m.MarkErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[id]
	if !ok {
		return nil, quotestore.ErrNotFound
	}
	if q.Status != quotestore.StatusPending {
		return nil, quotestore.ErrStale
	}

	q.Status = quotestore.StatusExpired

	cp := *q
	return &cp, nil
}

func (m *memStore) ListExpired(ctx context.Context, now time.Time) ([]quotestore.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []quotestore.Quote
	for _, q := range m.quotes {
		if q.Status == quotestore.StatusPending && q.ExpiresAt.Before(now) {
			out = append(out, *q)
		}
	}
	return out, nil
}

// put installs a quote directly, bypassing CreateQuote, so tests control
// deadlines and states.
func (m *memStore) put(q quotestore.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.ID] = &q
}

type mockRedeemer struct {
	RedeemOutcome *RedeemOutcome
	RedeemErr     error

	mu    sync.Mutex
	calls int
}

func (m *mockRedeemer) Redeem(ctx context.Context, payload nut18.PaymentPayload) (*RedeemOutcome, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RedeemErr != nil {
		return nil, m.RedeemErr
	}
	if m.RedeemOutcome != nil {
		return m.RedeemOutcome, nil
	}
	return &RedeemOutcome{Mint: payload.Mint, Amount: payload.Amount(), Unit: payload.Unit}, nil
}

func (m *mockRedeemer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// cancellingRedeemer abandons the caller's context the moment redemption
// succeeds, like a client that times out while the wallet is claiming.
type cancellingRedeemer struct {
	cancel context.CancelFunc
}

func (c *cancellingRedeemer) Redeem(ctx context.Context, payload nut18.PaymentPayload) (*RedeemOutcome, error) {
	c.cancel()
	return &RedeemOutcome{Mint: payload.Mint, Amount: payload.Amount(), Unit: payload.Unit}, nil
}
