package quotestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type QuoteStore interface {
	Create(context.Context, *Request) (*Quote, error)
	Get(ctx context.Context, id string) (*Quote, error)

	// MarkPaid and MarkExpired are conditional on status=pending and
	// return ErrStale when a concurrent transition won.
	MarkPaid(ctx context.Context, id string, s Settlement) (*Quote, error)
	MarkExpired(ctx context.Context, id string) (*Quote, error)

	// ListExpired returns pending quotes whose deadline has passed.
	ListExpired(ctx context.Context, now time.Time) ([]Quote, error)

	Close() error
}

type store struct {
	db *sqlx.DB
}

func (s *store) Create(ctx context.Context, req *Request) (*Quote, error) {
	const insert = `INSERT INTO quote (id, amount, unit, mints, status, payment_request, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(insert),
		req.ID,
		req.Amount,
		req.Unit,
		strings.Join(req.AcceptedMints, ","),
		StatusPending,
		req.PaymentRequest,
		time.Now().UTC(),
		req.ExpiresAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("db.Exec create quote: %w", err)
	}

	return s.Get(ctx, req.ID)
}

func (s *store) Get(ctx context.Context, id string) (*Quote, error) {
	const query = `SELECT id, amount, unit, mints, status, payment_request, created_at, expires_at, settled_mint, settled_amount, settled_at
FROM quote WHERE id=?`

	var row quoteRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), id)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("db.Get quote: %w", err)
	}

	return row.quote(), nil
}

func (s *store) MarkPaid(ctx context.Context, id string, set Settlement) (*Quote, error) {
	const update = `UPDATE quote SET status=?, settled_mint=?, settled_amount=?, settled_at=?
WHERE id=? AND status=?`

	res, err := s.db.ExecContext(ctx, s.db.Rebind(update),
		StatusPaid, set.Mint, set.Amount, set.SettledAt.UTC(), id, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("db.Exec mark paid: %w", err)
	}

	return s.afterTransition(ctx, id, res)
}

func (s *store) MarkExpired(ctx context.Context, id string) (*Quote, error) {
	const update = `UPDATE quote SET status=? WHERE id=? AND status=?`

	res, err := s.db.ExecContext(ctx, s.db.Rebind(update), StatusExpired, id, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("db.Exec mark expired: %w", err)
	}

	return s.afterTransition(ctx, id, res)
}

// afterTransition distinguishes a won conditional update from a lost one.
// Zero rows affected means either an unknown id or a quote already out of
// pending; a second read tells them apart.
func (s *store) afterTransition(ctx context.Context, id string, res sql.Result) (*Quote, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db rows affected: %w", err)
	}

	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStale
	}

	return s.Get(ctx, id)
}

func (s *store) ListExpired(ctx context.Context, now time.Time) ([]Quote, error) {
	const query = `SELECT id, amount, unit, mints, status, payment_request, created_at, expires_at, settled_mint, settled_amount, settled_at
FROM quote WHERE status=? AND expires_at < ?`

	var rows []quoteRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), StatusPending, now.UTC()); err != nil {
		return nil, fmt.Errorf("db.Select expired quotes: %w", err)
	}

	quotes := make([]Quote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, *row.quote())
	}

	return quotes, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

type quoteRow struct {
	ID             string         `db:"id"`
	Amount         int64          `db:"amount"`
	Unit           string         `db:"unit"`
	Mints          string         `db:"mints"`
	Status         string         `db:"status"`
	PaymentRequest string         `db:"payment_request"`
	CreatedAt      time.Time      `db:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
	SettledMint    sql.NullString `db:"settled_mint"`
	SettledAmount  sql.NullInt64  `db:"settled_amount"`
	SettledAt      sql.NullTime   `db:"settled_at"`
}

func (r quoteRow) quote() *Quote {
	q := Quote{
		ID:             r.ID,
		Amount:         r.Amount,
		Unit:           r.Unit,
		Status:         Status(r.Status),
		PaymentRequest: r.PaymentRequest,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}

	if r.Mints != "" {
		q.AcceptedMints = strings.Split(r.Mints, ",")
	}

	if q.Status == StatusPaid && r.SettledAt.Valid {
		q.Settlement = &Settlement{
			Mint:      r.SettledMint.String,
			Amount:    r.SettledAmount.Int64,
			SettledAt: r.SettledAt.Time,
		}
	}

	return &q
}
