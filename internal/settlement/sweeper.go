package settlement

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cashupos/pos/internal/quotestore"
)

// SweepExpired expires every pending quote whose deadline passed before
// now. Each transition goes through the same per-quote lock and conditional
// update as settlement, so a racing submission and the sweep can never both
// win. Returns the number of quotes expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	quotes, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("store.ListExpired: %w", err)
	}

	var expired int
	for _, quote := range quotes {
		q, err := s.expire(ctx, quote.ID)
		if err != nil {
			log.Printf("err: sweep quote %v: %v", quote.ID, err)
			continue
		}
		if q.Status == quotestore.StatusExpired {
			expired++
		}
	}

	return expired, nil
}

// RunSweeper sweeps on the given interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.SweepExpired(ctx, now)
			if err != nil {
				log.Printf("err: sweep expired quotes: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expired %d quotes", n)
			}
		}
	}
}
