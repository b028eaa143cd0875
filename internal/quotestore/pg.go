package quotestore

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPostgres opens a postgres-backed quote store.
func NewPostgres(dbConnStr string) (QuoteStore, error) {
	db, err := sqlx.Connect("postgres", dbConnStr)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	// sqlx default is 0 (unlimited), while postgresql by default accepts up to 100 connections
	db.SetMaxOpenConns(80)

	const schema = `
CREATE TABLE IF NOT EXISTS quote (
	id TEXT PRIMARY KEY,
	amount BIGINT NOT NULL,
	unit TEXT NOT NULL,
	mints TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_request TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	settled_mint TEXT,
	settled_amount BIGINT,
	settled_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_quote_status ON quote(status, expires_at);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("db.Exec schema: %w", err)
	}

	return &store{db: db}, nil
}
