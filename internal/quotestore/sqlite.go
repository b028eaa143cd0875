package quotestore

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens (or creates) a sqlite-backed quote store.
func NewSQLite(dbFile string) (QuoteStore, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("must set quote_db")
	}

	db, err := sqlx.Connect("sqlite3", dbFile)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	// Serialize writers; sqlite locks the whole file anyway and busy
	// errors under concurrent settles are worse than a short queue.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS quote (
	id TEXT PRIMARY KEY,
	amount INTEGER NOT NULL,
	unit TEXT NOT NULL,
	mints TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_request TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	settled_mint TEXT,
	settled_amount INTEGER,
	settled_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_quote_status ON quote(status, expires_at);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("db.Exec schema: %w", err)
	}

	return &store{db: db}, nil
}
