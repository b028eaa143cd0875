package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromFile(t *testing.T) {
	configFile, err := os.CreateTemp("", "config.*.yml")
	assert.NoError(t, err)

	defer os.Remove(configFile.Name())

	_, err = configFile.Write([]byte(`
port: 9000
payment_url: https://pos.example.com/payment
wallet_url: http://localhost:4448
accepted_mints:
  - https://mint1.example.com
  - https://mint2.example.com
supported_units:
  - sat
  - usd
quote_ttl_seconds: 300
`))
	assert.NoError(t, err)

	var cfg Config
	err = cfg.Load(configFile.Name())
	assert.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://pos.example.com/payment", cfg.PaymentURL)
	assert.Equal(t, "http://localhost:4448", cfg.WalletURL)
	assert.Equal(t, []string{"https://mint1.example.com", "https://mint2.example.com"}, cfg.AcceptedMints)
	assert.Equal(t, []string{"sat", "usd"}, cfg.SupportedUnits)
	assert.Equal(t, 5*time.Minute, cfg.quoteTTL())

	// Defaults fill whatever the file left out.
	assert.Equal(t, "sqlite", cfg.QuoteDBDriver)
	assert.Equal(t, "quotes.db", cfg.QuoteDB)
	assert.Equal(t, time.Minute, cfg.sweepInterval())
	assert.Equal(t, 30*time.Second, cfg.walletTimeout())
}

func TestLoadConfigRequiresMints(t *testing.T) {
	configFile, err := os.CreateTemp("", "config.*.yml")
	assert.NoError(t, err)

	defer os.Remove(configFile.Name())

	_, err = configFile.Write([]byte(`
payment_url: https://pos.example.com/payment
wallet_url: http://localhost:4448
`))
	assert.NoError(t, err)

	var cfg Config
	err = cfg.Load(configFile.Name())
	assert.ErrorContains(t, err, "accepted_mints")
}
