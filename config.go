package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort                 = 9090
	defaultQuoteDBDriver        = "sqlite"
	defaultQuoteDB              = "quotes.db"
	defaultQuoteTTLSeconds      = 900
	defaultSweepIntervalSeconds = 60
	defaultWalletTimeoutSeconds = 30
)

type Config struct {
	Port          int    `yaml:"port" envconfig:"PORT"`
	QuoteDBDriver string `yaml:"quote_db_driver" envconfig:"QUOTE_DB_DRIVER"`
	QuoteDB       string `yaml:"quote_db" envconfig:"QUOTE_DB"`

	// PaymentURL is the public POST /payment endpoint embedded in every
	// payment request.
	PaymentURL string `yaml:"payment_url" envconfig:"PAYMENT_URL"`

	// WalletURL is the cashu wallet daemon that performs redemptions.
	WalletURL string `yaml:"wallet_url" envconfig:"WALLET_URL"`

	AcceptedMints  []string `yaml:"accepted_mints" envconfig:"ACCEPTED_MINTS"`
	SupportedUnits []string `yaml:"supported_units" envconfig:"SUPPORTED_UNITS"`

	QuoteTTLSeconds      int `yaml:"quote_ttl_seconds" envconfig:"QUOTE_TTL_SECONDS"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" envconfig:"SWEEP_INTERVAL_SECONDS"`
	WalletTimeoutSeconds int `yaml:"wallet_timeout_seconds" envconfig:"WALLET_TIMEOUT_SECONDS"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return c.validate()
}

// Load Config from the environment.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}

	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.QuoteDBDriver == "" {
		c.QuoteDBDriver = defaultQuoteDBDriver
	}
	if c.QuoteDB == "" {
		c.QuoteDB = defaultQuoteDB
	}
	if c.QuoteTTLSeconds == 0 {
		c.QuoteTTLSeconds = defaultQuoteTTLSeconds
	}
	if c.SweepIntervalSeconds == 0 {
		c.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.WalletTimeoutSeconds == 0 {
		c.WalletTimeoutSeconds = defaultWalletTimeoutSeconds
	}
}

func (c *Config) validate() error {
	if len(c.AcceptedMints) == 0 {
		return fmt.Errorf("must set accepted_mints")
	}
	if c.PaymentURL == "" {
		return fmt.Errorf("must set payment_url")
	}
	if c.WalletURL == "" {
		return fmt.Errorf("must set wallet_url")
	}
	return nil
}

func (c *Config) quoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSeconds) * time.Second
}

func (c *Config) sweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) walletTimeout() time.Duration {
	return time.Duration(c.WalletTimeoutSeconds) * time.Second
}
