package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cashupos/pos/internal/mint"
	"github.com/cashupos/pos/internal/quotestore"
	"github.com/cashupos/pos/internal/settlement"
)

var (
	commit    string
	buildDate string
)

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "", "location of config file. If non is specified config will be loaded from the environment")
	flag.Parse()

	log.Printf("build info: commit: %v date: %v\n", commit, buildDate)

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		log.Printf("loading config from file %q\n", *configPath)
		err = cfg.Load(*configPath)
	} else {
		log.Println("loading config from env")
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}

	// Quote store setup
	var store quotestore.QuoteStore
	switch cfg.QuoteDBDriver {
	case "sqlite":
		store, err = quotestore.NewSQLite(cfg.QuoteDB)
	case "postgres":
		store, err = quotestore.NewPostgres(cfg.QuoteDB)
	default:
		log.Printf("unknown quote_db_driver %q. must be 'sqlite' or 'postgres'", cfg.QuoteDBDriver)
		os.Exit(1)
	}
	if err != nil {
		log.Printf("quote store err: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Wallet client setup
	wallet, err := mint.New(cfg.WalletURL, cfg.walletTimeout())
	if err != nil {
		log.Printf("wallet err: %v\n", err)
		os.Exit(1)
	}

	pos, err := settlement.New(settlement.Config{
		AcceptedMints: cfg.AcceptedMints,
		Units:         cfg.SupportedUnits,
		QuoteTTL:      cfg.quoteTTL(),
		PaymentURL:    cfg.PaymentURL,
	}, store, wallet)
	if err != nil {
		log.Printf("settlement err: %v\n", err)
		os.Exit(1)
	}

	go pos.RunSweeper(ctx, cfg.sweepInterval())

	h := handlers{
		config: cfg,
		pos:    pos,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metricsMiddleware)

	r.Get("/create", h.handleCreateQuote)
	r.Get("/check/{id}", h.handleCheckQuote)
	r.Post("/payment", h.handleReceivePayment)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	port := fmt.Sprintf(":%d", cfg.Port)

	log.Printf("api listening on %v\n", port)

	http.ListenAndServe(port, r)
}
