package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cashupos/pos/internal/nut18"
	"github.com/cashupos/pos/internal/quotestore"
	"github.com/cashupos/pos/internal/settlement"
)

type handlers struct {
	config Config
	pos    posService
}

type posService interface {
	CreateQuote(ctx context.Context, amount int64, unit string) (*quotestore.Quote, error)
	CheckQuote(ctx context.Context, id string) (*quotestore.Quote, error)
	Settle(ctx context.Context, id string, payload nut18.PaymentPayload) (*quotestore.Quote, error)
}

type quoteResponse struct {
	CheckingID     string              `json:"checking_id"`
	Status         quotestore.Status   `json:"status"`
	PaymentRequest string              `json:"payment_request,omitempty"`
	ExpiresAt      int64               `json:"expires_at,omitempty"`
	Settlement     *settlementResponse `json:"settlement,omitempty"`
}

type settlementResponse struct {
	Mint      string `json:"mint"`
	Amount    int64  `json:"amount"`
	SettledAt int64  `json:"settled_at"`
}

// handleCreateQuote issues a new payment quote.
func (h *handlers) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		http.Error(w, settlement.ErrInvalidAmount.Error(), http.StatusBadRequest)
		return
	}
	unit := r.URL.Query().Get("unit")

	quote, err := h.pos.CreateQuote(ctx, amount, unit)
	if err != nil {
		log.Printf("err: pos.CreateQuote: %v", err)
		writeSettleError(w, err)
		return
	}

	quotesCreatedCounter.Inc()
	writeJSON(w, http.StatusCreated, quoteView(quote))
}

// handleCheckQuote returns the current state of a quote.
func (h *handlers) handleCheckQuote(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = chi.URLParam(r, "id")
	)

	quote, err := h.pos.CheckQuote(ctx, id)
	if err != nil {
		if !errors.Is(err, settlement.ErrQuoteNotFound) {
			log.Printf("err: pos.CheckQuote: %v", err)
		}
		writeSettleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteView(quote))
}

// handleReceivePayment accepts a NUT-18 payment payload for a quote.
func (h *handlers) handleReceivePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload nut18.PaymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payment payload", http.StatusBadRequest)
		return
	}
	if payload.ID == "" {
		http.Error(w, "missing payment id", http.StatusBadRequest)
		return
	}

	quote, err := h.pos.Settle(ctx, payload.ID, payload)
	if err != nil {
		log.Printf("err: pos.Settle quote %v: %v", payload.ID, err)
		settleFailedCounter.WithLabelValues(errReason(err)).Inc()
		writeSettleError(w, err)
		return
	}

	quotesSettledCounter.Inc()
	log.Printf("settled quote %v: %d %v via %v", quote.ID, quote.Settlement.Amount, quote.Unit, quote.Settlement.Mint)
	writeJSON(w, http.StatusOK, quoteView(quote))
}

func quoteView(q *quotestore.Quote) quoteResponse {
	resp := quoteResponse{
		CheckingID:     q.ID,
		Status:         q.Status,
		PaymentRequest: q.PaymentRequest,
		ExpiresAt:      q.ExpiresAt.Unix(),
	}
	if q.Settlement != nil {
		resp.Settlement = &settlementResponse{
			Mint:      q.Settlement.Mint,
			Amount:    q.Settlement.Amount,
			SettledAt: q.Settlement.SettledAt.Unix(),
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonb, _ := json.Marshal(v)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonb)
}

func writeSettleError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFromErr(err))
}

func statusFromErr(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrUnsupportedUnit),
		errors.Is(err, settlement.ErrUntrustedMint),
		errors.Is(err, settlement.ErrAmountMismatch),
		errors.Is(err, settlement.ErrUnitMismatch),
		errors.Is(err, settlement.ErrProofInvalid):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrQuoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrAlreadyPaid),
		errors.Is(err, settlement.ErrQuoteExpired):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrMintUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errReason(err error) string {
	switch {
	case errors.Is(err, settlement.ErrUntrustedMint):
		return "untrusted_mint"
	case errors.Is(err, settlement.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, settlement.ErrUnitMismatch):
		return "unit_mismatch"
	case errors.Is(err, settlement.ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, settlement.ErrQuoteExpired):
		return "expired"
	case errors.Is(err, settlement.ErrQuoteNotFound):
		return "not_found"
	case errors.Is(err, settlement.ErrProofInvalid):
		return "proof_invalid"
	case errors.Is(err, settlement.ErrMintUnreachable):
		return "mint_unreachable"
	default:
		return "internal"
	}
}
