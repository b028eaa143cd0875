// Package mint redeems submitted tokens through a cashu wallet daemon. The
// daemon owns the blinded-signature exchange with the issuing mint; this
// client only reports the outcome.
package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cashupos/pos/internal/nut18"
	"github.com/cashupos/pos/internal/settlement"
)

func New(walletURL string, timeout time.Duration) (*Client, error) {
	if walletURL == "" {
		return nil, fmt.Errorf("must set wallet_url")
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(walletURL, "/"),
	}, nil
}

type Client struct {
	http    *http.Client
	baseURL string
}

type receiveRequest struct {
	Mint   string        `json:"mint"`
	Unit   string        `json:"unit"`
	Proofs []nut18.Proof `json:"proofs"`
}

type receiveResponse struct {
	Amount int64 `json:"amount"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Redeem asks the wallet to receive the payload's proofs from its mint.
// Network failures and wallet 5xx map to ErrMintUnreachable (retryable);
// everything else the wallet refuses maps to ErrProofInvalid.
func (c *Client) Redeem(ctx context.Context, payload nut18.PaymentPayload) (*settlement.RedeemOutcome, error) {
	body, err := json.Marshal(receiveRequest{
		Mint:   payload.Mint,
		Unit:   payload.Unit,
		Proofs: payload.Proofs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal receive request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/receive", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build receive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wallet receive: %v: %w", err, settlement.ErrMintUnreachable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var rr receiveResponse
		if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
			return nil, fmt.Errorf("decode receive response: %w", err)
		}
		return &settlement.RedeemOutcome{
			Mint:   payload.Mint,
			Amount: rr.Amount,
			Unit:   payload.Unit,
		}, nil

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("wallet receive: status %d: %w", resp.StatusCode, settlement.ErrMintUnreachable)

	default:
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Detail == "" {
			er.Detail = resp.Status
		}
		return nil, fmt.Errorf("wallet rejected proofs: %s: %w", er.Detail, settlement.ErrProofInvalid)
	}
}
