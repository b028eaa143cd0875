// Package nut18 implements the NUT-18 payment request encoding and the
// payment payload a payer posts back over an HTTP transport.
package nut18

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Encoded payment requests are prefixed with "creq" and version "A".
const prefix = "creqA"

const TransportPost = "post"

// Transport tells the payer where to send the payment payload.
type Transport struct {
	Type   string     `cbor:"t"`
	Target string     `cbor:"a"`
	Tags   [][]string `cbor:"g,omitempty"`
}

// PaymentRequest is the payee side of NUT-18: everything a payer needs to
// construct an acceptable token without further backend calls.
type PaymentRequest struct {
	PaymentID   string      `cbor:"i,omitempty"`
	Amount      uint64      `cbor:"a,omitempty"`
	Unit        string      `cbor:"u,omitempty"`
	SingleUse   bool        `cbor:"s,omitempty"`
	Mints       []string    `cbor:"m,omitempty"`
	Description string      `cbor:"d,omitempty"`
	Transports  []Transport `cbor:"t,omitempty"`
}

// Encode serializes the request as urlsafe base64 CBOR with the creqA prefix.
func (r PaymentRequest) Encode() (string, error) {
	b, err := cbor.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("cbor.Marshal: %w", err)
	}

	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode parses an encoded payment request. Padded and unpadded base64 are
// both accepted; some wallets emit the padded form.
func Decode(s string) (*PaymentRequest, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("not a NUT-18 payment request")
	}

	raw := strings.TrimRight(strings.TrimPrefix(s, prefix), "=")
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	var r PaymentRequest
	if err := cbor.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("cbor.Unmarshal: %w", err)
	}

	return &r, nil
}

// Proof is a single unit of ecash issued by a mint. The secret and signature
// are opaque here; only the mint can judge them.
type Proof struct {
	Amount   uint64 `json:"amount"`
	KeysetID string `json:"id"`
	Secret   string `json:"secret"`
	C        string `json:"C"`
}

// PaymentPayload is what a payer posts to the transport target. All proofs
// in one payload come from the single declared mint.
type PaymentPayload struct {
	ID     string  `json:"id"`
	Memo   string  `json:"memo,omitempty"`
	Mint   string  `json:"mint"`
	Unit   string  `json:"unit"`
	Proofs []Proof `json:"proofs"`
}

// Amount is the declared value of the payload: the sum of its proofs.
// Sums that would overflow int64 saturate instead of wrapping, so a forged
// proof set can never declare its way back down to a real quote amount.
func (p PaymentPayload) Amount() int64 {
	var sum uint64
	for _, proof := range p.Proofs {
		next := sum + proof.Amount
		if next < sum || next > math.MaxInt64 {
			return math.MaxInt64
		}
		sum = next
	}
	return int64(sum)
}
