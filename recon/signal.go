package recon

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PaymentSignal is the untrusted evidence parsed out of an inbound payment
// event. It is never persisted as domain truth; it only drives matching.
type PaymentSignal struct {
	Amount      int64
	Currency    string
	PayerEmail  string
	ExternalRef string
	ReceivedAt  time.Time
}

type stripePayload struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
}

type razorpayPayload struct {
	PaymentID string `json:"payment_id"`
	Event     string `json:"event"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email"`
}

// ParseSignal decodes a provider webhook payload into a PaymentSignal.
// Unknown providers and payloads without an external reference are rejected;
// the external reference is the idempotency key and cannot be defaulted.
func ParseSignal(provider string, raw []byte, now time.Time) (PaymentSignal, error) {
	var sig PaymentSignal
	sig.ReceivedAt = now

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "stripe":
		var p stripePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return PaymentSignal{}, fmt.Errorf("stripe payload: %w", err)
		}
		sig.Amount = p.Amount
		sig.Currency = p.Currency
		sig.PayerEmail = p.CustomerEmail
		sig.ExternalRef = p.ID
	case "razorpay":
		var p razorpayPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return PaymentSignal{}, fmt.Errorf("razorpay payload: %w", err)
		}
		sig.Amount = p.Amount
		sig.Currency = p.Currency
		sig.PayerEmail = p.Email
		sig.ExternalRef = p.PaymentID
	default:
		return PaymentSignal{}, fmt.Errorf("unknown payment provider %q", provider)
	}

	sig.ExternalRef = strings.TrimSpace(sig.ExternalRef)
	if sig.ExternalRef == "" {
		return PaymentSignal{}, fmt.Errorf("%s payload has no external reference", provider)
	}
	if sig.Amount <= 0 {
		return PaymentSignal{}, fmt.Errorf("%s payload has non-positive amount %d", provider, sig.Amount)
	}
	sig.Currency = strings.ToUpper(strings.TrimSpace(sig.Currency))
	if sig.Currency == "" {
		sig.Currency = "INR"
	}
	sig.PayerEmail = strings.TrimSpace(sig.PayerEmail)
	return sig, nil
}

// EventType extracts the provider's event type for the webhook journal,
// falling back to "payment".
func EventType(raw []byte) string {
	var head struct {
		Type  string `json:"type"`
		Event string `json:"event"`
	}
	_ = json.Unmarshal(raw, &head)
	if head.Type != "" {
		return head.Type
	}
	if head.Event != "" {
		return head.Event
	}
	return "payment"
}
