package recon

import (
	"strings"
	"time"

	"backoffice-backend/money"
)

// Score rates how plausibly the candidate invoice is the one the signal
// settles, in [0,1]. Pure: identical inputs (including now) give identical
// output. Weights from cfg combine additively, then clamp:
//
//   - outstanding balance equals the signal amount: +ExactAmountWeight
//   - outstanding within AmountTolerance but not exact: +NearAmountWeight
//   - customer email equals payer email (case-insensitive): +EmailWeight
//   - invoice created within RecencyWindow of now: +RecencyWeight
//
// A currency mismatch zeroes the amount terms; the remaining terms can never
// clear the confidence gate on their own.
func Score(cfg Config, cand Candidate, sig PaymentSignal, now time.Time) float64 {
	var score float64

	outstanding := money.New(cand.Outstanding, cand.Invoice.Currency)
	diff, err := outstanding.Sub(money.New(sig.Amount, sig.Currency))
	if err == nil {
		d := diff.Amount
		if d < 0 {
			d = -d
		}
		switch {
		case d == 0:
			score += cfg.ExactAmountWeight
		case d <= cfg.AmountTolerance:
			score += cfg.NearAmountWeight
		}
	}

	if sig.PayerEmail != "" && strings.EqualFold(cand.Invoice.Customer.Email, sig.PayerEmail) {
		score += cfg.EmailWeight
	}

	if age := now.Sub(cand.Invoice.CreatedAt); age >= 0 && age <= cfg.RecencyWindow {
		score += cfg.RecencyWeight
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}
