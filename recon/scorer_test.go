package recon

import (
	"testing"
	"time"

	"backoffice-backend/models"

	"github.com/stretchr/testify/assert"
)

func candidate(outstanding int64, currency, email string, createdAt time.Time) Candidate {
	return Candidate{
		Invoice: models.Invoice{
			ID:        1,
			Kind:      models.KindReceivable,
			Status:    models.StatusIssued,
			Total:     outstanding,
			Currency:  currency,
			Customer:  models.Customer{Email: email},
			CreatedAt: createdAt,
		},
		Outstanding: outstanding,
	}
}

func signal(amount int64, currency, email string) PaymentSignal {
	return PaymentSignal{Amount: amount, Currency: currency, PayerEmail: email}
}

func TestScoreExactAmountEmailAndRecency(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cand := candidate(11800, "INR", "billing@acme.com", now.Add(-24*time.Hour))

	got := Score(cfg, cand, signal(11800, "INR", "billing@acme.com"), now)
	assert.InDelta(t, 1.0, got, 1e-9) // 0.6+0.3+0.1 clamped to 1.0
}

func TestScoreWithinToleranceNotExact(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cand := candidate(30050, "INR", "other@acme.com", now.Add(-30*24*time.Hour))

	got := Score(cfg, cand, signal(30000, "INR", "nobody@example.com"), now)
	assert.InDelta(t, cfg.NearAmountWeight, got, 1e-9)
}

func TestScoreExactAndNearAreMutuallyExclusive(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cand := candidate(10000, "INR", "", now.Add(-30*24*time.Hour))

	// Exact match gets only the exact bonus, never both.
	got := Score(cfg, cand, signal(10000, "INR", ""), now)
	assert.InDelta(t, cfg.ExactAmountWeight, got, 1e-9)
}

func TestScoreEmailCaseInsensitive(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cand := candidate(500, "INR", "Billing@Acme.COM", now.Add(-60*24*time.Hour))

	got := Score(cfg, cand, signal(999999, "INR", "billing@acme.com"), now)
	assert.InDelta(t, cfg.EmailWeight, got, 1e-9)
}

func TestScoreEmptyPayerEmailNeverMatches(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cand := candidate(500, "INR", "", now.Add(-60*24*time.Hour))

	got := Score(cfg, cand, signal(999999, "INR", ""), now)
	assert.Zero(t, got)
}

func TestScoreRecencyWindow(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	inside := candidate(999, "INR", "", now.Add(-6*24*time.Hour))
	assert.InDelta(t, cfg.RecencyWeight, Score(cfg, inside, signal(5, "INR", ""), now), 1e-9)

	outside := candidate(999, "INR", "", now.Add(-8*24*time.Hour))
	assert.Zero(t, Score(cfg, outside, signal(5, "INR", ""), now))
}

func TestScoreCurrencyMismatchZeroesAmountTerms(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cand := candidate(11800, "INR", "billing@acme.com", now)

	got := Score(cfg, cand, signal(11800, "USD", "billing@acme.com"), now)
	// Email and recency only; never enough to clear the gate.
	assert.InDelta(t, cfg.EmailWeight+cfg.RecencyWeight, got, 1e-9)
	assert.LessOrEqual(t, got, cfg.MinScore)
}

func TestScoreDeterministicAndBounded(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cfg := DefaultConfig()
	cand := candidate(11800, "INR", "billing@acme.com", now.Add(-time.Hour))
	sig := signal(11800, "INR", "billing@acme.com")

	a := Score(cfg, cand, sig, now)
	b := Score(cfg, cand, sig, now)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.LessOrEqual(t, a, 1.0)
}

func TestScoreWeightsAreConfigurable(t *testing.T) {
	now := time.Now()
	cfg := Config{
		ExactAmountWeight: 0.9,
		NearAmountWeight:  0.2,
		AmountTolerance:   50,
		EmailWeight:       0.05,
		RecencyWeight:     0.0,
		RecencyWindow:     time.Hour,
		MinScore:          0.5,
	}
	cand := candidate(1000, "INR", "a@b.c", now.Add(-48*time.Hour))

	assert.InDelta(t, 0.95, Score(cfg, cand, signal(1000, "INR", "a@b.c"), now), 1e-9)
	assert.InDelta(t, 0.2, Score(cfg, cand, signal(1040, "INR", ""), now), 1e-9)
	assert.Zero(t, Score(cfg, cand, signal(1060, "INR", ""), now))
}
