package recon

import "time"

// Config carries the matching policy knobs. Weights combine additively and
// the scorer clamps the sum to 1.0. These are policy inputs, not algorithm
// constants: tests and tenant-specific tuning construct their own Config.
type Config struct {
	// ExactAmountWeight is added when the outstanding balance equals the
	// signal amount exactly.
	ExactAmountWeight float64

	// NearAmountWeight is added when the outstanding balance is within
	// AmountTolerance of the signal but not exact. Mutually exclusive with
	// ExactAmountWeight.
	NearAmountWeight float64

	// AmountTolerance is the absolute tolerance in minor units, used both by
	// the scorer's near-amount term and the candidate lookup window.
	AmountTolerance int64

	// EmailWeight is added on a case-insensitive exact match between the
	// invoice customer's email and the signal's payer email.
	EmailWeight float64

	// RecencyWeight is added when the invoice was created within
	// RecencyWindow of scoring time.
	RecencyWeight float64
	RecencyWindow time.Duration

	// MinScore is the confidence gate: candidates scoring at or below it are
	// discarded.
	MinScore float64

	// LockWait bounds how long a reconciliation attempt waits for the
	// per-invoice exclusive section before reporting ErrResourceBusy.
	LockWait time.Duration
}

// DefaultConfig returns the stock policy: ±1 currency major unit amount
// tolerance, 0.7 confidence gate, 7 day recency window.
func DefaultConfig() Config {
	return Config{
		ExactAmountWeight: 0.6,
		NearAmountWeight:  0.4,
		AmountTolerance:   100,
		EmailWeight:       0.3,
		RecencyWeight:     0.1,
		RecencyWindow:     7 * 24 * time.Hour,
		MinScore:          0.7,
		LockWait:          2 * time.Second,
	}
}
