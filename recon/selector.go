package recon

import (
	"sort"
	"time"
)

// Select scores all candidates, discards any at or below the confidence
// gate, and returns the best match with its score. Ties on score are broken
// by the earlier invoice creation timestamp: the oldest debt is settled
// first. Returns ok=false when no candidate clears the gate.
func Select(cfg Config, cands []Candidate, sig PaymentSignal, now time.Time) (Candidate, float64, bool) {
	type scored struct {
		cand  Candidate
		score float64
	}

	passing := make([]scored, 0, len(cands))
	for _, c := range cands {
		s := Score(cfg, c, sig, now)
		if s > cfg.MinScore {
			passing = append(passing, scored{cand: c, score: s})
		}
	}
	if len(passing) == 0 {
		return Candidate{}, 0, false
	}

	sort.SliceStable(passing, func(i, j int) bool {
		if passing[i].score != passing[j].score {
			return passing[i].score > passing[j].score
		}
		return passing[i].cand.Invoice.CreatedAt.Before(passing[j].cand.Invoice.CreatedAt)
	})

	return passing[0].cand, passing[0].score, true
}
