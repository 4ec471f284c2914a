package stability

import (
	"time"

	"github.com/google/uuid"

	"github.com/stableprint/sdk/diff"
)

// PropertyCount is one entry of the common-difference ranking: how often a
// (property, difference type) pair showed up across all compared pairs.
type PropertyCount struct {
	Property string    `json:"property"`
	Type     diff.Type `json:"type"`
	Count    int       `json:"count"`

	// Share is Count over the number of pairs compared.
	Share float64 `json:"share"`
}

// Report is the outcome of analyzing one population of observations.
type Report struct {
	ID          uuid.UUID `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Inputs       int `json:"inputs"`
	UniqueHashes int `json:"unique_hashes"`

	// VariationRate is (unique-1)/(inputs-1): 0 when every observation
	// hashes identically, 1 when all digests are distinct.
	VariationRate float64 `json:"variation_rate"`

	// Consistency is the complement of VariationRate.
	Consistency float64 `json:"consistency"`

	// Entropy is the Shannon entropy of the digest distribution normalized
	// by log2(inputs), so it ranges 0 (uniform) to 1 (all distinct).
	Entropy float64 `json:"entropy"`

	Predictability float64 `json:"predictability"`

	// Robustness is 1 minus the share of observed differences graded low or
	// negligible. It is 1 when no differences were observed at all.
	Robustness float64 `json:"robustness"`

	HashFrequencies   map[string]int  `json:"hash_frequencies"`
	CommonDifferences []PropertyCount `json:"common_differences"`

	PairsCompared    int `json:"pairs_compared"`
	TotalDifferences int `json:"total_differences"`
}

// Stable reports whether the whole population hashed to a single digest.
func (r *Report) Stable() bool {
	return r.UniqueHashes == 1
}

// ModalHash returns the most frequent digest and its count. Ties break
// toward the lexicographically smaller digest so the answer is
// deterministic.
func (r *Report) ModalHash() (string, int) {
	var best string
	var n int
	for digest, count := range r.HashFrequencies {
		if count > n || (count == n && (best == "" || digest < best)) {
			best, n = digest, count
		}
	}
	return best, n
}
