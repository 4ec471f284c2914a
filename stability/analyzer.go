// Package stability measures how consistently a population of observations
// of one device hashes.
//
// The analyzer hashes every observation through an injected Hasher, then
// runs the comparator over all C(n,2) pairs and aggregates which properties
// keep diverging. The pairwise pass is intentionally quadratic; populations
// here are debugging samples, not datasets.
package stability

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/diff"
)

// Hasher produces the canonical digest for one observation. The production
// engine satisfies this; tests may substitute anything deterministic.
type Hasher interface {
	Generate(ctx context.Context, b bag.Bag) (string, error)
}

const (
	// DefaultConcurrency is the pairwise comparison pool size.
	DefaultConcurrency = 4

	// DefaultTopN bounds the common-difference ranking.
	DefaultTopN = 10
)

// Analyzer runs population stability analysis. It is safe for concurrent
// use once built.
type Analyzer struct {
	hasher      Hasher
	comparator  *diff.Comparator
	concurrency int
	topN        int
	logger      *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithComparator replaces the comparator used for the pairwise pass.
func WithComparator(c *diff.Comparator) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.comparator = c
		}
	}
}

// WithConcurrency sets the pairwise worker pool size.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithTopN bounds how many common differences the report keeps.
func WithTopN(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithLogger sets the structured logger for analysis runs.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer builds an Analyzer around the given hasher.
func NewAnalyzer(h Hasher, opts ...Option) (*Analyzer, error) {
	if h == nil {
		return nil, fmt.Errorf("stability: hasher is required")
	}
	a := &Analyzer{
		hasher:      h,
		comparator:  diff.NewComparator(),
		concurrency: DefaultConcurrency,
		topN:        DefaultTopN,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type pairKey struct {
	property string
	typ      diff.Type
}

// Analyze hashes every observation and compares all pairs. It needs at
// least two observations; a single observation has no variation to measure.
func (a *Analyzer) Analyze(ctx context.Context, inputs []bag.Bag) (*Report, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("stability: analysis needs at least 2 observations, got %d", len(inputs))
	}

	n := len(inputs)
	digests := make([]string, n)
	for i, b := range inputs {
		d, err := a.hasher.Generate(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("stability: hashing observation %d: %w", i, err)
		}
		digests[i] = d
	}

	freq := make(map[string]int, n)
	for _, d := range digests {
		freq[d]++
	}
	unique := len(freq)

	counts, pairsCompared, totalDiffs, benignDiffs := a.comparePairs(ctx, inputs)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stability: analysis interrupted: %w", err)
	}

	variation := float64(unique-1) / float64(n-1)
	robustness := 1.0
	if totalDiffs > 0 {
		robustness = 1.0 - float64(benignDiffs)/float64(totalDiffs)
	}

	report := &Report{
		ID:                uuid.New(),
		GeneratedAt:       time.Now().UTC(),
		Inputs:            n,
		UniqueHashes:      unique,
		VariationRate:     variation,
		Consistency:       1.0 - variation,
		Entropy:           normalizedEntropy(freq, n),
		Predictability:    1.0 - variation,
		Robustness:        robustness,
		HashFrequencies:   freq,
		CommonDifferences: rankDifferences(counts, pairsCompared, a.topN),
		PairsCompared:     pairsCompared,
		TotalDifferences:  totalDiffs,
	}

	a.logger.Debug("stability analysis complete",
		"inputs", n,
		"unique_hashes", unique,
		"pairs_compared", pairsCompared,
		"total_differences", totalDiffs,
	)
	return report, nil
}

// comparePairs fans the C(n,2) comparisons out over a worker pool and folds
// the results into a (property, type) frequency table. Aggregation is
// order-independent, so pool scheduling cannot change the report.
func (a *Analyzer) comparePairs(ctx context.Context, inputs []bag.Bag) (map[pairKey]int, int, int, int) {
	type pair struct{ i, j int }

	n := len(inputs)
	totalPairs := n * (n - 1) / 2
	workers := a.concurrency
	if workers > totalPairs {
		workers = totalPairs
	}

	pairs := make(chan pair)
	results := make(chan *diff.Report)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pairs {
				if ctx.Err() != nil {
					continue
				}
				results <- a.comparator.Compare(inputs[p.i], inputs[p.j])
			}
		}()
	}

	go func() {
		defer close(pairs)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				select {
				case pairs <- pair{i, j}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	counts := make(map[pairKey]int)
	var compared, total, benign int
	for r := range results {
		compared++
		for _, d := range r.Differences {
			total++
			if !d.Severity.AtLeast(diff.SeverityMedium) {
				benign++
			}
			counts[pairKey{property: d.Path, typ: d.Type}]++
		}
	}
	return counts, compared, total, benign
}

// rankDifferences orders the frequency table by count descending, breaking
// ties by property then type, and keeps the top n.
func rankDifferences(counts map[pairKey]int, pairsCompared, n int) []PropertyCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]PropertyCount, 0, len(counts))
	for k, c := range counts {
		share := 0.0
		if pairsCompared > 0 {
			share = float64(c) / float64(pairsCompared)
		}
		out = append(out, PropertyCount{Property: k.property, Type: k.typ, Count: c, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Property != out[j].Property {
			return out[i].Property < out[j].Property
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// normalizedEntropy is the Shannon entropy of the digest distribution over
// log2(n), clamped to the [0, 1] scale the report promises.
func normalizedEntropy(freq map[string]int, n int) float64 {
	if n < 2 {
		return 0
	}
	var h float64
	for _, c := range freq {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	e := h / math.Log2(float64(n))
	if e < 0 {
		return 0
	}
	if e > 1 {
		return 1
	}
	return e
}
