// Package scorer turns heterogeneous raw pharmacy factors into a single
// 0-100 composite via percentile-rank normalization and fixed weights, and
// partitions the ranked population into outreach grades.
package scorer

import "sort"

// NeutralRank is assigned to values missing from a factor column. Missing
// rows are excluded from the ranking pass but never dropped from output.
const NeutralRank = 50.0

// PercentileRank normalizes values to 0-100 percentile ranks using the
// max-tie convention: rank(v) = (count of present values <= v) / n * 100,
// so tied values all receive the tie group's highest rank. nil entries get
// the neutral fallback. The output is index-aligned with the input.
func PercentileRank(values []*float64) []float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, *v)
		}
	}

	ranks := make([]float64, len(values))
	if len(present) == 0 {
		for i := range ranks {
			ranks[i] = NeutralRank
		}
		return ranks
	}

	sort.Float64s(present)
	n := float64(len(present))

	for i, v := range values {
		if v == nil {
			ranks[i] = NeutralRank
			continue
		}
		// Index of the first element > *v == count of elements <= *v.
		le := sort.SearchFloat64s(present, *v)
		for le < len(present) && present[le] == *v {
			le++
		}
		ranks[i] = float64(le) / n * 100
	}
	return ranks
}

// InvertRanks flips ranks in place so that smaller raw values score higher.
// Neutral fallbacks stay neutral: 100 - 50 = 50.
func InvertRanks(ranks []float64) {
	for i := range ranks {
		ranks[i] = 100 - ranks[i]
	}
}

// BinaryRanks maps boolean flags to 100/0 directly, bypassing ranking.
func BinaryRanks(flags []bool) []float64 {
	ranks := make([]float64, len(flags))
	for i, f := range flags {
		if f {
			ranks[i] = 100
		}
	}
	return ranks
}
