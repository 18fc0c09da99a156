package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fp(v float64) *float64 { return &v }

func TestPercentileRankDistinct(t *testing.T) {
	ranks := PercentileRank([]*float64{fp(10), fp(20), fp(30), fp(40)})
	assert.Equal(t, []float64{25, 50, 75, 100}, ranks)
}

func TestPercentileRankTiesGetMax(t *testing.T) {
	// Two values tied at 20: both get the tie group's highest rank (3/4).
	ranks := PercentileRank([]*float64{fp(10), fp(20), fp(20), fp(40)})
	assert.Equal(t, []float64{25, 75, 75, 100}, ranks)
}

func TestPercentileRankMonotonic(t *testing.T) {
	values := []*float64{fp(3), fp(1), fp(4), fp(1), fp(5), fp(9), fp(2), fp(6)}
	ranks := PercentileRank(values)
	for i := range values {
		for j := range values {
			if *values[i] < *values[j] {
				assert.LessOrEqual(t, ranks[i], ranks[j])
			}
			if *values[i] == *values[j] {
				assert.Equal(t, ranks[i], ranks[j])
			}
		}
	}
}

func TestPercentileRankMissingGetsNeutral(t *testing.T) {
	ranks := PercentileRank([]*float64{fp(10), nil, fp(30)})
	assert.Equal(t, NeutralRank, ranks[1])
	// Missing values are excluded from the population: 2 present values.
	assert.Equal(t, []float64{50, 50, 100}, ranks)
}

func TestPercentileRankAllMissing(t *testing.T) {
	ranks := PercentileRank([]*float64{nil, nil, nil})
	assert.Equal(t, []float64{50, 50, 50}, ranks)
}

func TestPercentileRankEmpty(t *testing.T) {
	assert.Empty(t, PercentileRank(nil))
}

func TestPercentileRankSingle(t *testing.T) {
	assert.Equal(t, []float64{100}, PercentileRank([]*float64{fp(7)}))
}

func TestInvertRanks(t *testing.T) {
	ranks := []float64{25, 50, 75, 100}
	InvertRanks(ranks)
	assert.Equal(t, []float64{75, 50, 25, 0}, ranks)
}

func TestInvertRanksKeepsNeutral(t *testing.T) {
	ranks := PercentileRank([]*float64{nil, fp(1), fp(2)})
	InvertRanks(ranks)
	assert.Equal(t, NeutralRank, ranks[0])
}

func TestBinaryRanks(t *testing.T) {
	assert.Equal(t, []float64{100, 0, 100}, BinaryRanks([]bool{true, false, true}))
}
