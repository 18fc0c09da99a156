package allocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

func TestAnnualProportional(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", NearbyClaims: 10},
		{NPI: "2", State: "KY", NearbyClaims: 20},
		{NPI: "3", State: "KY", NearbyClaims: 30},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 120}}

	got := Annual(pharmacies, totals, ByProximity)
	assert.Equal(t, []float64{20, 40, 60}, got)
}

func TestAnnualByExposureIgnoresOutreachScore(t *testing.T) {
	// Identical outreach scores, diverging exposure: the allocation must
	// follow the exposure index.
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", Score: 50, ExposureIndex: 10},
		{NPI: "2", State: "KY", Score: 50, ExposureIndex: 30},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 400}}

	got := Annual(pharmacies, totals, ByExposure)
	assert.Equal(t, []float64{100, 300}, got)
}

func TestAnnualConservesExactly(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", Score: 71.3},
		{NPI: "2", State: "KY", Score: 44.9},
		{NPI: "3", State: "KY", Score: 12.0},
		{NPI: "4", State: "TN", Score: 88.8},
		{NPI: "5", State: "TN", Score: 55.5},
	}
	totals := []model.StateTotal{
		{State: "KY", Claims: 98765},
		{State: "TN", Claims: 43210},
	}

	got := Annual(pharmacies, totals, ByScore)

	assert.InDelta(t, 98765.0, got[0]+got[1]+got[2], 1e-6)
	assert.InDelta(t, 43210.0, got[3]+got[4], 1e-6)
}

func TestAnnualEqualSplitWhenWeightsZero(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY"},
		{NPI: "2", State: "KY"},
		{NPI: "3", State: "KY"},
		{NPI: "4", State: "KY"},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 100}}

	got := Annual(pharmacies, totals, ByScore)
	assert.Equal(t, []float64{25, 25, 25, 25}, got)
}

func TestAnnualZeroTotal(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", Score: 90},
		{NPI: "2", State: "KY", Score: 10},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 0}}

	got := Annual(pharmacies, totals, ByScore)
	assert.Equal(t, []float64{0, 0}, got)
}

func TestAnnualStateWithoutTotal(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", Score: 50},
		{NPI: "2", State: "WV", Score: 50},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 600}}

	got := Annual(pharmacies, totals, ByScore)
	assert.Equal(t, []float64{600, 0}, got)
}

func TestAnnualNormalizesStateKeys(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: " ky ", Score: 50},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 300}}

	got := Annual(pharmacies, totals, ByScore)
	assert.Equal(t, []float64{300}, got)
}

func TestAnnualSumsDuplicateTotals(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", Score: 50},
	}
	totals := []model.StateTotal{
		{State: "KY", Claims: 100},
		{State: "KY", Claims: 50},
	}

	got := Annual(pharmacies, totals, ByScore)
	assert.Equal(t, []float64{150}, got)
}

func TestApplySetsEstimates(t *testing.T) {
	pharmacies := []*model.Pharmacy{
		{NPI: "1", State: "KY", NearbyClaims: 10},
		{NPI: "2", State: "KY", NearbyClaims: 20},
		{NPI: "3", State: "KY", NearbyClaims: 30},
	}
	totals := []model.StateTotal{{State: "KY", Claims: 120}}

	annual := Apply(pharmacies, totals, ByProximity, 37.0)
	require.Equal(t, []float64{20, 40, 60}, annual)

	// round(20/12)=2, round(40/12)=3, round(60/12)=5.
	assert.Equal(t, 2, pharmacies[0].MonthlyFills)
	assert.Equal(t, 3, pharmacies[1].MonthlyFills)
	assert.Equal(t, 5, pharmacies[2].MonthlyFills)

	assert.Equal(t, 740, pharmacies[0].AnnualLoss)
	assert.Equal(t, 1480, pharmacies[1].AnnualLoss)
	assert.Equal(t, 2220, pharmacies[2].AnnualLoss)
}

func TestApplyMonthlyDriftWithinTolerance(t *testing.T) {
	pharmacies := make([]*model.Pharmacy, 0, 40)
	for i := 0; i < 40; i++ {
		pharmacies = append(pharmacies, &model.Pharmacy{
			NPI:   string(rune('A' + i)),
			State: "KY",
			Score: float64(1 + i%7),
		})
	}
	totals := []model.StateTotal{{State: "KY", Claims: 5000}}

	Apply(pharmacies, totals, ByScore, 37.0)

	reconstructed := 0
	for _, p := range pharmacies {
		reconstructed += p.MonthlyFills * 12
	}
	drift := float64(reconstructed) - 5000
	if drift < 0 {
		drift = -drift
	}
	assert.Less(t, drift/5000, 0.10)
}

func TestAnnualEmptyInputs(t *testing.T) {
	assert.Empty(t, Annual(nil, nil, ByScore))
}
