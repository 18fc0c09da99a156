package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxintel-group/exposure-cli/internal/model"
	"github.com/rxintel-group/exposure-cli/internal/output"
)

// healthyPopulation builds n pharmacies in one state whose grades and fills
// satisfy every check.
func healthyPopulation(n, monthlyEach int) []*model.Pharmacy {
	pharmacies := make([]*model.Pharmacy, n)
	aCount := int(float64(n)*0.15 + 0.5)
	for i := range pharmacies {
		grade := "B"
		if i < aCount {
			grade = "A"
		}
		pharmacies[i] = &model.Pharmacy{
			NPI:          fmt.Sprintf("%010d", i+1),
			State:        "KY",
			Score:        50.0,
			NearbyClaims: 10,
			MonthlyFills: monthlyEach,
			Grade:        grade,
		}
	}
	return pharmacies
}

func checkByName(t *testing.T, r Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q", name)
	return Check{}
}

func TestRunAllPass(t *testing.T) {
	pharmacies := healthyPopulation(100, 10)
	// 100 pharmacies * 10 monthly * 12 = 12000, matches the total exactly.
	r := Run(Input{
		Pharmacies:   pharmacies,
		Totals:       []model.StateTotal{{State: "KY", Claims: 12000}},
		Header:       output.Columns(),
		ExpectedRows: 100,
	})
	assert.True(t, r.Passed(), r.String())
}

func TestCheckScoreRangeFails(t *testing.T) {
	pharmacies := healthyPopulation(20, 5)
	pharmacies[3].Score = 101.0
	r := Run(Input{Pharmacies: pharmacies})

	c := checkByName(t, r, "score_range")
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "1 scores outside")
	assert.False(t, r.Passed())
}

func TestCheckConservationDrift(t *testing.T) {
	pharmacies := healthyPopulation(10, 10)
	// Reconstructed 10*10*12 = 1200 against a claimed total of 2000: 40% off.
	r := Run(Input{
		Pharmacies: pharmacies,
		Totals:     []model.StateTotal{{State: "KY", Claims: 2000}},
	})

	c := checkByName(t, r, "conservation")
	require.False(t, c.Passed)
	assert.Contains(t, c.Detail, "KY")
}

func TestCheckConservationWithinTolerance(t *testing.T) {
	pharmacies := healthyPopulation(10, 10)
	// 1200 reconstructed vs 1150 claimed is ~4.3% drift.
	r := Run(Input{
		Pharmacies: pharmacies,
		Totals:     []model.StateTotal{{State: "KY", Claims: 1150}},
	})
	assert.True(t, checkByName(t, r, "conservation").Passed)
}

func TestCheckGradeShare(t *testing.T) {
	pharmacies := healthyPopulation(100, 5)
	assert.True(t, checkByName(t, Run(Input{Pharmacies: pharmacies}), "grade_a_share").Passed)

	for _, p := range pharmacies {
		p.Grade = "A"
	}
	assert.False(t, checkByName(t, Run(Input{Pharmacies: pharmacies}), "grade_a_share").Passed)
}

func TestCheckZeroProximity(t *testing.T) {
	pharmacies := healthyPopulation(10, 5)
	for i := 0; i < 6; i++ {
		pharmacies[i].NearbyClaims = 0
	}
	c := checkByName(t, Run(Input{Pharmacies: pharmacies}), "zero_proximity")
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "60.0%")
}

func TestCheckRequiredColumns(t *testing.T) {
	r := Run(Input{Header: []string{"npi", "state"}})
	c := checkByName(t, r, "required_columns")
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, output.ColScore)
}

func TestCheckRowCountMismatch(t *testing.T) {
	pharmacies := healthyPopulation(9, 5)
	c := checkByName(t, Run(Input{Pharmacies: pharmacies, ExpectedRows: 10}), "row_count")
	assert.False(t, c.Passed)
}

func TestReportString(t *testing.T) {
	r := Report{Checks: []Check{
		{Name: "score_range", Passed: true, Detail: "ok"},
		{Name: "conservation", Passed: false, Detail: "bad"},
	}}
	s := r.String()
	assert.Contains(t, s, "PASS")
	assert.Contains(t, s, "FAIL")
	assert.False(t, r.Passed())
}
