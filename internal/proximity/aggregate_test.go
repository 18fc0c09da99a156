package proximity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxintel-group/exposure-cli/internal/geo"
	"github.com/rxintel-group/exposure-cli/internal/model"
)

// testGeography: ZIPs 40422, 40423 in county 21021; 40440 in 21045;
// 21021 and 21045 adjacent.
func testGeography(t *testing.T) (*geo.Crosswalk, *geo.AdjacencyGraph) {
	t.Helper()
	cw, err := geo.LoadCrosswalk(strings.NewReader(
		"GEOID_ZCTA5_20|GEOID_COUNTY_20|AREALAND_PART\n" +
			"40422|21021|100\n" +
			"40423|21021|100\n" +
			"40440|21045|100\n"))
	require.NoError(t, err)

	g, err := geo.ParseCensusAdjacency(strings.NewReader(
		"\"Boyle County, KY\"\t21021\t\"Casey County, KY\"\t21045\n"))
	require.NoError(t, err)

	return cw, g
}

func TestComputeAllTiers(t *testing.T) {
	cw, g := testGeography(t)
	claims := map[string]int{"40422": 100, "40423": 40, "40440": 10}
	agg := New(claims, cw, g, 2)

	// 100*1.0 + 40*0.5 + 10*0.2 = 122
	assert.InDelta(t, 122.0, agg.Compute("40422"), 1e-9)
}

func TestComputeUnknownCounty(t *testing.T) {
	cw, g := testGeography(t)
	claims := map[string]int{"99999": 7, "40422": 100}
	agg := New(claims, cw, g, 2)

	// ZIP absent from the crosswalk gets only the same-ZIP term.
	assert.InDelta(t, 7.0, agg.Compute("99999"), 1e-9)
}

func TestComputeNoClaimsAnywhere(t *testing.T) {
	cw, g := testGeography(t)
	agg := New(map[string]int{}, cw, g, 2)
	assert.Zero(t, agg.Compute("40422"))
}

func TestComputeAll(t *testing.T) {
	cw, g := testGeography(t)
	claims := map[string]int{"40422": 100, "40423": 40, "40440": 10}
	agg := New(claims, cw, g, 4)

	pharmacies := []*model.Pharmacy{
		{NPI: "1", Zip: "40422-1234"},
		{NPI: "2", Zip: "40440"},
		{NPI: "3", Zip: "00000"},
	}
	require.NoError(t, agg.ComputeAll(context.Background(), pharmacies))

	assert.InDelta(t, 122.0, pharmacies[0].NearbyClaims, 1e-9)
	assert.Equal(t, "21021", pharmacies[0].CountyFIPS)

	// 10*1.0 + 0*0.5 + (100+40)*0.2 = 38
	assert.InDelta(t, 38.0, pharmacies[1].NearbyClaims, 1e-9)

	assert.Zero(t, pharmacies[2].NearbyClaims)
	assert.Empty(t, pharmacies[2].CountyFIPS)
}

func TestComputeAllCancelled(t *testing.T) {
	cw, g := testGeography(t)
	agg := New(map[string]int{}, cw, g, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pharmacies := make([]*model.Pharmacy, 100)
	for i := range pharmacies {
		pharmacies[i] = &model.Pharmacy{Zip: "40422"}
	}
	err := agg.ComputeAll(ctx, pharmacies)
	assert.ErrorIs(t, err, context.Canceled)
}
