package geo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// censusAdjacencySample mimics the Census format: a leading county-name field
// introduces a source county, empty-leading rows continue its neighbor list.
const censusAdjacencySample = "" +
	"\"Boyle County, KY\"\t21021\t\"Boyle County, KY\"\t21021\n" +
	"\t\t\"Casey County, KY\"\t21045\n" +
	"\t\t\"Garrard County, KY\"\t21079\n" +
	"\"Casey County, KY\"\t21045\t\"Adair County, KY\"\t21001\n" +
	"\t\t\"Boyle County, KY\"\t21021\n"

func TestParseCensusAdjacency(t *testing.T) {
	g, err := ParseCensusAdjacency(strings.NewReader(censusAdjacencySample))
	require.NoError(t, err)

	assert.Equal(t, SourceCensus, g.Source())
	assert.Equal(t, []string{"21045", "21079"}, g.Neighbors("21021"))
	assert.Contains(t, g.Neighbors("21045"), "21001")
	// Self-edge from the header row is skipped.
	assert.NotContains(t, g.Neighbors("21021"), "21021")
}

func TestAdjacencySymmetry(t *testing.T) {
	g, err := ParseCensusAdjacency(strings.NewReader(censusAdjacencySample))
	require.NoError(t, err)

	for _, a := range []string{"21021", "21045", "21079", "21001"} {
		for _, b := range g.Neighbors(a) {
			assert.Contains(t, g.Neighbors(b), a, "edge %s-%s must be symmetric", a, b)
		}
	}
}

func TestNeighborsUnknownCounty(t *testing.T) {
	g, err := ParseCensusAdjacency(strings.NewReader(censusAdjacencySample))
	require.NoError(t, err)
	assert.Empty(t, g.Neighbors("99999"))
}

func TestSynthesizeAdjacency(t *testing.T) {
	counties := []string{"21001", "21005", "21011", "21045", "06037"}
	g := SynthesizeAdjacency(counties)

	assert.Equal(t, SourceSynthesized, g.Source())
	// Within threshold 10, same state.
	assert.Contains(t, g.Neighbors("21001"), "21005")
	assert.Contains(t, g.Neighbors("21001"), "21011")
	assert.Contains(t, g.Neighbors("21005"), "21011")
	// 21045 is 34+ away from the others.
	assert.Empty(t, g.Neighbors("21045"))
	// Different state never connects.
	assert.Empty(t, g.Neighbors("06037"))
}

func TestSynthesizeAdjacencySymmetric(t *testing.T) {
	g := SynthesizeAdjacency([]string{"21001", "21003", "21007"})
	for _, a := range []string{"21001", "21003", "21007"} {
		for _, b := range g.Neighbors(a) {
			assert.Contains(t, g.Neighbors(b), a)
		}
	}
	assert.Equal(t, 3, g.Pairs())
}

func TestClassifyRUCCBands(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{1, ClassMetro}, {2, ClassMetro}, {3, ClassMetro},
		{4, ClassRuralAdjacent}, {6, ClassRuralAdjacent}, {8, ClassRuralAdjacent},
		{5, ClassRuralRemote}, {7, ClassRuralRemote}, {9, ClassRuralRemote},
		{0, ""}, {10, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRUCC(tt.code), "code %d", tt.code)
	}
}

func TestLoadRUCCDropsBadRows(t *testing.T) {
	data := `FIPS,State,County_Name,Attribute,Value
21021,KY,Boyle County,Population_2020,30060
21021,KY,Boyle County,RUCC_2023,6
21053,KY,Clinton County,RUCC_2023,7
601,PR,Adjuntas Municipio,RUCC_2023,bogus
`
	infos, err := LoadRUCC(strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, infos, 2)
	assert.Equal(t, 6, infos["21021"].Code)
	assert.Equal(t, ClassRuralAdjacent, infos["21021"].Class)
	assert.Equal(t, "Boyle County", infos["21021"].CountyName)
	assert.Equal(t, ClassRuralRemote, infos["21053"].Class)
}

func TestLoadRUCCZeroPadsFIPS(t *testing.T) {
	data := "FIPS,State,County_Name,Attribute,Value\n1001,AL,Autauga County,RUCC_2023,2\n"
	infos, err := LoadRUCC(strings.NewReader(data))
	require.NoError(t, err)
	_, ok := infos["01001"]
	assert.True(t, ok)
}
