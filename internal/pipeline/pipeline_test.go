package pipeline

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxintel-group/exposure-cli/internal/config"
	"github.com/rxintel-group/exposure-cli/internal/model"
	"github.com/rxintel-group/exposure-cli/internal/refdata"
	"github.com/rxintel-group/exposure-cli/internal/store"
)

const pharmacyFixture = `npi,pharmacy_name,city,state,zip,hpsa_designated,zip_diabetes_pct,zip_obesity_pct,zip_pct_65_plus,zip_median_income,zip_population,state_claims_per_pharmacy,state_cost_per_pharmacy
1111111111,Danville Family Pharmacy,Danville,KY,40422,Yes,14.2,38.1,21.5,48000,16000,410,52000
2222222222,Lexington Corner Drug,Lexington,KY,40507,No,11.0,33.0,15.2,61000,32000,410,52000
3333333333,Bluegrass Apothecary,Lexington,KY,40507,No,12.5,35.5,18.0,55000,28000,410,52000
4444444444,Nashville Health Mart,Nashville,TN,37201,No,13.1,36.0,16.4,52000,70000,380,47000
`

const totalsFixture = `# annual GLP-1 claim totals
state,annual_claims
KY,1200
TN,600
`

const crosswalkFixture = `GEOID_ZCTA5_20|GEOID_COUNTY_20|AREALAND_PART
40422|21021|9000
40507|21067|9000
37201|47037|9000
`

const adjacencyFixture = "\"Boyle County, KY\"\t21021\t\"Boyle County, KY\"\t21021\n" +
	"\t\t\"Fayette County, KY\"\t21067\n"

const ruccFixture = `FIPS,State,County_Name,Attribute,Value
21021,KY,Boyle County,RUCC_2023,6
21021,KY,Boyle County,Population_2020,30060
21067,KY,Fayette County,RUCC_2023,2
47037,TN,Davidson County,RUCC_2023,1
`

const zipClaimsFixture = `zip,glp1_claims
37201,60
40422,120
40507,80
`

// deadFetcher fails every download. Tests pre-seed the cache so the
// pipeline must never reach the network.
type deadFetcher struct{}

func (deadFetcher) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, eris.New("test: network disabled")
}

func (deadFetcher) DownloadToFile(context.Context, string, string) (int64, error) {
	return 0, eris.New("test: network disabled")
}

func newTestPipeline(t *testing.T, st store.Store) *Pipeline {
	t.Helper()
	root := t.TempDir()
	refDir := filepath.Join(root, "reference_data")
	require.NoError(t, os.MkdirAll(refDir, 0o755))

	files := map[string]string{
		filepath.Join(root, "pharmacies.csv"):   pharmacyFixture,
		filepath.Join(root, "state_totals.csv"): totalsFixture,
		filepath.Join(refDir, CrosswalkFile):    crosswalkFixture,
		filepath.Join(refDir, AdjacencyFile):    adjacencyFixture,
		filepath.Join(refDir, RUCCFile):         ruccFixture,
		filepath.Join(refDir, ZipClaimsFile):    zipClaimsFixture,
	}
	for path, body := range files {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	cfg := &config.Config{
		Paths: config.PathsConfig{
			PharmacyCSV:    filepath.Join(root, "pharmacies.csv"),
			StateTotalsCSV: filepath.Join(root, "state_totals.csv"),
			ReferenceDir:   refDir,
			OutputDir:      filepath.Join(root, "out"),
		},
		Refdata: config.RefdataConfig{Workers: 2},
		Fills:   config.FillsConfig{LossPerFill: 37.0},
	}
	cache := refdata.NewCache(refDir, deadFetcher{}, deadFetcher{}, false)
	return New(cfg, st, cache)
}

func TestBuildEndToEnd(t *testing.T) {
	p := newTestPipeline(t, nil)

	res, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pharmacies, 4)

	byNPI := make(map[string]*model.Pharmacy)
	for _, ph := range res.Pharmacies {
		byNPI[ph.NPI] = ph
	}

	// Danville sits in 21021 which is adjacent to 21067: own ZIP claims at
	// full weight plus both Lexington ZIPs at the adjacent weight.
	danville := byNPI["1111111111"]
	assert.InDelta(t, 120+0.2*80, danville.NearbyClaims, 1e-9)
	assert.Equal(t, "21021", danville.CountyFIPS)
	assert.Equal(t, "Boyle County", danville.CountyName)
	assert.Equal(t, 6, danville.RUCCCode)
	assert.Equal(t, "Rural-Adjacent", danville.RuralClass)

	// The two Lexington pharmacies share a ZIP and county.
	assert.InDelta(t, 80+0.2*120, byNPI["2222222222"].NearbyClaims, 1e-9)

	for _, ph := range res.Pharmacies {
		assert.GreaterOrEqual(t, ph.Score, 0.0, "npi %s", ph.NPI)
		assert.LessOrEqual(t, ph.Score, 100.0, "npi %s", ph.NPI)
		assert.NotEmpty(t, ph.Grade, "npi %s", ph.NPI)
		assert.Greater(t, ph.MonthlyFills, 0, "npi %s", ph.NPI)
	}

	for _, name := range []string{ScoredCSV, GradeACSV, OutreachXLSX} {
		_, err := os.Stat(filepath.Join(p.cfg.Paths.OutputDir, name))
		assert.NoError(t, err, "output %s", name)
	}
	assert.Equal(t, filepath.Join(p.cfg.Paths.OutputDir, ScoredCSV), res.OutputPath)
}

func TestBuildConservesStateTotals(t *testing.T) {
	p := newTestPipeline(t, nil)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	annualByState := make(map[string]int)
	for _, ph := range res.Pharmacies {
		annualByState[ph.State] += ph.MonthlyFills * 12
	}
	assert.InDelta(t, 1200, annualByState["KY"], 120)
	assert.InDelta(t, 600, annualByState["TN"], 60)
}

func TestBuildAllocatesFillsByExposure(t *testing.T) {
	p := newTestPipeline(t, nil)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	// Proportional allocation within a state must order fills by the
	// exposure index, whatever the outreach scores say.
	var ky []*model.Pharmacy
	for _, ph := range res.Pharmacies {
		if ph.State == "KY" {
			ky = append(ky, ph)
		}
	}
	require.Len(t, ky, 3)
	for _, a := range ky {
		for _, b := range ky {
			if a.ExposureIndex > b.ExposureIndex {
				assert.GreaterOrEqual(t, a.MonthlyFills, b.MonthlyFills,
					"npi %s (exposure %.1f) vs npi %s (exposure %.1f)",
					a.NPI, a.ExposureIndex, b.NPI, b.ExposureIndex)
			}
		}
	}
}

func TestValidateAfterBuild(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := p.Build(context.Background())
	require.NoError(t, err)

	report, err := p.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed(), report.String())
}

func TestSliceAfterBuild(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := p.Build(context.Background())
	require.NoError(t, err)

	n, err := p.Slice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, state := range []string{"KY", "TN"} {
		_, err := os.Stat(filepath.Join(p.cfg.Paths.OutputDir, StateSliceDir, StateSlicePfx+"_"+state+".csv"))
		assert.NoError(t, err, "slice for %s", state)
	}
}

func TestValidateWithoutBuildFails(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := p.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build")
}

func TestBuildRegistersRun(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, st)

	_, err := p.Build(context.Background())
	require.NoError(t, err)

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "build", runs[0].Command)
	assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 4, runs[0].Pharmacies)
	assert.Equal(t, 2, runs[0].States)
}

func TestBuildFailureMarksRun(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, st)
	p.cfg.Paths.PharmacyCSV = filepath.Join(t.TempDir(), "missing.csv")

	_, err := p.Build(context.Background())
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestScoreReusesProximityColumn(t *testing.T) {
	p := newTestPipeline(t, nil)

	built, err := p.Build(context.Background())
	require.NoError(t, err)

	// Point the score-only run at the build output so the proximity column
	// is adopted instead of recomputed.
	p.cfg.Paths.PharmacyCSV = built.OutputPath

	res, err := p.Score(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pharmacies, 4)

	byNPI := make(map[string]*model.Pharmacy)
	for _, ph := range res.Pharmacies {
		byNPI[ph.NPI] = ph
	}
	danville := byNPI["1111111111"]
	assert.InDelta(t, 120+0.2*80, danville.NearbyClaims, 0.1)
	assert.Equal(t, "21021", danville.CountyFIPS)
	assert.Equal(t, "Rural-Adjacent", danville.RuralClass)
	assert.NotContains(t, danville.Extra, "outreach_score", "stale computed columns must be dropped")
}

func writeShapefileArchive(t *testing.T, entries ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tl_2024_us_county.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("payload"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestShapefilePathExtractsArchive(t *testing.T) {
	p := newTestPipeline(t, nil)
	archive := writeShapefileArchive(t,
		"tl_2024_us_county.shp", "tl_2024_us_county.dbf", "tl_2024_us_county.shx")

	got, err := p.shapefilePath(archive)
	require.NoError(t, err)
	assert.Equal(t, ".shp", filepath.Ext(got))

	_, err = os.Stat(got)
	assert.NoError(t, err, "extracted shapefile must exist on disk")
	// Sidecars land next to it so the shapefile reader can find the .dbf.
	_, err = os.Stat(strings.TrimSuffix(got, ".shp") + ".dbf")
	assert.NoError(t, err)
}

func TestShapefilePathRejectsArchiveWithoutShp(t *testing.T) {
	p := newTestPipeline(t, nil)
	archive := writeShapefileArchive(t, "readme.txt")

	_, err := p.shapefilePath(archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp entry")
}

func TestShapefilePathPassesThroughBareShp(t *testing.T) {
	p := newTestPipeline(t, nil)

	got, err := p.shapefilePath("/data/counties.shp")
	require.NoError(t, err)
	assert.Equal(t, "/data/counties.shp", got)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}
