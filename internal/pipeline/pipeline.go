// Package pipeline wires the full exposure run: reference data, geography,
// proximity, scoring, allocation, grading, and output files.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/allocate"
	"github.com/rxintel-group/exposure-cli/internal/config"
	"github.com/rxintel-group/exposure-cli/internal/fetcher"
	"github.com/rxintel-group/exposure-cli/internal/geo"
	"github.com/rxintel-group/exposure-cli/internal/model"
	"github.com/rxintel-group/exposure-cli/internal/output"
	"github.com/rxintel-group/exposure-cli/internal/proximity"
	"github.com/rxintel-group/exposure-cli/internal/refdata"
	"github.com/rxintel-group/exposure-cli/internal/scorer"
	"github.com/rxintel-group/exposure-cli/internal/store"
	"github.com/rxintel-group/exposure-cli/internal/validate"
)

// Cached reference file names and output file names.
const (
	CrosswalkFile   = "zcta_county_crosswalk.txt"
	AdjacencyFile   = "county_adjacency.txt"
	RUCCFile        = "ruralurbancodes.csv"
	ClaimsFile      = "partd_prescriber_drug.csv"
	ZipClaimsFile   = "glp1_zip_claims.csv"
	ScoredCSV       = "scored_pharmacies.csv"
	GradeACSV       = "grade_a_pharmacies.csv"
	OutreachXLSX    = "immediate_outreach.xlsx"
	StateSliceDir   = "by_state"
	StateSlicePfx   = "scored"
)

// Pipeline runs the exposure scoring stages against one configuration.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	cache *refdata.Cache
	log   *zap.Logger
}

// New assembles a pipeline. store may be nil when no registry is wanted
// (tests, dry runs).
func New(cfg *config.Config, st store.Store, cache *refdata.Cache) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		store: st,
		cache: cache,
		log:   zap.L().With(zap.String("component", "pipeline")),
	}
}

// entries lists every cacheable reference file. The adjacency table gets an
// FTP mirror; the Census HTTPS site is the one that goes away for days.
func (p *Pipeline) entries() []refdata.Entry {
	r := p.cfg.Refdata
	return []refdata.Entry{
		{Name: CrosswalkFile, URL: r.CrosswalkURL},
		{Name: AdjacencyFile, URL: r.AdjacencyURL, Mirror: "ftp://ftp2.census.gov/geo/docs/reference/county_adjacency2024.txt"},
		{Name: RUCCFile, URL: r.RUCCURL},
		{Name: ClaimsFile, URL: r.PartDURL},
	}
}

// Fetch downloads or refreshes every reference file and records the fetch
// metadata in the registry.
func (p *Pipeline) Fetch(ctx context.Context) error {
	for _, e := range p.entries() {
		path, err := p.cache.Path(ctx, e)
		if err != nil {
			return err
		}
		if p.store != nil {
			info, statErr := os.Stat(path)
			size := int64(0)
			if statErr == nil {
				size = info.Size()
			}
			if err := p.store.RecordFetch(ctx, e.Name, e.URL, size); err != nil {
				p.log.Warn("fetch metadata not recorded", zap.String("name", e.Name), zap.Error(err))
			}
		}
	}
	return nil
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	Pharmacies []*model.Pharmacy
	OutputPath string
}

// Build runs the full pipeline: load, proximity, score, allocate, grade,
// write.
func (p *Pipeline) Build(ctx context.Context) (*BuildResult, error) {
	run := p.startRun(ctx, "build")

	res, err := p.build(ctx)
	if err != nil {
		p.failRun(ctx, run, err)
		return nil, err
	}

	if p.store != nil && run != nil {
		run.Pharmacies = len(res.Pharmacies)
		run.States = countStates(res.Pharmacies)
		run.OutputPath = res.OutputPath
		if _, serr := p.store.SaveScored(ctx, res.Pharmacies); serr != nil {
			p.log.Warn("scored snapshot not persisted", zap.Error(serr))
		}
		if cerr := p.store.CompleteRun(ctx, run); cerr != nil {
			p.log.Warn("run not marked complete", zap.Error(cerr))
		}
	}
	return res, nil
}

func (p *Pipeline) build(ctx context.Context) (*BuildResult, error) {
	pharmacies, err := refdata.LoadPharmacies(ctx, p.cfg.Paths.PharmacyCSV)
	if err != nil {
		return nil, err
	}
	totals, err := refdata.LoadStateTotals(ctx, p.cfg.Paths.StateTotalsCSV)
	if err != nil {
		return nil, err
	}

	crosswalk, err := p.loadCrosswalk(ctx)
	if err != nil {
		return nil, err
	}
	graph := p.loadAdjacency(ctx, crosswalk)

	claims, err := p.loadActivity(ctx, pharmacies)
	if err != nil {
		return nil, err
	}

	agg := proximity.New(claims, crosswalk, graph, p.cfg.Refdata.Workers)
	if err := agg.ComputeAll(ctx, pharmacies); err != nil {
		return nil, err
	}

	p.enrichRUCC(ctx, pharmacies)

	if err := p.score(pharmacies); err != nil {
		return nil, err
	}

	allocate.Apply(pharmacies, totals, allocate.ByExposure, p.cfg.Fills.LossPerFill)
	scorer.AssignGrades(pharmacies, scorer.DefaultCutoffs())

	outPath, err := p.writeOutputs(pharmacies)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Pharmacies: pharmacies, OutputPath: outPath}, nil
}

// Score reruns scoring and grading over an already-enriched pharmacy table,
// skipping reference downloads and proximity aggregation.
func (p *Pipeline) Score(ctx context.Context) (*BuildResult, error) {
	run := p.startRun(ctx, "score")

	pharmacies, err := refdata.LoadPharmacies(ctx, p.cfg.Paths.PharmacyCSV)
	if err != nil {
		p.failRun(ctx, run, err)
		return nil, err
	}
	totals, err := refdata.LoadStateTotals(ctx, p.cfg.Paths.StateTotalsCSV)
	if err != nil {
		p.failRun(ctx, run, err)
		return nil, err
	}

	adoptDerivedColumns(pharmacies)

	if err := p.score(pharmacies); err != nil {
		p.failRun(ctx, run, err)
		return nil, err
	}
	allocate.Apply(pharmacies, totals, allocate.ByExposure, p.cfg.Fills.LossPerFill)
	scorer.AssignGrades(pharmacies, scorer.DefaultCutoffs())

	outPath, err := p.writeOutputs(pharmacies)
	if err != nil {
		p.failRun(ctx, run, err)
		return nil, err
	}

	res := &BuildResult{Pharmacies: pharmacies, OutputPath: outPath}
	if p.store != nil && run != nil {
		run.Pharmacies = len(pharmacies)
		run.States = countStates(pharmacies)
		run.OutputPath = outPath
		if cerr := p.store.CompleteRun(ctx, run); cerr != nil {
			p.log.Warn("run not marked complete", zap.Error(cerr))
		}
	}
	return res, nil
}

// Validate re-reads the scored output and runs the post-hoc checks.
func (p *Pipeline) Validate(ctx context.Context) (validate.Report, error) {
	scoredPath := filepath.Join(p.cfg.Paths.OutputDir, ScoredCSV)
	pharmacies, header, err := output.ReadScoredCSV(ctx, scoredPath)
	if err != nil {
		return validate.Report{}, err
	}

	totals, err := refdata.LoadStateTotals(ctx, p.cfg.Paths.StateTotalsCSV)
	if err != nil {
		return validate.Report{}, err
	}

	expected := 0
	if input, lerr := refdata.LoadPharmacies(ctx, p.cfg.Paths.PharmacyCSV); lerr == nil {
		expected = len(input)
	}

	return validate.Run(validate.Input{
		Pharmacies:   pharmacies,
		Totals:       totals,
		Header:       header,
		ExpectedRows: expected,
	}), nil
}

// Slice writes per-state CSVs from the scored output.
func (p *Pipeline) Slice(ctx context.Context) (int, error) {
	scoredPath := filepath.Join(p.cfg.Paths.OutputDir, ScoredCSV)
	pharmacies, _, err := output.ReadScoredCSV(ctx, scoredPath)
	if err != nil {
		return 0, err
	}
	return output.WriteStateSlices(pharmacies, filepath.Join(p.cfg.Paths.OutputDir, StateSliceDir), StateSlicePfx)
}

func (p *Pipeline) loadCrosswalk(ctx context.Context) (*geo.Crosswalk, error) {
	path, err := p.cache.Path(ctx, p.entries()[0])
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: crosswalk unavailable and no fallback exists")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open crosswalk %s", path)
	}
	defer f.Close()
	return geo.LoadCrosswalk(f)
}

// loadAdjacency tries the Census reference table first, then the county
// shapefile, and falls back to the synthesized approximation. The fallback
// both over- and under-connects counties; the graph carries its source so
// output metadata can say which one a run used.
func (p *Pipeline) loadAdjacency(ctx context.Context, crosswalk *geo.Crosswalk) *geo.AdjacencyGraph {
	if path, err := p.cache.Path(ctx, p.entries()[1]); err == nil {
		if f, oerr := os.Open(path); oerr == nil {
			defer f.Close()
			if graph, perr := geo.ParseCensusAdjacency(f); perr == nil && graph.Counties() > 0 {
				return graph
			}
		}
	}
	p.log.Warn("census adjacency unavailable, trying shapefile")

	if configured := p.cfg.Refdata.CountyShapefile; configured != "" {
		shpPath, err := p.shapefilePath(configured)
		if err != nil {
			p.log.Warn("shapefile archive unusable", zap.String("path", configured), zap.Error(err))
		} else if graph, err := geo.AdjacencyFromShapefile(shpPath); err == nil && graph.Counties() > 0 {
			return graph
		} else {
			p.log.Warn("shapefile adjacency failed", zap.String("path", shpPath))
		}
	}

	p.log.Warn("synthesizing adjacency from county codes, expect approximation error")
	return geo.SynthesizeAdjacency(crosswalk.Counties())
}

// shapefilePath resolves the configured county shapefile. TIGER ships
// county polygons as a ZIP holding the .shp and its sidecars; archives are
// extracted into the reference directory and the contained .shp returned.
func (p *Pipeline) shapefilePath(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return path, nil
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	destDir := filepath.Join(p.cfg.Paths.ReferenceDir, base)
	extracted, err := fetcher.ExtractZIP(path, destDir)
	if err != nil {
		return "", err
	}

	shpPath := fetcher.FindByExt(extracted, ".shp")
	if shpPath == "" {
		return "", eris.Errorf("pipeline: shapefile archive %s contains no .shp entry", path)
	}
	return shpPath, nil
}

// loadActivity returns GLP-1 claims aggregated by ZIP. The aggregate itself
// is cached; the multi-GB raw extract is only re-filtered when the aggregate
// is absent or a forced fetch discards it.
func (p *Pipeline) loadActivity(ctx context.Context, pharmacies []*model.Pharmacy) (map[string]int, error) {
	aggPath := filepath.Join(p.cfg.Paths.ReferenceDir, ZipClaimsFile)

	if !p.cache.Force {
		if claims, err := readZipClaims(ctx, aggPath); err == nil {
			p.log.Debug("zip claims aggregate cache hit", zap.Int("zips", len(claims)))
			return claims, nil
		}
	}

	rawPath, err := p.cache.Path(ctx, p.entries()[3])
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open claims extract %s", rawPath)
	}
	defer f.Close()

	records, _, err := refdata.FilterGLP1Claims(ctx, f, refdata.BuildZipResolver(pharmacies))
	if err != nil {
		return nil, err
	}

	if err := writeZipClaims(aggPath, records); err != nil {
		p.log.Warn("zip claims aggregate not cached", zap.Error(err))
	}

	claims := make(map[string]int, len(records))
	for _, r := range records {
		claims[r.Zip] = r.Claims
	}
	return claims, nil
}

func (p *Pipeline) enrichRUCC(ctx context.Context, pharmacies []*model.Pharmacy) {
	path, err := p.cache.Path(ctx, p.entries()[2])
	if err != nil {
		p.log.Warn("rucc reference unavailable, rural class left blank", zap.Error(err))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		p.log.Warn("rucc reference unreadable", zap.Error(err))
		return
	}
	defer f.Close()

	rucc, err := geo.LoadRUCC(f)
	if err != nil {
		p.log.Warn("rucc reference unparseable", zap.Error(err))
		return
	}

	for _, ph := range pharmacies {
		if info, ok := rucc[ph.CountyFIPS]; ok {
			ph.CountyName = info.CountyName
			ph.RUCCCode = info.Code
			ph.RuralClass = info.Class
		}
	}
}

func (p *Pipeline) score(pharmacies []*model.Pharmacy) error {
	exposure, err := scorer.Composite(pharmacies, scorer.ExposureProfile())
	if err != nil {
		return err
	}
	for i, ph := range pharmacies {
		ph.ExposureIndex = exposure[i]
	}

	profile := scorer.OutreachProfile()
	if p.cfg.Score.ProfilePath != "" {
		profile, err = scorer.LoadProfile(p.cfg.Score.ProfilePath)
		if err != nil {
			return err
		}
	}

	scores, err := scorer.Composite(pharmacies, profile)
	if err != nil {
		return err
	}
	for i, ph := range pharmacies {
		ph.Score = scores[i]
	}
	return nil
}

func (p *Pipeline) writeOutputs(pharmacies []*model.Pharmacy) (string, error) {
	outDir := p.cfg.Paths.OutputDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create output dir %s", outDir)
	}

	scoredPath := filepath.Join(outDir, ScoredCSV)
	if err := output.WriteScoredCSV(pharmacies, scoredPath); err != nil {
		return "", err
	}
	if err := output.WriteGradeACSV(pharmacies, filepath.Join(outDir, GradeACSV)); err != nil {
		return "", err
	}
	if err := output.WriteGradeAXLSX(pharmacies, filepath.Join(outDir, OutreachXLSX)); err != nil {
		return "", err
	}
	return scoredPath, nil
}

func (p *Pipeline) startRun(ctx context.Context, command string) *model.RunSummary {
	if p.store == nil {
		return nil
	}
	run, err := p.store.StartRun(ctx, command)
	if err != nil {
		p.log.Warn("run not registered", zap.Error(err))
		return nil
	}
	return run
}

func (p *Pipeline) failRun(ctx context.Context, run *model.RunSummary, cause error) {
	if p.store == nil || run == nil {
		return
	}
	if err := p.store.FailRun(ctx, run.ID, cause.Error()); err != nil {
		p.log.Warn("run not marked failed", zap.Error(err))
	}
}

func countStates(pharmacies []*model.Pharmacy) int {
	states := make(map[string]bool)
	for _, p := range pharmacies {
		if p.State != "" {
			states[p.State] = true
		}
	}
	return len(states)
}

// adoptDerivedColumns promotes previously computed geography and proximity
// columns from the passthrough extras back into their typed fields, and
// drops stale computed columns that this run will regenerate. This lets a
// score-only run consume a prior build's output directly.
func adoptDerivedColumns(pharmacies []*model.Pharmacy) {
	stale := []string{
		output.ColExposureIndex, output.ColScore, output.ColMonthlyFills,
		output.ColAnnualLoss, output.ColGrade, output.ColPriority,
	}
	for _, p := range pharmacies {
		if raw, ok := p.Extra[output.ColNearbyClaims]; ok {
			if v := model.ParseOptionalFloat(raw, false); v != nil {
				p.NearbyClaims = *v
			}
			delete(p.Extra, output.ColNearbyClaims)
		}
		if v, ok := p.Extra[output.ColCountyFIPS]; ok {
			p.CountyFIPS = v
			delete(p.Extra, output.ColCountyFIPS)
		}
		if v, ok := p.Extra[output.ColCountyName]; ok {
			p.CountyName = v
			delete(p.Extra, output.ColCountyName)
		}
		if v, ok := p.Extra[output.ColRUCC]; ok {
			if code, err := strconv.Atoi(v); err == nil {
				p.RUCCCode = code
			}
			delete(p.Extra, output.ColRUCC)
		}
		if v, ok := p.Extra[output.ColRuralClass]; ok {
			p.RuralClass = v
			delete(p.Extra, output.ColRuralClass)
		}
		for _, col := range stale {
			delete(p.Extra, col)
		}
	}
}
