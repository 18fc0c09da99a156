// Package proximity computes proximity-weighted prescriber-claim exposure
// for each pharmacy over three concentric tiers: same ZIP, same county, and
// adjacent counties.
package proximity

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxintel-group/exposure-cli/internal/geo"
	"github.com/rxintel-group/exposure-cli/internal/model"
)

// Tier weights encode decaying confidence with geographic distance. They are
// design parameters, not fitted values.
const (
	WeightSameZip        = 1.0
	WeightSameCounty     = 0.5
	WeightAdjacentCounty = 0.2
)

// Aggregator computes tiered claim sums against a fixed geography.
type Aggregator struct {
	claims    map[string]int
	crosswalk *geo.Crosswalk
	graph     *geo.AdjacencyGraph
	workers   int
}

// New builds an Aggregator. claims maps ZIP to total prescriber claims.
func New(claims map[string]int, cw *geo.Crosswalk, g *geo.AdjacencyGraph, workers int) *Aggregator {
	if workers <= 0 {
		workers = 8
	}
	return &Aggregator{claims: claims, crosswalk: cw, graph: g, workers: workers}
}

// Compute returns the proximity-weighted claim value for a pharmacy at zip.
// A ZIP with no crosswalk entry contributes only its own-ZIP term.
func (a *Aggregator) Compute(zip string) float64 {
	same := float64(a.claims[zip]) * WeightSameZip

	county := a.crosswalk.County(zip)
	if county == "" {
		return same
	}

	var local float64
	for _, z := range a.crosswalk.Zips(county) {
		if z != zip {
			local += float64(a.claims[z])
		}
	}
	local *= WeightSameCounty

	var adj float64
	for _, neighbor := range a.graph.Neighbors(county) {
		for _, z := range a.crosswalk.Zips(neighbor) {
			adj += float64(a.claims[z])
		}
	}
	adj *= WeightAdjacentCounty

	return same + local + adj
}

// ComputeAll fills NearbyClaims and the derived county fields for every
// pharmacy. Work is fanned out across a bounded worker pool; each worker
// writes only its own index, so results are deterministic.
func (a *Aggregator) ComputeAll(ctx context.Context, pharmacies []*model.Pharmacy) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i := range pharmacies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := pharmacies[i]
			zip := model.Zip5(p.Zip)
			p.CountyFIPS = a.crosswalk.County(zip)
			p.NearbyClaims = a.Compute(zip)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("proximity: computed nearby claims",
		zap.Int("pharmacies", len(pharmacies)),
		zap.String("adjacency_source", string(a.graph.Source())),
	)
	return nil
}
