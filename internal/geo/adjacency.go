package geo

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// AdjacencySource records how an adjacency graph was built. The synthesized
// fallback both over- and under-connects counties, so consumers must be able
// to tell it apart from genuine Census adjacency data.
type AdjacencySource string

const (
	SourceCensus      AdjacencySource = "census"
	SourceShapefile   AdjacencySource = "shapefile"
	SourceSynthesized AdjacencySource = "synthesized"
)

// fipsProximityThreshold bounds the numeric FIPS distance used by the
// synthesized fallback: two counties in the same state are declared adjacent
// when their codes differ by at most this much.
const fipsProximityThreshold = 10

// AdjacencyGraph is an undirected graph over county FIPS codes.
type AdjacencyGraph struct {
	edges  map[string]map[string]bool
	source AdjacencySource
}

// Neighbors returns the counties adjacent to fips, sorted for determinism.
// Unknown counties return an empty slice.
func (g *AdjacencyGraph) Neighbors(fips string) []string {
	set, ok := g.edges[fips]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Source reports how the graph was built.
func (g *AdjacencyGraph) Source() AdjacencySource { return g.source }

// Counties reports the number of counties with at least one edge.
func (g *AdjacencyGraph) Counties() int { return len(g.edges) }

// Pairs reports the number of undirected adjacency pairs.
func (g *AdjacencyGraph) Pairs() int {
	total := 0
	for _, set := range g.edges {
		total += len(set)
	}
	return total / 2
}

func newGraph(source AdjacencySource) *AdjacencyGraph {
	return &AdjacencyGraph{edges: make(map[string]map[string]bool), source: source}
}

// addEdge inserts an undirected edge, skipping self-edges.
func (g *AdjacencyGraph) addEdge(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	if g.edges[a] == nil {
		g.edges[a] = make(map[string]bool)
	}
	if g.edges[b] == nil {
		g.edges[b] = make(map[string]bool)
	}
	g.edges[a][b] = true
	g.edges[b][a] = true
}

// ParseCensusAdjacency parses the Census county adjacency file. The file is
// tab-delimited: a row whose leading name field is non-empty introduces a new
// source county (col1 = its FIPS, col3 = first neighbor FIPS); rows with an
// empty leading field continue the current county's neighbor list.
func ParseCensusAdjacency(r io.Reader) (*AdjacencyGraph, error) {
	g := newGraph(SourceCensus)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current string
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\t")
		switch {
		case len(parts) >= 4:
			fips := strings.Trim(strings.TrimSpace(parts[1]), `"`)
			neighbor := strings.Trim(strings.TrimSpace(parts[3]), `"`)
			if strings.TrimSpace(parts[0]) != "" {
				current = fips
			}
			if current != "" {
				g.addEdge(current, neighbor)
			}
		case len(parts) >= 2 && current != "":
			// Continuation row carrying only a neighbor.
			neighbor := strings.Trim(strings.TrimSpace(parts[len(parts)-1]), `"`)
			g.addEdge(current, neighbor)
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep whatever parsed before the failure; a partial graph still
		// beats the synthesized fallback.
		zap.L().Warn("geo: adjacency file truncated, keeping partial graph", zap.Error(err))
	}

	zap.L().Info("geo: census adjacency loaded",
		zap.Int("counties", g.Counties()),
		zap.Int("pairs", g.Pairs()),
	)
	return g, nil
}

// SynthesizeAdjacency approximates county adjacency when no reference file is
// available: counties sharing a 2-digit state prefix are adjacent when their
// numeric FIPS codes are within the proximity threshold.
func SynthesizeAdjacency(counties []string) *AdjacencyGraph {
	byState := make(map[string][]string)
	for _, fips := range counties {
		if len(fips) < 3 {
			continue
		}
		byState[fips[:2]] = append(byState[fips[:2]], fips)
	}

	g := newGraph(SourceSynthesized)
	for _, group := range byState {
		sort.Strings(group)
		for i, a := range group {
			na, errA := strconv.Atoi(a)
			if errA != nil {
				continue
			}
			for _, b := range group[i+1:] {
				nb, errB := strconv.Atoi(b)
				if errB != nil {
					continue
				}
				if nb-na > fipsProximityThreshold {
					break // group is sorted, no later code can qualify
				}
				g.addEdge(a, b)
			}
		}
	}

	zap.L().Warn("geo: using synthesized FIPS-proximity adjacency",
		zap.Int("counties", g.Counties()),
		zap.Int("pairs", g.Pairs()),
	)
	return g
}
