package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// boundsEpsilon expands county bounding boxes (in degrees) before testing
// overlap. TIGER polygons of touching counties share boundaries exactly, but
// the coarse bounding-box test needs a little slack for slivers.
const boundsEpsilon = 0.01

// AdjacencyFromShapefile derives county adjacency from a TIGER/Line county
// shapefile: two counties are declared adjacent when their epsilon-expanded
// polygon bounding boxes overlap. Coarser than a true boundary-touch test but
// far closer to reality than the FIPS-proximity synthesis.
func AdjacencyFromShapefile(shpPath string) (*AdjacencyGraph, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open county shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Locate the GEOID attribute column.
	fields := reader.Fields()
	geoidIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, "GEOID") {
			geoidIdx = i
			break
		}
	}
	if geoidIdx < 0 {
		return nil, eris.New("geo: county shapefile has no GEOID field")
	}

	type county struct {
		fips   string
		bounds *geom.Bounds
	}

	var counties []county
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil || len(poly.Points) == 0 {
			skipped++
			continue
		}
		fips := strings.TrimSpace(strings.TrimRight(reader.Attribute(geoidIdx), "\x00"))
		if fips == "" {
			skipped++
			continue
		}
		b := geom.NewBounds(geom.XY)
		b.Set(
			poly.Box.MinX-boundsEpsilon, poly.Box.MinY-boundsEpsilon,
			poly.Box.MaxX+boundsEpsilon, poly.Box.MaxY+boundsEpsilon,
		)
		counties = append(counties, county{fips: fips, bounds: b})
	}

	g := newGraph(SourceShapefile)
	for i := range counties {
		for j := i + 1; j < len(counties); j++ {
			// Restrict to same-state pairs: bounding boxes of large counties
			// can reach across state lines without the polygons touching.
			if len(counties[i].fips) >= 2 && len(counties[j].fips) >= 2 &&
				counties[i].fips[:2] != counties[j].fips[:2] {
				continue
			}
			if counties[i].bounds.Overlaps(geom.XY, counties[j].bounds) {
				g.addEdge(counties[i].fips, counties[j].fips)
			}
		}
	}

	zap.L().Info("geo: shapefile adjacency derived",
		zap.Int("counties", g.Counties()),
		zap.Int("pairs", g.Pairs()),
		zap.Int("skipped_shapes", skipped),
	)
	return g, nil
}
