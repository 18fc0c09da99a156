// Package geo maps pharmacies onto Census geography: ZIP to county via the
// ZCTA crosswalk, county-to-county adjacency, and USDA rural classification.
package geo

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Crosswalk maps each 5-digit ZIP to its dominant county (largest overlapping
// land area) and holds the inverse county-to-ZIPs index.
type Crosswalk struct {
	zipToCounty  map[string]string
	countyToZips map[string][]string
}

// crosswalk column names in the Census ZCTA520 relationship file.
const (
	colZCTA   = "GEOID_ZCTA5_20"
	colCounty = "GEOID_COUNTY_20"
	colArea   = "AREALAND_PART"
)

// LoadCrosswalk parses the pipe-delimited Census ZCTA-to-county relationship
// file. For each ZIP the county with the largest overlap wins; later rows
// replace only on strictly greater area, so ties keep the first-seen county.
func LoadCrosswalk(r io.Reader) (*Crosswalk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrap(err, "geo: read crosswalk header")
		}
		return nil, eris.New("geo: crosswalk file is empty")
	}

	header := strings.Split(strings.TrimPrefix(scanner.Text(), "\ufeff"), "|")
	zctaIdx, countyIdx, areaIdx := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case colZCTA:
			zctaIdx = i
		case colCounty:
			countyIdx = i
		case colArea:
			areaIdx = i
		}
	}
	if zctaIdx < 0 || countyIdx < 0 || areaIdx < 0 {
		return nil, eris.Errorf("geo: crosswalk header missing required columns, got %v", header)
	}

	type best struct {
		county string
		area   int64
	}
	bestByZip := make(map[string]best)
	var skipped int

	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "|")
		if len(parts) <= zctaIdx || len(parts) <= countyIdx {
			skipped++
			continue
		}
		zcta := strings.TrimSpace(parts[zctaIdx])
		if zcta == "" {
			continue
		}
		county := strings.TrimSpace(parts[countyIdx])

		var area int64
		if len(parts) > areaIdx {
			if v, err := strconv.ParseInt(strings.TrimSpace(parts[areaIdx]), 10, 64); err == nil {
				area = v
			}
		}

		cur, ok := bestByZip[zcta]
		if !ok || area > cur.area {
			bestByZip[zcta] = best{county: county, area: area}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: scan crosswalk")
	}

	cw := &Crosswalk{
		zipToCounty:  make(map[string]string, len(bestByZip)),
		countyToZips: make(map[string][]string),
	}
	for zcta, b := range bestByZip {
		cw.zipToCounty[zcta] = b.county
		cw.countyToZips[b.county] = append(cw.countyToZips[b.county], zcta)
	}

	zap.L().Info("geo: crosswalk loaded",
		zap.Int("zips", len(cw.zipToCounty)),
		zap.Int("counties", len(cw.countyToZips)),
		zap.Int("skipped_rows", skipped),
	)

	return cw, nil
}

// County returns the dominant county FIPS for a ZIP, or "" when unknown.
func (c *Crosswalk) County(zip string) string {
	return c.zipToCounty[zip]
}

// Zips returns all ZIPs whose dominant county is fips. The returned slice is
// shared; callers must not mutate it.
func (c *Crosswalk) Zips(fips string) []string {
	return c.countyToZips[fips]
}

// Counties returns every county FIPS present in the crosswalk.
func (c *Crosswalk) Counties() []string {
	out := make([]string, 0, len(c.countyToZips))
	for fips := range c.countyToZips {
		out = append(out, fips)
	}
	return out
}

// ZipCount reports how many ZIPs are mapped.
func (c *Crosswalk) ZipCount() int { return len(c.zipToCounty) }
