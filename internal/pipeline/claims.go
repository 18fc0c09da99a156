package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/rxintel-group/exposure-cli/internal/fetcher"
	"github.com/rxintel-group/exposure-cli/internal/model"
)

// readZipClaims loads the cached two-column ZIP claims aggregate.
func readZipClaims(ctx context.Context, path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open zip claims %s", path)
	}
	defer f.Close()

	rows, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})

	claims := make(map[string]int)
	for row := range rows {
		if len(row) < 2 {
			continue
		}
		n, convErr := strconv.Atoi(row[1])
		if convErr != nil {
			continue
		}
		claims[model.Zip5(row[0])] += n
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, eris.Errorf("pipeline: zip claims aggregate %s has no rows", path)
	}
	return claims, nil
}

// writeZipClaims persists the aggregate so later runs skip the raw extract.
func writeZipClaims(path string, records []model.ActivityRecord) error {
	sorted := make([]model.ActivityRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Zip < sorted[j].Zip })

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create zip claims %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"zip", "glp1_claims"}); err != nil {
		return eris.Wrap(err, "pipeline: write zip claims header")
	}
	for _, r := range sorted {
		if err := w.Write([]string{r.Zip, strconv.Itoa(r.Claims)}); err != nil {
			return eris.Wrap(err, "pipeline: write zip claims row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "pipeline: flush zip claims")
	}
	return nil
}
