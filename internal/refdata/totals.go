package refdata

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/fetcher"
	"github.com/rxintel-group/exposure-cli/internal/model"
)

// LoadStateTotals reads the known annual claim totals per state. Lines
// starting with '#' are comments. Malformed rows are skipped and counted.
func LoadStateTotals(ctx context.Context, path string) ([]model.StateTotal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open state totals %s (produced upstream by the totals extract)", path)
	}
	defer f.Close()

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		Comment:   '#',
		TrimSpace: true,
	})

	var totals []model.StateTotal
	skipped := 0
	for row := range rowCh {
		if len(row) < 2 {
			skipped++
			continue
		}
		state := strings.ToUpper(row[0])
		// Tolerate a header row.
		if state == "STATE" {
			continue
		}
		claims, err := strconv.Atoi(strings.ReplaceAll(row[1], ",", ""))
		if err != nil || state == "" {
			skipped++
			continue
		}
		totals = append(totals, model.StateTotal{State: state, Claims: claims})
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, eris.Errorf("refdata: no usable rows in state totals %s", path)
	}

	zap.L().Info("refdata: state totals loaded",
		zap.String("path", path),
		zap.Int("states", len(totals)),
		zap.Int("skipped", skipped),
	)
	return totals, nil
}
