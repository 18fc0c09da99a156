package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// WriteScoredCSV writes the full scored pharmacy table to path. Extra input
// columns are appended after the fixed columns in sorted key order so output
// is byte-stable across runs.
func WriteScoredCSV(pharmacies []*model.Pharmacy, path string) error {
	return writeCSV(pharmacies, path, nil)
}

// WriteGradeACSV writes only grade-A pharmacies to path.
func WriteGradeACSV(pharmacies []*model.Pharmacy, path string) error {
	keep := func(p *model.Pharmacy) bool { return p.Grade == "A" }
	return writeCSV(pharmacies, path, keep)
}

// WriteStateSlices writes one CSV per state under dir, named
// <prefix>_<STATE>.csv. Returns the number of slice files written.
func WriteStateSlices(pharmacies []*model.Pharmacy, dir, prefix string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "output: create slice dir %s", dir)
	}

	byState := make(map[string][]*model.Pharmacy)
	for _, p := range pharmacies {
		s := strings.ToUpper(strings.TrimSpace(p.State))
		if s == "" {
			continue
		}
		byState[s] = append(byState[s], p)
	}

	states := make([]string, 0, len(byState))
	for s := range byState {
		states = append(states, s)
	}
	sort.Strings(states)

	for _, s := range states {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, s))
		if err := writeCSV(byState[s], path, nil); err != nil {
			return 0, err
		}
	}

	zap.L().Info("output: state slices written",
		zap.Int("states", len(states)),
		zap.String("dir", dir),
	)
	return len(states), nil
}

func writeCSV(pharmacies []*model.Pharmacy, path string, keep func(*model.Pharmacy) bool) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	extras := extraColumns(pharmacies)
	header := append(Columns(), extras...)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "output: write header")
	}

	rows := 0
	for _, p := range pharmacies {
		if keep != nil && !keep(p) {
			continue
		}
		if err := w.Write(buildRow(p, extras)); err != nil {
			return eris.Wrapf(err, "output: write row npi=%s", p.NPI)
		}
		rows++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "output: flush %s", path)
	}

	zap.L().Info("output: csv written",
		zap.String("path", path),
		zap.Int("rows", rows),
	)
	return nil
}

// extraColumns collects the union of Extra keys across all pharmacies,
// sorted for deterministic output.
func extraColumns(pharmacies []*model.Pharmacy) []string {
	seen := make(map[string]bool)
	for _, p := range pharmacies {
		for k := range p.Extra {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func buildRow(p *model.Pharmacy, extras []string) []string {
	row := []string{
		p.NPI,
		p.Name,
		p.OwnerName,
		p.City,
		p.State,
		p.Zip,
		FormatPhone(p.Phone),
		p.CountyFIPS,
		p.CountyName,
		ruccStr(p.RUCCCode),
		p.RuralClass,
		boolStr(p.HPSADesignated),
		strconv.Itoa(p.HPSAScore),
		optStr(p.DiabetesPct),
		optStr(p.ObesityPct),
		optStr(p.Pct65Plus),
		optStr(p.MedianIncome),
		optStr(p.Population),
		optStr(p.StateClaimsPerPhy),
		optStr(p.StateCostPerPhcy),
		strconv.FormatFloat(p.NearbyClaims, 'f', 1, 64),
		strconv.FormatFloat(p.ExposureIndex, 'f', 1, 64),
		strconv.FormatFloat(p.Score, 'f', 1, 64),
		strconv.Itoa(p.MonthlyFills),
		FormatCurrency(p.AnnualLoss),
		p.Grade,
		p.Priority,
	}
	for _, k := range extras {
		row = append(row, p.Extra[k])
	}
	return row
}

func optStr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func boolStr(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func ruccStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
