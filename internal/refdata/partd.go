package refdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// glp1Keywords match the brand and generic names of the GLP-1 class in the
// prescriber claims extract. Matching is uppercase substring.
var glp1Keywords = []string{
	"SEMAGLUTIDE", "OZEMPIC", "WEGOVY", "RYBELSUS",
	"TIRZEPATIDE", "MOUNJARO", "ZEPBOUND",
	"DULAGLUTIDE", "TRULICITY",
	"LIRAGLUTIDE", "VICTOZA", "SAXENDA",
	"EXENATIDE", "BYETTA", "BYDUREON",
	"LIXISENATIDE", "ADLYXIN",
}

// scanBufSize accommodates long claim rows.
const scanBufSize = 1 << 20

// ZipResolver maps a prescriber city/state to a ZIP when the extract row
// carries none. Returns "" when unknown.
type ZipResolver func(city, state string) string

// FilterStats counts what happened during a claims filter pass.
type FilterStats struct {
	LinesScanned int
	Matched      int
	Skipped      int // malformed or unresolvable rows
}

// FilterGLP1Claims streams the prescriber-by-drug claims extract, keeps only
// GLP-1 rows, and aggregates total claims per prescriber ZIP. The extract
// runs to multiple GB, so lines are prefiltered by keyword before any CSV
// parsing and nothing but the aggregate is held in memory.
func FilterGLP1Claims(ctx context.Context, r io.Reader, resolve ZipResolver) ([]model.ActivityRecord, FilterStats, error) {
	var stats FilterStats

	br := bufio.NewReaderSize(r, scanBufSize)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, stats, eris.Wrap(err, "refdata: read claims header")
	}
	cols, err := parseClaimsHeader(headerLine)
	if err != nil {
		return nil, stats, err
	}

	log := zap.L().With(zap.String("component", "refdata"))
	claimsByZip := make(map[string]int)

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 64*1024), scanBufSize)
	for scanner.Scan() {
		if stats.LinesScanned%500000 == 0 && ctx.Err() != nil {
			return nil, stats, eris.Wrap(ctx.Err(), "refdata: claims filter cancelled")
		}
		stats.LinesScanned++

		line := scanner.Text()
		if !containsKeyword(line) {
			continue
		}

		record, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil {
			stats.Skipped++
			continue
		}
		if !rowIsGLP1(record, cols) {
			continue
		}
		stats.Matched++

		claims, err := strconv.Atoi(strings.TrimSpace(cell(record, cols.claims)))
		if err != nil {
			stats.Skipped++
			continue
		}

		zip := model.Zip5(cell(record, cols.zip))
		if zip == "" && resolve != nil {
			zip = resolve(cell(record, cols.city), cell(record, cols.state))
		}
		if zip == "" {
			stats.Skipped++
			continue
		}
		claimsByZip[zip] += claims
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, eris.Wrap(err, "refdata: scan claims extract")
	}

	records := make([]model.ActivityRecord, 0, len(claimsByZip))
	for zip, claims := range claimsByZip {
		records = append(records, model.ActivityRecord{Zip: zip, Claims: claims})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Zip < records[j].Zip })

	log.Info("claims extract filtered",
		zap.Int("lines", stats.LinesScanned),
		zap.Int("matched", stats.Matched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("zips", len(records)),
	)
	return records, stats, nil
}

// claimColumns holds the header indexes the filter needs. zip may be -1;
// some extract vintages only carry city and state.
type claimColumns struct {
	brand, generic, claims int
	zip, city, state       int
}

func parseClaimsHeader(line string) (claimColumns, error) {
	cols := claimColumns{brand: -1, generic: -1, claims: -1, zip: -1, city: -1, state: -1}

	header, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return cols, eris.Wrap(err, "refdata: parse claims header")
	}
	for i, h := range header {
		switch key := strings.ToLower(strings.TrimSpace(h)); {
		case strings.Contains(key, "brnd_name"):
			cols.brand = i
		case strings.Contains(key, "gnrc_name"):
			cols.generic = i
		case strings.Contains(key, "tot_clms"):
			cols.claims = i
		case strings.Contains(key, "zip"):
			cols.zip = i
		case strings.Contains(key, "city"):
			cols.city = i
		case strings.Contains(key, "state"):
			cols.state = i
		}
	}
	if cols.brand == -1 && cols.generic == -1 {
		return cols, eris.New("refdata: claims header has no drug name column")
	}
	if cols.claims == -1 {
		return cols, eris.New("refdata: claims header has no total claims column")
	}
	return cols, nil
}

func containsKeyword(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range glp1Keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// rowIsGLP1 confirms the keyword hit was in a drug name column, not an
// incidental match elsewhere in the row.
func rowIsGLP1(record []string, cols claimColumns) bool {
	for _, i := range []int{cols.brand, cols.generic} {
		name := strings.ToUpper(cell(record, i))
		for _, kw := range glp1Keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
	}
	return false
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// BuildZipResolver derives a city/state to ZIP map from the pharmacy table
// itself. First seen wins per city/state pair.
func BuildZipResolver(pharmacies []*model.Pharmacy) ZipResolver {
	byCity := make(map[string]string, len(pharmacies))
	for _, p := range pharmacies {
		if p.City == "" || p.State == "" || p.Zip == "" {
			continue
		}
		key := cityStateKey(p.City, p.State)
		if _, ok := byCity[key]; !ok {
			byCity[key] = p.Zip
		}
	}
	return func(city, state string) string {
		return byCity[cityStateKey(city, state)]
	}
}

func cityStateKey(city, state string) string {
	return strings.ToUpper(strings.TrimSpace(city)) + "|" + strings.ToUpper(strings.TrimSpace(state))
}
