package output

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rxintel-group/exposure-cli/internal/fetcher"
	"github.com/rxintel-group/exposure-cli/internal/model"
)

// ReadScoredCSV loads a previously written scored table back into memory,
// for the validate and slice commands. Returns the rows and the file header.
func ReadScoredCSV(ctx context.Context, path string) ([]*model.Pharmacy, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "output: open scored table %s (produced by the build command)", path)
	}
	defer f.Close()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	var header []string
	select {
	case header = <-headerCh:
	case err := <-errCh:
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, eris.Errorf("output: scored table %s is empty", path)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	known := make(map[string]bool, len(Columns()))
	for _, c := range Columns() {
		known[c] = true
	}

	var pharmacies []*model.Pharmacy
	for row := range rowCh {
		p := &model.Pharmacy{
			NPI:        field(row, ColNPI),
			Name:       field(row, ColName),
			OwnerName:  field(row, ColOwner),
			City:       field(row, ColCity),
			State:      field(row, ColState),
			Zip:        field(row, ColZip),
			Phone:      field(row, ColPhone),
			CountyFIPS: field(row, ColCountyFIPS),
			CountyName: field(row, ColCountyName),
			RuralClass: field(row, ColRuralClass),
			Grade:      field(row, ColGrade),
			Priority:   field(row, ColPriority),
		}
		p.HPSADesignated = field(row, ColHPSA) == "Yes"
		p.HPSAScore, _ = strconv.Atoi(field(row, ColHPSAScore))
		p.RUCCCode, _ = strconv.Atoi(field(row, ColRUCC))
		p.DiabetesPct = model.ParseOptionalFloat(field(row, ColDiabetes), false)
		p.ObesityPct = model.ParseOptionalFloat(field(row, ColObesity), false)
		p.Pct65Plus = model.ParseOptionalFloat(field(row, ColAge65), false)
		p.MedianIncome = model.ParseOptionalFloat(field(row, ColIncome), false)
		p.Population = model.ParseOptionalFloat(field(row, ColPopulation), false)
		p.StateClaimsPerPhy = model.ParseOptionalFloat(field(row, ColStateBaseline), false)
		p.StateCostPerPhcy = model.ParseOptionalFloat(field(row, ColStateCost), false)
		p.NearbyClaims, _ = strconv.ParseFloat(field(row, ColNearbyClaims), 64)
		p.ExposureIndex, _ = strconv.ParseFloat(field(row, ColExposureIndex), 64)
		p.Score, _ = strconv.ParseFloat(field(row, ColScore), 64)
		p.MonthlyFills, _ = strconv.Atoi(field(row, ColMonthlyFills))
		p.AnnualLoss = parseCurrency(field(row, ColAnnualLoss))

		// Passthrough columns survive the round trip so a re-written slice
		// keeps everything the build emitted.
		for i, h := range header {
			if known[h] || i >= len(row) || row[i] == "" {
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[h] = row[i]
		}
		pharmacies = append(pharmacies, p)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}
	return pharmacies, header, nil
}

func parseCurrency(s string) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	n, _ := strconv.Atoi(s)
	return n
}
