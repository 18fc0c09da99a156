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

// pharmacyColumns maps the known input header names. Everything else in the
// file is carried through to output via Extra.
var pharmacyColumns = map[string]bool{
	"npi": true, "pharmacy_name": true, "owner_name": true,
	"city": true, "state": true, "zip": true, "phone": true,
	"hpsa_designated": true, "hpsa_score": true,
	"zip_diabetes_pct": true, "zip_obesity_pct": true, "zip_pct_65_plus": true,
	"zip_median_income": true, "zip_population": true,
	"state_claims_per_pharmacy": true, "state_cost_per_pharmacy": true,
}

// LoadPharmacies reads the cleaned pharmacy snapshot. Rows without an NPI
// are skipped and counted; a skipped row never aborts the load.
func LoadPharmacies(ctx context.Context, path string) ([]*model.Pharmacy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open pharmacy table %s (produced upstream by the cleaning step)", path)
	}
	defer f.Close()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	select {
	case header = <-headerCh:
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return nil, eris.Errorf("refdata: pharmacy table %s is empty", path)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["npi"]; !ok {
		return nil, eris.Errorf("refdata: pharmacy table %s has no npi column", path)
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var pharmacies []*model.Pharmacy
	skipped := 0
	for row := range rowCh {
		npi := field(row, "npi")
		if npi == "" {
			skipped++
			continue
		}

		p := &model.Pharmacy{
			NPI:               npi,
			Name:              field(row, "pharmacy_name"),
			OwnerName:         field(row, "owner_name"),
			City:              field(row, "city"),
			State:             strings.ToUpper(field(row, "state")),
			Zip:               model.Zip5(field(row, "zip")),
			Phone:             field(row, "phone"),
			DiabetesPct:       model.ParseOptionalFloat(field(row, "zip_diabetes_pct"), false),
			ObesityPct:        model.ParseOptionalFloat(field(row, "zip_obesity_pct"), false),
			Pct65Plus:         model.ParseOptionalFloat(field(row, "zip_pct_65_plus"), false),
			MedianIncome:      model.ParseOptionalFloat(field(row, "zip_median_income"), true),
			Population:        model.ParseOptionalFloat(field(row, "zip_population"), false),
			StateClaimsPerPhy: model.ParseOptionalFloat(field(row, "state_claims_per_pharmacy"), false),
			StateCostPerPhcy:  model.ParseOptionalFloat(field(row, "state_cost_per_pharmacy"), false),
		}

		hpsa := strings.ToLower(field(row, "hpsa_designated"))
		p.HPSADesignated = hpsa == "yes" || hpsa == "true" || hpsa == "1" || hpsa == "y"
		if s, err := strconv.Atoi(field(row, "hpsa_score")); err == nil {
			p.HPSAScore = s
		}

		for i, h := range header {
			key := strings.ToLower(strings.TrimSpace(h))
			if pharmacyColumns[key] || i >= len(row) || row[i] == "" {
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[key] = row[i]
		}

		pharmacies = append(pharmacies, p)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	zap.L().Info("refdata: pharmacies loaded",
		zap.String("path", path),
		zap.Int("rows", len(pharmacies)),
		zap.Int("skipped", skipped),
	)
	return pharmacies, nil
}
