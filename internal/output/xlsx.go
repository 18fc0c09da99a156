package output

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// xlsxSheetName is the single sheet in the outreach workbook.
const xlsxSheetName = "Immediate Outreach"

// WriteGradeAXLSX writes the grade-A pharmacies as an outreach workbook.
// Columns are a call-sheet subset of the CSV: identity, contact, market
// context, and the fill and loss estimates.
func WriteGradeAXLSX(pharmacies []*model.Pharmacy, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(xlsxSheetName)
	if err != nil {
		return eris.Wrap(err, "output: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, name := range []string{
		"NPI", "Pharmacy", "Owner", "City", "State", "Phone",
		"County", "Rural Class", "Outreach Score",
		"Est Monthly Fills", "Est Annual Loss",
	} {
		header.AddCell().SetString(name)
	}

	rows := 0
	for _, p := range pharmacies {
		if p.Grade != "A" {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(p.NPI)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.OwnerName)
		row.AddCell().SetString(p.City)
		row.AddCell().SetString(p.State)
		row.AddCell().SetString(FormatPhone(p.Phone))
		row.AddCell().SetString(p.CountyName)
		row.AddCell().SetString(p.RuralClass)
		row.AddCell().SetFloat(p.Score)
		row.AddCell().SetInt(p.MonthlyFills)
		row.AddCell().SetString(FormatCurrency(p.AnnualLoss))
		rows++
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "output: save xlsx %s", path)
	}

	zap.L().Info("output: xlsx written",
		zap.String("path", path),
		zap.Int("rows", rows),
	)
	return nil
}
