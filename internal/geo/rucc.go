package geo

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Rural classification buckets for USDA Rural-Urban Continuum Codes.
const (
	ClassMetro         = "Metro"
	ClassRuralAdjacent = "Rural-Adjacent"
	ClassRuralRemote   = "Rural-Remote"
)

// RUCCInfo is the rural classification for one county.
type RUCCInfo struct {
	CountyFIPS string
	CountyName string
	Code       int
	Class      string
}

// ClassifyRUCC buckets a RUCC 2023 code: 1-3 metro, 4/6/8 nonmetro adjacent
// to a metro area, 5/7/9 nonmetro remote.
func ClassifyRUCC(code int) string {
	switch code {
	case 1, 2, 3:
		return ClassMetro
	case 4, 6, 8:
		return ClassRuralAdjacent
	case 5, 7, 9:
		return ClassRuralRemote
	default:
		return ""
	}
}

// LoadRUCC parses the USDA RUCC CSV (long format: one row per FIPS per
// attribute) keeping only RUCC_2023 rows. Malformed rows are skipped.
func LoadRUCC(r io.Reader) (map[string]RUCCInfo, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "geo: read rucc header")
	}
	fipsIdx, nameIdx, attrIdx, valIdx := -1, -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case "FIPS":
			fipsIdx = i
		case "County_Name":
			nameIdx = i
		case "Attribute":
			attrIdx = i
		case "Value":
			valIdx = i
		}
	}
	if fipsIdx < 0 || attrIdx < 0 || valIdx < 0 {
		return nil, eris.Errorf("geo: rucc header missing required columns, got %v", header)
	}

	out := make(map[string]RUCCInfo)
	var skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(row) <= valIdx || strings.TrimSpace(row[attrIdx]) != "RUCC_2023" {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(row[valIdx]))
		if err != nil {
			skipped++
			continue
		}
		fips := strings.TrimSpace(row[fipsIdx])
		for len(fips) < 5 {
			fips = "0" + fips
		}
		name := ""
		if nameIdx >= 0 && len(row) > nameIdx {
			name = strings.TrimSpace(row[nameIdx])
		}
		out[fips] = RUCCInfo{
			CountyFIPS: fips,
			CountyName: name,
			Code:       code,
			Class:      ClassifyRUCC(code),
		}
	}

	zap.L().Info("geo: rucc codes loaded",
		zap.Int("counties", len(out)),
		zap.Int("skipped_rows", skipped),
	)
	return out, nil
}
