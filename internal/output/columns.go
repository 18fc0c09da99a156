// Package output writes the scored pharmacy table as CSV, XLSX, and
// per-state slices, plus the console run summary.
package output

// Canonical output column names. Input columns not listed here are carried
// through from Pharmacy.Extra after these.
const (
	ColNPI            = "npi"
	ColName           = "pharmacy_name"
	ColOwner          = "owner_name"
	ColCity           = "city"
	ColState          = "state"
	ColZip            = "zip"
	ColPhone          = "phone"
	ColCountyFIPS     = "county_fips"
	ColCountyName     = "county_name"
	ColRUCC           = "rucc_code"
	ColRuralClass     = "rural_class"
	ColHPSA           = "hpsa_designated"
	ColHPSAScore      = "hpsa_score"
	ColDiabetes       = "zip_diabetes_pct"
	ColObesity        = "zip_obesity_pct"
	ColAge65          = "zip_pct_65_plus"
	ColIncome         = "zip_median_income"
	ColPopulation     = "zip_population"
	ColStateBaseline  = "state_claims_per_pharmacy"
	ColStateCost      = "state_cost_per_pharmacy"
	ColNearbyClaims   = "nearby_glp1_claims"
	ColExposureIndex  = "exposure_index"
	ColScore          = "outreach_score"
	ColMonthlyFills   = "est_monthly_fills"
	ColAnnualLoss     = "est_annual_loss"
	ColGrade          = "grade"
	ColPriority       = "priority"
)

// Columns returns the fixed output header, in order.
func Columns() []string {
	return []string{
		ColNPI, ColName, ColOwner, ColCity, ColState, ColZip, ColPhone,
		ColCountyFIPS, ColCountyName, ColRUCC, ColRuralClass,
		ColHPSA, ColHPSAScore,
		ColDiabetes, ColObesity, ColAge65, ColIncome, ColPopulation,
		ColStateBaseline, ColStateCost,
		ColNearbyClaims, ColExposureIndex, ColScore,
		ColMonthlyFills, ColAnnualLoss, ColGrade, ColPriority,
	}
}

// RequiredColumns are the columns the validator insists on in any scored
// output file.
func RequiredColumns() []string {
	return []string{
		ColNPI, ColState, ColZip,
		ColNearbyClaims, ColScore,
		ColMonthlyFills, ColGrade, ColPriority,
	}
}
