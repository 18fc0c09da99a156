package scorer

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Factor kinds control how a raw column is normalized.
const (
	KindNumeric  = "numeric"  // percentile rank, higher raw = higher rank
	KindInverted = "inverted" // percentile rank, lower raw = higher rank
	KindBinary   = "binary"   // flag maps directly to 100/0
)

// weightSumTolerance allows floating-point slack when checking that factor
// weights form a convex combination.
const weightSumTolerance = 1e-6

// Factor is one weighted scoring input.
type Factor struct {
	Key    string  `yaml:"key"`
	Weight float64 `yaml:"weight"`
	Kind   string  `yaml:"kind"`
}

// Profile is a named set of factors whose weights sum to 1.0.
type Profile struct {
	Name    string   `yaml:"name"`
	Factors []Factor `yaml:"factors"`
}

// Factor keys understood by the pipeline.
const (
	FactorNearbyClaims  = "nearby_claims"
	FactorStateBaseline = "state_claims_per_pharmacy"
	FactorStateCost     = "state_cost_per_pharmacy"
	FactorDiabetes      = "zip_diabetes_pct"
	FactorObesity       = "zip_obesity_pct"
	FactorAge65         = "zip_pct_65_plus"
	FactorIncome        = "zip_median_income"
	FactorPopulation    = "zip_population"
	FactorHPSA          = "hpsa_designated"
)

// ExposureProfile returns the default GLP-1 exposure index weighting.
func ExposureProfile() Profile {
	return Profile{
		Name: "exposure",
		Factors: []Factor{
			{Key: FactorNearbyClaims, Weight: 0.40, Kind: KindNumeric},
			{Key: FactorStateBaseline, Weight: 0.20, Kind: KindNumeric},
			{Key: FactorDiabetes, Weight: 0.15, Kind: KindNumeric},
			{Key: FactorObesity, Weight: 0.10, Kind: KindNumeric},
			{Key: FactorAge65, Weight: 0.10, Kind: KindNumeric},
			{Key: FactorHPSA, Weight: 0.05, Kind: KindBinary},
		},
	}
}

// OutreachProfile returns the default outreach targeting weighting. Income
// and population are inverted: lower income and smaller markets score higher.
func OutreachProfile() Profile {
	return Profile{
		Name: "outreach",
		Factors: []Factor{
			{Key: FactorStateCost, Weight: 0.25, Kind: KindNumeric},
			{Key: FactorDiabetes, Weight: 0.20, Kind: KindNumeric},
			{Key: FactorAge65, Weight: 0.15, Kind: KindNumeric},
			{Key: FactorObesity, Weight: 0.10, Kind: KindNumeric},
			{Key: FactorHPSA, Weight: 0.10, Kind: KindBinary},
			{Key: FactorIncome, Weight: 0.10, Kind: KindInverted},
			{Key: FactorPopulation, Weight: 0.10, Kind: KindInverted},
		},
	}
}

// Validate checks that a profile is usable: at least one factor, known
// kinds, non-negative weights summing to 1.0.
func (p Profile) Validate() error {
	if len(p.Factors) == 0 {
		return eris.Errorf("profile %q has no factors", p.Name)
	}

	sum := 0.0
	seen := make(map[string]bool, len(p.Factors))
	for _, f := range p.Factors {
		if f.Key == "" {
			return eris.Errorf("profile %q has a factor with no key", p.Name)
		}
		if seen[f.Key] {
			return eris.Errorf("profile %q repeats factor %q", p.Name, f.Key)
		}
		seen[f.Key] = true

		switch f.Kind {
		case KindNumeric, KindInverted, KindBinary:
		default:
			return eris.Errorf("profile %q factor %q has unknown kind %q", p.Name, f.Key, f.Kind)
		}
		if f.Weight < 0 {
			return eris.Errorf("profile %q factor %q has negative weight", p.Name, f.Key)
		}
		sum += f.Weight
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return eris.Errorf("profile %q weights sum to %.6f, want 1.0", p.Name, sum)
	}
	return nil
}

// LoadProfile reads and validates a scoring profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, eris.Wrapf(err, "scorer: read profile %s", path)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, eris.Wrapf(err, "scorer: parse profile %s", path)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
