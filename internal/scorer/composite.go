package scorer

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// Composite computes the weighted percentile-rank composite for every
// pharmacy under the given profile. The result is index-aligned, rounded to
// one decimal place, and always within [0, 100] since it is a convex
// combination of ranks in [0, 100].
func Composite(pharmacies []*model.Pharmacy, profile Profile) ([]float64, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	n := len(pharmacies)
	scores := make([]float64, n)

	for _, factor := range profile.Factors {
		var ranks []float64

		if factor.Kind == KindBinary {
			flags, err := binaryColumn(pharmacies, factor.Key)
			if err != nil {
				return nil, err
			}
			ranks = BinaryRanks(flags)
		} else {
			values, err := numericColumn(pharmacies, factor.Key)
			if err != nil {
				return nil, err
			}
			ranks = PercentileRank(values)
			if factor.Kind == KindInverted {
				InvertRanks(ranks)
			}
		}

		for i := range scores {
			scores[i] += factor.Weight * ranks[i]
		}
	}

	for i := range scores {
		scores[i] = math.Round(scores[i]*10) / 10
	}

	zap.L().Debug("scorer: composite computed",
		zap.String("profile", profile.Name),
		zap.Int("pharmacies", n),
	)
	return scores, nil
}

// numericColumn extracts one factor column as optional floats.
func numericColumn(pharmacies []*model.Pharmacy, key string) ([]*float64, error) {
	values := make([]*float64, len(pharmacies))
	for i, p := range pharmacies {
		switch key {
		case FactorNearbyClaims:
			v := p.NearbyClaims
			values[i] = &v
		case FactorStateBaseline:
			values[i] = p.StateClaimsPerPhy
		case FactorStateCost:
			values[i] = p.StateCostPerPhcy
		case FactorDiabetes:
			values[i] = p.DiabetesPct
		case FactorObesity:
			values[i] = p.ObesityPct
		case FactorAge65:
			values[i] = p.Pct65Plus
		case FactorIncome:
			values[i] = p.MedianIncome
		case FactorPopulation:
			values[i] = p.Population
		default:
			return nil, eris.Errorf("scorer: unknown numeric factor %q", key)
		}
	}
	return values, nil
}

// binaryColumn extracts one flag column.
func binaryColumn(pharmacies []*model.Pharmacy, key string) ([]bool, error) {
	if key != FactorHPSA {
		return nil, eris.Errorf("scorer: unknown binary factor %q", key)
	}
	flags := make([]bool, len(pharmacies))
	for i, p := range pharmacies {
		flags[i] = p.HPSADesignated
	}
	return flags, nil
}
