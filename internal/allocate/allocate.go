// Package allocate distributes known state-level annual claim totals down to
// individual pharmacies in proportion to a per-pharmacy weight. The
// pre-rounding allocations conserve each state's total exactly; the monthly
// integer step afterwards does not, and the drift is checked downstream
// rather than corrected here.
package allocate

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// monthsPerYear converts an annual allocation into the monthly fill estimate.
const monthsPerYear = 12

// WeightFunc extracts the allocation weight from a pharmacy. Weights must be
// non-negative.
type WeightFunc func(*model.Pharmacy) float64

// ByExposure weights allocation by the exposure index. Fill distribution
// tracks where the prescriptions are, not where outreach priority lies.
func ByExposure(p *model.Pharmacy) float64 { return p.ExposureIndex }

// ByScore weights allocation by the composite outreach score.
func ByScore(p *model.Pharmacy) float64 { return p.Score }

// ByProximity weights allocation by the proximity-weighted claim sum.
func ByProximity(p *model.Pharmacy) float64 { return p.NearbyClaims }

// Annual computes the exact per-pharmacy annual allocation, index-aligned
// with the input slice. Within each state:
//
//	allocation_i = T * w_i / ΣW   when ΣW > 0 and T > 0
//	allocation_i = T / n          when ΣW == 0 (equal split)
//	allocation_i = 0              when T == 0 or the state has no total
func Annual(pharmacies []*model.Pharmacy, totals []model.StateTotal, weight WeightFunc) []float64 {
	log := zap.L().With(zap.String("component", "allocate"))

	totalByState := make(map[string]float64, len(totals))
	for _, t := range totals {
		totalByState[normState(t.State)] += float64(t.Claims)
	}

	byState := make(map[string][]int)
	for i, p := range pharmacies {
		s := normState(p.State)
		byState[s] = append(byState[s], i)
	}

	for state := range totalByState {
		if len(byState[state]) == 0 {
			log.Warn("allocate: state total has no pharmacies", zap.String("state", state))
		}
	}

	allocations := make([]float64, len(pharmacies))
	for state, indexes := range byState {
		total, ok := totalByState[state]
		if !ok {
			log.Debug("allocate: no state total, pharmacies get zero",
				zap.String("state", state),
				zap.Int("pharmacies", len(indexes)),
			)
			continue
		}
		if total <= 0 {
			continue
		}

		sumW := 0.0
		for _, i := range indexes {
			sumW += weight(pharmacies[i])
		}

		if sumW > 0 {
			for _, i := range indexes {
				allocations[i] = total * weight(pharmacies[i]) / sumW
			}
		} else {
			share := total / float64(len(indexes))
			for _, i := range indexes {
				allocations[i] = share
			}
		}
	}
	return allocations
}

// Apply computes annual allocations and writes the derived estimates onto
// each pharmacy: MonthlyFills = round(annual/12) and AnnualLoss =
// round(annual * lossPerFill). Returns the exact annual allocations for
// callers that need the pre-rounding values.
func Apply(pharmacies []*model.Pharmacy, totals []model.StateTotal, weight WeightFunc, lossPerFill float64) []float64 {
	allocations := Annual(pharmacies, totals, weight)
	for i, p := range pharmacies {
		p.MonthlyFills = int(math.Round(allocations[i] / monthsPerYear))
		p.AnnualLoss = int(math.Round(allocations[i] * lossPerFill))
	}
	return allocations
}

func normState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
