package scorer

import (
	"math"
	"sort"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// GradeCutoff pairs a grade with its cumulative population fraction.
type GradeCutoff struct {
	Grade    string
	Fraction float64
}

// DefaultCutoffs partition the ranked population into outreach grades.
// Fractions are cumulative and must end at 1.0.
func DefaultCutoffs() []GradeCutoff {
	return []GradeCutoff{
		{Grade: "A", Fraction: 0.15},
		{Grade: "B", Fraction: 0.40},
		{Grade: "C", Fraction: 0.70},
		{Grade: "D", Fraction: 1.00},
	}
}

// priorities maps each grade to its outreach priority label.
var priorities = map[string]string{
	"A": "Immediate",
	"B": "High",
	"C": "Standard",
	"D": "Monitor",
}

// Priority returns the outreach priority label for a grade.
func Priority(grade string) string { return priorities[grade] }

// AssignGrades sorts pharmacies by score descending (ties broken by
// ascending NPI for deterministic output), then assigns grades by cumulative
// round() cutoffs: cutoff k admits the first round(n*fraction_k) pharmacies.
// Because each cutoff rounds independently, tier sizes can deviate by one
// from the nominal fraction; that wobble is accepted.
//
// The slice is reordered in place; Grade and Priority are set on each entry.
func AssignGrades(pharmacies []*model.Pharmacy, cutoffs []GradeCutoff) {
	sort.SliceStable(pharmacies, func(i, j int) bool {
		if pharmacies[i].Score != pharmacies[j].Score {
			return pharmacies[i].Score > pharmacies[j].Score
		}
		return pharmacies[i].NPI < pharmacies[j].NPI
	})

	n := len(pharmacies)
	counts := make([]int, len(cutoffs))
	for k, c := range cutoffs {
		counts[k] = int(math.Round(float64(n) * c.Fraction))
	}

	for idx, p := range pharmacies {
		p.Grade = cutoffs[len(cutoffs)-1].Grade
		for k, c := range cutoffs {
			if idx+1 <= counts[k] {
				p.Grade = c.Grade
				break
			}
		}
		p.Priority = Priority(p.Grade)
	}
}
