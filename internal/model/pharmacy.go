// Package model defines the typed records flowing through the exposure pipeline.
package model

import (
	"strconv"
	"strings"
	"time"
)

// IncomeSentinelFloor marks placeholder income values in the source extract.
// Anything below it is treated as missing, not as a real (negative) income.
const IncomeSentinelFloor = -999999

// Pharmacy is one facility in the input snapshot. Raw factor columns that may
// be absent or unparseable are pointers; nil means missing. The pipeline
// stages fill in the computed fields in place.
type Pharmacy struct {
	NPI       string
	Name      string
	OwnerName string
	City      string
	State     string
	Zip       string
	Phone     string

	// Raw factors.
	HPSADesignated    bool
	HPSAScore         int
	DiabetesPct       *float64
	ObesityPct        *float64
	Pct65Plus         *float64
	MedianIncome      *float64
	Population        *float64
	StateCostPerPhcy  *float64
	StateClaimsPerPhy *float64

	// Derived geography.
	CountyFIPS string
	CountyName string
	RUCCCode   int
	RuralClass string

	// Computed by the pipeline.
	NearbyClaims  float64
	ExposureIndex float64
	Score         float64
	MonthlyFills  int
	AnnualLoss    int
	Grade         string
	Priority      string

	// Extra input columns preserved verbatim for output.
	Extra map[string]string
}

// ActivityRecord is an aggregated prescriber-claims count for one ZIP.
type ActivityRecord struct {
	Zip    string
	Claims int
}

// StateTotal is a known annual claim total for one state, which per-pharmacy
// allocations must reconcile to.
type StateTotal struct {
	State  string
	Claims int
}

// Run statuses in the run registry.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunSummary captures one pipeline run for the run registry.
type RunSummary struct {
	ID         string
	Command    string
	Pharmacies int
	States     int
	OutputPath string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ParseOptionalFloat parses s into a float pointer. Empty or unparseable
// values return nil. Values strictly below the income sentinel floor also
// return nil when sentinel is true; the floor itself and zero are kept as
// real values.
func ParseOptionalFloat(s string, sentinel bool) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if sentinel && v < IncomeSentinelFloor {
		return nil
	}
	return &v
}

// Zip5 normalizes a raw ZIP value to its 5-digit prefix.
func Zip5(raw string) string {
	z := strings.TrimSpace(raw)
	if len(z) > 5 {
		z = z[:5]
	}
	return z
}
