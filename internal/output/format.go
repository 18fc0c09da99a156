package output

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// printer renders thousands-separated numbers for the console summary.
var printer = message.NewPrinter(language.AmericanEnglish)

// FormatPhone renders a 10-digit phone as (XXX) XXX-XXXX. Anything else is
// returned untouched.
func FormatPhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return raw
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}

// FormatCurrency renders whole dollars with a thousands separator, e.g.
// "$1,234,567".
func FormatCurrency(dollars int) string {
	return printer.Sprintf("$%d", dollars)
}

// Summary renders the post-run console summary: population size, grade
// distribution, and aggregate loss estimate.
func Summary(pharmacies []*model.Pharmacy) string {
	grades := map[string]int{}
	states := map[string]bool{}
	totalLoss := 0
	for _, p := range pharmacies {
		grades[p.Grade]++
		states[p.State] = true
		totalLoss += p.AnnualLoss
	}

	var b strings.Builder
	printer.Fprintf(&b, "Scored %d pharmacies across %d states\n", len(pharmacies), len(states))
	for _, g := range []string{"A", "B", "C", "D"} {
		if grades[g] == 0 && len(pharmacies) > 0 {
			continue
		}
		printer.Fprintf(&b, "  Grade %s: %d\n", g, grades[g])
	}
	printer.Fprintf(&b, "Estimated annual lost revenue: $%d\n", totalLoss)
	return b.String()
}
