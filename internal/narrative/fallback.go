package narrative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/report"
	"github.com/hyperengineering/grantscan/internal/types"
)

// promptGrantLimit is how many matches are described to the model.
const promptGrantLimit = 10

// Fallback is the template summary.
func Fallback(in Input) string {
	eligible := 0
	taxCredits := 0
	for _, m := range in.Matches {
		if m.MatchType == types.ConfidenceEligible {
			eligible++
		}
		if m.Category == "tax_relief" {
			taxCredits++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"Based on your profile, we found %d grants, schemes, and tax credits you may be entitled to, "+
			"with a combined potential value of up to %s. "+
			"%d of these are strong matches where you appear to meet all eligibility criteria.",
		len(in.Matches), report.FormatEuro(in.TotalValue), eligible)

	if taxCredits > 0 {
		plural := "s"
		if taxCredits == 1 {
			plural = ""
		}
		fmt.Fprintf(&b,
			" You qualify for %d tax credit%s that could save you money. "+
				"Many of these can be backdated up to 4 years, so you may be owed money from previous years too.",
			taxCredits, plural)
	}

	if top := topByAmount(in.Matches, 3); len(top) > 0 {
		names := make([]string, len(top))
		for i, m := range top {
			names[i] = m.Name
		}
		fmt.Fprintf(&b,
			" Your highest-value matches include %s. "+
				"We recommend starting with the grants marked as 'eligible' and working through them in order of value.",
			strings.Join(names, ", "))
	}

	return b.String()
}

// topByAmount returns the n matches with the largest maximum amount.
// Ties keep service order.
func topByAmount(matches []types.GrantMatch, n int) []types.GrantMatch {
	sorted := make([]types.GrantMatch, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return report.DisplayedValue(sorted[i]) > report.DisplayedValue(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func describeProfile(p profile.Profile) string {
	var parts []string
	add := func(format string, args ...any) {
		parts = append(parts, fmt.Sprintf(format, args...))
	}

	if p.Age != nil && *p.Age > 0 {
		add("Age: %d", *p.Age)
	}
	if p.County != nil && *p.County != "" {
		add("County: %s", *p.County)
	}
	if p.MaritalStatus != nil {
		add("Marital status: %s", *p.MaritalStatus)
	}
	if p.EmploymentStatus != nil {
		add("Employment: %s", *p.EmploymentStatus)
	}
	if p.IncomeBracket != nil {
		add("Income bracket: %s", *p.IncomeBracket)
	}
	if p.HomeStatus != nil {
		add("Housing: %s", *p.HomeStatus)
	}
	if isTrue(p.HasChildren) {
		if p.NumChildren != nil && *p.NumChildren > 0 {
			add("Has children: yes (%d children)", *p.NumChildren)
		} else {
			add("Has children: yes")
		}
	}
	if isTrue(p.IsCarer) {
		add("Is a carer: yes")
	}
	if isTrue(p.HasDependentRelatives) {
		n := 1
		if p.NumDependentRelatives != nil {
			n = *p.NumDependentRelatives
		}
		add("Has dependent relatives: yes (%d)", n)
	}
	if isTrue(p.WorksFromHome) {
		add("Works from home: yes")
	}
	if isTrue(p.HasMedicalExpenses) {
		add("Has medical expenses: yes")
	}
	if isTrue(p.HasMortgage) {
		add("Has mortgage: yes")
	}
	if isTrue(p.HasNursingHomeExpenses) {
		add("Paying nursing home fees: yes")
	}
	if isTrue(p.IsStudent) {
		add("Is a student: yes")
	}

	if len(parts) == 0 {
		return "No detailed profile provided"
	}
	return strings.Join(parts, "\n")
}

func describeGrants(matches []types.GrantMatch) string {
	if len(matches) > promptGrantLimit {
		matches = matches[:promptGrantLimit]
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", m.Name, m.MatchType, report.AmountDisplay(m)))
		if m.SavingsNote != "" {
			lines = append(lines, "  Savings: "+m.SavingsNote)
		}
	}
	return strings.Join(lines, "\n")
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
