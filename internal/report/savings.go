package report

import "github.com/hyperengineering/grantscan/internal/types"

// Savings is the savings roll-up across all matches.
type Savings struct {
	// TotalAnnualSaving sums estimated_annual_saving; absent values count as 0.
	TotalAnnualSaving float64 `json:"total_annual_saving"`
	// BackdatableGrants are the matches with a positive backdated saving,
	// in service order.
	BackdatableGrants []types.GrantMatch `json:"backdatable_grants"`
	TotalBackdated    float64            `json:"total_backdated"`
}

// RollUp derives the savings figures from matches.
func RollUp(matches []types.GrantMatch) Savings {
	backdatable, backdated := Backdatable(matches)
	return Savings{
		TotalAnnualSaving: TotalAnnualSaving(matches),
		BackdatableGrants: backdatable,
		TotalBackdated:    backdated,
	}
}

// TotalAnnualSaving sums the estimated annual saving of every match.
func TotalAnnualSaving(matches []types.GrantMatch) float64 {
	var total float64
	for _, m := range matches {
		if m.EstimatedAnnualSaving != nil {
			total += *m.EstimatedAnnualSaving
		}
	}
	return total
}

// Backdatable returns the matches with a positive backdated saving and
// the sum of those savings.
func Backdatable(matches []types.GrantMatch) ([]types.GrantMatch, float64) {
	out := []types.GrantMatch{}
	var total float64
	for _, m := range matches {
		if m.EstimatedBackdatedSaving != nil && *m.EstimatedBackdatedSaving > 0 {
			out = append(out, m)
			total += *m.EstimatedBackdatedSaving
		}
	}
	return out, total
}
