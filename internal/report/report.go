// Package report derives the categorized, totaled report view from a
// scan response. Every function here is pure: the same input always
// yields the same output and nothing is fetched.
package report

import (
	"time"

	"github.com/hyperengineering/grantscan/internal/types"
)

// Report is the view of one scan response.
type Report struct {
	ScanID string `json:"scan_id,omitempty"`
	// TotalGrantsFound and TotalPotentialValue are the service's figures,
	// kept as reported and never re-derived from the categories.
	TotalGrantsFound    int            `json:"total_grants_found"`
	TotalPotentialValue float64        `json:"total_potential_value"`
	TotalPotentialText  string         `json:"total_potential_text"`
	Summary             string         `json:"summary"`
	GeneratedAt         time.Time      `json:"generated_at"`
	Categories          []CategoryView `json:"categories"`
	Savings             Savings        `json:"savings"`
}

// CategoryView is one category of the report.
type CategoryView struct {
	Code  string `json:"category"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	// Count is the number of member grants.
	Count int `json:"count"`
	// TotalValue is the sum of the member grants' displayed values.
	TotalValue float64 `json:"total_value"`
	TotalText  string  `json:"total_text"`
	// ReportedCount and ReportedTotal are the service's figures.
	ReportedCount int         `json:"reported_count"`
	ReportedTotal float64     `json:"reported_total"`
	Grants        []GrantView `json:"grants"`
}

// GrantView is one grant of the report.
type GrantView struct {
	types.GrantMatch
	Badge      Badge  `json:"badge"`
	AmountText string `json:"amount_text"`
}

// Build derives the report view. A nil response yields an empty report.
// Malformed input degrades: a category without grants is a zero-count
// category, and negative figures are surfaced as they are.
func Build(resp *types.ScanResponse) Report {
	if resp == nil {
		return Report{
			TotalPotentialText: FormatEuro(0),
			Categories:         []CategoryView{},
			Savings:            RollUp(nil),
		}
	}

	r := Report{
		TotalGrantsFound:    resp.TotalGrantsFound,
		TotalPotentialValue: resp.TotalPotentialValue,
		TotalPotentialText:  FormatEuro(resp.TotalPotentialValue),
		Summary:             resp.Summary,
		GeneratedAt:         resp.GeneratedAt.Time,
		Categories:          make([]CategoryView, 0, len(resp.Categories)),
		Savings:             RollUp(resp.Matches()),
	}
	if resp.ScanID != nil {
		r.ScanID = *resp.ScanID
	}

	for _, c := range resp.Categories {
		r.Categories = append(r.Categories, buildCategory(c))
	}
	return r
}

func buildCategory(c types.CategoryResult) CategoryView {
	label := c.Label
	if label == "" {
		label = CategoryLabel(c.Category)
	}

	total := CategoryTotal(c.Grants)
	view := CategoryView{
		Code:          c.Category,
		Label:         label,
		Icon:          CategoryIcon(c.Category),
		Count:         len(c.Grants),
		TotalValue:    total,
		TotalText:     FormatEuro(total),
		ReportedCount: c.Count,
		ReportedTotal: c.TotalValue,
		Grants:        make([]GrantView, 0, len(c.Grants)),
	}
	for _, g := range c.Grants {
		view.Grants = append(view.Grants, GrantView{
			GrantMatch: g,
			Badge:      BadgeFor(g.MatchType),
			AmountText: AmountDisplay(g),
		})
	}
	return view
}

// CategoryTotal sums the displayed values of grants.
func CategoryTotal(grants []types.GrantMatch) float64 {
	var total float64
	for _, g := range grants {
		total += DisplayedValue(g)
	}
	return total
}

// GroupFlat groups a flat match list by category code. Categories appear
// in order of their first match and grants keep their relative order.
func GroupFlat(matches []types.GrantMatch) []types.CategoryResult {
	out := []types.CategoryResult{}
	index := make(map[string]int)

	for _, m := range matches {
		i, ok := index[m.Category]
		if !ok {
			i = len(out)
			index[m.Category] = i
			out = append(out, types.CategoryResult{
				Category: m.Category,
				Label:    CategoryLabel(m.Category),
			})
		}
		out[i].Grants = append(out[i].Grants, m)
	}

	for i := range out {
		out[i].Count = len(out[i].Grants)
		out[i].TotalValue = CategoryTotal(out[i].Grants)
	}
	return out
}
