package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperengineering/grantscan/internal/types"
)

func TestBadgeFor_Total(t *testing.T) {
	tests := []struct {
		in   types.Confidence
		want Badge
	}{
		{types.ConfidenceEligible, Badge{"Eligible", "green"}},
		{types.ConfidenceLikely, Badge{"Likely", "yellow"}},
		{types.ConfidencePossible, Badge{"Possible", "blue"}},
		{"borderline", Badge{"borderline", "gray"}},
		{"", Badge{"Unknown", "gray"}},
	}

	for _, tt := range tests {
		got := BadgeFor(tt.in)
		assert.Equal(t, tt.want, got, "BadgeFor(%q)", tt.in)
		assert.NotEmpty(t, got.Label, "BadgeFor(%q)", tt.in)
	}
}

func TestFormatCurrency(t *testing.T) {
	v := func(x float64) *float64 { return &x }

	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "Variable"},
		{v(0), "€0"},
		{v(950), "€950"},
		{v(1234), "€1,234"},
		{v(1234567.6), "€1,234,568"},
		{v(-2500), "-€2,500"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.in))
	}
}

func TestAmountDisplay(t *testing.T) {
	amount := 5000.0

	tests := []struct {
		name string
		in   types.GrantMatch
		want string
	}{
		{"description wins", types.GrantMatch{MaxAmount: &amount, AmountDescription: "Up to €5,000 per year"}, "Up to €5,000 per year"},
		{"formatted amount", types.GrantMatch{MaxAmount: &amount}, "€5,000"},
		{"description only", types.GrantMatch{AmountDescription: "Means tested"}, "Means tested"},
		{"neither", types.GrantMatch{}, "Variable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountDisplay(tt.in))
		})
	}
}

func TestCategoryLabelAndIcon(t *testing.T) {
	assert.Equal(t, "Carers", CategoryLabel("carers"))
	assert.Equal(t, "space_travel", CategoryLabel("space_travel"), "unknown codes are shown as they are")
	assert.Equal(t, "🌾", CategoryIcon("farming"))
	assert.Equal(t, "📋", CategoryIcon("space_travel"))
}
