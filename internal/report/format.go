package report

import (
	"math"

	"github.com/dustin/go-humanize"

	"github.com/hyperengineering/grantscan/internal/types"
)

// VariableAmount is shown for grants without a fixed amount.
const VariableAmount = "Variable"

// Badge is the display treatment of a match confidence.
type Badge struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

// BadgeFor maps a confidence to its badge. Unrecognised values keep their
// raw text as the label so they stay visible.
func BadgeFor(c types.Confidence) Badge {
	switch c {
	case types.ConfidenceEligible:
		return Badge{Label: "Eligible", Tone: "green"}
	case types.ConfidenceLikely:
		return Badge{Label: "Likely", Tone: "yellow"}
	case types.ConfidencePossible:
		return Badge{Label: "Possible", Tone: "blue"}
	default:
		label := string(c)
		if label == "" {
			label = "Unknown"
		}
		return Badge{Label: label, Tone: "gray"}
	}
}

// FormatCurrency renders a euro amount without decimals, e.g. "€1,234".
// A nil amount is VariableAmount.
func FormatCurrency(amount *float64) string {
	if amount == nil {
		return VariableAmount
	}
	return FormatEuro(*amount)
}

// FormatEuro renders v as whole euros with thousands separators.
func FormatEuro(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return "-€" + humanize.Comma(-n)
	}
	return "€" + humanize.Comma(n)
}

// AmountDisplay is the text shown for a grant's amount: the free-text
// description when present, otherwise the formatted maximum.
func AmountDisplay(g types.GrantMatch) string {
	if g.AmountDescription != "" {
		return g.AmountDescription
	}
	return FormatCurrency(g.MaxAmount)
}

// DisplayedValue is the numeric amount a grant contributes to totals.
// Variable-amount grants contribute zero; nothing is estimated.
func DisplayedValue(g types.GrantMatch) float64 {
	if g.MaxAmount == nil {
		return 0
	}
	return *g.MaxAmount
}

var categoryLabels = map[string]string{
	"home_energy":     "Home Energy",
	"housing":         "Housing",
	"housing_support": "Housing Support",
	"welfare":         "Welfare & Social",
	"business":        "Business",
	"education":       "Education",
	"health":          "Health",
	"family":          "Family",
	"disability":      "Disability",
	"carers":          "Carers",
	"transport":       "Transport",
	"farming":         "Farming",
	"community":       "Community",
	"tax_relief":      "Tax Relief",
	"employment":      "Employment",
}

var categoryIcons = map[string]string{
	"home_energy":     "⚡",
	"housing":         "🏠",
	"housing_support": "🏘️",
	"welfare":         "🤝",
	"business":        "💼",
	"education":       "🎓",
	"health":          "🏥",
	"family":          "👨‍👩‍👧‍👦",
	"disability":      "♿",
	"carers":          "❤️",
	"transport":       "🚗",
	"farming":         "🌾",
	"community":       "🏘️",
	"tax_relief":      "💰",
	"employment":      "👔",
}

const defaultIcon = "📋"

// CategoryLabel returns the display label of a category code, or the
// code itself when it is not a known category.
func CategoryLabel(code string) string {
	if label, ok := categoryLabels[code]; ok {
		return label
	}
	return code
}

// CategoryIcon returns the icon of a category code.
func CategoryIcon(code string) string {
	if icon, ok := categoryIcons[code]; ok {
		return icon
	}
	return defaultIcon
}
