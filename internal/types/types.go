// Package types holds the wire types exchanged with the remote
// eligibility-matching service.
package types

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Confidence is how strongly a grant applies to a profile.
type Confidence string

const (
	ConfidenceEligible Confidence = "eligible"
	ConfidenceLikely   Confidence = "likely"
	ConfidencePossible Confidence = "possible"
)

// Rank orders confidence values: eligible 3, likely 2, possible 1,
// anything else 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceEligible:
		return 3
	case ConfidenceLikely:
		return 2
	case ConfidencePossible:
		return 1
	default:
		return 0
	}
}

// Known reports whether c is one of the three defined values.
func (c Confidence) Known() bool {
	return c.Rank() > 0
}

// GrantMatch is one matched opportunity.
type GrantMatch struct {
	GrantID                  string     `json:"grant_id"`
	Name                     string     `json:"name"`
	Slug                     string     `json:"slug"`
	ShortDescription         string     `json:"short_description"`
	MatchType                Confidence `json:"match_type"`
	MatchScore               float64    `json:"match_score"`
	MaxAmount                *float64   `json:"max_amount"`
	AmountDescription        string     `json:"amount_description"`
	SourceOrganisation       string     `json:"source_organisation"`
	SourceURL                string     `json:"source_url"`
	ApplicationURL           *string    `json:"application_url"`
	Notes                    string     `json:"notes"`
	IsLocked                 bool       `json:"is_locked"`
	Category                 string     `json:"category"`
	EstimatedAnnualSaving    *float64   `json:"estimated_annual_saving"`
	EstimatedBackdatedSaving *float64   `json:"estimated_backdated_saving"`
	SavingsNote              string     `json:"savings_note"`
	HowToClaim               string     `json:"how_to_claim"`
}

// CategoryResult groups the matches of one category. Grants keep the
// order the service returned them in.
type CategoryResult struct {
	Category   string       `json:"category"`
	Label      string       `json:"label"`
	Count      int          `json:"count"`
	TotalValue float64      `json:"total_value"`
	Grants     []GrantMatch `json:"grants"`
}

// ScanResponse is the result of one scan.
type ScanResponse struct {
	ScanID              *string          `json:"scan_id"`
	TotalGrantsFound    int              `json:"total_grants_found"`
	TotalPotentialValue float64          `json:"total_potential_value"`
	Categories          []CategoryResult `json:"categories"`
	Summary             string           `json:"summary"`
	GeneratedAt         Timestamp        `json:"generated_at"`
}

// Matches returns every grant across all categories in service order.
func (r ScanResponse) Matches() []GrantMatch {
	var out []GrantMatch
	for _, c := range r.Categories {
		out = append(out, c.Grants...)
	}
	return out
}

// Grant is the full descriptive record of one grant.
type Grant struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	ShortDescription   string    `json:"short_description"`
	LongDescription    *string   `json:"long_description"`
	Category           string    `json:"category"`
	Subcategory        *string   `json:"subcategory"`
	MaxAmount          *float64  `json:"max_amount"`
	AmountDescription  *string   `json:"amount_description"`
	AmountType         string    `json:"amount_type"`
	IsMeansTested      bool      `json:"is_means_tested"`
	SourceOrganisation string    `json:"source_organisation"`
	SourceURL          string    `json:"source_url"`
	ApplicationURL     *string   `json:"application_url"`
	ApplicationMethod  *string   `json:"application_method"`
	IsAlwaysOpen       bool      `json:"is_always_open"`
	ClosingDate        *string   `json:"closing_date"`
	TypicalProcessing  *string   `json:"typical_processing"`
	IsActive           bool      `json:"is_active"`
	LastVerifiedAt     Timestamp `json:"last_verified_at"`
	CreatedAt          Timestamp `json:"created_at"`
}

// GrantStep is one step of a grant's application process.
type GrantStep struct {
	ID          string  `json:"id"`
	StepNumber  int     `json:"step_number"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         *string `json:"url"`
}

// GrantDocument is a document an applicant needs.
type GrantDocument struct {
	ID           string  `json:"id"`
	DocumentName string  `json:"document_name"`
	Description  *string `json:"description"`
	IsRequired   bool    `json:"is_required"`
}

// GrantDetail combines a grant with its ordered steps and documents.
type GrantDetail struct {
	Grant     Grant           `json:"grant"`
	Steps     []GrantStep     `json:"steps"`
	Documents []GrantDocument `json:"documents"`
}

// GrantPage is one page of the active grant catalogue, ordered by
// category and then name.
type GrantPage struct {
	Grants  []Grant `json:"grants"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// GrantSearchResult holds the grants whose name or short description
// matched a search.
type GrantSearchResult struct {
	Results []Grant `json:"results"`
	Total   int     `json:"total"`
}

// NewGrantsResponse holds the grants added in the last 30 days.
type NewGrantsResponse struct {
	Grants []Grant `json:"grants"`
}

// CategoryCount is the number of active grants in a category.
type CategoryCount struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
}

// DeliveryStatus is the state of an emailed report.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// EmailReportRequest asks the service to email a report for a profile.
type EmailReportRequest struct {
	Email   string          `json:"email"`
	Profile json.RawMessage `json:"profile"`
}

// EmailReportResponse reports the delivery state of an emailed report.
type EmailReportResponse struct {
	Status  DeliveryStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// TokenPair is the credential pair issued by the service.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HealthResponse is the service health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Timestamp decodes the timestamp layouts the service emits, with or
// without a zone. An unparseable or null value decodes to the zero time
// rather than failing the whole response.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON implements json.Marshaler. The zero time encodes as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
