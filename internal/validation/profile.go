package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/grantscan/internal/profile"
)

// MaxTextLength bounds free-text answers such as county.
const MaxTextLength = 100

// MaxSlugLength bounds grant slugs.
const MaxSlugLength = 200

// Grant search queries must be at least MinSearchLength characters and
// at most MaxSearchLength.
const (
	MinSearchLength = 2
	MaxSearchLength = 100
)

// Bounds is an inclusive integer range.
type Bounds struct {
	Min, Max int
}

// intBounds are the accepted ranges of the integer answers, matching the
// limits the questionnaire inputs offer.
var intBounds = map[string]Bounds{
	"age":                     {16, 120},
	"home_year_built":         {1700, 2100},
	"num_children":            {1, 20},
	"youngest_child_age":      {0, 25},
	"num_dependent_relatives": {1, 10},
	"business_age_months":     {0, 1200},
	"num_employees":           {0, 250},
}

// BoundsFor returns the accepted range of an integer field.
func BoundsFor(name string) (Bounds, bool) {
	b, ok := intBounds[name]
	return b, ok
}

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	categoryPattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
)

// ValidateProfile checks every answered field of p: enumerated values,
// list items, integer bounds and free-text hygiene. Unanswered fields are
// always valid since nothing in the questionnaire is required.
func ValidateProfile(p profile.Profile) []ValidationError {
	c := &Collector{}
	for _, f := range profile.Fields() {
		v, ok := p.Value(f.Name)
		if !ok {
			continue
		}
		switch f.Kind {
		case profile.KindInt:
			if b, ok := intBounds[f.Name]; ok {
				c.Add(ValidateIntRange(f.Name, v.(int), b.Min, b.Max))
			}
		case profile.KindString:
			s := v.(string)
			if f.Values != nil {
				c.Add(ValidateEnum(f.Name, s, f.Values))
				continue
			}
			c.Add(ValidateUTF8(f.Name, s))
			c.Add(ValidateNoNullBytes(f.Name, s))
			c.Add(ValidateMaxLength(f.Name, s, MaxTextLength))
		case profile.KindList:
			for _, item := range v.([]string) {
				if f.Values != nil {
					c.Add(ValidateEnum(f.Name, item, f.Values))
				}
			}
		}
	}
	return c.Errors()
}

// ValidatePatch checks the values a patch sets. Cleared fields need no
// checking.
func ValidatePatch(patch profile.Patch) []ValidationError {
	errs := ValidateProfile(patch.Set)
	for _, name := range patch.Clear {
		if _, ok := profile.Lookup(name); !ok {
			errs = append(errs, ValidationError{Field: name, Message: "is not a profile field"})
		}
	}
	return errs
}

// ValidateEmail returns an error unless value is a single bare address.
func ValidateEmail(field, value string) *ValidationError {
	if err := ValidateRequired(field, value); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid email address",
		}
	}
	return nil
}

// ValidateSlug returns an error unless value is a lowercase, hyphenated
// grant slug.
func ValidateSlug(field, value string) *ValidationError {
	if err := ValidateRequired(field, value); err != nil {
		return err
	}
	if err := ValidateMaxLength(field, value, MaxSlugLength); err != nil {
		return err
	}
	if !slugPattern.MatchString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be lowercase letters, digits and single hyphens",
		}
	}
	return nil
}

// ValidateSearchQuery checks a grant search query.
func ValidateSearchQuery(field, value string) *ValidationError {
	value = strings.TrimSpace(value)
	if err := ValidateUTF8(field, value); err != nil {
		return err
	}
	if err := ValidateNoNullBytes(field, value); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(value); n < MinSearchLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters", MinSearchLength),
		}
	}
	return ValidateMaxLength(field, value, MaxSearchLength)
}

// ValidateCategory checks a category code filter. An empty code means no
// filter.
func ValidateCategory(field, value string) *ValidationError {
	if value == "" {
		return nil
	}
	if err := ValidateMaxLength(field, value, MaxTextLength); err != nil {
		return err
	}
	if !categoryPattern.MatchString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be lowercase letters, digits and underscores",
		}
	}
	return nil
}
