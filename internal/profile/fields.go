package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrUnknownField is returned when a wire name does not name a profile field.
var ErrUnknownField = errors.New("unknown profile field")

// Kind is the value type of a profile field.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Field describes one question of the questionnaire.
type Field struct {
	Name   string   // wire name, e.g. "num_children"
	Step   int      // 1-based questionnaire step that asks it
	Kind   Kind     // value type
	Values []string // allowed values for enumerated string fields; nil means free text

	index []int
}

// enumValues lists the closed answer sets. Free-text string fields are absent.
var enumValues = map[string][]string{
	"marital_status":    {"single", "married", "cohabiting", "separated", "widowed"},
	"home_status":       {"owner", "renter", "local_authority_tenant", "living_with_family", "homeless", "landlord"},
	"home_type":         {"detached", "semi_detached", "terraced", "apartment", "bungalow"},
	"ber_rating":        {"A1", "A2", "A3", "B1", "B2", "B3", "C1", "C2", "C3", "D1", "D2", "E1", "E2", "F", "G"},
	"employment_status": {"employed", "self_employed", "unemployed", "retired", "student", "homemaker"},
	"income_bracket":    {"<20k", "20-40k", "40-60k", "60-80k", "80k+"},
	"vehicle_type":      {"petrol", "diesel", "hybrid", "electric", "none"},
	"welfare_payments": {
		"fuel_allowance", "disability_allowance", "jobseekers_allowance",
		"working_family_payment", "carers_allowance", "one_parent_family_payment",
		"domiciliary_care_allowance", "state_pension", "invalidity_pension",
	},
}

// fields is built once from the Profile struct tags, in step order.
var (
	fields      = buildFields()
	fieldByName = indexFields(fields)
)

func buildFields() []Field {
	var out []Field
	pt := reflect.TypeOf(Profile{})
	for step := 0; step < pt.NumField(); step++ {
		domain := pt.Field(step)
		for i := 0; i < domain.Type.NumField(); i++ {
			sf := domain.Type.Field(i)
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			out = append(out, Field{
				Name:   name,
				Step:   step + 1,
				Kind:   kindOf(sf.Type),
				Values: enumValues[name],
				index:  []int{step, i},
			})
		}
	}
	return out
}

func indexFields(fs []Field) map[string]Field {
	m := make(map[string]Field, len(fs))
	for _, f := range fs {
		m[f.Name] = f
	}
	return m
}

func kindOf(t reflect.Type) Kind {
	if t.Kind() == reflect.Slice {
		return KindList
	}
	switch t.Elem().Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int:
		return KindInt
	default:
		return KindString
	}
}

// Fields returns every profile field in questionnaire order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// StepFields returns the fields asked on the given step.
func StepFields(step int) []Field {
	var out []Field
	for _, f := range fields {
		if f.Step == step {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the field with the given wire name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldByName[name]
	return f, ok
}

// Value returns the answer stored for the named field, dereferenced.
// The boolean is false when the field is unknown or unanswered.
func (p Profile) Value(name string) (any, bool) {
	f, ok := fieldByName[name]
	if !ok {
		return nil, false
	}
	v := p.field(f)
	if v.IsNil() {
		return nil, false
	}
	if f.Kind == KindList {
		src := v.Interface().([]string)
		out := make([]string, len(src))
		copy(out, src)
		return out, true
	}
	v = v.Elem()
	switch f.Kind {
	case KindBool:
		return v.Bool(), true
	case KindInt:
		return int(v.Int()), true
	default:
		return v.String(), true
	}
}

func (p Profile) field(f Field) reflect.Value {
	return reflect.ValueOf(p).FieldByIndex(f.index)
}

// Assign parses raw for the named field and returns a patch that sets it.
// Lists are comma separated; an empty raw list means "answered, none".
// Only syntax is checked here; allowed values and bounds are the
// caller's concern.
func Assign(name, raw string) (Patch, error) {
	f, ok := fieldByName[name]
	if !ok {
		return Patch{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	var set Profile
	dst := reflect.ValueOf(&set).Elem().FieldByIndex(f.index)
	raw = strings.TrimSpace(raw)

	switch f.Kind {
	case KindBool:
		b, err := parseBool(raw)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %w", name, err)
		}
		dst.Set(reflect.ValueOf(&b))
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: expected a whole number, got %q", name, raw)
		}
		dst.Set(reflect.ValueOf(&n))
	case KindList:
		items := []string{}
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		dst.Set(reflect.ValueOf(items))
	default:
		ptr := reflect.New(dst.Type().Elem())
		ptr.Elem().SetString(raw)
		dst.Set(ptr)
	}

	return Patch{Set: set}, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", raw)
}
