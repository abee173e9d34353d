package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_Registry(t *testing.T) {
	fs := Fields()
	require.NotEmpty(t, fs)

	assert.Equal(t, "age", fs[0].Name)
	assert.Equal(t, 1, fs[0].Step)
	assert.Equal(t, KindInt, fs[0].Kind)

	last := fs[len(fs)-1]
	assert.Equal(t, "is_landlord", last.Name)
	assert.Equal(t, 7, last.Step)

	f, ok := Lookup("welfare_payments")
	require.True(t, ok)
	assert.Equal(t, KindList, f.Kind)
	assert.Equal(t, 5, f.Step)
	assert.Contains(t, f.Values, "fuel_allowance")

	f, ok = Lookup("marital_status")
	require.True(t, ok)
	assert.Equal(t, KindString, f.Kind)
	assert.Len(t, f.Values, 5)

	f, ok = Lookup("county")
	require.True(t, ok)
	assert.Nil(t, f.Values)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestStepFields(t *testing.T) {
	for step := 1; step <= 7; step++ {
		fs := StepFields(step)
		assert.NotEmpty(t, fs, "step %d", step)
		for _, f := range fs {
			assert.Equal(t, step, f.Step)
		}
	}
	assert.Empty(t, StepFields(8))

	names := []string{}
	for _, f := range StepFields(3) {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "num_dependent_relatives")
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name  string
		field string
		raw   string
		want  any
	}{
		{"int", "num_children", "3", 3},
		{"bool yes", "has_children", "yes", true},
		{"bool false", "is_carer", "false", false},
		{"enum", "home_status", "renter", "renter"},
		{"free text", "county", " Mayo ", "Mayo"},
		{"list", "welfare_payments", "fuel_allowance, state_pension", []string{"fuel_allowance", "state_pension"}},
		{"empty list", "welfare_payments", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := Assign(tt.field, tt.raw)
			require.NoError(t, err)

			got, ok := Profile{}.Apply(patch).Value(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssign_Errors(t *testing.T) {
	_, err := Assign("shoe_size", "9")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = Assign("age", "forty")
	assert.Error(t, err)

	_, err = Assign("has_children", "maybe")
	assert.Error(t, err)
}

func TestProfile_ValueAndAnswered(t *testing.T) {
	p := sampleProfile()

	v, ok := p.Value("age")
	assert.True(t, ok)
	assert.Equal(t, 41, v)

	_, ok = p.Value("home_status")
	assert.False(t, ok)
	_, ok = p.Value("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{
		"age", "county", "has_children", "num_children",
		"has_dependent_relatives", "num_dependent_relatives", "welfare_payments",
	}, p.Answered())
	assert.True(t, Profile{}.IsEmpty())
	assert.False(t, p.IsEmpty())
}
