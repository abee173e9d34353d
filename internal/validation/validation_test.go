package validation

import (
	"strings"
	"testing"
)

// --- ValidateUTF8 Tests ---

func TestValidateUTF8(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"ascii", "Dublin", false},
		{"empty", "", false},
		{"irish", "Dún Laoghaire", false},
		{"invalid", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUTF8("county", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUTF8(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && err.Field != "county" {
				t.Errorf("error.Field = %q, want %q", err.Field, "county")
			}
		})
	}
}

// --- ValidateNoNullBytes Tests ---

func TestValidateNoNullBytes(t *testing.T) {
	if err := ValidateNoNullBytes("county", "Cork"); err != nil {
		t.Errorf("ValidateNoNullBytes(clean) = %v, want nil", err)
	}
	err := ValidateNoNullBytes("county", "Co\x00rk")
	if err == nil {
		t.Fatal("ValidateNoNullBytes(with null) = nil, want error")
	}
	if err.Field != "county" {
		t.Errorf("error.Field = %q, want %q", err.Field, "county")
	}
}

// --- ValidateMaxLength Tests ---

func TestValidateMaxLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"within", strings.Repeat("a", 10), false},
		{"at limit", strings.Repeat("a", 100), false},
		{"exceeds", strings.Repeat("a", 101), true},
		{"multibyte at limit", strings.Repeat("ú", 100), false},
		{"multibyte exceeds", strings.Repeat("ú", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMaxLength("county", tt.value, 100)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMaxLength() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// --- ValidateRequired Tests ---

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired("email", "a@b.ie"); err != nil {
		t.Errorf("ValidateRequired(non-empty) = %v, want nil", err)
	}
	for _, v := range []string{"", "   ", "\t\n"} {
		if err := ValidateRequired("email", v); err == nil {
			t.Errorf("ValidateRequired(%q) = nil, want error", v)
		}
	}
}

// --- ValidateEnum Tests ---

func TestValidateEnum(t *testing.T) {
	allowed := []string{"owner", "renter"}

	if err := ValidateEnum("home_status", "owner", allowed); err != nil {
		t.Errorf("ValidateEnum(owner) = %v, want nil", err)
	}

	err := ValidateEnum("home_status", "Owner", allowed)
	if err == nil {
		t.Fatal("ValidateEnum is case sensitive, want error for Owner")
	}
	if !strings.Contains(err.Message, "owner, renter") {
		t.Errorf("error.Message = %q, want allowed values listed", err.Message)
	}
}

// --- ValidateIntRange Tests ---

func TestValidateIntRange(t *testing.T) {
	tests := []struct {
		value   int
		wantErr bool
	}{
		{16, false},
		{50, false},
		{120, false},
		{15, true},
		{121, true},
		{-1, true},
	}

	for _, tt := range tests {
		err := ValidateIntRange("age", tt.value, 16, 120)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIntRange(%d) = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if err != nil && err.Message != "must be between 16 and 120" {
			t.Errorf("error.Message = %q", err.Message)
		}
	}
}

// --- Collector Tests ---

func TestCollector_AccumulatesErrors(t *testing.T) {
	c := &Collector{}
	c.Add(&ValidationError{Field: "field1", Message: "error1"})
	c.Add(&ValidationError{Field: "field2", Message: "error2"})
	c.Add(&ValidationError{Field: "field3", Message: "error3"})

	errors := c.Errors()
	if len(errors) != 3 {
		t.Errorf("len(Errors()) = %d, want 3", len(errors))
	}
}

func TestCollector_IgnoresNil(t *testing.T) {
	c := &Collector{}
	c.Add(nil)
	c.Add(&ValidationError{Field: "field", Message: "error"})
	c.Add(nil)

	errors := c.Errors()
	if len(errors) != 1 {
		t.Errorf("len(Errors()) = %d, want 1 (nil should be ignored)", len(errors))
	}
}

func TestCollector_HasErrors(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("HasErrors() = true, want false for empty collector")
	}
	c.Add(&ValidationError{Field: "field", Message: "error"})
	if !c.HasErrors() {
		t.Error("HasErrors() = false, want true for collector with errors")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "age", Message: "must be between 16 and 120"}
	if got := err.Error(); got != "age: must be between 16 and 120" {
		t.Errorf("Error() = %q", got)
	}
}
