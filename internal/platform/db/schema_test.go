package db

import "testing"

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		schema string
		valid  bool
	}{
		{"mimiciii", true},
		{"public", true},
		{"_demo_2", true},
		{"", false},
		{"2mimic", false},
		{"mimic-iii", false},
		{"mimic; DROP TABLE noteevents", false},
	}
	for _, tt := range tests {
		err := ValidateSchema(tt.schema)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateSchema(%q) error = %v, want valid=%v", tt.schema, err, tt.valid)
		}
	}
}

func TestSearchPath(t *testing.T) {
	tests := map[string]string{
		"":         "public",
		"public":   "public",
		"mimiciii": "mimiciii, public",
	}
	for schema, want := range tests {
		if got := SearchPath(schema); got != want {
			t.Errorf("SearchPath(%q) = %q, want %q", schema, got, want)
		}
	}
}
