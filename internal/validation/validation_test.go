package validation

import (
	"testing"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-01-01", false},
		{" 2024-01-31 ", false},
		{"2024-02-30", true},
		{"01/02/2024", true},
		{"2024-1-2", true},
		{"", true},
		{"not-a-date", true},
	}

	for _, tt := range tests {
		_, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	if !IsValidDate("2024-01-10") {
		t.Error("expected 2024-01-10 to be valid")
	}
	if IsValidDate("2024-13-01") {
		t.Error("expected 2024-13-01 to be invalid")
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"  hello  ", 100, "hello"},
		{"toolong", 4, "tool"},
		{"null\x00byte", 100, "nullbyte"},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestValidate_Combinators(t *testing.T) {
	errs := Validate(
		Required("start_date", ""),
		ValidDate("end_date", "2024-01-40"),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "start_date" {
		t.Errorf("expected first error on start_date, got %s", errs[0].Field)
	}

	errs = Validate(
		Required("start_date", "2024-01-01"),
		ValidDate("start_date", "2024-01-01"),
		MaxLength("username", "admin", 64),
	)
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidDate_EmptyPasses(t *testing.T) {
	if err := ValidDate("d", "")(); err != nil {
		t.Errorf("empty value should pass ValidDate, got %v", err)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "validation failed" {
		t.Errorf("unexpected message: %s", empty.Error())
	}

	errs := ValidationErrors{{Field: "start_date", Message: "is required"}}
	if errs.Error() != "start_date: is required" {
		t.Errorf("unexpected message: %s", errs.Error())
	}
}
