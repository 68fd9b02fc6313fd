package core

import (
	"encoding/json"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ToPgNumeric Tests
// ----------------------------------------------------------------------------

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue string
	}{
		{name: "positive integer", input: "123", wantValid: true, wantValue: "123"},
		{name: "negative integer", input: "-456", wantValid: true, wantValue: "-456"},
		{name: "trailing zeros", input: "1000", wantValid: true, wantValue: "1000"},
		{name: "decimal number", input: "123.45", wantValid: true, wantValue: "123.45"},
		{name: "leading decimal point", input: ".99", wantValid: true, wantValue: "0.99"},
		{name: "dollar and thousands", input: "$1,234.50", wantValid: true, wantValue: "1234.50"},
		{name: "euro", input: "\u20ac99", wantValid: true, wantValue: "99"},
		{name: "french thousands separator", input: "1\u00a0250", wantValid: true, wantValue: "1250"},
		{name: "narrow no-break space", input: "12\u202f000", wantValid: true, wantValue: "12000"},
		{name: "accounting negative", input: "(12.5)", wantValid: true, wantValue: "-12.5"},
		{name: "empty", input: "", wantValid: false},
		{name: "whitespace", input: "   ", wantValid: false},
		{name: "letters", input: "abc", wantValid: false},
		{name: "two decimal points", input: "1.2.3", wantValid: false},
		{name: "infinity", input: "Infinity", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgNumeric(tt.input)

			if result.Valid != tt.wantValid {
				t.Fatalf("ToPgNumeric(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			got, err := numericValue(result)
			if err != nil {
				t.Fatalf("numericValue() error = %v", err)
			}
			if got.String() != tt.wantValue {
				t.Errorf("ToPgNumeric(%q) = %s, want %s", tt.input, got, tt.wantValue)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgDate Tests
// ----------------------------------------------------------------------------

func TestToPgDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "ISO", input: "2024-01-15", wantValid: true, want: "2024-01-15"},
		{name: "leap day", input: "2024-02-29", wantValid: true, want: "2024-02-29"},
		{name: "slashes year first", input: "2024/03/05", wantValid: true, want: "2024-03-05"},
		{name: "US", input: "3/5/2024", wantValid: true, want: "2024-03-05"},
		{name: "month name", input: "Jan 15, 2024", wantValid: true, want: "2024-01-15"},
		{name: "compact", input: "20240115", wantValid: true, want: "2024-01-15"},
		{name: "not a leap year", input: "2023-02-29", wantValid: false},
		{name: "garbage", input: "soon", wantValid: false},
		{name: "empty", input: "", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgDate(tt.input)
			if result.Valid != tt.wantValid {
				t.Fatalf("ToPgDate(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
			}
			if tt.wantValid && result.Time.Format(dateFormat) != tt.want {
				t.Errorf("ToPgDate(%q) = %s, want %s", tt.input, result.Time.Format(dateFormat), tt.want)
			}
		})
	}
}

// TestToPgDate_TwoDigitYear tests 2-digit year handling with pivot year logic
func TestToPgDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	result := ToPgDate("1/15/24")
	if !result.Valid || result.Time.Year() != 2024 {
		t.Errorf("ToPgDate(1/15/24) = %v, want 2024", result.Time)
	}

	far := (time.Now().Year() + 30) % 100
	input := "1/1/" + twoDigits(far)
	result = ToPgDate(input)
	if !result.Valid || result.Time.Year() > time.Now().Year()+TwoDigitYearPivot {
		t.Errorf("ToPgDate(%s) = %v, want previous century", input, result.Time)
	}
}

func twoDigits(n int) string {
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// ----------------------------------------------------------------------------
// ToPgBool Tests
// ----------------------------------------------------------------------------

func TestToPgBool(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      bool
	}{
		{"true", true, true},
		{"Y", true, true},
		{"yes", true, true},
		{"1", true, true},
		{"Oui", true, true},
		{"false", true, false},
		{"N", true, false},
		{"non", true, false},
		{"0", true, false},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ToPgBool(tt.input)
			if result.Valid != tt.wantValid || result.Bool != tt.want {
				t.Errorf("ToPgBool(%q) = %+v, want valid=%v bool=%v", tt.input, result, tt.wantValid, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "abc", "abc"},
		{"surrounding whitespace", "  abc \t", "abc"},
		{"non-breaking spaces", "\u00a0abc\u00a0", "abc"},
		{"excel text guard", `="00123"`, "00123"},
		{"guard with spaces", `  ="A-1"  `, "A-1"},
		{"bare equals kept", `=SUM(A1)`, "=SUM(A1)"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// convertCell Tests
// ----------------------------------------------------------------------------

func TestConvertCell(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		raw      string
		date1904 bool
		want     any
		wantErr  bool
	}{
		{name: "text", typ: "text", raw: "hello", want: "hello"},
		{name: "untyped is text", typ: "", raw: "x", want: "x"},
		{name: "money", typ: "money", raw: "$2,500.00", want: json.Number("2500.00")},
		{name: "numeric", typ: "numeric", raw: "0.5", want: json.Number("0.5")},
		{name: "numeric invalid", typ: "numeric", raw: "n/a", wantErr: true},
		{name: "int", typ: "int", raw: "42", want: int64(42)},
		{name: "int from float cell", typ: "int", raw: "42.0", want: int64(42)},
		{name: "int fraction", typ: "int", raw: "4.2", wantErr: true},
		{name: "year", typ: "year", raw: "2023", want: int64(2023)},
		{name: "year too short", typ: "year", raw: "23", wantErr: true},
		{name: "date serial", typ: "date", raw: "45306", want: "2024-01-15"},
		{name: "date serial 1904", typ: "date", raw: "43844", date1904: true, want: "2024-01-15"},
		{name: "date text", typ: "date", raw: "2024-01-15", want: "2024-01-15"},
		{name: "date compact text", typ: "date", raw: "20240115", want: "2024-01-15"},
		{name: "date invalid", typ: "date", raw: "tomorrow", wantErr: true},
		{name: "timestamp serial", typ: "timestamp", raw: "45306.5", want: "2024-01-15T12:00:00"},
		{name: "timestamp text", typ: "timestamp", raw: "2024-01-15 08:30:00", want: "2024-01-15T08:30:00"},
		{name: "boolean", typ: "boolean", raw: "Y", want: true},
		{name: "boolean invalid", typ: "boolean", raw: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertCell(tt.typ, tt.raw, tt.date1904)
			if (err != nil) != tt.wantErr {
				t.Fatalf("convertCell(%q, %q) error = %v, wantErr %v", tt.typ, tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("convertCell(%q, %q) = %#v, want %#v", tt.typ, tt.raw, got, tt.want)
			}
		})
	}
}
