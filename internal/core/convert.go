package core

// convert.go turns raw workbook cells into datastore values.
//
// Cells arrive as the raw stored value, so dates typed into Excel show up
// as serial day numbers in the workbook's epoch while dates typed as text
// keep their text. Both are accepted. Converted values are plain JSON
// friendly Go values: string, json.Number, int64, bool, []string.

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"20060102",
	}
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
)

const (
	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02T15:04:05"
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a textual date to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ToPgTimestamp converts a textual timestamp or date to pgtype.Timestamp.
func ToPgTimestamp(s string) pgtype.Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamp{Valid: false}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamp{Time: t, Valid: true}
		}
	}
	if d := ToPgDate(s); d.Valid {
		return pgtype.Timestamp{Time: d.Time, Valid: true}
	}
	return pgtype.Timestamp{Valid: false}
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\u20ac", "") // Euro
	s = strings.ReplaceAll(s, "\u00a3", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "\u00a0", "") // French thousands separator
	s = strings.ReplaceAll(s, "\u202f", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}

	return n
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0, oui/non.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "true", "t", "yes", "y", "1", "oui", "o":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0", "non":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace, including non-breaking spaces
// - Removes the Excel text guard (="...")
func CleanCell(s string) string {
	s = strings.Trim(s, " \t\r\n\u00a0")

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}

// numericValue renders a valid finite numeric as a JSON number.
func numericValue(n pgtype.Numeric) (json.Number, error) {
	b, err := n.MarshalJSON()
	if err != nil {
		return "", err
	}
	return json.Number(b), nil
}

// excelSerial reports whether s is a plain number, as Excel stores dates.
func excelSerial(s string) (float64, bool) {
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 2958465 {
		return 0, false
	}
	return f, true
}

// convertCell converts one non-blank cleaned cell according to datastoreType.
func convertCell(datastoreType, raw string, date1904 bool) (any, error) {
	switch datastoreType {
	case "", "text":
		return ToPgText(raw).String, nil

	case "numeric", "money", "float", "float8":
		n := ToPgNumeric(raw)
		if !n.Valid {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return numericValue(n)

	case "int", "int4", "int8", "bigint":
		n := ToPgNumeric(raw)
		if !n.Valid {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		i, err := n.Int64Value()
		if err != nil || !i.Valid {
			return nil, fmt.Errorf("invalid whole number %q", raw)
		}
		return i.Int64, nil

	case "year":
		n := ToPgNumeric(raw)
		if !n.Valid {
			return nil, fmt.Errorf("invalid year %q", raw)
		}
		i, err := n.Int64Value()
		if err != nil || !i.Valid || i.Int64 < 1000 || i.Int64 > 9999 {
			return nil, fmt.Errorf("invalid year %q", raw)
		}
		return i.Int64, nil

	case "date":
		if serial, ok := excelSerial(raw); ok {
			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q", raw)
			}
			return t.Format(dateFormat), nil
		}
		d := ToPgDate(raw)
		if !d.Valid {
			return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", raw)
		}
		return d.Time.Format(dateFormat), nil

	case "timestamp":
		if serial, ok := excelSerial(raw); ok {
			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q", raw)
			}
			return t.Format(timestampFormat), nil
		}
		ts := ToPgTimestamp(raw)
		if !ts.Valid {
			return nil, fmt.Errorf("invalid timestamp %q", raw)
		}
		return ts.Time.Format(timestampFormat), nil

	case "boolean", "bool":
		b := ToPgBool(raw)
		if !b.Valid {
			return nil, fmt.Errorf("invalid boolean %q, use Y or N", raw)
		}
		return b.Bool, nil

	default:
		return raw, nil
	}
}
