package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/recombinant/internal/schema"
	"github.com/JonMunkholm/recombinant/internal/xls"
)

// Record is one normalized data row ready for the datastore.
type Record struct {
	Row    int            // source worksheet row
	Values map[string]any // datastore id -> value
	Key    []string       // primary key values in key order
}

// Normalize converts worksheet rows into records. Cells are matched to
// fields by position. The first failing cell stops the pass and is reported
// as a *RowError citing its worksheet row.
//
// Blank rows are skipped. Blank cells become nil, except primary key cells
// which become "" so that the key can still be used as a filter. A row whose
// key cells are all blank while other cells hold data is rejected.
func Normalize(sheetName string, rows []xls.Row, fields []schema.Field, pk []string, policy map[string]schema.ChoicePolicy, date1904 bool) ([]Record, error) {
	records := make([]Record, 0, len(rows))

	for _, row := range rows {
		values := make(map[string]any, len(fields))
		filled := false

		for i, f := range fields {
			raw := ""
			if i < len(row.Cells) {
				raw = CleanCell(row.Cells[i])
			}
			if raw == "" {
				if slices.Contains(pk, f.DatastoreID) {
					values[f.DatastoreID] = ""
				} else {
					values[f.DatastoreID] = nil
				}
				continue
			}
			filled = true

			v, err := normalizeCell(f, raw, policy[f.DatastoreID], date1904)
			if err != nil {
				return nil, &RowError{
					Sheet:   sheetName,
					Row:     row.Number,
					Field:   f.DatastoreID,
					Value:   raw,
					Message: err.Error(),
				}
			}
			values[f.DatastoreID] = v
		}

		if !filled {
			continue
		}

		key := make([]string, len(pk))
		blankKey := len(pk) > 0
		for i, id := range pk {
			key[i] = keyString(values[id])
			if key[i] != "" {
				blankKey = false
			}
		}
		if blankKey {
			return nil, &RowError{
				Sheet:   sheetName,
				Row:     row.Number,
				Message: fmt.Sprintf("primary key (%s) must not be blank", strings.Join(pk, ", ")),
			}
		}

		records = append(records, Record{Row: row.Number, Values: values, Key: key})
	}

	return records, nil
}

func normalizeCell(f schema.Field, raw string, policy schema.ChoicePolicy, date1904 bool) (any, error) {
	if f.DatastoreType == schema.TypeTextList {
		sep := ","
		if policy == schema.ChoiceFullText {
			sep = "\n"
		}
		var items []string
		for _, part := range strings.Split(raw, sep) {
			part = CleanCell(part)
			if part == "" {
				continue
			}
			if policy != schema.ChoiceNone {
				key, err := resolveChoice(f.Choices, part, policy)
				if err != nil {
					return nil, err
				}
				part = key
			}
			items = append(items, part)
		}
		return items, nil
	}

	if policy != schema.ChoiceNone {
		key, err := resolveChoice(f.Choices, raw, policy)
		if err != nil {
			return nil, err
		}
		raw = key
	}
	return convertCell(f.DatastoreType, raw, date1904)
}

// resolveChoice maps a cell to a choice key. Strict matching requires the
// key itself. Full-text matching also accepts "key: label" as written by
// the template drop-downs, or any case-insensitive part of a label; the
// first declared choice wins.
func resolveChoice(choices schema.Choices, v string, policy schema.ChoicePolicy) (string, error) {
	for _, c := range choices {
		if c.Key == v {
			return c.Key, nil
		}
	}

	if policy == schema.ChoiceFullText {
		if k, _, ok := strings.Cut(v, ":"); ok {
			k = strings.TrimSpace(k)
			for _, c := range choices {
				if c.Key == k {
					return c.Key, nil
				}
			}
		}
		for _, c := range choices {
			if c.Label.Matches(v) {
				return c.Key, nil
			}
		}
	}

	return "", fmt.Errorf("invalid choice %q", v)
}

func keyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
