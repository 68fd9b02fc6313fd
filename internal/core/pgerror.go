package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/recombinant/internal/ckan"
)

var (
	pgLineMarker = regexp.MustCompile(`\nLINE \d+:`)
	pgCaretLine  = regexp.MustCompile(`\n *\^\n$`)
)

// translateUpsertError turns a datastore validation failure into a
// BadInputData citing the worksheet row of the rejected record when the
// datastore reports its index. Other errors are returned unchanged.
func translateUpsertError(sheet string, records []Record, err error) error {
	ce, ok := ckan.AsError(err)
	if !ok || !ckan.IsValidation(ce) {
		return err
	}

	cause := datastoreCause(ce)

	var i int
	if ce.Detail("_records_row", &i) && i >= 0 && i < len(records) {
		return &BadInputData{
			Message: fmt.Sprintf("Sheet %s Row %d: %s", sheet, records[i].Row, cause),
			Err:     err,
		}
	}
	return &BadInputData{
		Message: fmt.Sprintf("Error while importing data: %s", cause),
		Err:     err,
	}
}

// datastoreCause extracts the reason text from a validation error: the
// database message under info.orig, else the first records error.
func datastoreCause(ce *ckan.Error) string {
	var info struct {
		Orig []string `json:"orig"`
	}
	if ce.Detail("info", &info) && len(info.Orig) > 0 {
		return cleanPgError(info.Orig[0])
	}

	var records []json.RawMessage
	if ce.Detail("records", &records) && len(records) > 0 {
		var text string
		if json.Unmarshal(records[0], &text) == nil {
			return cleanPgError(text)
		}
		var fields map[string]json.RawMessage
		if json.Unmarshal(records[0], &fields) == nil {
			return joinFieldErrors(fields)
		}
		return string(records[0])
	}

	return ce.Message
}

// cleanPgError drops Postgres position markers that mean nothing to the
// person reading the form.
func cleanPgError(s string) string {
	s = pgLineMarker.ReplaceAllString(s, "")
	s = pgCaretLine.ReplaceAllString(s, "")
	return s
}

// joinFieldErrors renders {"a": ["x", "y"], "b": ["z"]} as "a: x, y; b: z".
func joinFieldErrors(fields map[string]json.RawMessage) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var list []string
		if json.Unmarshal(fields[k], &list) != nil {
			var one string
			if json.Unmarshal(fields[k], &one) == nil {
				list = []string{one}
			} else {
				list = []string{string(fields[k])}
			}
		}
		parts = append(parts, k+": "+strings.Join(list, ", "))
	}
	return strings.Join(parts, "; ")
}
