package core

import (
	"fmt"
)

// BadInputData is an upload that cannot be accepted as submitted. Its
// message is written for the person who prepared the workbook.
type BadInputData struct {
	Message string
	Err     error // underlying cause, if any; never shown to the user
}

func (e *BadInputData) Error() string {
	return e.Message
}

func (e *BadInputData) Unwrap() error {
	return e.Err
}

func badInput(format string, args ...any) *BadInputData {
	return &BadInputData{Message: fmt.Sprintf(format, args...)}
}

// RowError is a cell or row that failed conversion.
type RowError struct {
	Sheet   string
	Row     int
	Field   string
	Value   string
	Message string
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("Sheet %s Row %d: %s", e.Sheet, e.Row, e.Message)
	}
	return fmt.Sprintf("Sheet %s Row %d: %s: %s", e.Sheet, e.Row, e.Field, e.Message)
}

// RecordResolutionError is a pasted bulk-delete line that did not resolve
// to exactly one record.
type RecordResolutionError struct {
	Line    string
	Message string
}

func (e *RecordResolutionError) Error() string {
	return e.Message
}
