// Package xls reads and writes recombinant Excel workbooks.
//
// Every worksheet of a template uses the same layout:
//
//	row 1  identity: A1 organization name, B1 dataset type, C1 sheet title
//	row 2  field labels
//	row 3  field ids (hidden)
//	row 4+ data
//
// Row numbers reported by this package are 1-based worksheet rows, the same
// numbers a user sees in Excel.
package xls

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Template layout rows.
const (
	IdentityRow  = 1
	LabelRow     = 2
	ColumnRow    = 3
	DataStartRow = 4
)

// Row is one data row of a worksheet.
type Row struct {
	Number int // 1-based worksheet row
	Cells  []string
}

// Sheet is one decoded worksheet.
type Sheet struct {
	Name         string
	Organization string
	DatasetType  string
	Title        string
	Columns      []string // field ids from the hidden row, trailing blanks trimmed
	Rows         []Row    // non-blank data rows in worksheet order
	Date1904     bool     // workbook uses the 1904 date epoch
}

// DecodeError reports a workbook that could not be read.
type DecodeError struct {
	Sheet string // empty when the workbook itself is unreadable
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("decode workbook: %v", e.Err)
	}
	return fmt.Sprintf("decode sheet %q: %v", e.Sheet, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SheetReader yields the worksheets of a workbook in order. It makes a
// single forward pass and cannot be restarted.
type SheetReader struct {
	f        *excelize.File
	names    []string
	next     int
	cur      Sheet
	err      error
	date1904 bool
}

// Open parses a workbook. Worksheets are decoded lazily by Next.
func Open(r io.Reader) (*SheetReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	props, err := f.GetWorkbookProps()
	if err != nil {
		_ = f.Close()
		return nil, &DecodeError{Err: err}
	}

	return &SheetReader{
		f:        f,
		names:    f.GetSheetList(),
		date1904: props.Date1904 != nil && *props.Date1904,
	}, nil
}

// Next decodes the next worksheet. It returns false when there are no more
// sheets or decoding failed; check Err to tell the two apart.
func (r *SheetReader) Next() bool {
	if r.err != nil || r.next >= len(r.names) {
		return false
	}
	name := r.names[r.next]
	r.next++

	sheet, err := r.readSheet(name)
	if err != nil {
		r.err = &DecodeError{Sheet: name, Err: err}
		return false
	}
	r.cur = sheet
	return true
}

// Sheet returns the worksheet decoded by the last successful Next.
func (r *SheetReader) Sheet() Sheet {
	return r.cur
}

// Err returns the first decode error.
func (r *SheetReader) Err() error {
	return r.err
}

// Close releases the workbook.
func (r *SheetReader) Close() error {
	return r.f.Close()
}

func (r *SheetReader) readSheet(name string) (Sheet, error) {
	sheet := Sheet{Name: name, Date1904: r.date1904}

	rows, err := r.f.Rows(name)
	if err != nil {
		return sheet, err
	}
	defer rows.Close()

	number := 0
	for rows.Next() {
		number++
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return sheet, fmt.Errorf("row %d: %w", number, err)
		}

		switch number {
		case IdentityRow:
			sheet.Organization = cellAt(cells, 0)
			sheet.DatasetType = cellAt(cells, 1)
			sheet.Title = cellAt(cells, 2)
		case LabelRow:
		case ColumnRow:
			sheet.Columns = trimTrailingBlank(cells)
		default:
			if isBlankRow(cells) {
				continue
			}
			sheet.Rows = append(sheet.Rows, Row{Number: number, Cells: cells})
		}
	}
	if err := rows.Error(); err != nil {
		return sheet, err
	}
	return sheet, nil
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

// trimTrailingBlank drops phantom header cells that editors leave behind
// when formatting extends past the last real column.
func trimTrailingBlank(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
