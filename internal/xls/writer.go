package xls

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/recombinant/internal/schema"
)

const (
	// templateRows is how far drop-down validation extends below the header.
	templateRows = 2000
	columnWidth  = 24
)

// Locale selects the language of generated labels.
type Locale struct {
	Lang      string
	Translate schema.Translator
}

func (l Locale) text(v schema.Localized) string {
	return v.In(l.Lang, l.Translate)
}

// BuildTemplate creates an upload template with one worksheet per resource
// of geno, stamped with the organization and dataset type so an upload can
// be checked against the dataset it targets.
func BuildTemplate(geno *schema.Geno, org string, lc Locale) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DFE8F1"}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, chromo := range geno.Resources {
		sheet := chromo.SheetName()
		if err := addSheet(f, i, sheet); err != nil {
			return nil, err
		}

		fields := chromo.ImportFields()
		labels := make([]any, len(fields))
		ids := make([]any, len(fields))
		for j, fld := range fields {
			labels[j] = lc.text(fld.Label)
			ids[j] = fld.DatastoreID
		}
		identity := []any{org, geno.DatasetType, lc.text(chromo.Title)}

		if err := setRow(f, sheet, IdentityRow, identity); err != nil {
			return nil, err
		}
		if err := setRow(f, sheet, LabelRow, labels); err != nil {
			return nil, err
		}
		if err := setRow(f, sheet, ColumnRow, ids); err != nil {
			return nil, err
		}
		if err := f.SetRowStyle(sheet, LabelRow, LabelRow, headerStyle); err != nil {
			return nil, fmt.Errorf("%s: style header: %w", sheet, err)
		}
		if err := f.SetRowVisible(sheet, ColumnRow, false); err != nil {
			return nil, fmt.Errorf("%s: hide id row: %w", sheet, err)
		}

		if len(fields) > 0 {
			last, err := excelize.ColumnNumberToName(len(fields))
			if err != nil {
				return nil, err
			}
			if err := f.SetColWidth(sheet, "A", last, columnWidth); err != nil {
				return nil, fmt.Errorf("%s: column width: %w", sheet, err)
			}
		}

		err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      DataStartRow - 1,
			TopLeftCell: fmt.Sprintf("A%d", DataStartRow),
			ActivePane:  "bottomLeft",
		})
		if err != nil {
			return nil, fmt.Errorf("%s: freeze header: %w", sheet, err)
		}

		if err := addChoiceValidation(f, sheet, fields); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func addChoiceValidation(f *excelize.File, sheet string, fields []schema.Field) error {
	for j, fld := range fields {
		if fld.ChoicePolicy() != schema.ChoiceStrict || fld.DatastoreType == schema.TypeTextList {
			continue
		}
		col, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return err
		}
		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s%d:%s%d", col, DataStartRow, col, templateRows)
		// Long lists exceed Excel's formula limit; those columns stay free text.
		if err := dv.SetDropList(fld.Choices.Keys()); err != nil {
			continue
		}
		if err := f.AddDataValidation(sheet, dv); err != nil {
			return fmt.Errorf("%s: validation for %s: %w", sheet, fld.DatastoreID, err)
		}
	}
	return nil
}

// BuildDataDictionary creates a reference workbook describing every field
// of geno. It has no data rows.
func BuildDataDictionary(geno *schema.Geno, lc Locale) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return nil, fmt.Errorf("create wrap style: %w", err)
	}

	for i, chromo := range geno.Resources {
		sheet := chromo.SheetName()
		if err := addSheet(f, i, sheet); err != nil {
			return nil, err
		}

		if err := setRow(f, sheet, 1, []any{"ID", "Label", "Obligation", "Type", "Choices"}); err != nil {
			return nil, err
		}
		if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return nil, fmt.Errorf("%s: style header: %w", sheet, err)
		}

		for j, fld := range chromo.Fields {
			row := []any{
				fld.DatastoreID,
				lc.text(fld.Label),
				chromo.Obligation(fld),
				fld.DatastoreType,
				choiceLines(fld.Choices, lc),
			}
			if err := setRow(f, sheet, j+2, row); err != nil {
				return nil, err
			}
		}
		if n := len(chromo.Fields); n > 0 {
			if err := f.SetRowStyle(sheet, 2, n+1, wrapStyle); err != nil {
				return nil, fmt.Errorf("%s: style rows: %w", sheet, err)
			}
		}
		if err := f.SetColWidth(sheet, "A", "E", columnWidth); err != nil {
			return nil, fmt.Errorf("%s: column width: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func choiceLines(choices schema.Choices, lc Locale) string {
	lines := make([]string, len(choices))
	for i, c := range choices {
		lines[i] = c.Key + ": " + lc.text(c.Label)
	}
	return strings.Join(lines, "\n")
}

// AppendRecords writes records as data rows below the last used row of the
// chromo's worksheet. Records missing any template column are skipped. It
// returns the number of rows written.
func AppendRecords(f *excelize.File, records []map[string]any, chromo *schema.Chromo) (int, error) {
	sheet := chromo.SheetName()
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return 0, fmt.Errorf("workbook has no sheet %q", sheet)
	}

	existing, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("%s: read rows: %w", sheet, err)
	}
	next := max(len(existing)+1, DataStartRow)

	columns := chromo.ImportColumns()
	written := 0
	for _, rec := range records {
		row := make([]any, len(columns))
		complete := true
		for i, col := range columns {
			v, ok := rec[col]
			if !ok {
				complete = false
				break
			}
			row[i] = cellValue(v)
		}
		if !complete {
			continue
		}
		if err := setRow(f, sheet, next, row); err != nil {
			return written, err
		}
		next++
		written++
	}
	return written, nil
}

// WriteTo serializes the workbook.
func WriteTo(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

func addSheet(f *excelize.File, i int, name string) error {
	if i == 0 {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet to %q: %w", name, err)
		}
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s: write row %d: %w", sheet, row, err)
	}
	return nil
}
