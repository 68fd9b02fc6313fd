package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/recombinant/internal/archive"
	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/xls"
)

func validationError(details map[string]string) error {
	e := &ckan.Error{Action: "datastore_upsert", Type: ckan.TypeValidation, Status: 409, Details: map[string]json.RawMessage{}}
	for k, v := range details {
		e.Details[k] = json.RawMessage(v)
	}
	return e
}

func wantBadInput(t *testing.T, err error, want string) {
	t.Helper()
	var bad *BadInputData
	if !errors.As(err, &bad) {
		t.Fatalf("error = %v (%T), want *BadInputData", err, err)
	}
	if bad.Message != want {
		t.Errorf("message =\n  %q\nwant\n  %q", bad.Message, want)
	}
}

func TestReconcileCitesSourceRow(t *testing.T) {
	api := newFakeAPI()
	api.upsertErr = func(ckan.UpsertParams) error {
		return validationError(map[string]string{
			"_records_row": "3",
			"info":         `{"orig": ["invalid input syntax for type numeric: \"abc\"\nLINE 1: SELECT\n       ^\n"]}`,
		})
	}
	s := newTestService(t, api, Options{})

	sheet := grantsSheet(
		row(2, "A"), row(3, "B"), row(5, "C"), row(6, "D"), row(8, "E"),
	)
	_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], &sliceSource{sheets: []xls.Sheet{sheet}}, false)

	wantBadInput(t, err, `Sheet grants Row 6: invalid input syntax for type numeric: "abc" SELECT`)
}

func TestReconcileCausesWithoutRow(t *testing.T) {
	tests := []struct {
		name    string
		details map[string]string
		want    string
	}{
		{
			name:    "records text",
			details: map[string]string{"records": `["row 1 is not a dict"]`},
			want:    "Error while importing data: row 1 is not a dict",
		},
		{
			name:    "records field map in key order",
			details: map[string]string{"records": `[{"value": ["must be a number"], "agreement_type": ["invalid", "required"]}]`},
			want:    "Error while importing data: agreement_type: invalid, required; value: must be a number",
		},
		{
			name:    "row index out of range",
			details: map[string]string{"_records_row": "9", "records": `["bad"]`},
			want:    "Error while importing data: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.upsertErr = func(ckan.UpsertParams) error { return validationError(tt.details) }
			s := newTestService(t, api, Options{})

			src := &sliceSource{sheets: []xls.Sheet{grantsSheet(row(4, "A"))}}
			_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
			wantBadInput(t, err, tt.want)
		})
	}
}

func TestReconcileRemoteErrorsPropagate(t *testing.T) {
	api := newFakeAPI()
	denied := &ckan.Error{Action: "datastore_upsert", Type: ckan.TypeNotAuthorized, Status: 403}
	api.upsertErr = func(ckan.UpsertParams) error { return denied }
	s := newTestService(t, api, Options{})

	src := &sliceSource{sheets: []xls.Sheet{grantsSheet(row(4, "A"))}}
	_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
	if !errors.Is(err, ckan.ErrNotAuthorized) {
		t.Fatalf("error = %v, want authorization error", err)
	}
	var bad *BadInputData
	if errors.As(err, &bad) {
		t.Error("authorization error wrapped as BadInputData")
	}
}

func TestReconcileRejections(t *testing.T) {
	outOfDate := "This template is out of date. Please try copying your data into the latest version of the template and uploading again. If this problem continues, send your Excel file to " + DefaultContactEmail + " so we may investigate."

	reordered := grantsColumns()
	reordered[0], reordered[1] = reordered[1], reordered[0]

	tests := []struct {
		name  string
		sheet func() xls.Sheet
		want  string
	}{
		{
			name: "unexpected sheet",
			sheet: func() xls.Sheet {
				s := grantsSheet(row(4, "A"))
				s.Name = "contracts"
				return s
			},
			want: `Invalid file for this data type. Sheet must be labeled "grants"/"nil", but you supplied a sheet labeled "contracts"`,
		},
		{
			name: "organization mismatch",
			sheet: func() xls.Sheet {
				s := grantsSheet(row(4, "A"))
				s.Organization = "dfo-mpo"
				return s
			},
			want: "Invalid sheet for this organization. Sheet must be labeled for tbs-sct, but you supplied a sheet for dfo-mpo",
		},
		{
			name: "reordered columns",
			sheet: func() xls.Sheet {
				s := grantsSheet(row(4, "A"))
				s.Columns = reordered
				return s
			},
			want: outOfDate,
		},
		{
			name: "missing column",
			sheet: func() xls.Sheet {
				s := grantsSheet(row(4, "A"))
				s.Columns = s.Columns[:4]
				return s
			},
			want: outOfDate,
		},
		{
			name: "extra column",
			sheet: func() xls.Sheet {
				s := grantsSheet(row(4, "A"))
				s.Columns = append(s.Columns, "created")
				return s
			},
			want: outOfDate,
		},
		{
			name:  "empty",
			sheet: func() xls.Sheet { return grantsSheet() },
			want:  "The template uploaded is empty",
		},
		{
			name:  "bad cell",
			sheet: func() xls.Sheet { return grantsSheet(row(4, "A", "X")) },
			want:  `Sheet grants Row 4: agreement_type: invalid choice "X"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			s := newTestService(t, api, Options{})

			src := &sliceSource{sheets: []xls.Sheet{tt.sheet()}}
			_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
			wantBadInput(t, err, tt.want)
			if len(api.upserts) != 0 {
				t.Errorf("upserts = %d, want none", len(api.upserts))
			}
		})
	}
}

func TestReconcileWritesBatches(t *testing.T) {
	api := newFakeAPI()
	s := newTestService(t, api, Options{})

	nilSheet := xls.Sheet{
		Name:         "nil",
		Organization: "tbs-sct",
		Columns:      []string{"quarter", "comments"},
		Rows:         []xls.Row{row(4, "Q1", "nothing")},
	}
	src := &sliceSource{sheets: []xls.Sheet{
		grantsSheet(row(4, "A", "G", "Ontario", "$1,000", "2024-01-15"), row(6, "B", "C", "QC: Quebec")),
		nilSheet,
	}}

	res, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Records != 3 || len(res.Sheets) != 2 {
		t.Fatalf("result = %+v", res)
	}

	// two dry runs, then two writes
	if len(api.upserts) != 4 {
		t.Fatalf("upserts = %d, want 4", len(api.upserts))
	}
	for i, want := range []bool{true, true, false, false} {
		if api.upserts[i].DryRun != want {
			t.Errorf("upsert %d DryRun = %v, want %v", i, api.upserts[i].DryRun, want)
		}
	}

	grants := api.upserts[2]
	if grants.ResourceID != "res-grants" || grants.Method != ckan.MethodUpsert {
		t.Errorf("grants upsert = %s %s", grants.ResourceID, grants.Method)
	}
	first := grants.Records[0]
	if first["province"] != "ON" || first["value"] != json.Number("1000") || first["start_date"] != "2024-01-15" {
		t.Errorf("first record = %v", first)
	}
	if first["internal"] != nil {
		t.Errorf("blank cell = %#v, want nil", first["internal"])
	}
	if api.upserts[3].Method != ckan.MethodInsert {
		t.Errorf("nil sheet method = %s, want insert", api.upserts[3].Method)
	}
}

func TestReconcileLaterSheetRejectedBeforeWrite(t *testing.T) {
	api := newFakeAPI()
	api.upsertErr = func(p ckan.UpsertParams) error {
		if p.ResourceID == "res-nil" {
			return validationError(map[string]string{"records": `["quarter is required"]`})
		}
		return nil
	}
	s := newTestService(t, api, Options{})

	src := &sliceSource{sheets: []xls.Sheet{
		grantsSheet(row(4, "A")),
		{Name: "nil", Organization: "tbs-sct", Columns: []string{"quarter", "comments"}, Rows: []xls.Row{row(4, "", "x")}},
	}}
	_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
	wantBadInput(t, err, "Error while importing data: quarter is required")

	for _, u := range api.upserts {
		if !u.DryRun {
			t.Errorf("committed %s before every sheet validated", u.ResourceID)
		}
	}
}

func TestReconcileDryRun(t *testing.T) {
	api := newFakeAPI()
	s := newTestService(t, api, Options{})

	src := &sliceSource{sheets: []xls.Sheet{grantsSheet(row(4, "A"))}}
	res, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun || len(api.upserts) != 1 || !api.upserts[0].DryRun {
		t.Errorf("upserts = %+v", api.upserts)
	}
}

func TestReconcileDecodeFailure(t *testing.T) {
	decodeErr := &xls.DecodeError{Sheet: "grants", Err: errors.New("corrupt xml")}

	t.Run("generic message", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestService(t, api, Options{ContactEmail: "help@example.org"})
		src := &sliceSource{err: decodeErr}

		_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
		var bad *BadInputData
		if !errors.As(err, &bad) || !strings.Contains(bad.Message, "help@example.org") {
			t.Fatalf("error = %v", err)
		}
		if strings.Contains(bad.Message, "corrupt xml") {
			t.Error("decode error leaked into user message")
		}
	})

	t.Run("debug returns raw error", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestService(t, api, Options{Debug: true})
		src := &sliceSource{err: decodeErr}

		_, err := s.Reconcile(context.Background(), api.packages["grants-tbs-sct"], src, false)
		if err != decodeErr {
			t.Errorf("error = %v, want raw decode error", err)
		}
	})
}

// buildUpload writes a filled grants template.
func buildUpload(t *testing.T, s *Service, org string, rows [][]any) []byte {
	t.Helper()
	geno, err := s.registry.Geno("grants")
	if err != nil {
		t.Fatal(err)
	}
	f, err := xls.BuildTemplate(geno, org, s.locale("en"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, xls.DataStartRow+i)
		if err := f.SetSheetRow("grants", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	data, err := xls.WriteTo(f)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestUploadWorkbook(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHistory{}
	s := newTestService(t, api, Options{History: h})

	data := buildUpload(t, s, "tbs-sct", [][]any{
		{"A", "G", "ON", 1500.5, "2024-02-01"},
		{"B", "C", "Quebec", "(20)", ""},
	})

	res, err := s.Upload(context.Background(), UploadRequest{
		DatasetID: "grants-tbs-sct",
		FileName:  "grants.xlsx",
		File:      bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Records != 2 || len(res.Sheets) != 1 || res.Sheets[0].Records != 2 {
		t.Fatalf("result = %+v", res)
	}

	got := api.upserts[len(api.upserts)-1].Records
	if got[0]["value"] != json.Number("1500.5") || got[1]["value"] != json.Number("-20") || got[1]["province"] != "QC" {
		t.Errorf("records = %v", got)
	}

	if len(h.entries) != 1 || h.entries[0].Action != history.ActionUpload || h.entries[0].Records != 2 || !h.entries[0].Succeeded() {
		t.Errorf("history = %+v", h.entries)
	}
}

func TestUploadWrongOrganization(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHistory{}
	s := newTestService(t, api, Options{History: h})

	data := buildUpload(t, s, "dfo-mpo", [][]any{{"A"}})
	_, err := s.Upload(context.Background(), UploadRequest{DatasetID: "grants-tbs-sct", File: bytes.NewReader(data), DryRun: true})
	wantBadInput(t, err, "Invalid sheet for this organization. Sheet must be labeled for tbs-sct, but you supplied a sheet for dfo-mpo")

	if len(h.entries) != 1 || h.entries[0].Action != history.ActionValidate || h.entries[0].Succeeded() {
		t.Errorf("history = %+v", h.entries)
	}
}

func TestUploadArchivesUnreadableWorkbook(t *testing.T) {
	api := newFakeAPI()
	store := archive.NewMemory()
	h := &recordingHistory{}
	s := newTestService(t, api, Options{Archive: store, History: h})

	_, err := s.Upload(context.Background(), UploadRequest{
		DatasetID: "grants-tbs-sct",
		FileName:  "broken.xlsx",
		File:      strings.NewReader("this is not a workbook"),
	})
	var bad *BadInputData
	if !errors.As(err, &bad) || !strings.HasPrefix(bad.Message, "The server encountered a problem processing the file uploaded.") {
		t.Fatalf("error = %v", err)
	}

	objs, err := store.List(context.Background(), "rejected/grants-tbs-sct/")
	if err != nil || len(objs) != 1 {
		t.Fatalf("archived = %v, %v", objs, err)
	}
	if h.entries[0].ArchiveKey != objs[0].Key {
		t.Errorf("history archive key = %q, want %q", h.entries[0].ArchiveKey, objs[0].Key)
	}
}

func TestUploadMissingFile(t *testing.T) {
	api := newFakeAPI()
	s := newTestService(t, api, Options{})

	_, err := s.Upload(context.Background(), UploadRequest{DatasetID: "grants-tbs-sct"})
	wantBadInput(t, err, "You must provide a valid file")

	_, err = s.Upload(context.Background(), UploadRequest{DatasetID: "missing", File: strings.NewReader("x")})
	if !ckan.IsNotFound(err) {
		t.Errorf("unknown dataset error = %v, want not found", err)
	}
}
