package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/schema"
	"github.com/JonMunkholm/recombinant/internal/xls"
)

func readSheets(t *testing.T, body []byte) map[string]xls.Sheet {
	t.Helper()
	r, err := xls.Open(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("xls.Open() error = %v", err)
	}
	defer r.Close()

	sheets := make(map[string]xls.Sheet)
	for r.Next() {
		sh := r.Sheet()
		sheets[sh.Name] = sh
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	return sheets
}

func TestTemplate(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHistory{}
	s := newTestService(t, api, Options{History: h})

	dl, err := s.Template(context.Background(), TemplateRequest{DatasetType: "grants", Lang: "fr", OwnerOrg: "tbs-sct"})
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}
	if dl.Filename != "tbs-sct_fr_grants.xlsx" || dl.ContentType != ContentTypeXLSX {
		t.Errorf("download = %s %s", dl.Filename, dl.ContentType)
	}

	sheets := readSheets(t, dl.Body)
	grants, ok := sheets["grants"]
	if !ok {
		t.Fatalf("sheets = %v", sheets)
	}
	if grants.Organization != "tbs-sct" || len(grants.Rows) != 0 {
		t.Errorf("grants sheet = %+v", grants)
	}
	if strings.Join(grants.Columns, ",") != strings.Join(grantsColumns(), ",") {
		t.Errorf("columns = %v", grants.Columns)
	}
	if _, ok := sheets["nil"]; !ok {
		t.Error("nil sheet missing")
	}

	if len(h.entries) != 1 || h.entries[0].Action != history.ActionTemplate {
		t.Errorf("history = %+v", h.entries)
	}
}

func TestTemplateUnknownLanguage(t *testing.T) {
	s := newTestService(t, newFakeAPI(), Options{})

	_, err := s.Template(context.Background(), TemplateRequest{DatasetType: "grants", Lang: "de", OwnerOrg: "tbs-sct"})
	if !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("error = %v, want schema.ErrNotFound", err)
	}
}

func TestTemplateWithSelection(t *testing.T) {
	api := newFakeAPI()
	full := func(ref, kind string) map[string]any {
		return map[string]any{
			"ref_number": ref, "agreement_type": kind, "province": "ON",
			"value": json.Number("10"), "start_date": "2024-01-15", "internal": nil,
		}
	}
	api.tables["res-grants"] = []map[string]any{full("A", "G"), full("B", "C"), full("E", "G")}
	s := newTestService(t, api, Options{})

	dl, err := s.Template(context.Background(), TemplateRequest{
		DatasetType: "grants",
		Lang:        "en",
		OwnerOrg:    "tbs-sct",
		Selection:   &Selection{ResourceName: "grants", Keys: []string{"B", "E"}},
	})
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}

	rows := readSheets(t, dl.Body)["grants"].Rows
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Number != xls.DataStartRow || rows[0].Cells[0] != "B" || rows[1].Cells[0] != "E" {
		t.Errorf("rows = %+v", rows)
	}

	_, err = s.Template(context.Background(), TemplateRequest{
		DatasetType: "grants",
		Lang:        "en",
		OwnerOrg:    "tbs-sct",
		Selection:   &Selection{ResourceName: "contracts", Keys: []string{"B"}},
	})
	if !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("unknown resource error = %v", err)
	}
}

func TestDataDictionary(t *testing.T) {
	s := newTestService(t, newFakeAPI(), Options{})

	dl, err := s.DataDictionary(context.Background(), "grants", "xx")
	if err != nil {
		t.Fatalf("DataDictionary() error = %v", err)
	}
	if dl.Filename != "grants_en_dictionary.xlsx" {
		t.Errorf("Filename = %q", dl.Filename)
	}
	if len(dl.Body) == 0 {
		t.Error("empty workbook")
	}

	if _, err := s.DataDictionary(context.Background(), "contracts", "en"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("unknown type error = %v", err)
	}
}
