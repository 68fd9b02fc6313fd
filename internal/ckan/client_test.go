package ckan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// actionServer answers every action with the handler registered for it.
func actionServer(t *testing.T, handlers map[string]func(params map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Path[len("/api/3/action/"):]
		h, ok := handlers[action]
		if !ok {
			t.Errorf("unexpected action %q", action)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var params map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &params); err != nil {
			t.Errorf("%s: bad params: %v", action, err)
		}
		params["_auth"] = r.Header.Get("Authorization")
		status, resp := h(params)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecombinantShow(t *testing.T) {
	srv := actionServer(t, map[string]func(map[string]any) (int, string){
		"recombinant_show": func(p map[string]any) (int, string) {
			if p["dataset_type"] != "grants" || p["owner_org"] != "tbs-sct" {
				t.Errorf("params = %v", p)
			}
			return 200, `{"success": true, "result": {
				"id": "abc", "dataset_type": "grants", "owner_org": "tbs-sct",
				"metadata_correct": true, "all_correct": false,
				"resources": [{"id": "r1", "name": "grants", "datastore_rows": 12, "datastore_correct": false, "metadata_correct": true}]
			}}`
		},
	})

	c := New(srv.URL)
	d, err := c.RecombinantShow(context.Background(), "grants", "tbs-sct")
	if err != nil {
		t.Fatalf("RecombinantShow() error = %v", err)
	}
	if d.ID != "abc" || d.AllCorrect || !d.MetadataCorrect {
		t.Errorf("dataset = %+v", d)
	}
	if d.DatastoreCorrect() {
		t.Error("DatastoreCorrect() = true, want false")
	}
	r, ok := d.Resource("grants")
	if !ok || r.DatastoreRows != 12 {
		t.Errorf("Resource(grants) = %+v, %v", r, ok)
	}
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{
			name:     "not found",
			status:   404,
			body:     `{"success": false, "error": {"__type": "Not Found Error", "message": "Not found"}}`,
			sentinel: ErrNotFound,
		},
		{
			name:     "not authorized",
			status:   403,
			body:     `{"success": false, "error": {"__type": "Authorization Error", "message": "Access denied"}}`,
			sentinel: ErrNotAuthorized,
		},
		{
			name:     "validation",
			status:   409,
			body:     `{"success": false, "error": {"__type": "Validation Error", "records": ["bad"], "_records_row": 3}}`,
			sentinel: ErrValidation,
		},
		{
			name:     "type from status",
			status:   404,
			body:     `{"success": false, "error": {"message": "gone"}}`,
			sentinel: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := actionServer(t, map[string]func(map[string]any) (int, string){
				"resource_show": func(map[string]any) (int, string) { return tt.status, tt.body },
			})
			_, err := New(srv.URL).ResourceShow(context.Background(), "x")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("ResourceShow() error = %v, want %v", err, tt.sentinel)
			}
			ce, ok := AsError(err)
			if !ok {
				t.Fatal("AsError() = false")
			}
			if ce.Status != tt.status {
				t.Errorf("Status = %d, want %d", ce.Status, tt.status)
			}
		})
	}
}

func TestValidationDetails(t *testing.T) {
	srv := actionServer(t, map[string]func(map[string]any) (int, string){
		"datastore_upsert": func(p map[string]any) (int, string) {
			if p["method"] != "insert" || p["dry_run"] != true {
				t.Errorf("params = %v", p)
			}
			return 409, `{"success": false, "error": {"__type": "Validation Error", "records": ["invalid input syntax"], "_records_row": 2}}`
		},
	})

	err := New(srv.URL).DatastoreUpsert(context.Background(), UpsertParams{
		ResourceID: "r1",
		Method:     MethodInsert,
		Records:    []map[string]any{{"a": 1}},
		DryRun:     true,
	})
	ce, ok := AsError(err)
	if !ok {
		t.Fatalf("error = %v, want *Error", err)
	}
	var row int
	if !ce.Detail("_records_row", &row) || row != 2 {
		t.Errorf("_records_row = %d", row)
	}
	var records []string
	if !ce.Detail("records", &records) || records[0] != "invalid input syntax" {
		t.Errorf("records = %v", records)
	}
	if ce.Detail("info", &records) {
		t.Error("Detail(info) = true for absent key")
	}
}

func TestTokenFromContext(t *testing.T) {
	var got []string
	srv := actionServer(t, map[string]func(map[string]any) (int, string){
		"organization_list": func(p map[string]any) (int, string) {
			got = append(got, p["_auth"].(string))
			return 200, `{"success": true, "result": ["a", "b"]}`
		},
	})

	c := New(srv.URL, WithAPIKey("site-key"))
	if _, err := c.OrganizationList(context.Background()); err != nil {
		t.Fatal(err)
	}
	names, err := c.OrganizationList(WithToken(context.Background(), "user-token"))
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("OrganizationList() = %v", names)
	}
	if got[0] != "site-key" || got[1] != "user-token" {
		t.Errorf("Authorization headers = %v", got)
	}
}

func TestSearchKeepsNumbers(t *testing.T) {
	srv := actionServer(t, map[string]func(map[string]any) (int, string){
		"datastore_search": func(p map[string]any) (int, string) {
			if p["limit"].(float64) != 2 {
				t.Errorf("limit = %v", p["limit"])
			}
			return 200, `{"success": true, "result": {"records": [{"amount": 12345678901234567890}], "total": 1}}`
		},
	})

	res, err := New(srv.URL).DatastoreSearch(context.Background(), SearchParams{ResourceID: "r", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	n, ok := res.Records[0]["amount"].(json.Number)
	if !ok || n.String() != "12345678901234567890" {
		t.Errorf("amount = %#v, want json.Number", res.Records[0]["amount"])
	}
}
