package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Upload("grants", OutcomeAccepted, false)
	m.Upload("grants", OutcomeAccepted, false)
	m.Upload("grants", OutcomeRejected, true)
	m.RecordsSubmitted("grants", 12)
	m.RecordsSubmitted("grants", 0)
	m.RecordsDeleted("grants", 2)
	m.Download("template", "grants")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"accepted uploads", testutil.ToFloat64(m.uploads.WithLabelValues("grants", OutcomeAccepted, "false")), 2},
		{"rejected dry runs", testutil.ToFloat64(m.uploads.WithLabelValues("grants", OutcomeRejected, "true")), 1},
		{"records", testutil.ToFloat64(m.records.WithLabelValues("grants")), 12},
		{"deletes", testutil.ToFloat64(m.deletes.WithLabelValues("grants")), 2},
		{"downloads", testutil.ToFloat64(m.downloads.WithLabelValues("template", "grants")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Upload("grants", OutcomeError, false)
	m.RecordsSubmitted("grants", 1)
	m.RecordsDeleted("grants", 1)
	m.Download("schema", "grants")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil Handler() status = %d, want 404", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Download("dictionary", "contracts")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `recombinant_downloads_total{dataset_type="contracts",kind="dictionary"} 1`) {
		t.Errorf("exposition missing downloads counter:\n%s", body)
	}
}
