package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		logDebug      bool
		json          bool
	}{
		{level: "debug", format: "json", logDebug: true, json: true},
		{level: "INFO", format: "text"},
		{level: "warning", format: "JSON", json: true},
		{level: "bogus", format: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tt.level, tt.format)

			logger.Debug("debug line")
			if got := buf.Len() > 0; got != tt.logDebug {
				t.Errorf("debug written = %v, want %v", got, tt.logDebug)
			}

			buf.Reset()
			logger.Error("upload failed", "dataset", "grants-tbs-sct")
			if got := json.Valid(bytes.TrimSpace(buf.Bytes())); got != tt.json {
				t.Errorf("json output = %v, want %v: %s", got, tt.json, buf.String())
			}
			if !strings.Contains(buf.String(), "grants-tbs-sct") {
				t.Errorf("missing attribute: %s", buf.String())
			}
		})
	}
}

func TestFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	defer slog.SetDefault(prev)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "sheet", "grants").Info("sheet accepted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-42" || entry["sheet"] != "grants" {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	FromContext(context.Background()).Info("no request")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request_id: %s", buf.String())
	}
}
