package history

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// execRecorder captures Exec calls; Query and QueryRow are not used here.
type execRecorder struct {
	sql  []string
	args [][]any
	err  error
}

func (r *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (r *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (r *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestPostgresRecord(t *testing.T) {
	db := &execRecorder{}
	store := NewPostgres(db)

	err := store.Record(context.Background(), Entry{
		Action:       ActionUpload,
		DatasetID:    "grants-tbs-sct",
		Organization: "tbs-sct",
		Sheets:       []string{"grants"},
		Records:      3,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(db.args) != 1 {
		t.Fatalf("Exec called %d times, want 1", len(db.args))
	}

	args := db.args[0]
	if len(args) != 12 {
		t.Fatalf("got %d args, want 12", len(args))
	}
	id, ok := args[0].(pgtype.UUID)
	if !ok || !id.Valid || uuid.UUID(id.Bytes) == uuid.Nil {
		t.Errorf("id arg = %#v, want generated uuid", args[0])
	}
	if args[1] != "upload" {
		t.Errorf("action arg = %v", args[1])
	}
	if et, ok := args[7].(pgtype.Text); !ok || et.Valid {
		t.Errorf("error arg = %#v, want NULL text", args[7])
	}
	if ts, ok := args[11].(pgtype.Timestamptz); !ok || !ts.Valid {
		t.Errorf("created_at arg = %#v", args[11])
	}
}

func TestPostgresRecordError(t *testing.T) {
	db := &execRecorder{err: errors.New("connection refused")}
	err := NewPostgres(db).Record(context.Background(), Entry{Action: ActionBulkDelete, DatasetID: "d"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Record() error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := &execRecorder{}
	if err := NewPostgres(db).Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS recombinant_history") {
		t.Errorf("Migrate() sql = %q", db.sql[0])
	}
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	if err := s.Record(context.Background(), Entry{}); err != nil {
		t.Errorf("Nop.Record() error = %v", err)
	}
	entries, err := s.Recent(context.Background(), "d", 5)
	if err != nil || entries != nil {
		t.Errorf("Nop.Recent() = %v, %v", entries, err)
	}
}

func TestEntrySucceeded(t *testing.T) {
	tests := []struct {
		entry Entry
		want  bool
	}{
		{Entry{}, true},
		{Entry{Error: "The template uploaded is empty"}, false},
	}
	for _, tt := range tests {
		if got := tt.entry.Succeeded(); got != tt.want {
			t.Errorf("Succeeded() = %v, want %v", got, tt.want)
		}
	}
}
