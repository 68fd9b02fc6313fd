// Package history records uploads and bulk deletes for later review.
//
// Entries are stored in Postgres when a database is configured. Without one
// the Nop store is used and nothing is kept.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Action is the kind of operation recorded.
type Action string

const (
	ActionUpload     Action = "upload"
	ActionValidate   Action = "validate" // dry-run upload
	ActionBulkDelete Action = "bulk_delete"
	ActionTemplate   Action = "template"
)

// Entry is one recorded operation.
type Entry struct {
	ID           uuid.UUID
	Action       Action
	DatasetID    string
	DatasetType  string
	Organization string
	Sheets       []string
	Records      int
	Error        string // user-facing message when the operation was rejected
	ArchiveKey   string // stored copy of a rejected workbook
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// Succeeded reports whether the operation was accepted.
func (e Entry) Succeeded() bool { return e.Error == "" }

// Store persists entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, datasetID string, limit int) ([]Entry, error)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]Entry, error) { return nil, nil }

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres stores entries in the recombinant_history table.
type Postgres struct {
	db DBTX
}

// NewPostgres wraps a pool or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recombinant_history (
	id            uuid PRIMARY KEY,
	action        text NOT NULL,
	dataset_id    text NOT NULL,
	dataset_type  text,
	organization  text,
	sheets        text[] NOT NULL DEFAULT '{}',
	records       integer NOT NULL DEFAULT 0,
	error         text,
	archive_key   text,
	ip_address    text,
	user_agent    text,
	created_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS recombinant_history_dataset_idx
	ON recombinant_history (dataset_id, created_at DESC);
`

// Migrate creates the history table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

const insertSQL = `
INSERT INTO recombinant_history
	(id, action, dataset_id, dataset_type, organization, sheets, records, error, archive_key, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Record inserts e, assigning an id and timestamp when missing.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	sheets := e.Sheets
	if sheets == nil {
		sheets = []string{}
	}

	_, err := p.db.Exec(ctx, insertSQL,
		pgtype.UUID{Bytes: e.ID, Valid: true},
		string(e.Action),
		e.DatasetID,
		toPgText(e.DatasetType),
		toPgText(e.Organization),
		sheets,
		int32(e.Records),
		toPgText(e.Error),
		toPgText(e.ArchiveKey),
		toPgText(e.IPAddress),
		toPgText(e.UserAgent),
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

const recentSQL = `
SELECT id, action, dataset_id, dataset_type, organization, sheets, records, error, archive_key, ip_address, user_agent, created_at
FROM recombinant_history
WHERE dataset_id = $1
ORDER BY created_at DESC
LIMIT $2`

// Recent returns the latest entries of a dataset, newest first.
func (p *Postgres) Recent(ctx context.Context, datasetID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.Query(ctx, recentSQL, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id                                            pgtype.UUID
			action                                        string
			e                                             Entry
			datasetType, org, errText, archiveKey, ip, ua pgtype.Text
			records                                       int32
			created                                       pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &action, &e.DatasetID, &datasetType, &org, &e.Sheets, &records,
			&errText, &archiveKey, &ip, &ua, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.ID = id.Bytes
		e.Action = Action(action)
		e.DatasetType = datasetType.String
		e.Organization = org.String
		e.Records = int(records)
		e.Error = errText.String
		e.ArchiveKey = archiveKey.String
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		e.CreatedAt = created.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
