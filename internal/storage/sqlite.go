package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/logfile"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   TEXT    NOT NULL,
    message     TEXT    NOT NULL,
    success     INTEGER NOT NULL CHECK(success IN (0, 1)),
    archived_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp DESC);
`

// Entry is an archived log record.
type Entry struct {
	ID         int64
	Timestamp  string
	Message    string
	Success    bool
	ArchivedAt time.Time
}

// Record returns the log record the entry was archived from.
func (e Entry) Record() logfile.Record {
	return logfile.Record{Timestamp: e.Timestamp, Message: e.Message, Success: e.Success}
}

// Time parses the record timestamp. It falls back to ArchivedAt when the
// timestamp is not in the log file layout.
func (e Entry) Time() time.Time {
	t, err := time.ParseInLocation(checker.TimestampLayout, e.Timestamp, time.UTC)
	if err != nil {
		return e.ArchivedAt
	}
	return t
}

// Summary aggregates archived records.
type Summary struct {
	Total     int     `json:"total"`
	Successes int     `json:"successes"`
	Percent   float64 `json:"success_percent"`
}

// DB wraps a SQLite database holding drained log records.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertRecord archives a drained record.
func (d *DB) InsertRecord(ctx context.Context, r logfile.Record) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO records (timestamp, message, success, archived_at) VALUES (?, ?, ?, ?)`,
		r.Timestamp,
		r.Message,
		r.Success,
		d.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archiving record %q: %w", r.Timestamp, err)
	}
	return nil
}

// Show archives r. It lets the archive be used as a display sink.
func (d *DB) Show(ctx context.Context, r logfile.Record) error {
	return d.InsertRecord(ctx, r)
}

// Latest returns the most recently archived record, or nil if none.
func (d *DB) Latest(ctx context.Context) (*Entry, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, timestamp, message, success, archived_at FROM records ORDER BY id DESC LIMIT 1`,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest record: %w", err)
	}
	return e, nil
}

// Recent returns archived records, newest first, plus the total count.
func (d *DB) Recent(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting records: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, timestamp, message, success, archived_at FROM records ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Summarize counts the last n archived records and their successes. n <= 0
// covers the whole archive.
func (d *DB) Summarize(ctx context.Context, last int) (Summary, error) {
	if last <= 0 {
		last = -1
	}
	var s Summary
	var successes sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(success)
		FROM (
			SELECT success FROM records ORDER BY id DESC LIMIT ?
		)
	`, last).Scan(&s.Total, &successes)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing records: %w", err)
	}
	s.Successes = int(successes.Int64)
	if s.Total > 0 {
		s.Percent = float64(s.Successes) / float64(s.Total) * 100
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var archivedAt string
	err := row.Scan(&e.ID, &e.Timestamp, &e.Message, &e.Success, &archivedAt)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, archivedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing archived_at %q: %w", archivedAt, err)
	}
	e.ArchivedAt = t
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}
	return entries, nil
}
