package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobdigest/internal/model"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		source         TEXT    NOT NULL,
		external_id    TEXT,
		title          TEXT    NOT NULL DEFAULT '',
		company        TEXT    NOT NULL DEFAULT '',
		location       TEXT    NOT NULL DEFAULT '',
		description    TEXT    NOT NULL DEFAULT '',
		url            TEXT    NOT NULL DEFAULT '',
		posted_at_utc  INTEGER NOT NULL DEFAULT 0,
		created_at_utc INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_source_external ON jobs(source, external_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_fallback ON jobs(title, company, location, url)`,
	`CREATE INDEX IF NOT EXISTS ix_jobs_created_at ON jobs(created_at_utc)`,
}

// SQLiteStore persists matched jobs in a SQLite database. Duplicate
// suppression is left to the two unique indexes.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// jobs table and its indexes exist. now stamps created_at_utc; nil means time.Now.
func NewSQLiteStore(dbPath string, now func() time.Time) (*SQLiteStore, error) {
	if now == nil {
		now = time.Now
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer keeps INSERT OR IGNORE results consistent and lets
	// ":memory:" databases survive between calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating jobs schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: now}, nil
}

// InsertIfNew inserts job unless either uniqueness constraint already holds a
// matching row. It reports whether a row was created.
func (s *SQLiteStore) InsertIfNew(ctx context.Context, job model.Job) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobs
			(source, external_id, title, company, location, description, url, posted_at_utc, created_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Source, externalID(job), job.Title, job.Company, job.Location,
		job.Description, job.URL, job.PostedAtUTC, s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting job %q: %w", job.Title, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting job %q: rows affected: %w", job.Title, err)
	}
	return n == 1, nil
}

// QuerySince returns jobs created at or after sinceUTC, newest postings first.
// limit <= 0 returns every match.
func (s *SQLiteStore) QuerySince(ctx context.Context, sinceUTC int64, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		WHERE created_at_utc >= ?
		ORDER BY posted_at_utc DESC, id DESC
		LIMIT ?`, sinceUTC, limit)
	if err != nil {
		return nil, fmt.Errorf("querying jobs since %d: %w", sinceUTC, err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job rows: %w", err)
	}
	return jobs, nil
}

// Count returns the number of stored jobs.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
