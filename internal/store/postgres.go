package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/jobdigest/internal/model"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id             BIGSERIAL PRIMARY KEY,
		source         TEXT   NOT NULL,
		external_id    TEXT,
		title          TEXT   NOT NULL DEFAULT '',
		company        TEXT   NOT NULL DEFAULT '',
		location       TEXT   NOT NULL DEFAULT '',
		description    TEXT   NOT NULL DEFAULT '',
		url            TEXT   NOT NULL DEFAULT '',
		posted_at_utc  BIGINT NOT NULL DEFAULT 0,
		created_at_utc BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_source_external ON jobs(source, external_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_fallback ON jobs(title, company, location, url)`,
	`CREATE INDEX IF NOT EXISTS ix_jobs_created_at ON jobs(created_at_utc)`,
}

// PostgresStore is the shared-database alternative to SQLiteStore, for
// deployments that run the poller on more than one host.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to databaseURL, verifies the connection and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string, now func() time.Time) (*PostgresStore, error) {
	if now == nil {
		now = time.Now
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating jobs schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool, now: now}, nil
}

// InsertIfNew inserts job unless either uniqueness constraint already holds a
// matching row. It reports whether a row was created.
func (s *PostgresStore) InsertIfNew(ctx context.Context, job model.Job) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs
			(source, external_id, title, company, location, description, url, posted_at_utc, created_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		job.Source, externalID(job), job.Title, job.Company, job.Location,
		job.Description, job.URL, job.PostedAtUTC, s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting job %q: %w", job.Title, err)
	}
	return tag.RowsAffected() == 1, nil
}

// QuerySince returns jobs created at or after sinceUTC, newest postings first.
// limit <= 0 returns every match.
func (s *PostgresStore) QuerySince(ctx context.Context, sinceUTC int64, limit int) ([]model.Job, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		WHERE created_at_utc >= $1
		ORDER BY posted_at_utc DESC, id DESC
		LIMIT $2`, sinceUTC, lim)
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
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM jobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
