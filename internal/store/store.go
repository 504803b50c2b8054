package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/jobdigest/internal/model"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// jobColumns is the column list shared by every SELECT, in scan order.
const jobColumns = `id, source, external_id, title, company, location, description, url, posted_at_utc, created_at_utc`

// Open returns the store for driver. dsn is a file path for sqlite and a
// connection URL for postgres.
func Open(ctx context.Context, driver, dsn string, now func() time.Time) (model.JobStore, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteStore(dsn, now)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn, now)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var (
		j   model.Job
		ext sql.NullString
	)
	err := row.Scan(&j.ID, &j.Source, &ext, &j.Title, &j.Company, &j.Location,
		&j.Description, &j.URL, &j.PostedAtUTC, &j.CreatedAtUTC)
	if err != nil {
		return model.Job{}, err
	}
	j.ExternalID = ext.String
	return j, nil
}

// externalID maps "" to SQL NULL so jobs without a provider id never collide
// on the (source, external_id) index.
func externalID(j model.Job) sql.NullString {
	return sql.NullString{String: j.ExternalID, Valid: j.HasExternalID()}
}
