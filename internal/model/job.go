package model

import (
	"context"
)

// Job is the canonical record of a single listing, as normalized from the
// provider and as persisted by the store.
type Job struct {
	ID           int64  // surrogate key assigned by the store, 0 until persisted
	Source       string // provider name, e.g. "jsearch"
	ExternalID   string // provider-native id, "" when the provider omitted it
	Title        string
	Company      string
	Location     string
	Description  string
	URL          string // apply link
	PostedAtUTC  int64  // unix seconds, 0 = unknown
	CreatedAtUTC int64  // unix seconds, set once on first insert
}

// HasExternalID reports whether the provider supplied a native identifier.
func (j Job) HasExternalID() bool {
	return j.ExternalID != ""
}

// DedupKey identifies a job within a single run: the external id when present,
// otherwise the (title, company, location, url) tuple the store also treats as unique.
func (j Job) DedupKey() string {
	if j.HasExternalID() {
		return "id\x00" + j.ExternalID
	}
	return "tuple\x00" + j.Title + "\x00" + j.Company + "\x00" + j.Location + "\x00" + j.URL
}

// SearchQuery is one (role, location, page) cell of the query matrix.
type SearchQuery struct {
	Role     string
	Location string
	Page     int
}

// Digest is a rendered notification for the jobs in the current window.
type Digest struct {
	Subject string
	HTML    string
	Jobs    []Job
}

// JobSearcher runs a single search against the job provider.
type JobSearcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Job, error)
}

// JobStore persists jobs and enforces the uniqueness rules used for deduplication.
type JobStore interface {
	// InsertIfNew returns true when a new row was created and false when the
	// job collides with an existing row on either uniqueness constraint.
	InsertIfNew(ctx context.Context, job Job) (bool, error)
	// QuerySince returns jobs created at or after sinceUTC, newest posting first.
	QuerySince(ctx context.Context, sinceUTC int64, limit int) ([]Job, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Notifier delivers a rendered digest.
type Notifier interface {
	Notify(ctx context.Context, d Digest) error
}

// JobFilter decides whether a job matches the user's criteria.
type JobFilter interface {
	Match(job Job) bool
}
