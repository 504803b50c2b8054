package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobdigest/internal/digest"
	"github.com/amishk599/jobdigest/internal/model"
)

// RemoteLocation is appended to the search locations when remote jobs are included.
const RemoteLocation = "Remote"

// Settings is the slice of configuration a poll cycle needs.
type Settings struct {
	Roles           []string
	Locations       []string
	IncludeRemote   bool
	PagesPerQuery   int
	PolitenessDelay time.Duration
	Interval        time.Duration // digest window, also the run interval
	MaxResults      int
	Country         string
}

// QueryResult is the outcome of one provider call.
type QueryResult struct {
	Query model.SearchQuery
	Jobs  []model.Job
	Err   error
}

// PersistResult tallies one batch of InsertIfNew calls.
type PersistResult struct {
	Inserted   int
	Duplicates int
	Failed     int
}

// RunReport summarizes one poll cycle.
type RunReport struct {
	RunID         string
	Queries       int
	FailedQueries int
	Fetched       int
	Matched       int
	Unique        int
	PersistResult
	DigestSize int
	Notified   bool
	NotifyErr  error
	Duration   time.Duration
}

// Poller owns the full cycle: fetch → filter → dedup → persist → digest → notify.
type Poller struct {
	searcher model.JobSearcher
	filter   model.JobFilter
	store    model.JobStore
	renderer *digest.Renderer
	notifier model.Notifier
	settings Settings
	now      func() time.Time
	logger   *slog.Logger
}

// NewPoller creates a poller wired with all its dependencies. now is the
// clock for the digest window; nil means time.Now.
func NewPoller(
	searcher model.JobSearcher,
	filter model.JobFilter,
	store model.JobStore,
	renderer *digest.Renderer,
	notifier model.Notifier,
	settings Settings,
	now func() time.Time,
	logger *slog.Logger,
) *Poller {
	if now == nil {
		now = time.Now
	}
	return &Poller{
		searcher: searcher,
		filter:   filter,
		store:    store,
		renderer: renderer,
		notifier: notifier,
		settings: settings,
		now:      now,
		logger:   logger,
	}
}

// Locations returns the configured locations plus "Remote" when remote jobs
// are included and it is not already listed.
func Locations(s Settings) []string {
	locs := slices.Clone(s.Locations)
	if s.IncludeRemote && !slices.Contains(locs, RemoteLocation) {
		locs = append(locs, RemoteLocation)
	}
	return locs
}

// Queries expands settings into the role × location × page matrix in the
// order the poller issues them.
func Queries(s Settings) []model.SearchQuery {
	var out []model.SearchQuery
	for _, role := range s.Roles {
		for _, loc := range Locations(s) {
			for page := 1; page <= s.PagesPerQuery; page++ {
				out = append(out, model.SearchQuery{Role: role, Location: loc, Page: page})
			}
		}
	}
	return out
}

// Poll runs one cycle. Per-query and per-record failures are logged and
// counted in the report; the returned error is reserved for cancellation and
// for failing to read the digest window.
func (p *Poller) Poll(ctx context.Context) (report RunReport, err error) {
	start := time.Now()
	report.RunID = uuid.NewString()
	logger := p.logger.With("run_id", report.RunID)
	defer func() { report.Duration = time.Since(start) }()

	logger.Info("poll cycle started")

	results, err := p.fetch(ctx, logger)
	report.Queries = len(results)
	var fetched []model.Job
	for _, r := range results {
		if r.Err != nil {
			report.FailedQueries++
			continue
		}
		fetched = append(fetched, r.Jobs...)
	}
	report.Fetched = len(fetched)
	if err != nil {
		return report, err
	}

	var matched []model.Job
	for _, job := range fetched {
		if p.filter.Match(job) {
			matched = append(matched, job)
		}
	}
	report.Matched = len(matched)

	unique := Dedup(matched)
	report.Unique = len(unique)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.PersistResult = p.persist(ctx, unique, logger)
	logger.Info("persisted jobs",
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	since := p.now().Add(-p.settings.Interval).Unix()
	window, err := p.store.QuerySince(ctx, since, p.settings.MaxResults)
	if err != nil {
		return report, fmt.Errorf("loading digest window: %w", err)
	}
	report.DigestSize = len(window)

	if len(window) == 0 {
		logger.Info("no matching jobs found this cycle")
	} else {
		d := p.renderer.Build(window, p.settings.Country, p.settings.Interval)
		if err := p.notifier.Notify(ctx, d); err != nil {
			report.NotifyErr = err
			logger.Error("sending digest failed", "jobs", len(window), "error", err)
		} else {
			report.Notified = true
			logger.Info("digest sent", "jobs", len(window), "subject", d.Subject)
		}
	}

	logger.Info("poll cycle complete",
		"queries", report.Queries,
		"failed_queries", report.FailedQueries,
		"fetched", report.Fetched,
		"matched", report.Matched,
		"unique", report.Unique,
		"inserted", report.Inserted,
		"digest", report.DigestSize,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

// fetch issues every query. A failed query is logged and recorded in its
// QueryResult; only cancellation stops the loop early.
func (p *Poller) fetch(ctx context.Context, logger *slog.Logger) ([]QueryResult, error) {
	var results []QueryResult
	for _, role := range p.settings.Roles {
		for _, loc := range Locations(p.settings) {
			for page := 1; page <= p.settings.PagesPerQuery; page++ {
				if err := ctx.Err(); err != nil {
					return results, err
				}
				q := model.SearchQuery{Role: role, Location: loc, Page: page}
				jobs, err := p.searcher.Search(ctx, q)
				results = append(results, QueryResult{Query: q, Jobs: jobs, Err: err})
				if err != nil {
					logQueryError(logger, q, err)
					continue
				}
				logger.Debug("query done", "role", role, "location", loc, "page", page, "jobs", len(jobs))
			}
			if err := sleep(ctx, p.settings.PolitenessDelay); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func logQueryError(logger *slog.Logger, q model.SearchQuery, err error) {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn("HTTP error", "role", q.Role, "location", q.Location, "page", q.Page,
			"status", httpErr.StatusCode, "error", err)
		return
	}
	logger.Warn("query failed", "role", q.Role, "location", q.Location, "page", q.Page, "error", err)
}

func (p *Poller) persist(ctx context.Context, jobs []model.Job, logger *slog.Logger) PersistResult {
	var res PersistResult
	for _, job := range jobs {
		ok, err := p.store.InsertIfNew(ctx, job)
		switch {
		case err != nil:
			res.Failed++
			logger.Error("storing job failed", "title", job.Title, "company", job.Company, "error", err)
		case ok:
			res.Inserted++
		default:
			res.Duplicates++
		}
	}
	return res
}

// Dedup collapses jobs sharing a DedupKey. Keys keep the position of their
// first occurrence while the last occurrence supplies the value.
func Dedup(jobs []model.Job) []model.Job {
	index := make(map[string]int, len(jobs))
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		key := j.DedupKey()
		if i, ok := index[key]; ok {
			out[i] = j
			continue
		}
		index[key] = len(out)
		out = append(out, j)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
