package poller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobdigest/internal/digest"
	"github.com/amishk599/jobdigest/internal/filter"
	"github.com/amishk599/jobdigest/internal/model"
	"github.com/amishk599/jobdigest/internal/notifier"
	"github.com/amishk599/jobdigest/internal/store"
)

// --- Mock/Fake Implementations ---

// fakeSearcher returns canned jobs for every query, or an error for the
// queries listed in fail.
type fakeSearcher struct {
	mu    sync.Mutex
	jobs  []model.Job
	fail  map[model.SearchQuery]error
	calls []model.SearchQuery
}

func (f *fakeSearcher) Search(_ context.Context, q model.SearchQuery) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if err := f.fail[q]; err != nil {
		return nil, err
	}
	return f.jobs, nil
}

// recordingNotifier records every digest it receives.
type recordingNotifier struct {
	digests []model.Digest
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, d model.Digest) error {
	n.digests = append(n.digests, d)
	return n.err
}

type acceptAllFilter struct{}

func (acceptAllFilter) Match(model.Job) bool { return true }

// flakyStore fails InsertIfNew for jobs whose title is in failTitles.
type flakyStore struct {
	model.JobStore
	failTitles map[string]bool
}

func (s *flakyStore) InsertIfNew(ctx context.Context, j model.Job) (bool, error) {
	if s.failTitles[j.Title] {
		return false, errors.New("disk I/O error")
	}
	return s.JobStore.InsertIfNew(ctx, j)
}

// --- Helpers ---

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseSettings() Settings {
	return Settings{
		Roles:         []string{"software engineer"},
		Locations:     []string{"India"},
		PagesPerQuery: 1,
		Interval:      2 * time.Hour,
		MaxResults:    80,
		Country:       "India",
	}
}

func newTestStore(t *testing.T, c *clock) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"), c.Now)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newMatcher(c *clock) *filter.KeywordMatcher {
	return filter.NewKeywordMatcher(
		[]string{"software engineer", "backend"},
		[]string{"python", "react"},
		[]string{"junior", "fresher"},
		6*time.Hour,
		c.Now,
	)
}

func makeJob(id, title, desc string, posted time.Time) model.Job {
	return model.Job{
		Source:      "jsearch",
		ExternalID:  id,
		Title:       title,
		Company:     "Acme",
		Location:    "Pune",
		Description: desc,
		URL:         "https://apply.example/" + id,
		PostedAtUTC: posted.Unix(),
	}
}

func newTestPoller(searcher model.JobSearcher, f model.JobFilter, s model.JobStore, n model.Notifier, settings Settings, c *clock, logger *slog.Logger) *Poller {
	return NewPoller(searcher, f, s, digest.NewRenderer("", logger), n, settings, c.Now, logger)
}

// --- Tests ---

func TestQueries_Order(t *testing.T) {
	s := Settings{
		Roles:         []string{"backend", "frontend"},
		Locations:     []string{"India", "Pune"},
		IncludeRemote: true,
		PagesPerQuery: 2,
	}

	qs := Queries(s)
	if len(qs) != 2*3*2 {
		t.Fatalf("expected 12 queries, got %d", len(qs))
	}
	want := []model.SearchQuery{
		{Role: "backend", Location: "India", Page: 1},
		{Role: "backend", Location: "India", Page: 2},
		{Role: "backend", Location: "Pune", Page: 1},
	}
	for i, w := range want {
		if qs[i] != w {
			t.Errorf("query[%d] = %+v, want %+v", i, qs[i], w)
		}
	}
	if last := qs[len(qs)-1]; last != (model.SearchQuery{Role: "frontend", Location: "Remote", Page: 2}) {
		t.Errorf("last query = %+v", last)
	}
}

func TestLocations_Remote(t *testing.T) {
	s := Settings{Locations: []string{"India", "Remote"}, IncludeRemote: true}
	if got := Locations(s); len(got) != 2 {
		t.Errorf("Remote must not be added twice: %v", got)
	}

	s = Settings{Locations: []string{"India"}, IncludeRemote: false}
	if got := Locations(s); len(got) != 1 {
		t.Errorf("Remote must not be added when excluded: %v", got)
	}

	base := []string{"India"}
	s = Settings{Locations: base, IncludeRemote: true}
	if got := Locations(s); len(got) != 2 || got[1] != "Remote" {
		t.Errorf("expected Remote appended: %v", got)
	}
	if len(base) != 1 {
		t.Error("Locations must not modify the configured slice")
	}
}

func TestDedup_FirstPositionLastValue(t *testing.T) {
	a1 := model.Job{ExternalID: "a", Title: "first a"}
	b := model.Job{ExternalID: "b", Title: "b"}
	a2 := model.Job{ExternalID: "a", Title: "second a"}
	t1 := model.Job{Title: "T", Company: "C", Location: "L", URL: "U", Description: "one"}
	t2 := model.Job{Title: "T", Company: "C", Location: "L", URL: "U", Description: "two"}

	got := Dedup([]model.Job{a1, b, a2, t1, t2})
	if len(got) != 3 {
		t.Fatalf("expected 3 unique jobs, got %d", len(got))
	}
	if got[0].Title != "second a" {
		t.Errorf("position 0 should hold the last 'a', got %q", got[0].Title)
	}
	if got[1].ExternalID != "b" {
		t.Errorf("position 1 = %+v", got[1])
	}
	if got[2].Description != "two" {
		t.Errorf("tuple key should keep the last value, got %q", got[2].Description)
	}
}

func TestPoll_DuplicateOfStoredRowSendsNothing(t *testing.T) {
	c := &clock{t: fixedNow.Add(-5 * time.Hour)}
	st := newTestStore(t, c)
	recent := fixedNow.Add(-time.Hour)

	keeper := makeJob("keep", "Junior Software Engineer", "Python, fresher welcome", recent)
	if ok, err := st.InsertIfNew(context.Background(), keeper); err != nil || !ok {
		t.Fatalf("seeding store: ok=%v err=%v", ok, err)
	}
	c.t = fixedNow

	searcher := &fakeSearcher{jobs: []model.Job{
		keeper,
		makeJob("analyst", "Data Analyst", "Excel", recent),
		makeJob("senior", "Software Engineer", "Python, 5 years experience", recent),
	}}
	n := &recordingNotifier{}
	p := newTestPoller(searcher, newMatcher(c), st, n, baseSettings(), c, discardLogger())

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.Fetched != 3 || report.Matched != 1 {
		t.Errorf("fetched/matched = %d/%d, want 3/1", report.Fetched, report.Matched)
	}
	if report.Inserted != 0 || report.Duplicates != 1 {
		t.Errorf("inserted/duplicates = %d/%d, want 0/1", report.Inserted, report.Duplicates)
	}
	if report.DigestSize != 0 || report.Notified {
		t.Errorf("expected empty window and no notification, got %+v", report)
	}
	if len(n.digests) != 0 {
		t.Errorf("notifier called %d times, want 0", len(n.digests))
	}
}

func TestPoll_UnconfiguredMailHostStillStores(t *testing.T) {
	c := &clock{t: fixedNow}
	st := newTestStore(t, c)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	mailer := notifier.NewMailNotifier(notifier.MailConfig{To: "me@example.com"}, logger)

	searcher := &fakeSearcher{jobs: []model.Job{
		makeJob("new-1", "Junior Backend Developer", "React and Python", fixedNow.Add(-30*time.Minute)),
	}}
	p := newTestPoller(searcher, newMatcher(c), st, mailer, baseSettings(), c, logger)

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.Inserted != 1 || report.DigestSize != 1 {
		t.Errorf("inserted/digest = %d/%d, want 1/1", report.Inserted, report.DigestSize)
	}
	if report.NotifyErr != nil {
		t.Errorf("unconfigured mail host must not be an error: %v", report.NotifyErr)
	}
	if !strings.Contains(logs.String(), "SMTP_HOST not configured") {
		t.Errorf("expected an error log about the mail host:\n%s", logs.String())
	}
	if n, _ := st.Count(context.Background()); n != 1 {
		t.Errorf("store count = %d, want 1", n)
	}
}

func TestPoll_DigestWindowAndSubject(t *testing.T) {
	c := &clock{t: fixedNow.Add(-3 * time.Hour)}
	st := newTestStore(t, c)
	old := makeJob("old", "Old", "", fixedNow.Add(-4*time.Hour))
	if _, err := st.InsertIfNew(context.Background(), old); err != nil {
		t.Fatal(err)
	}
	c.t = fixedNow

	searcher := &fakeSearcher{jobs: []model.Job{
		makeJob("x", "X", "", fixedNow.Add(-2*time.Hour)),
		makeJob("y", "Y", "", fixedNow.Add(-time.Hour)),
	}}
	n := &recordingNotifier{}
	p := newTestPoller(searcher, acceptAllFilter{}, st, n, baseSettings(), c, discardLogger())

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !report.Notified || len(n.digests) != 1 {
		t.Fatalf("expected one digest, report=%+v", report)
	}
	d := n.digests[0]
	if d.Subject != "2 Fresher/0-6mo India Tech Jobs (last 2h)" {
		t.Errorf("subject = %q", d.Subject)
	}
	if len(d.Jobs) != 2 || d.Jobs[0].ExternalID != "y" || d.Jobs[1].ExternalID != "x" {
		t.Errorf("digest should hold y then x, got %+v", d.Jobs)
	}
	if !strings.Contains(d.HTML, "<td>Y</td>") {
		t.Errorf("digest html missing row: %s", d.HTML)
	}
}

func TestPoll_MaxResultsCapsDigest(t *testing.T) {
	c := &clock{t: fixedNow}
	st := newTestStore(t, c)

	var jobs []model.Job
	for _, id := range []string{"a", "b", "c", "d"} {
		jobs = append(jobs, makeJob(id, "Job "+id, "", fixedNow))
	}
	n := &recordingNotifier{}
	settings := baseSettings()
	settings.MaxResults = 3
	p := newTestPoller(&fakeSearcher{jobs: jobs}, acceptAllFilter{}, st, n, settings, c, discardLogger())

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.Inserted != 4 || report.DigestSize != 3 {
		t.Errorf("inserted/digest = %d/%d, want 4/3", report.Inserted, report.DigestSize)
	}
}

func TestPoll_FailedQueriesDoNotAbort(t *testing.T) {
	c := &clock{t: fixedNow}
	settings := baseSettings()
	settings.Locations = []string{"India", "Pune"}
	settings.PagesPerQuery = 2

	searcher := &fakeSearcher{
		jobs: []model.Job{makeJob("j1", "Dev", "", fixedNow)},
		fail: map[model.SearchQuery]error{
			{Role: "software engineer", Location: "India", Page: 2}: &model.HTTPError{StatusCode: 500},
			{Role: "software engineer", Location: "Pune", Page: 1}:  errors.New("timeout"),
		},
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := newTestPoller(searcher, acceptAllFilter{}, store.NewNopStore(c.Now), &recordingNotifier{}, settings, c, logger)

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.Queries != 4 || report.FailedQueries != 2 {
		t.Errorf("queries/failed = %d/%d, want 4/2", report.Queries, report.FailedQueries)
	}
	if report.Fetched != 2 || report.Unique != 1 {
		t.Errorf("fetched/unique = %d/%d, want 2/1", report.Fetched, report.Unique)
	}
	if !strings.Contains(logs.String(), `msg="HTTP error"`) || !strings.Contains(logs.String(), `msg="query failed"`) {
		t.Errorf("expected both failure kinds to be logged:\n%s", logs.String())
	}
}

func TestPoll_StoreFailureIsCounted(t *testing.T) {
	c := &clock{t: fixedNow}
	st := &flakyStore{JobStore: newTestStore(t, c), failTitles: map[string]bool{"Bad": true}}
	searcher := &fakeSearcher{jobs: []model.Job{
		makeJob("1", "Good", "", fixedNow),
		makeJob("2", "Bad", "", fixedNow),
	}}
	p := newTestPoller(searcher, acceptAllFilter{}, st, &recordingNotifier{}, baseSettings(), c, discardLogger())

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.Inserted != 1 || report.Failed != 1 {
		t.Errorf("inserted/failed = %d/%d, want 1/1", report.Inserted, report.Failed)
	}
}

func TestPoll_NotifyErrorIsReported(t *testing.T) {
	c := &clock{t: fixedNow}
	n := &recordingNotifier{err: errors.New("smtp: 535 auth failed")}
	searcher := &fakeSearcher{jobs: []model.Job{makeJob("1", "Dev", "", fixedNow)}}
	p := newTestPoller(searcher, acceptAllFilter{}, store.NewNopStore(c.Now), n, baseSettings(), c, discardLogger())

	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("notify failure must not fail the cycle: %v", err)
	}
	if report.NotifyErr == nil || report.Notified {
		t.Errorf("expected NotifyErr set and Notified false, got %+v", report)
	}
}

func TestPoll_Cancelled(t *testing.T) {
	c := &clock{t: fixedNow}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &fakeSearcher{}
	p := newTestPoller(searcher, acceptAllFilter{}, store.NewNopStore(c.Now), &recordingNotifier{}, baseSettings(), c, discardLogger())

	_, err := p.Poll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(searcher.calls) != 0 {
		t.Errorf("no queries should run after cancellation, got %d", len(searcher.calls))
	}
}

func TestPoll_PolitenessDelayPerLocation(t *testing.T) {
	c := &clock{t: fixedNow}
	settings := baseSettings()
	settings.Locations = []string{"India", "Pune", "Delhi"}
	settings.PagesPerQuery = 2
	settings.PolitenessDelay = 30 * time.Millisecond

	p := newTestPoller(&fakeSearcher{}, acceptAllFilter{}, store.NewNopStore(c.Now), &recordingNotifier{}, settings, c, discardLogger())

	start := time.Now()
	report, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	// one pause per location, not per page
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 3 pauses, took %v", elapsed)
	}
	if report.Queries != 6 {
		t.Errorf("queries = %d, want 6", report.Queries)
	}
	if report.RunID == "" || report.Duration <= 0 {
		t.Errorf("report missing run id or duration: %+v", report)
	}
}
