package poller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/amishk599/jobdigest/internal/runlock"
)

type cycleFunc func(context.Context) (RunReport, error)

func (f cycleFunc) Poll(ctx context.Context) (RunReport, error) { return f(ctx) }

func TestRunner_RunsCycle(t *testing.T) {
	calls := 0
	r := NewRunner(cycleFunc(func(context.Context) (RunReport, error) {
		calls++
		return RunReport{RunID: "r1", PersistResult: PersistResult{Inserted: 2}}, nil
	}), runlock.NewLocal(), discardLogger())

	report, ran := r.RunOnce(context.Background())
	if !ran || calls != 1 {
		t.Fatalf("ran=%v calls=%d", ran, calls)
	}
	if report.Inserted != 2 {
		t.Errorf("report not returned: %+v", report)
	}
}

func TestRunner_SkipsWhileLocked(t *testing.T) {
	lock := runlock.NewLocal()
	release, ok, _ := lock.TryLock(context.Background())
	if !ok {
		t.Fatal("could not take lock")
	}
	defer release()

	var logs bytes.Buffer
	called := false
	r := NewRunner(cycleFunc(func(context.Context) (RunReport, error) {
		called = true
		return RunReport{}, nil
	}), lock, slog.New(slog.NewTextHandler(&logs, nil)))

	if _, ran := r.RunOnce(context.Background()); ran {
		t.Error("expected cycle to be skipped")
	}
	if called {
		t.Error("cycle must not run while another holds the lock")
	}
	if !strings.Contains(logs.String(), "still running") {
		t.Errorf("expected skip warning, got:\n%s", logs.String())
	}
}

func TestRunner_RecoversPanicAndReleasesLock(t *testing.T) {
	lock := runlock.NewLocal()
	var logs bytes.Buffer
	r := NewRunner(cycleFunc(func(context.Context) (RunReport, error) {
		panic("nil map write")
	}), lock, slog.New(slog.NewTextHandler(&logs, nil)))

	if _, ran := r.RunOnce(context.Background()); !ran {
		t.Error("a panicking cycle still counts as ran")
	}
	if !strings.Contains(logs.String(), "poll cycle panicked") || !strings.Contains(logs.String(), "stack=") {
		t.Errorf("expected panic log with stack, got:\n%s", logs.String())
	}

	release, ok, _ := lock.TryLock(context.Background())
	if !ok {
		t.Fatal("lock must be released after a panic")
	}
	release()
}

func TestRunner_LogsErrors(t *testing.T) {
	var logs bytes.Buffer
	r := NewRunner(cycleFunc(func(context.Context) (RunReport, error) {
		return RunReport{RunID: "r2"}, errors.New("loading digest window: database is locked")
	}), runlock.NewLocal(), slog.New(slog.NewTextHandler(&logs, nil)))

	r.RunOnce(context.Background())
	if !strings.Contains(logs.String(), "level=ERROR") || !strings.Contains(logs.String(), "database is locked") {
		t.Errorf("expected error log, got:\n%s", logs.String())
	}
}

func TestRunner_LockErrorSkips(t *testing.T) {
	r := NewRunner(cycleFunc(func(context.Context) (RunReport, error) {
		t.Fatal("cycle must not run without the lock")
		return RunReport{}, nil
	}), failingLock{}, discardLogger())

	if _, ran := r.RunOnce(context.Background()); ran {
		t.Error("expected skip on lock error")
	}
}

type failingLock struct{}

func (failingLock) TryLock(context.Context) (func(), bool, error) {
	return nil, false, errors.New("redis: connection refused")
}
