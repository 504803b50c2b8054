package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amishk599/jobdigest/internal/model"
)

// NopStore is an in-memory store used in dry-run mode. Nothing is persisted
// and every insert reports a new row, so each poll sees every match as new.
type NopStore struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64
	jobs   []model.Job
}

func NewNopStore(now func() time.Time) *NopStore {
	if now == nil {
		now = time.Now
	}
	return &NopStore{now: now}
}

func (s *NopStore) InsertIfNew(_ context.Context, job model.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job.ID = s.nextID
	job.CreatedAtUTC = s.now().Unix()
	s.jobs = append(s.jobs, job)
	return true, nil
}

// QuerySince returns the jobs inserted during this process, using the same
// window and ordering rules as the real stores.
func (s *NopStore) QuerySince(_ context.Context, sinceUTC int64, limit int) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Job
	for _, j := range s.jobs {
		if j.CreatedAtUTC >= sinceUTC {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].PostedAtUTC != out[b].PostedAtUTC {
			return out[a].PostedAtUTC > out[b].PostedAtUTC
		}
		return out[a].ID > out[b].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NopStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs), nil
}

func (s *NopStore) Close() error { return nil }
