package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobdigest/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes digests to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each digest job via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the subject and then one line per job. Returns nil.
func (n *LogNotifier) Notify(_ context.Context, d model.Digest) error {
	n.logger.Info("digest", "subject", d.Subject, "jobs", len(d.Jobs))
	for _, j := range d.Jobs {
		args := []any{"company", j.Company, "title", j.Title, "location", j.Location, "url", j.URL}
		if j.PostedAtUTC != 0 {
			args = append(args, "posted_at_utc", j.PostedAtUTC)
		}
		n.logger.Info("new job", args...)
	}
	return nil
}
