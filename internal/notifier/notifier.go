package notifier

import (
	"context"
	"time"

	"github.com/amishk599/jobdigest/internal/model"
)

// SendTestMessage pushes a one-job sample digest through n to verify the
// integration end to end. build turns the sample jobs into a digest.
func SendTestMessage(ctx context.Context, n model.Notifier, build func([]model.Job) model.Digest) error {
	now := time.Now()
	sample := model.Job{
		Source:       "test",
		ExternalID:   "test-001",
		Title:        "Test Notification: Integration Verified",
		Company:      "jobdigest",
		Location:     "Everywhere",
		URL:          "https://jsearch.p.rapidapi.com/",
		PostedAtUTC:  now.Unix(),
		CreatedAtUTC: now.Unix(),
	}
	return n.Notify(ctx, build([]model.Job{sample}))
}
