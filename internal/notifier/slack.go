package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobdigest/internal/digest"
	"github.com/amishk599/jobdigest/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// maxSlackJobs keeps a digest message under Slack's 50-block limit.
const maxSlackJobs = 40

// SlackNotifier posts digests to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts one Block Kit message per digest.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify posts d as a single message. A 429 is retried once after the
// Retry-After delay.
func (s *SlackNotifier) Notify(ctx context.Context, d model.Digest) error {
	if len(d.Jobs) == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(d))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)

		timer := time.NewTimer(time.Duration(secs) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("slack retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack digest sent", "jobs", len(d.Jobs), "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack digest sent", "jobs", len(d.Jobs))
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type      string        `json:"type"`
	Text      *slackText    `json:"text,omitempty"`
	Elements  []slackText   `json:"elements,omitempty"`
	Accessory *slackElement `json:"accessory,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style,omitempty"`
}

// slackEscape escapes the three characters Slack treats as control sequences.
func slackEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func buildPayload(d model.Digest) slackPayload {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: d.Subject},
		},
	}

	shown := d.Jobs
	if len(shown) > maxSlackJobs {
		shown = shown[:maxSlackJobs]
	}
	for _, j := range shown {
		blocks = append(blocks, jobSection(j))
	}

	if rest := len(d.Jobs) - len(shown); rest > 0 {
		blocks = append(blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("…and %d more", rest)}},
		})
	}

	// text is the notification fallback shown by clients that cannot render blocks
	return slackPayload{Text: d.Subject, Blocks: blocks}
}

func jobSection(j model.Job) slackBlock {
	posted := digest.FormatPosted(j.PostedAtUTC)
	if posted == "" {
		posted = "Posting time unknown"
	}

	lines := []string{"*" + slackEscape(j.Title) + "*"}
	meta := []string{}
	for _, v := range []string{j.Company, j.Location} {
		if v != "" {
			meta = append(meta, slackEscape(v))
		}
	}
	if len(meta) > 0 {
		lines = append(lines, strings.Join(meta, " · "))
	}
	lines = append(lines, "_"+posted+"_")

	block := slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
	}
	if j.URL != "" {
		block.Accessory = &slackElement{
			Type:  "button",
			Text:  slackText{Type: "plain_text", Text: "Apply"},
			URL:   j.URL,
			Style: "primary",
		}
	}
	return block
}
