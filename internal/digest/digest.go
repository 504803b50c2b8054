// Package digest renders stored jobs into the HTML e-mail body and subject.
package digest

import (
	"fmt"
	"html"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amishk599/jobdigest/internal/model"
)

// RowsPlaceholder is replaced by the rendered table rows.
const RowsPlaceholder = "{{ROWS}}"

const fallbackTemplate = `<html><body><h3>New jobs</h3><table border="1" cellpadding="6"><thead><tr><th>Title</th><th>Company</th><th>Location</th><th>Apply</th><th>Posted</th></tr></thead><tbody>{{ROWS}}</tbody></table></body></html>`

const rowFormat = `<tr><td>%s</td><td>%s</td><td>%s</td><td><a href='%s' target='_blank' rel='noopener noreferrer'>Apply</a></td><td>%s</td></tr>`

// PostedLayout formats posting times in the digest.
const PostedLayout = "02 Jan 2006, 03:04 PM IST"

// ist is UTC+05:30; a fixed zone so rendering does not depend on tzdata.
var ist = time.FixedZone("IST", 5*60*60+30*60)

// Renderer turns jobs into an HTML document using a template file.
type Renderer struct {
	templatePath string
	logger       *slog.Logger
}

// NewRenderer returns a renderer reading its template from templatePath.
func NewRenderer(templatePath string, logger *slog.Logger) *Renderer {
	return &Renderer{templatePath: templatePath, logger: logger}
}

// Render loads the template and substitutes one row per job. The template is
// read on every call so edits apply on the next run. A missing or unreadable
// template falls back to a built-in table.
func (r *Renderer) Render(jobs []model.Job) string {
	tpl := r.loadTemplate()

	rows := make([]string, len(jobs))
	for i, j := range jobs {
		rows[i] = formatRow(j)
	}
	return strings.ReplaceAll(tpl, RowsPlaceholder, strings.Join(rows, "\n"))
}

// Build renders jobs and pairs the document with its subject line.
func (r *Renderer) Build(jobs []model.Job, country string, interval time.Duration) model.Digest {
	return model.Digest{
		Subject: Subject(len(jobs), country, interval),
		HTML:    r.Render(jobs),
		Jobs:    jobs,
	}
}

func (r *Renderer) loadTemplate() string {
	if r.templatePath == "" {
		return fallbackTemplate
	}
	b, err := os.ReadFile(r.templatePath)
	if err != nil {
		r.logger.Debug("using built-in email template", "path", r.templatePath, "error", err)
		return fallbackTemplate
	}
	return string(b)
}

func formatRow(j model.Job) string {
	return fmt.Sprintf(rowFormat,
		html.EscapeString(j.Title),
		html.EscapeString(j.Company),
		html.EscapeString(j.Location),
		html.EscapeString(j.URL),
		FormatPosted(j.PostedAtUTC),
	)
}

// FormatPosted renders a Unix timestamp in IST. Zero means unknown and
// renders as "".
func FormatPosted(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).In(ist).Format(PostedLayout)
}

// Subject builds the digest subject line. The interval is shown in whole hours.
func Subject(count int, country string, interval time.Duration) string {
	return fmt.Sprintf("%d Fresher/0-6mo %s Tech Jobs (last %dh)", count, country, int(interval.Hours()))
}
