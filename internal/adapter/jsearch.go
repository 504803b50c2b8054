package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amishk599/jobdigest/internal/model"
)

const (
	// JSearchSource is the Source value stamped on every normalized job.
	JSearchSource = "jsearch"

	DefaultJSearchEndpoint = "https://jsearch.p.rapidapi.com/search"
	DefaultJSearchHost     = "jsearch.p.rapidapi.com"
)

// jsearchResponse is the top-level search response. Items usually live under
// "data"; some plans and mirrors return them under "jobs".
type jsearchResponse struct {
	Data []json.RawMessage `json:"data"`
	Jobs []json.RawMessage `json:"jobs"`
}

// jsearchItem lists every field name the provider is known to use. Several
// names map to the same logical field; jobFromItem resolves them in order.
type jsearchItem struct {
	JobID        flexString `json:"job_id"`
	JobPostingID flexString `json:"job_posting_id"`
	ID           flexString `json:"id"`

	JobTitle flexString `json:"job_title"`
	Title    flexString `json:"title"`

	EmployerName flexString `json:"employer_name"`
	CompanyName  flexString `json:"company_name"`

	JobCity     flexString `json:"job_city"`
	JobLocation flexString `json:"job_location"`
	JobCountry  flexString `json:"job_country"`
	JobState    flexString `json:"job_state"`
	JobIsRemote flexBool   `json:"job_is_remote"`

	JobDescription flexString `json:"job_description"`
	Description    flexString `json:"description"`

	JobApplyLink  flexString `json:"job_apply_link"`
	JobGoogleLink flexString `json:"job_google_link"`

	JobPostedAtTimestamp flexInt `json:"job_posted_at_timestamp"`
}

// JSearchAdapter queries the RapidAPI JSearch endpoint.
type JSearchAdapter struct {
	endpoint string
	apiKey   string
	apiHost  string
	client   *http.Client
	logger   *slog.Logger
}

// NewJSearchAdapter creates an adapter for the given endpoint. The client
// should carry the request timeout.
func NewJSearchAdapter(endpoint, apiKey, apiHost string, client *http.Client, logger *slog.Logger) *JSearchAdapter {
	if endpoint == "" {
		endpoint = DefaultJSearchEndpoint
	}
	if apiHost == "" {
		apiHost = DefaultJSearchHost
	}
	return &JSearchAdapter{
		endpoint: endpoint,
		apiKey:   apiKey,
		apiHost:  apiHost,
		client:   client,
		logger:   logger,
	}
}

// Search issues one request for q and normalizes the returned items.
func (a *JSearchAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.Job, error) {
	query := fmt.Sprintf("%s in %s", q.Role, q.Location)
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("jsearch endpoint %q: %w", a.endpoint, err)
	}
	// Parameters already on the endpoint are kept; ours win on conflict.
	params := u.Query()
	params.Set("query", query)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("num_pages", "1")
	params.Set("date_posted", "today")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("jsearch %q page %d: %w", query, q.Page, err)
	}
	req.Header.Set("x-rapidapi-key", a.apiKey)
	req.Header.Set("x-rapidapi-host", a.apiHost)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jsearch %q page %d: %w", query, q.Page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("jsearch %q page %d: unexpected status %d", query, q.Page, resp.StatusCode),
		}
	}

	var body jsearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("jsearch %q page %d: decode: %w", query, q.Page, err)
	}

	items := body.Data
	if len(items) == 0 {
		items = body.Jobs
	}

	jobs := make([]model.Job, 0, len(items))
	for i, raw := range items {
		job, err := ParseItem(raw)
		if err != nil {
			a.logger.Debug("skipping malformed jsearch item", "index", i, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ParseItem normalizes one provider item into a Job. It only fails when raw is
// not a JSON object; missing or oddly typed fields fall back to zero values.
func ParseItem(raw json.RawMessage) (model.Job, error) {
	obj := bytes.TrimSpace(raw)
	if len(obj) == 0 || obj[0] != '{' {
		return model.Job{}, fmt.Errorf("item is not a JSON object")
	}
	var it jsearchItem
	if err := json.Unmarshal(obj, &it); err != nil {
		return model.Job{}, fmt.Errorf("decode item: %w", err)
	}
	return jobFromItem(it), nil
}

func jobFromItem(it jsearchItem) model.Job {
	remote := ""
	if it.JobIsRemote {
		remote = "Remote"
	}
	return model.Job{
		Source:      JSearchSource,
		ExternalID:  firstNonEmpty(string(it.JobID), string(it.JobPostingID), string(it.ID)),
		Title:       trimmed(string(it.JobTitle), string(it.Title)),
		Company:     trimmed(string(it.EmployerName), string(it.CompanyName)),
		Location:    trimmed(string(it.JobCity), string(it.JobLocation), string(it.JobCountry), string(it.JobState), remote),
		Description: trimmed(string(it.JobDescription), string(it.Description)),
		URL:         firstNonEmpty(string(it.JobApplyLink), string(it.JobGoogleLink)),
		PostedAtUTC: int64(it.JobPostedAtTimestamp),
	}
}
