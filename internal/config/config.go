package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobdigest poller. It is built once
// at startup and passed explicitly; nothing reads the environment afterwards.
type Config struct {
	Provider     ProviderConfig
	SMTP         SMTPConfig
	Search       SearchConfig
	RunEvery     time.Duration
	Store        StoreConfig
	Digest       DigestConfig
	Filters      FilterConfig
	Log          LogConfig
	Notification NotificationConfig
	Retry        RetryConfig
	RateLimit    RateLimitConfig
	RunLock      RunLockConfig
}

// ProviderConfig holds the JSearch credentials and endpoint.
type ProviderConfig struct {
	APIKey   string
	Host     string
	Endpoint string
}

// SMTPConfig controls outbound mail. An empty Host disables delivery.
type SMTPConfig struct {
	Host   string
	Port   int
	User   string
	Pass   string
	UseTLS bool
	From   string
	To     string
}

// SearchConfig shapes the query matrix.
type SearchConfig struct {
	Country         string
	IncludeRemote   bool
	Locations       []string
	PagesPerQuery   int
	PolitenessDelay time.Duration // pause after each location's pages
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string // "sqlite" or "postgres"
	Path        string // sqlite file
	DatabaseURL string // postgres connection URL
}

type DigestConfig struct {
	TemplatePath string
	MaxResults   int
}

// FilterConfig holds keyword lists and the recency limit.
type FilterConfig struct {
	RoleKeywords       []string
	SkillKeywords      []string
	ExperienceKeywords []string
	MaxPostAge         time.Duration
}

type LogConfig struct {
	Level  string // DEBUG, INFO, WARN/WARNING, ERROR
	Format string // text or json
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string // "email", "slack" or "log"
	WebhookURL string // required if type is "slack"
}

type RetryConfig struct {
	Max       int
	BaseDelay time.Duration
}

// RateLimitConfig spaces consecutive provider requests. Zero disables it.
type RateLimitConfig struct {
	MinDelay time.Duration
}

// RunLockConfig enables the cross-process run lock when RedisURL is set.
type RunLockConfig struct {
	RedisURL string
}

const (
	NotifierEmail = "email"
	NotifierSlack = "slack"
	NotifierLog   = "log"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultFrom      = "jobs@yourdomain.com"
	slackHookPrefix  = "https://hooks.slack.com/"
	defaultConfigYML = "config.yaml"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Host:     "jsearch.p.rapidapi.com",
			Endpoint: "https://jsearch.p.rapidapi.com/search",
		},
		SMTP: SMTPConfig{
			Port:   587,
			UseTLS: true,
			To:     "roshanpanda01@gmail.com",
		},
		Search: SearchConfig{
			Country:       "India",
			IncludeRemote: true,
			Locations: []string{
				"India", "Remote", "Bengaluru", "Bangalore", "Hyderabad", "Pune", "Mumbai",
				"Navi Mumbai", "Delhi", "Noida", "Gurgaon", "Chennai", "Kolkata", "Ahmedabad",
				"Indore", "Jaipur", "Surat", "Nagpur", "Chandigarh",
			},
			PagesPerQuery:   2,
			PolitenessDelay: 600 * time.Millisecond,
		},
		RunEvery: 2 * time.Hour,
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "jobs.db",
		},
		Digest: DigestConfig{
			TemplatePath: "templates/email_template.html",
			MaxResults:   80,
		},
		Filters: FilterConfig{
			RoleKeywords: []string{
				"full stack", "frontend", "front-end", "backend", "back-end",
				"software developer", "software engineer", "web developer",
			},
			SkillKeywords: []string{
				"python", "html", "css", "javascript", "bootstrap", "jquery", "ajax",
				"laravel", "php", "vue", "vuejs", "angular", "react", "reactjs",
			},
			ExperienceKeywords: []string{
				"fresher", "0-6 months", "0 to 6 months", "0-1 year", "0 to 1 year",
				"no experience", "entry level", "junior", "trainee",
			},
			MaxPostAge: 6 * time.Hour,
		},
		Log:          LogConfig{Level: "INFO", Format: "text"},
		Notification: NotificationConfig{Type: NotifierEmail},
		Retry:        RetryConfig{Max: 2, BaseDelay: 5 * time.Second},
	}
}

// LoadOptions tells Load where to look. The zero value uses ./config.yaml
// (if present), ./.env (if present) and the process environment.
type LoadOptions struct {
	// ConfigPath is an explicit YAML file; it must exist when set.
	ConfigPath string
	// EnvFile is a dotenv file; missing is fine. Defaults to ".env".
	EnvFile string
	// LookupEnv reads a variable; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration from, lowest to highest precedence: built-in
// defaults, the YAML file, the dotenv file and the process environment.
func Load(opts LoadOptions) (*Config, error) {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}

	dotenv, err := godotenv.Read(opts.EnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", opts.EnvFile, err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := opts.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	cfg := Default()

	path, required := opts.ConfigPath, opts.ConfigPath != ""
	if !required {
		if p, ok := lookup("JOBDIGEST_CONFIG"); ok && p != "" {
			path, required = p, true
		} else {
			path = defaultConfigYML
		}
	}
	if err := applyYAML(cfg, path, required, lookup); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = defaultFrom
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RunEvery <= 0 {
		return fmt.Errorf("RUN_EVERY_HOURS must be positive, got %v", cfg.RunEvery)
	}
	if cfg.Filters.MaxPostAge <= 0 {
		return fmt.Errorf("MAX_POST_AGE_HOURS must be positive, got %v", cfg.Filters.MaxPostAge)
	}
	if cfg.Search.PagesPerQuery < 1 {
		return fmt.Errorf("PAGES_PER_QUERY must be at least 1, got %d", cfg.Search.PagesPerQuery)
	}
	if cfg.Digest.MaxResults < 1 {
		return fmt.Errorf("MAX_RESULTS_PER_RUN must be at least 1, got %d", cfg.Digest.MaxResults)
	}
	if cfg.Retry.Max < 0 {
		return fmt.Errorf("RETRY_MAX must not be negative, got %d", cfg.Retry.Max)
	}

	switch cfg.Notification.Type {
	case NotifierEmail, NotifierLog:
	case NotifierSlack:
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackHookPrefix) {
			return fmt.Errorf("SLACK_WEBHOOK_URL must start with %s when NOTIFIER is slack", slackHookPrefix)
		}
	default:
		return fmt.Errorf("unknown NOTIFIER %q (want email, slack or log)", cfg.Notification.Type)
	}

	switch cfg.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want sqlite or postgres)", cfg.Store.Driver)
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (want text or json)", cfg.Log.Format)
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown LOG_LEVEL %q", s)
}

// --- YAML layer ---

// rawConfig mirrors the YAML file. Pointers and nil slices mark keys that
// were not set, so only present keys override the defaults.
type rawConfig struct {
	Provider struct {
		APIKey   *string `yaml:"api_key"`
		Host     *string `yaml:"host"`
		Endpoint *string `yaml:"endpoint"`
	} `yaml:"provider"`
	SMTP struct {
		Host   *string `yaml:"host"`
		Port   *int    `yaml:"port"`
		User   *string `yaml:"user"`
		Pass   *string `yaml:"pass"`
		UseTLS *bool   `yaml:"use_tls"`
		From   *string `yaml:"from"`
		To     *string `yaml:"to"`
	} `yaml:"smtp"`
	Search struct {
		Country         *string  `yaml:"country"`
		IncludeRemote   *bool    `yaml:"include_remote"`
		Locations       []string `yaml:"locations"`
		PagesPerQuery   *int     `yaml:"pages_per_query"`
		PolitenessDelay *string  `yaml:"politeness_delay"`
	} `yaml:"search"`
	Schedule struct {
		RunEveryHours *float64 `yaml:"run_every_hours"`
	} `yaml:"schedule"`
	Store struct {
		Driver      *string `yaml:"driver"`
		Path        *string `yaml:"path"`
		DatabaseURL *string `yaml:"database_url"`
	} `yaml:"store"`
	Digest struct {
		TemplatePath *string `yaml:"template_path"`
		MaxResults   *int    `yaml:"max_results"`
	} `yaml:"digest"`
	Filters struct {
		MaxPostAgeHours    *float64 `yaml:"max_post_age_hours"`
		RoleKeywords       []string `yaml:"role_keywords"`
		SkillKeywords      []string `yaml:"skill_keywords"`
		ExperienceKeywords []string `yaml:"experience_keywords"`
	} `yaml:"filters"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
	Notification struct {
		Type       *string `yaml:"type"`
		WebhookURL *string `yaml:"webhook_url"`
	} `yaml:"notification"`
	Retry struct {
		Max       *int    `yaml:"max"`
		BaseDelay *string `yaml:"base_delay"`
	} `yaml:"retry"`
	RateLimit struct {
		MinDelay *string `yaml:"min_delay"`
	} `yaml:"rate_limit"`
	RunLock struct {
		RedisURL *string `yaml:"redis_url"`
	} `yaml:"run_lock"`
}

func applyYAML(cfg *Config, path string, required bool, lookup func(string) (string, bool)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	// Expand ${VAR} references against the same sources as the env layer.
	expanded := os.Expand(string(data), func(key string) string {
		v, _ := lookup(key)
		return v
	})

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	override(&cfg.Provider.APIKey, raw.Provider.APIKey)
	override(&cfg.Provider.Host, raw.Provider.Host)
	override(&cfg.Provider.Endpoint, raw.Provider.Endpoint)

	override(&cfg.SMTP.Host, raw.SMTP.Host)
	override(&cfg.SMTP.Port, raw.SMTP.Port)
	override(&cfg.SMTP.User, raw.SMTP.User)
	override(&cfg.SMTP.Pass, raw.SMTP.Pass)
	override(&cfg.SMTP.UseTLS, raw.SMTP.UseTLS)
	override(&cfg.SMTP.From, raw.SMTP.From)
	override(&cfg.SMTP.To, raw.SMTP.To)

	override(&cfg.Search.Country, raw.Search.Country)
	override(&cfg.Search.IncludeRemote, raw.Search.IncludeRemote)
	overrideList(&cfg.Search.Locations, raw.Search.Locations)
	override(&cfg.Search.PagesPerQuery, raw.Search.PagesPerQuery)

	if h := raw.Schedule.RunEveryHours; h != nil {
		cfg.RunEvery = hours(*h)
	}

	override(&cfg.Store.Driver, raw.Store.Driver)
	override(&cfg.Store.Path, raw.Store.Path)
	override(&cfg.Store.DatabaseURL, raw.Store.DatabaseURL)

	override(&cfg.Digest.TemplatePath, raw.Digest.TemplatePath)
	override(&cfg.Digest.MaxResults, raw.Digest.MaxResults)

	if h := raw.Filters.MaxPostAgeHours; h != nil {
		cfg.Filters.MaxPostAge = hours(*h)
	}
	overrideList(&cfg.Filters.RoleKeywords, raw.Filters.RoleKeywords)
	overrideList(&cfg.Filters.SkillKeywords, raw.Filters.SkillKeywords)
	overrideList(&cfg.Filters.ExperienceKeywords, raw.Filters.ExperienceKeywords)

	override(&cfg.Log.Level, raw.Log.Level)
	override(&cfg.Log.Format, raw.Log.Format)

	override(&cfg.Notification.Type, raw.Notification.Type)
	override(&cfg.Notification.WebhookURL, raw.Notification.WebhookURL)

	override(&cfg.Retry.Max, raw.Retry.Max)
	override(&cfg.RunLock.RedisURL, raw.RunLock.RedisURL)

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"search.politeness_delay", raw.Search.PolitenessDelay, &cfg.Search.PolitenessDelay},
		{"retry.base_delay", raw.Retry.BaseDelay, &cfg.Retry.BaseDelay},
		{"rate_limit.min_delay", raw.RateLimit.MinDelay, &cfg.RateLimit.MinDelay},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", d.key, *d.src, err)
		}
		*d.dst = v
	}
	return nil
}

func override[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func overrideList(dst *[]string, src []string) {
	if src != nil {
		*dst = src
	}
}

// --- environment layer ---

type envBinding struct {
	key   string
	apply func(string) error
}

func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"RAPIDAPI_KEY", setString(&cfg.Provider.APIKey)},
		{"RAPIDAPI_HOST", setString(&cfg.Provider.Host)},
		{"JSEARCH_ENDPOINT", setString(&cfg.Provider.Endpoint)},
		{"SMTP_HOST", setString(&cfg.SMTP.Host)},
		{"SMTP_PORT", setInt(&cfg.SMTP.Port)},
		{"SMTP_USER", setString(&cfg.SMTP.User)},
		{"SMTP_PASS", setString(&cfg.SMTP.Pass)},
		{"SMTP_USE_TLS", setBool(&cfg.SMTP.UseTLS)},
		{"EMAIL_FROM", setString(&cfg.SMTP.From)},
		{"EMAIL_TO", setString(&cfg.SMTP.To)},
		{"DEFAULT_COUNTRY", setString(&cfg.Search.Country)},
		{"INCLUDE_REMOTE", setBool(&cfg.Search.IncludeRemote)},
		{"RUN_EVERY_HOURS", setHours(&cfg.RunEvery)},
		{"DB_PATH", setString(&cfg.Store.Path)},
		{"STORE_DRIVER", setString(&cfg.Store.Driver)},
		{"DATABASE_URL", setString(&cfg.Store.DatabaseURL)},
		{"TEMPLATE_PATH", setString(&cfg.Digest.TemplatePath)},
		{"MAX_POST_AGE_HOURS", setHours(&cfg.Filters.MaxPostAge)},
		{"ROLE_KEYWORDS", setJSONList(&cfg.Filters.RoleKeywords)},
		{"SKILL_KEYWORDS", setJSONList(&cfg.Filters.SkillKeywords)},
		{"EXP_KEYWORDS", setJSONList(&cfg.Filters.ExperienceKeywords)},
		{"LOCATIONS", setJSONList(&cfg.Search.Locations)},
		{"MAX_RESULTS_PER_RUN", setInt(&cfg.Digest.MaxResults)},
		{"PAGES_PER_QUERY", setInt(&cfg.Search.PagesPerQuery)},
		{"LOG_LEVEL", setString(&cfg.Log.Level)},
		{"LOG_FORMAT", setString(&cfg.Log.Format)},
		{"NOTIFIER", setString(&cfg.Notification.Type)},
		{"SLACK_WEBHOOK_URL", setString(&cfg.Notification.WebhookURL)},
		{"POLITENESS_DELAY", setDuration(&cfg.Search.PolitenessDelay)},
		{"RETRY_MAX", setInt(&cfg.Retry.Max)},
		{"RETRY_BASE_DELAY", setDuration(&cfg.Retry.BaseDelay)},
		{"RATE_LIMIT_MIN_DELAY", setDuration(&cfg.RateLimit.MinDelay)},
		{"RUN_LOCK_REDIS_URL", setString(&cfg.RunLock.RedisURL)},
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings(cfg) {
		v, ok := lookup(b.key)
		if !ok {
			continue
		}
		if err := b.apply(v); err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = strings.TrimSpace(v)
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*dst = n
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			*dst = true
		case "false", "0", "no", "off", "":
			*dst = false
		default:
			return fmt.Errorf("invalid boolean %q", v)
		}
		return nil
	}
}

func setHours(dst *time.Duration) func(string) error {
	return func(v string) error {
		h, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid number of hours %q", v)
		}
		*dst = hours(h)
		return nil
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid duration %q", v)
		}
		*dst = d
		return nil
	}
}

func setJSONList(dst *[]string) func(string) error {
	return func(v string) error {
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return fmt.Errorf("want a JSON array of strings: %w", err)
		}
		if list == nil {
			list = []string{}
		}
		*dst = list
		return nil
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
