package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobdigest/internal/adapter"
	"github.com/amishk599/jobdigest/internal/config"
	"github.com/amishk599/jobdigest/internal/digest"
	"github.com/amishk599/jobdigest/internal/filter"
	"github.com/amishk599/jobdigest/internal/model"
	"github.com/amishk599/jobdigest/internal/notifier"
	"github.com/amishk599/jobdigest/internal/poller"
	"github.com/amishk599/jobdigest/internal/ratelimit"
	"github.com/amishk599/jobdigest/internal/retry"
	"github.com/amishk599/jobdigest/internal/runlock"
	"github.com/amishk599/jobdigest/internal/store"
)

var (
	cfgPath string
	debug   bool
)

// providerTimeout bounds every JSearch and Slack request.
const providerTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "jobdigest",
	Short: "Entry-level job digest from JSearch",
	Long:  "jobdigest polls JSearch for entry-level tech roles, remembers what it has seen, and mails a digest every few hours.",
	// Running the bare binary starts the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBDIGEST_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// mustLoad loads the configuration and builds the logger it asks for. Config
// errors are fatal.
func mustLoad() (*config.Config, *slog.Logger) {
	boot := newLogger(os.Stdout, slog.LevelInfo, "text", debug)

	cfg, err := config.Load(config.LoadOptions{ConfigPath: cfgPath})
	if err != nil {
		boot.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level) // validated by Load
	logger := newLogger(os.Stdout, level, cfg.Log.Format, debug)
	if cfg.Provider.APIKey == "" {
		logger.Warn("RAPIDAPI_KEY is empty, provider requests will be rejected")
	}
	return cfg, logger
}

func newLogger(w io.Writer, level slog.Level, format string, dbg bool) *slog.Logger {
	if dbg {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openStore(ctx context.Context, cfg *config.Config) (model.JobStore, error) {
	dsn := cfg.Store.Path
	if cfg.Store.Driver == config.DriverPostgres {
		dsn = cfg.Store.DatabaseURL
	}
	return store.Open(ctx, cfg.Store.Driver, dsn, time.Now)
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case config.NotifierSlack:
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	case config.NotifierLog:
		return notifier.NewLogNotifier(logger)
	default:
		return notifier.NewMailNotifier(notifier.MailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Pass,
			UseTLS:   cfg.SMTP.UseTLS,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
			Timeout:  providerTimeout,
		}, logger)
	}
}

// buildSearcher stacks the JSearch adapter under rate limiting and retries.
// Every retry attempt goes through the limiter.
func buildSearcher(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.JobSearcher {
	var s model.JobSearcher = adapter.NewJSearchAdapter(
		cfg.Provider.Endpoint,
		cfg.Provider.APIKey,
		cfg.Provider.Host,
		httpClient,
		logger,
	)
	if cfg.RateLimit.MinDelay > 0 {
		logger.Info("rate limiter configured", "min_delay", cfg.RateLimit.MinDelay.String())
		s = ratelimit.NewRateLimitedSearcher(s, ratelimit.NewLimiter(cfg.RateLimit.MinDelay), adapter.JSearchSource)
	}
	return retry.NewRetrySearcher(s, cfg.Retry.Max, cfg.Retry.BaseDelay, logger)
}

func buildMatcher(cfg *config.Config) *filter.KeywordMatcher {
	return filter.NewKeywordMatcher(
		cfg.Filters.RoleKeywords,
		cfg.Filters.SkillKeywords,
		cfg.Filters.ExperienceKeywords,
		cfg.Filters.MaxPostAge,
		time.Now,
	)
}

func buildRenderer(cfg *config.Config, logger *slog.Logger) *digest.Renderer {
	return digest.NewRenderer(cfg.Digest.TemplatePath, logger)
}

func pollerSettings(cfg *config.Config) poller.Settings {
	return poller.Settings{
		Roles:           cfg.Filters.RoleKeywords,
		Locations:       cfg.Search.Locations,
		IncludeRemote:   cfg.Search.IncludeRemote,
		PagesPerQuery:   cfg.Search.PagesPerQuery,
		PolitenessDelay: cfg.Search.PolitenessDelay,
		Interval:        cfg.RunEvery,
		MaxResults:      cfg.Digest.MaxResults,
		Country:         cfg.Search.Country,
	}
}

func buildPoller(cfg *config.Config, jobStore model.JobStore, n model.Notifier, httpClient *http.Client, logger *slog.Logger) *poller.Poller {
	return poller.NewPoller(
		buildSearcher(cfg, httpClient, logger),
		buildMatcher(cfg),
		jobStore,
		buildRenderer(cfg, logger),
		n,
		pollerSettings(cfg),
		time.Now,
		logger,
	)
}

// setupRunLock returns the in-process lock, chained with a Redis lock when
// RUN_LOCK_REDIS_URL is set. The returned func closes the Redis client.
func setupRunLock(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runlock.Locker, func(), error) {
	local := runlock.NewLocal()
	if cfg.RunLock.RedisURL == "" {
		return local, func() {}, nil
	}

	client, err := runlock.NewRedisClient(ctx, cfg.RunLock.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis run lock", "key", runlock.DefaultRedisKey, "ttl", cfg.RunEvery.String())
	redisLock := runlock.NewRedis(client, runlock.DefaultRedisKey, cfg.RunEvery, logger)
	return runlock.Chain(local, redisLock), func() { client.Close() }, nil
}
