package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/lysyi3m/rss-triage/app/api"
	"github.com/lysyi3m/rss-triage/app/cfg"
	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/logging"
	"github.com/lysyi3m/rss-triage/app/notify"
	"github.com/lysyi3m/rss-triage/app/oracle"
	"github.com/lysyi3m/rss-triage/app/pipeline"
	"github.com/lysyi3m/rss-triage/app/tasks"
	"github.com/lysyi3m/rss-triage/app/vector"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logging.Setup(appCfg.LogLevel, appCfg.Debug)

	slog.Info("Starting RSS Triage", "version", appCfg.Version, "db", appCfg.DBPath, "feeds_dir", appCfg.FeedsDir)

	if dir := filepath.Dir(appCfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Failed to create database directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Debug("Database migrations applied", "version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	recordRepo := database.NewRecordRepository(db)
	notificationRepo := database.NewNotificationRepository(db)
	vectorRepo := database.NewVectorRepository(db)

	sinks := buildSinks(appCfg, notificationRepo)

	if err := appCfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		notify.NewRunNotifier(sinks...).NotifyError(context.Background(), "config", err)
		os.Exit(1)
	}

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	httpClient := &http.Client{Timeout: 60 * time.Second}
	fetcher := feed.NewFetcher(httpClient, feed.NewParser(), appCfg.UserAgent, feed.DefaultFetchRetries)
	extractor := feed.NewContentExtractor(httpClient, appCfg.UserAgent, 20*time.Second)

	scorer := oracle.New(
		oracle.NewRetrier(buildCompleter(appCfg), appCfg.LLMProvider, appCfg.RetryConfig()),
		appCfg.Prompts(),
	)

	settings := appCfg.PipelineSettings()
	runner := pipeline.New(pipeline.Deps{
		Configs:   configCache,
		Sources:   sourceRepo,
		Records:   recordRepo,
		Fetcher:   fetcher,
		Filter:    feed.NewFilterer(),
		Extractor: extractor,
		Scorer:    scorer,
		Curator:   scorer,
		Dedup:     buildDedup(appCfg, httpClient, vectorRepo, settings.Dedup),
		Sinks:     sinks,
	}, settings)

	if appCfg.Once {
		os.Exit(runOnce(appCfg, configCache, sourceRepo, runner))
	}

	runner.SetProgress(func(done, total, ok, failed int) {
		if done == total || done%10 == 0 {
			slog.Debug("Scoring progress", "done", done, "total", total, "ok", ok, "failed", failed)
		}
	})

	scheduler := tasks.NewScheduler(configCache, sourceRepo, runner, appCfg.SchedulerInterval, appCfg.WorkerCount)
	scheduler.Start()

	channel := feed.Channel{
		Title:       "RSS Triage",
		Link:        appCfg.BaseUrl,
		Description: "Scored and summarized feed items",
		Generator:   "RSS Triage " + appCfg.Version,
	}
	if appCfg.BaseUrl != "" {
		channel.SelfLink = appCfg.BaseUrl + "/feed.xml"
	}

	apiHandler := api.NewHandler(configCache, sourceRepo, recordRepo, notificationRepo, scheduler, runner, channel)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("RSS Triage shutdown complete")
}

func buildCompleter(appCfg *cfg.Cfg) oracle.Completer {
	switch appCfg.LLMProvider {
	case cfg.ProviderAnthropic:
		return oracle.NewAnthropicCompleter(appCfg.AnthropicAPIKey, appCfg.LLMBaseURL, appCfg.LLMModel)
	default:
		return oracle.NewOpenAICompleter(appCfg.OpenAIAPIKey, appCfg.LLMBaseURL, appCfg.LLMModel)
	}
}

func buildDedup(appCfg *cfg.Cfg, httpClient *http.Client, vectorRepo database.VectorRepository, settings pipeline.DedupSettings) *pipeline.DedupGate {
	if !settings.Enabled {
		slog.Info("Vector dedup disabled")
		return nil
	}

	switch appCfg.VectorProvider {
	case cfg.VectorProviderLocal:
		embedder := vector.NewOpenAIEmbedder(appCfg.OpenAIAPIKey, appCfg.EmbeddingEndpoint(), appCfg.EmbeddingModel)
		return pipeline.NewDedupGate(embedder, vector.NewLocalIndex(vectorRepo), settings)
	default:
		client := vector.NewCloudflareClient(httpClient, appCfg.CloudflareConfig())
		return pipeline.NewDedupGate(client, client, settings)
	}
}

func buildSinks(appCfg *cfg.Cfg, notificationRepo database.NotificationRepository) []notify.Sink {
	sinks := []notify.Sink{notify.LogSink{}, notify.NewDatabaseSink(notificationRepo)}

	if appCfg.TelegramToken != "" && appCfg.TelegramChatID != 0 {
		telegram, err := notify.NewTelegramSink(appCfg.TelegramToken, appCfg.TelegramChatID)
		if err != nil {
			slog.Warn("Telegram notifications disabled", "error", err)
		} else {
			sinks = append(sinks, telegram)
		}
	}
	return sinks
}

// runOnce syncs source definitions, runs one ingest pass and prints a summary.
func runOnce(appCfg *cfg.Cfg, configCache *feed.ConfigCache, sourceRepo database.SourceRepository, runner *pipeline.Pipeline) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, feedConfig := range configCache.GetConfigs() {
		if err := tasks.NewSyncSourceConfigTask(feedConfig, sourceRepo).Execute(ctx); err != nil {
			slog.Warn("Failed to sync source", "feed", feedConfig.Name, "error", err)
		}
	}

	runner.SetProgress(logging.NewProgress(os.Stdout, "scoring").Update)

	stats, err := runner.Run(ctx)
	if err != nil {
		slog.Error("Ingest run failed", "error", err)
		return 1
	}

	printSummary(stats)
	return 0
}

func printSummary(stats pipeline.Stats) {
	bold := color.New(color.Bold)
	bold.Printf("Run finished in %s\n", stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond))
	fmt.Printf("  sources   processed=%d skipped=%d failed=%s\n",
		stats.SourcesProcessed, stats.SourcesSkipped, color.RedString("%d", stats.SourcesFailed))
	fmt.Printf("  items     queued=%d new=%s low=%d duplicate=%d/%d\n",
		stats.Queued, color.GreenString("%d", stats.New), stats.LowScore, stats.ExactDuplicates, stats.DedupSkipped)
	fmt.Printf("  failures  scoring=%s store=%s\n",
		color.RedString("%d", stats.ScoredFailed), color.RedString("%d", stats.StoreFailed))
	if stats.Featured > 0 {
		fmt.Printf("  featured  %s\n", color.YellowString("%d", stats.Featured))
	}
}
