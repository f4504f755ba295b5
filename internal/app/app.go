// Package app builds the birthday bot's object graph from a loaded Config.
// The scheduled Lambda, the admin API and the operator CLI all start here so
// that they run the same pipeline against the same stores.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"birthdaybot/internal/celebration"
	"birthdaybot/internal/config"
	"birthdaybot/internal/db"
	"birthdaybot/internal/external"
	"birthdaybot/internal/generation"
	"birthdaybot/internal/personality"
	"birthdaybot/internal/scheduler"
	"birthdaybot/internal/telemetry"
	"birthdaybot/internal/types"
)

// Repositories groups the Postgres-backed stores.
type Repositories struct {
	Birthdays     *db.BirthdayRepository
	Announcements *db.AnnouncementRepository
	Threads       *db.ThreadRepository
	Races         *db.RaceReportRepository
	JobLocks      *db.JobLockRepository
	JobHistory    *db.JobHistoryRepository
}

// App is the fully wired bot. Close releases the pool and flushes traces.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Repos  Repositories
	Slack  *external.SlackClient

	Pipeline     *celebration.Pipeline
	Tracker      *celebration.Tracker
	Immediate    *celebration.ImmediateDecider
	Races        *celebration.RaceReporter
	Celebrations *scheduler.CelebrationService
	Archiver     *scheduler.AnnouncementArchiver
	Runner       *scheduler.Runner

	// WorkerID identifies this process as a job lock owner.
	WorkerID string

	shutdownTracing telemetry.ShutdownFunc
}

// NewLogger creates the JSON slog.Logger every binary logs through.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("service", cfg.Service, "environment", cfg.Environment)
}

// Build connects to Postgres and AWS and wires every component.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Service, cfg.Build.Version, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		pool.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	a := &App{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		WorkerID:        uuid.NewString(),
		shutdownTracing: shutdownTracing,
		Repos: Repositories{
			Birthdays:     db.NewBirthdayRepository(pool),
			Announcements: db.NewAnnouncementRepository(pool),
			Threads:       db.NewThreadRepository(pool),
			Races:         db.NewRaceReportRepository(pool),
			JobLocks:      db.NewJobLockRepository(pool),
			JobHistory:    db.NewJobHistoryRepository(pool),
		},
	}
	a.wire(awsCfg)
	return a, nil
}

func (a *App) wire(awsCfg aws.Config) {
	cfg := a.Config
	log := NewTypesLogger(a.Logger)

	a.Slack = external.NewSlackClient(&http.Client{Timeout: cfg.Slack.Timeout}, external.SlackClientConfig{
		Token:          cfg.Slack.BotToken,
		BaseURL:        cfg.Slack.APIBaseURL,
		RequestsPerMin: cfg.Slack.RequestsPerMin,
		Logger:         a.Logger,
	})
	llm := external.NewOpenAIClient(&http.Client{Timeout: cfg.Generation.Timeout}, external.OpenAIClientConfig{
		APIKey:       cfg.Generation.OpenAIAPIKey,
		BaseURL:      cfg.Generation.BaseURL,
		Model:        cfg.Generation.Model,
		ImageModel:   cfg.Generation.ImageModel,
		ImageSize:    cfg.Generation.ImageSize,
		ImageQuality: cfg.Generation.ImageQuality,
		MaxTokens:    cfg.Generation.MaxTokens,
		Logger:       a.Logger,
	})

	voice, err := personality.Parse(cfg.Generation.Personality)
	if err != nil {
		a.Logger.Warn("unknown BOT_PERSONALITY, using standard", "personality", cfg.Generation.Personality)
		voice = personality.Standard
	}
	generator := generation.New(llm, personality.NewSelector(nil), generation.Config{
		DefaultPersonality: voice,
		EnableImages:       cfg.Generation.EnableImages,
		SkipAI:             cfg.Generation.OpenAIAPIKey.Unmask() == "" || (cfg.IsLocal() && cfg.Generation.SkipAIOnLocal),
	}, nil, log.With("component", "generation"))

	var metrics celebration.Metrics = celebration.NopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = celebration.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, log.With("component", "metrics"))
	}

	var events celebration.EventPublisher
	if cfg.AWS.CelebrationEventsQueue != "" {
		events = celebration.NewSQSEventPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.CelebrationEventsQueue, log.With("component", "events"))
	}

	repos := a.Repos
	a.Tracker = celebration.NewTracker(repos.Announcements, log.With("component", "tracker"))
	a.Races = celebration.NewRaceReporter(metrics, repos.Races, cfg.Celebration.RaceAlertThreshold, nil, log.With("component", "race"))
	a.Immediate = celebration.NewImmediateDecider(repos.Birthdays, repos.Announcements, a.Slack, cfg.Slack.BirthdayChannel, log.With("component", "immediate"))
	a.Pipeline = celebration.NewPipeline(celebration.PipelineDeps{
		Generator:  generator,
		Validator:  celebration.NewValidator(repos.Birthdays, repos.Announcements, a.Slack, log.With("component", "validation")),
		Reconciler: celebration.NewReconciler(cfg.Celebration.RegenerateThreshold),
		Poster:     celebration.NewPoster(a.Slack, cfg.Celebration.UploadConcurrency, log.With("component", "poster")),
		Tracker:    a.Tracker,
		Race:       a.Races,
		Threads:    repos.Threads,
		Events:     events,
		Metrics:    metrics,
		Logger:     log.With("component", "pipeline"),
	})

	a.Celebrations = scheduler.NewCelebrationService(repos.Birthdays, repos.Announcements, a.Pipeline, scheduler.CelebrationSettings{
		ChannelID:       cfg.Slack.BirthdayChannel,
		CelebrationHour: cfg.Celebration.CelebrationHour,
		PipelineTimeout: cfg.Celebration.PipelineTimeout,
		Generation:      a.GenerationDefaults(),
	}, a.Logger.With("component", "scheduler"))

	a.Archiver = scheduler.NewAnnouncementArchiver(repos.Announcements, s3.NewFromConfig(awsCfg), cfg.AWS.ArchiveBucket,
		scheduler.DefaultArchiveBatchSize, a.Logger.With("component", "archiver"))

	a.Runner = scheduler.NewRunner(scheduler.RunnerDeps{
		Celebrations: a.Celebrations,
		Cleanup:      a.Archiver,
		JobLock:      repos.JobLocks,
		JobHistory:   repos.JobHistory,
		WorkerID:     a.WorkerID,
		Retention:    cfg.Celebration.AnnouncementRetention,
		Logger:       a.Logger.With("component", "runner"),
	})
}

// GenerationDefaults returns the configured generation options for a run.
// Mode is filled in per run.
func (a *App) GenerationDefaults() types.GenerationOptions {
	return types.GenerationOptions{
		Personality:   a.Config.Generation.Personality,
		IncludeImages: a.Config.Generation.EnableImages,
	}
}

// Close flushes pending spans and closes the pool.
func (a *App) Close(ctx context.Context) {
	if err := a.shutdownTracing(ctx); err != nil {
		a.Logger.Error("failed to flush traces", "error", err)
	}
	a.Pool.Close()
}
