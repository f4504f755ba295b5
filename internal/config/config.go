// Package config defines the process configuration for the birthday bot.
// Configuration is loaded once at startup (Lambda cold start, CLI start or
// admin server start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"birthdaybot/internal/types"
)

// SecretString is an alias for types.SecretString so that config consumers do
// not need to import types for secret fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"birthdaybot"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Slack         SlackConfig
	Generation    GenerationConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Celebration   CelebrationConfig
	Admin         AdminConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// SlackConfig holds Slack Web API credentials and the celebration channel.
type SlackConfig struct {
	BotToken        SecretString  `envconfig:"SLACK_BOT_TOKEN" validate:"required"`
	BotUserID       string        `envconfig:"SLACK_BOT_USER_ID"`
	BirthdayChannel string        `envconfig:"BIRTHDAY_CHANNEL" validate:"required"`
	APIBaseURL      string        `envconfig:"SLACK_API_BASE_URL" default:"https://slack.com/api" validate:"url"`
	RequestsPerMin  int           `envconfig:"SLACK_REQUESTS_PER_MINUTE" default:"50" validate:"min=1"`
	Timeout         time.Duration `envconfig:"SLACK_TIMEOUT" default:"15s"`
}

// GenerationConfig holds message and image generation settings.
type GenerationConfig struct {
	OpenAIAPIKey  SecretString  `envconfig:"OPENAI_API_KEY"`
	BaseURL       string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1" validate:"url"`
	Model         string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
	ImageModel    string        `envconfig:"OPENAI_IMAGE_MODEL" default:"gpt-image-1"`
	Personality   string        `envconfig:"BOT_PERSONALITY" default:"standard"`
	EnableImages  bool          `envconfig:"ENABLE_BIRTHDAY_IMAGES" default:"true"`
	Timeout       time.Duration `envconfig:"GENERATION_TIMEOUT" default:"90s"`
	MaxTokens     int           `envconfig:"OPENAI_MAX_TOKENS" default:"600" validate:"min=50"`
	ImageQuality  string        `envconfig:"OPENAI_IMAGE_QUALITY" default:"medium" validate:"oneof=low medium high auto"`
	ImageSize     string        `envconfig:"OPENAI_IMAGE_SIZE" default:"1024x1024"`
	SkipAIOnLocal bool          `envconfig:"SKIP_AI_ON_LOCAL" default:"false"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// CelebrationEventsQueue receives a message per posted celebration.
	// Empty disables publishing.
	CelebrationEventsQueue string `envconfig:"SQS_CELEBRATION_EVENTS" validate:"omitempty,url"`
	// ArchiveBucket stores purged announcement markers. Empty disables archiving.
	ArchiveBucket string `envconfig:"ANNOUNCEMENT_ARCHIVE_BUCKET"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// CelebrationConfig tunes the posting pipeline and the scheduler.
type CelebrationConfig struct {
	RegenerateThreshold   float64       `envconfig:"REGENERATE_THRESHOLD" default:"0.3" validate:"gte=0,lte=1"`
	RaceAlertThreshold    float64       `envconfig:"RACE_ALERT_THRESHOLD" default:"0.2" validate:"gte=0,lte=1"`
	PipelineTimeout       time.Duration `envconfig:"PIPELINE_TIMEOUT" default:"4m"`
	CelebrationHour       int           `envconfig:"CELEBRATION_HOUR" default:"9" validate:"gte=0,lte=23"`
	UploadConcurrency     int           `envconfig:"IMAGE_UPLOAD_CONCURRENCY" default:"3" validate:"min=1,max=10"`
	AnnouncementRetention time.Duration `envconfig:"ANNOUNCEMENT_RETENTION" default:"720h"`
}

// AdminConfig holds the admin HTTP surface settings.
type AdminConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// TokenHash is the bcrypt hash of the admin bearer token.
	TokenHash SecretString `envconfig:"ADMIN_TOKEN_HASH"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"BirthdayBot"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
	OTLPEndpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"omitempty,url"`
	EnableTracing   bool   `envconfig:"ENABLE_TRACING" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
