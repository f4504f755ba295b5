package main

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"birthdaybot/internal/external"
	"birthdaybot/internal/types"
)

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

// DatabaseConnector verifies a DSN is reachable. Implementations must close
// any connection they open.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector opens and immediately closes a pgx connection.
type PgxConnector struct{}

func (c *PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// SlackVerifier checks a bot token against the Slack Web API.
type SlackVerifier interface {
	Verify(ctx context.Context, token string) error
}

// slackAuthVerifier calls auth.test through the bot's own Slack client.
type slackAuthVerifier struct {
	httpClient *http.Client
}

func (v *slackAuthVerifier) Verify(ctx context.Context, token string) error {
	client := external.NewSlackClient(v.httpClient, external.SlackClientConfig{Token: types.SecretString(token)})
	return client.AuthTest(ctx)
}

// Validator holds the dependencies of the live checks.
type Validator struct {
	slack  SlackVerifier
	dbConn DatabaseConnector
}

// NewValidator returns a Validator that talks to Slack and Postgres.
func NewValidator() *Validator {
	return &Validator{
		slack:  &slackAuthVerifier{httpClient: &http.Client{Timeout: 10 * time.Second}},
		dbConn: &PgxConnector{},
	}
}

// NewValidatorWithDeps returns a Validator with injected dependencies.
func NewValidatorWithDeps(slack SlackVerifier, dbConn DatabaseConnector) *Validator {
	return &Validator{slack: slack, dbConn: dbConn}
}

const validateTimeout = 15 * time.Second

var (
	channelIDPattern = regexp.MustCompile(`^[CG][A-Z0-9]{2,}$`)
	openAIKeyPattern = regexp.MustCompile(`^sk-[A-Za-z0-9_\-]{20,}$`)
)

// ValidateSlackToken checks the xoxb- prefix and then calls auth.test.
func (v *Validator) ValidateSlackToken(ctx context.Context, token string) ValidationResult {
	if !strings.HasPrefix(token, "xoxb-") {
		return ValidationResult{Message: "expected a bot token starting with xoxb-"}
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.slack.Verify(ctx, token); err != nil {
		return ValidationResult{Message: fmt.Sprintf("Slack rejected the token: %v", err)}
	}
	return ValidationResult{Valid: true, Message: "Slack token verified with auth.test"}
}

// ValidateChannelID checks the shape of a public or private channel ID.
func (v *Validator) ValidateChannelID(_ context.Context, channel string) ValidationResult {
	if !channelIDPattern.MatchString(channel) {
		return ValidationResult{Message: fmt.Sprintf("%q is not a channel ID (expected C... or G..., not the channel name)", channel)}
	}
	return ValidationResult{Valid: true, Message: "channel ID format OK"}
}

// ValidateOpenAIKey only checks the key format. A live call would be billed.
func (v *Validator) ValidateOpenAIKey(_ context.Context, key string) ValidationResult {
	if !openAIKeyPattern.MatchString(key) {
		return ValidationResult{Message: "expected an OpenAI key starting with sk-"}
	}
	return ValidationResult{Valid: true, Message: "OpenAI key format OK"}
}

// ValidateDatabaseURL parses the DSN with pgx and opens a test connection.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, dsn string) ValidationResult {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return ValidationResult{Message: "expected a postgres:// or postgresql:// URL"}
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid connection string: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(ctx, dsn); err != nil {
		return ValidationResult{Message: fmt.Sprintf("could not connect to %s:%d: %v", cfg.Host, cfg.Port, err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("connected to %s/%s", cfg.Host, cfg.Database)}
}
