// Package main is the entrypoint for the Celebrator Lambda function.
//
// EventBridge rules invoke it with a scheduler.Payload naming the task:
// celebrate_timezone hourly, celebrate_daily and celebrate_missed once a day,
// and cleanup_announcements nightly. Every task goes through scheduler.Runner,
// which takes the per-hour job lock and records job history.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"birthdaybot/internal/app"
	"birthdaybot/internal/config"
	"birthdaybot/internal/scheduler"
	"birthdaybot/internal/types"
)

// TaskRunner runs one scheduled task.
type TaskRunner interface {
	Run(ctx context.Context, payload scheduler.Payload) (string, error)
}

// Handler adapts a TaskRunner to the Lambda invocation signature.
type Handler struct {
	Runner TaskRunner
}

// Handle tags the context with the Lambda request ID so that downstream
// Slack and OpenAI calls carry it, then runs the task.
func (h *Handler) Handle(ctx context.Context, payload scheduler.Payload) (string, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		ctx = types.WithRequestID(ctx, lc.AwsRequestID)
	}
	return h.Runner.Run(ctx, payload)
}

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bootLogger.Info("Celebrator Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	// The pool and clients live as long as the execution environment.
	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	logger.Info("Celebrator Lambda initialized",
		"worker_id", a.WorkerID,
		"version", cfg.Build.Version,
	)

	handler := &Handler{Runner: a.Runner}
	lambda.Start(handler.Handle)
}
