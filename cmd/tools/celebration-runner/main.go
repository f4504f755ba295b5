// Package main implements celebration-runner, the operator CLI for the
// birthday bot. It runs scheduler tasks in-process, bypassing the Lambda
// shim, and inspects or repairs celebration state.
//
// Usage:
//
//	celebration-runner tasks
//	celebration-runner run --task celebrate_daily
//	celebration-runner run --task celebrate_timezone --reference-time 2026-07-05T07:00:00Z --dry-run
//	celebration-runner list --task celebrate_missed --human
//	celebration-runner mark --user U024BE7LH --mode SIMPLE
//	celebration-runner status --user U024BE7LH --date 2026-07-05
//	celebration-runner thread --channel C0BDAY --ts 1720166400.000100
//	celebration-runner migrate
//
// Configuration comes from the environment (or .env), exactly as for the
// Lambda. Output is JSON unless --human is set.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"birthdaybot/internal/app"
	"birthdaybot/internal/config"
)

var (
	humanOutput   bool
	referenceFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "celebration-runner",
	Short: "Run and inspect birthday celebrations",
	Long: `celebration-runner drives the birthday bot's scheduled tasks by hand
and inspects the celebration markers and posted threads they leave behind.

All commands print JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&referenceFlag, "reference-time", "", "Reference time (RFC 3339); defaults to now")
	rootCmd.Version = config.NewBuildInfo().String()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// buildApp loads configuration and wires the full application.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, app.NewLogger(cfg))
}

// parseReference resolves the --reference-time flag against now.
func parseReference(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --reference-time %q: expected RFC 3339 such as 2026-07-05T09:00:00Z", raw)
	}
	return t.UTC(), nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
