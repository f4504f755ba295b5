package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/types"
)

var (
	statusUser    string
	statusDate    string
	threadChannel string
	threadTS      string
)

func init() {
	statusCmd.Flags().StringVar(&statusUser, "user", "", "Slack user ID")
	statusCmd.Flags().StringVar(&statusDate, "date", "", "Marker date (YYYY-MM-DD); defaults to the reference date")
	_ = statusCmd.MarkFlagRequired("user")

	threadCmd.Flags().StringVar(&threadChannel, "channel", "", "Channel the celebration was posted in")
	threadCmd.Flags().StringVar(&threadTS, "ts", "", "Message timestamp of the celebration post")
	_ = threadCmd.MarkFlagRequired("channel")
	_ = threadCmd.MarkFlagRequired("ts")

	rootCmd.AddCommand(statusCmd, threadCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a stored birthday and whether it was celebrated on a date",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Show who a posted celebration was for",
	Args:  cobra.NoArgs,
	RunE:  runThread,
}

type statusOutput struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Birthday   string `json:"birthday"`
	Timezone   string `json:"timezone,omitempty"`
	Date       string `json:"date"`
	Celebrated bool   `json:"celebrated"`
}

// markerDate returns the marker key to check: --date when given, otherwise
// the reference date.
func markerDate(raw string, ref time.Time) (string, error) {
	if raw == "" {
		return types.DateKey(ref), nil
	}
	if _, err := time.Parse(time.DateOnly, raw); err != nil {
		return "", fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", raw)
	}
	return raw, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ref, err := parseReference(referenceFlag, time.Now())
	if err != nil {
		return err
	}
	date, err := markerDate(statusDate, ref)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	rec, err := a.Repos.Birthdays.Get(ctx, statusUser)
	if err != nil {
		return err
	}
	celebrated, err := a.Repos.Announcements.IsCelebrated(ctx, date, statusUser)
	if err != nil {
		return err
	}

	out := statusOutput{
		UserID:     rec.UserID,
		Username:   rec.Username,
		Birthday:   rec.Date.String(),
		Timezone:   rec.Timezone,
		Date:       date,
		Celebrated: celebrated,
	}
	if !humanOutput {
		return outputJSON(out)
	}
	fmt.Printf("%s (%s): %s %s\n", rec.Username, rec.UserID, birthday.Words(rec.Date, rec.Year), birthday.StarSign(rec.Date))
	if celebrated {
		fmt.Printf("  celebrated on %s\n", date)
	} else {
		fmt.Printf("  not celebrated on %s\n", date)
	}
	return nil
}

func runThread(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	thread, err := a.Repos.Threads.Get(ctx, threadChannel, threadTS)
	if err != nil {
		return err
	}
	if !humanOutput {
		return outputJSON(thread)
	}
	fmt.Printf("Posted %s by %s (run %s)\n", thread.PostedAt.Format(time.RFC3339), thread.Personality, thread.RunID)
	fmt.Printf("  for %s\n", strings.Join(thread.UserIDs, ", "))
	return nil
}
