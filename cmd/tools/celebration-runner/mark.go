package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"birthdaybot/internal/types"
)

var (
	markUser string
	markMode string
)

func init() {
	markCmd.Flags().StringVar(&markUser, "user", "", "Slack user ID to mark as celebrated")
	markCmd.Flags().StringVar(&markMode, "mode", string(types.ModeSimple), "Marker bucket: SIMPLE, TIMEZONE or MISSED")
	_ = markCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(markCmd)
}

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Mark someone as celebrated without posting",
	Long: `Write a celebration marker for a stored birthday, for example after a
celebration was posted by hand. The marker is only written if nobody has
marked the person on the reference date yet.

Examples:
  celebration-runner mark --user U024BE7LH
  celebration-runner mark --user U024BE7LH --mode TIMEZONE --reference-time 2026-07-05T07:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runMark,
}

type markOutput struct {
	UserID  string     `json:"user_id"`
	Date    string     `json:"date"`
	Mode    types.Mode `json:"mode"`
	Claimed bool       `json:"claimed"`
}

func runMark(cmd *cobra.Command, args []string) error {
	mode, err := types.ParseMode(markMode)
	if err != nil {
		return err
	}
	if mode == types.ModeTest {
		return fmt.Errorf("TEST runs never mark anyone")
	}
	ref, err := parseReference(referenceFlag, time.Now())
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

	rec, err := a.Repos.Birthdays.Get(ctx, markUser)
	if err != nil {
		return err
	}
	claimed, err := a.Tracker.Claim(ctx, types.PersonFromRecord(*rec), mode, ref)
	if err != nil {
		return fmt.Errorf("marking %s: %w", markUser, err)
	}

	out := markOutput{UserID: markUser, Date: types.DateKey(ref), Mode: mode, Claimed: claimed}
	if !humanOutput {
		return outputJSON(out)
	}
	if claimed {
		fmt.Printf("Marked %s as celebrated on %s (%s)\n", markUser, out.Date, mode)
	} else {
		fmt.Printf("%s was already marked on %s\n", markUser, out.Date)
	}
	return nil
}
