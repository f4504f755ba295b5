package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"birthdaybot/internal/scheduler"
)

var (
	runTask   string
	runDryRun bool
)

func init() {
	runCmd.Flags().StringVar(&runTask, "task", "", "Task to run (see 'tasks')")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Select candidates without posting, marking or taking the job lock")
	_ = runCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scheduled task now",
	Long: `Run a scheduled task in-process through the same runner the Lambda uses,
including the per-hour job lock and job history.

Examples:
  celebration-runner run --task celebrate_daily
  celebration-runner run --task celebrate_timezone --reference-time 2026-07-05T07:00:00Z --dry-run`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

type runOutput struct {
	Task          scheduler.TaskType `json:"task"`
	ReferenceTime time.Time          `json:"reference_time"`
	DryRun        bool               `json:"dry_run"`
	Result        string             `json:"result"`
}

func runRun(cmd *cobra.Command, args []string) error {
	task, err := scheduler.ParseTask(runTask)
	if err != nil {
		return err
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

	result, err := a.Runner.Run(ctx, scheduler.Payload{Task: task, ReferenceTime: &ref, DryRun: runDryRun})
	if err != nil {
		return err
	}

	if humanOutput {
		fmt.Println(result)
		return nil
	}
	return outputJSON(runOutput{Task: task, ReferenceTime: ref, DryRun: runDryRun, Result: result})
}
