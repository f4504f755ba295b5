package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/scheduler"
	"birthdaybot/internal/types"
)

var listTask string

func init() {
	listCmd.Flags().StringVar(&listTask, "task", string(scheduler.TaskCelebrateDaily), "Celebration task whose candidates to list")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the people a celebration task would pick up",
	Long: `List the candidates a celebrate_* task would hand to the pipeline at the
reference time. Nothing is posted or marked.

Examples:
  celebration-runner list
  celebration-runner list --task celebrate_timezone --reference-time 2026-07-05T07:00:00Z --human`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	task, err := scheduler.ParseTask(listTask)
	if err != nil {
		return err
	}
	if _, ok := task.Mode(); !ok {
		return fmt.Errorf("task %s does not celebrate anyone", task)
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

	people, err := a.Celebrations.Candidates(ctx, task, ref)
	if err != nil {
		return fmt.Errorf("listing candidates: %w", err)
	}

	if !humanOutput {
		if people == nil {
			people = []types.BirthdayPerson{}
		}
		return outputJSON(people)
	}
	if len(people) == 0 {
		fmt.Printf("Nobody is due for %s at %s\n", task, ref.Format(time.RFC3339))
		return nil
	}
	fmt.Printf("%d due for %s at %s:\n\n", len(people), task, ref.Format(time.RFC3339))
	for _, p := range people {
		fmt.Printf("  %-12s %-20s %s\n", p.UserID, p.Username, birthday.Words(p.Date, p.Year))
	}
	return nil
}
