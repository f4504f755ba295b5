package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"birthdaybot/internal/scheduler"
)

// taskDescriptions documents every task the runner accepts.
var taskDescriptions = map[scheduler.TaskType]string{
	scheduler.TaskCelebrateTimezone:    "Celebrate people whose local time is the celebration hour",
	scheduler.TaskCelebrateDaily:       "Celebrate everyone whose birthday is today (UTC)",
	scheduler.TaskCelebrateMissed:      "Celebrate today's people that no run has marked yet",
	scheduler.TaskCleanupAnnouncements: "Archive old celebration markers to S3 and purge them",
}

type taskInfo struct {
	Task        scheduler.TaskType `json:"task"`
	Description string             `json:"description"`
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the scheduled tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := make([]taskInfo, 0, len(taskDescriptions))
		for _, t := range scheduler.AllTasks() {
			infos = append(infos, taskInfo{Task: t, Description: taskDescriptions[t]})
		}
		if !humanOutput {
			return outputJSON(infos)
		}
		for _, info := range infos {
			fmt.Printf("  %-24s %s\n", info.Task, info.Description)
		}
		return nil
	},
}
