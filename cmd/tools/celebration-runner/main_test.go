package main

import (
	"testing"
	"time"

	"birthdaybot/internal/scheduler"
)

func TestParseReference(t *testing.T) {
	now := time.Date(2026, 7, 5, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

	got, err := parseReference("", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(now) || got.Location() != time.UTC {
		t.Errorf("expected now in UTC, got %v", got)
	}

	got, err = parseReference("2026-07-05T07:00:00+09:00", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 7, 4, 22, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := parseReference("yesterday", now); err == nil {
		t.Error("expected error for a non-RFC 3339 value")
	}
}

func TestMarkerDate(t *testing.T) {
	ref := time.Date(2026, 7, 5, 23, 0, 0, 0, time.UTC)

	if got, _ := markerDate("", ref); got != "2026-07-05" {
		t.Errorf("expected reference date, got %q", got)
	}
	if got, _ := markerDate("2026-02-14", ref); got != "2026-02-14" {
		t.Errorf("expected explicit date, got %q", got)
	}
	if _, err := markerDate("14/02", ref); err == nil {
		t.Error("expected error for a non ISO date")
	}
}

func TestTaskDescriptionsCoverEveryTask(t *testing.T) {
	for _, task := range scheduler.AllTasks() {
		if taskDescriptions[task] == "" {
			t.Errorf("task %s has no description", task)
		}
	}
	if len(taskDescriptions) != len(scheduler.AllTasks()) {
		t.Errorf("descriptions list %d tasks, scheduler has %d", len(taskDescriptions), len(scheduler.AllTasks()))
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"tasks", "run", "list", "mark", "status", "thread", "migrate"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
