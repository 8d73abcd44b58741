package main

import (
	"testing"
	"time"
)

func TestBuildEvents(t *testing.T) {
	labels := []string{
		"09/01 09:00, 1",
		"",
		"not a label",
		"09/01 09:05, 3",
		"13/45 99:99, 2",
	}

	events, skipped := buildEvents(labels, 2024, time.UTC, "import-1")

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if len(skipped) != 2 {
		t.Errorf("Expected 2 skipped lines, got %v", skipped)
	}

	e := events[1]
	expected := time.Date(2024, 9, 1, 9, 5, 0, 0, time.UTC)
	if !e.Timestamp.Equal(expected) || e.Count != 3 || e.SessionID != "import-1" {
		t.Errorf("Unexpected event %+v", e)
	}
	if e.Label != "09/01 09:05, 3" {
		t.Errorf("Label should be kept verbatim, got %q", e.Label)
	}
}
