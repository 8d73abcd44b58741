package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"trashdetector/internal/model"
	"trashdetector/internal/repository/sqlite"
	"trashdetector/internal/service/storage"
	"trashdetector/internal/session"

	"github.com/google/uuid"
)

func main() {
	recordPath := flag.String("file", filepath.Join("output", "record.csv"), "Record file to import")
	dbPath := flag.String("db", filepath.Join("output", "detections.db"), "Database path")
	year := flag.Int("year", time.Now().Year(), "Year the labels were recorded in")
	sessionID := flag.String("session", "", "Session id for imported events (default: new uuid)")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = "import-" + uuid.NewString()
	}

	fmt.Printf("Migrating records from %s to database %s\n", *recordPath, *dbPath)

	labels, err := storage.ReadRecordFile(*recordPath)
	if err != nil {
		log.Fatalf("Failed to read record file: %v", err)
	}

	events, skipped := buildEvents(labels, *year, time.Local, *sessionID)
	for _, msg := range skipped {
		log.Printf("⚠️  Skipping %s", msg)
	}

	if len(events) == 0 {
		fmt.Println("No records found to migrate")
		return
	}

	// Ensure database directory exists
	if _, err := storage.EnsureDir(filepath.Dir(*dbPath)); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewEventRepository(db)

	fmt.Printf("Inserting %d records into database...\n", len(events))
	inserted, duplicates := 0, 0
	for i := range events {
		_, err := repo.Insert(&events[i])
		switch {
		case errors.Is(err, sqlite.ErrDuplicate):
			duplicates++
		case err != nil:
			log.Fatalf("Failed to insert %s: %v", events[i].Label, err)
		default:
			inserted++
		}
	}

	fmt.Printf("✅ Successfully migrated %d records to database (session %s)\n", inserted, *sessionID)
	if duplicates > 0 {
		fmt.Printf("⚠️  Skipped %d duplicate records\n", duplicates)
	}
	if len(skipped) > 0 {
		fmt.Printf("⚠️  Skipped %d lines (invalid format)\n", len(skipped))
	}

	// Show stats
	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total events: %d\n", stats.TotalEvents)
		fmt.Printf("   Total objects: %d\n", stats.TotalObjects)
		fmt.Printf("   Per session:\n")
		for id, count := range stats.PerSession {
			fmt.Printf("      - %s: %d events\n", id, count)
		}
	}
}

// buildEvents parses record labels back into events. Invalid lines are
// reported in skipped and left out.
func buildEvents(labels []string, year int, loc *time.Location, sessionID string) (events []model.Event, skipped []string) {
	for i, label := range labels {
		if label == "" {
			continue
		}
		ts, count, err := session.ParseLabel(label, year, loc)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		events = append(events, model.Event{
			SessionID: sessionID,
			Label:     label,
			Count:     count,
			Timestamp: ts,
			Snapshot:  session.SnapshotName(ts),
		})
	}
	return events, skipped
}
