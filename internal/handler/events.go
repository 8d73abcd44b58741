package handler

import (
	"net/http"
	"os"
	"strconv"
	"time"
	"trashdetector/internal/logger"
	"trashdetector/internal/model"
	"trashdetector/internal/repository"
	"trashdetector/internal/service/storage"

	"github.com/gorilla/mux"
)

type eventWithDetections struct {
	model.Event
	Detections []model.Detection `json:"detections"`
}

type eventsResponse struct {
	Events []eventWithDetections `json:"events"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// GetEventsHandler returns persisted events, newest first.
// Query: limit, offset, after, before, count (minimum), session ("current"
// selects the running session).
func GetEventsHandler(session Session, eventRepo repository.EventRepository,
	detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if eventRepo == nil {
			http.Error(w, "Event storage disabled", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		filter := &model.EventFilter{
			SessionID: q.Get("session"),
			MinCount:  atoiDefault(q.Get("count"), 0),
			After:     parseTime(q.Get("after")),
			Before:    parseTime(q.Get("before")),
			Limit:     atoiDefault(q.Get("limit"), 50),
			Offset:    atoiDefault(q.Get("offset"), 0),
		}
		if filter.SessionID == "current" {
			filter.SessionID = session.SessionID()
		}

		events, err := eventRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying events from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := eventRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting events: %v", err)
			total = len(events)
		}

		out := make([]eventWithDetections, 0, len(events))
		for _, e := range events {
			item := eventWithDetections{Event: e, Detections: []model.Detection{}}
			if detectionRepo != nil {
				dets, err := detectionRepo.GetByEventID(e.ID)
				if err != nil {
					logger.Error("Error getting detections for event %d: %v", e.ID, err)
				} else if dets != nil {
					item.Detections = dets
				}
			}
			out = append(out, item)
		}

		writeJSON(w, http.StatusOK, eventsResponse{
			Events: out,
			Total:  total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		}, logger)
	}
}

// GetEventStatsHandler returns aggregate counts over all stored events.
func GetEventStatsHandler(eventRepo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if eventRepo == nil {
			http.Error(w, "Event storage disabled", http.StatusServiceUnavailable)
			return
		}
		stats, err := eventRepo.GetStats()
		if err != nil {
			logger.Error("Error computing event stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// ViewSnapshotHandler serves one annotated snapshot by file name.
func ViewSnapshotHandler(store *storage.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := store.Path(mux.Vars(r)["name"])
		if !ok {
			http.Error(w, "Invalid snapshot name", http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value < 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// parseTime accepts RFC3339 or a plain "2006-01-02" date in local time.
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
