package handler

import (
	"encoding/json"
	"net/http"
	"trashdetector/internal/control"
	"trashdetector/internal/logger"
	"trashdetector/internal/model"
)

// Session is the part of the processing manager the HTTP surface uses.
type Session interface {
	Records() []model.Record
	Control() chan<- control.Event
	SessionID() string
	Running() bool
}

type recordsResponse struct {
	SessionID string         `json:"session_id"`
	Running   bool           `json:"running"`
	Count     int            `json:"count"`
	Records   []model.Record `json:"records"`
}

// GetRecordsHandler returns the in-memory session log.
func GetRecordsHandler(session Session, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := session.Records()
		writeJSON(w, http.StatusOK, recordsResponse{
			SessionID: session.SessionID(),
			Running:   session.Running(),
			Count:     len(records),
			Records:   records,
		}, logger)
	}
}

// FlushHandler asks the processing loop to flush the session log.
func FlushHandler(session Session, logger *logger.Logger) http.HandlerFunc {
	return controlHandler(session, control.Flush, logger)
}

// StopHandler asks the processing loop to flush and stop.
func StopHandler(session Session, logger *logger.Logger) http.HandlerFunc {
	return controlHandler(session, control.Stop, logger)
}

func controlHandler(session Session, kind control.Kind, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !session.Running() {
			http.Error(w, "Processing is not running", http.StatusConflict)
			return
		}
		if !control.Send(session.Control(), control.Event{Kind: kind, Source: "http"}) {
			logger.Warning("Control queue full, %s request rejected", kind)
			http.Error(w, "Control queue full", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "action": kind.String()}, logger)
	}
}

// HealthHandler reports liveness plus a few counters.
func HealthHandler(session Session, viewers func() int, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"running": session.Running(),
			"records": len(session.Records()),
			"viewers": viewers(),
		}, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
