package routes

import (
	"context"
	"io"
	"net/http"
	"trashdetector/internal/config"
	"trashdetector/internal/handler"
	"trashdetector/internal/logger"
	"trashdetector/internal/metrics"
	"trashdetector/internal/middleware"
	"trashdetector/internal/repository"
	"trashdetector/internal/service/storage"
	"trashdetector/internal/service/websocket"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Dependencies are the services the HTTP surface reads from. The
// repositories may be nil when persistence is disabled.
type Dependencies struct {
	Session       handler.Session
	Hub           *websocket.HubService
	Snapshots     *storage.SnapshotStore
	EventRepo     repository.EventRepository
	DetectionRepo repository.DetectionRepository
	Metrics       *metrics.Metrics
	AccessLog     io.Writer
}

// SetupRoutes registers API, log and metrics endpoints, wraps the router
// with the token middleware and logs every request in Apache format.
func SetupRoutes(ctx context.Context, deps Dependencies, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// API endpoints
	r.HandleFunc("/api/records", handler.GetRecordsHandler(deps.Session, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/events", handler.GetEventsHandler(deps.Session, deps.EventRepo, deps.DetectionRepo, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/events/stats", handler.GetEventStatsHandler(deps.EventRepo, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshots/{name}", handler.ViewSnapshotHandler(deps.Snapshots)).Methods(http.MethodGet)
	r.HandleFunc("/api/flush", handler.FlushHandler(deps.Session, logger)).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", handler.StopHandler(deps.Session, logger)).Methods(http.MethodPost)
	r.HandleFunc("/api/view", handler.ViewWebsocketHandler(ctx, deps.Hub, logger)).Methods(http.MethodGet)

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(cfg.LogDirectory)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", handler.HealthHandler(deps.Session, deps.Hub.GetClientCount, logger)).Methods(http.MethodGet)

	// Apply middleware
	r.Use(middleware.AuthMiddleware(cfg.APIToken))

	accessLog := deps.AccessLog
	if accessLog == nil {
		accessLog = io.Discard
	}
	return handlers.LoggingHandler(accessLog, r)
}
