package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"trashdetector/internal/config"
	"trashdetector/internal/control"
	"trashdetector/internal/logger"
	"trashdetector/internal/metrics"
	"trashdetector/internal/repository"
	"trashdetector/internal/repository/sqlite"
	"trashdetector/internal/routes"
	"trashdetector/internal/service"
	"trashdetector/internal/service/ai"
	"trashdetector/internal/service/camera"
	"trashdetector/internal/service/notify"
	"trashdetector/internal/service/storage"
	"trashdetector/internal/service/websocket"
	"trashdetector/internal/session"

	"github.com/google/uuid"
)

const (
	cameraWarmup    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	camera    *camera.Camera
	detector  *ai.DetectorService
	db        *sqlite.DB
	kafka     *notify.KafkaNotifier
	hub       *websocket.HubService
	snapshots *storage.SnapshotStore
	metrics   *metrics.Metrics
	manager   *service.Manager

	eventRepo     repository.EventRepository
	detectionRepo repository.DetectionRepository
}

// NewApp opens the model, camera and database and wires the processing
// manager. Resources opened before a failure are released.
func NewApp(cfg *config.Config) (a *App, err error) {
	policy, err := session.ParsePolicy(cfg.DedupPolicy)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a = &App{config: cfg, logger: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	created, err := storage.EnsureDir(cfg.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("output directory %s: %w", cfg.OutputDirectory, err)
	}
	if created {
		log.Info("📁 Created output directory %s", cfg.OutputDirectory)
	}

	a.detector, err = ai.NewDetectorService(cfg, log)
	if err != nil {
		return nil, err
	}

	a.camera, err = camera.Open(cfg.CameraSource, log)
	if err != nil {
		return nil, err
	}

	if cfg.DatabasePath != "" {
		if _, err = storage.EnsureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
			return nil, fmt.Errorf("database directory: %w", err)
		}
		a.db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.eventRepo = sqlite.NewEventRepository(a.db)
		a.detectionRepo = sqlite.NewDetectionRepository(a.db)
		log.Info("🗄️  Events stored in %s", cfg.DatabasePath)
	}

	a.hub = websocket.NewHubService(log)
	a.snapshots = storage.NewSnapshotStore(cfg.OutputDirectory)

	notifiers := notify.Multi{notify.NewLogNotifier(log), notify.NewHubNotifier(a.hub)}
	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		notifiers = append(notifiers, a.kafka)
		log.Info("📨 Publishing detections to %s on %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}

	deps := service.Dependencies{
		Source:     a.camera,
		Detector:   a.detector,
		Records:    storage.NewRecordFile(cfg.OutputDirectory, cfg.SaveFile),
		Snapshots:  a.snapshots,
		Events:     a.eventRepo,
		Detections: a.detectionRepo,
		Notifier:   notifiers,
		Metrics:    a.metrics,
		Logger:     log,
		Out:        os.Stdout,
	}

	a.manager = service.NewManager(deps, service.Options{
		Policy:            policy,
		HourlyFlush:       cfg.HourlyFlush,
		FrameInterval:     cfg.FrameInterval,
		MaxFrameErrors:    cfg.MaxFrameErrors,
		NotificationTitle: cfg.NotificationTitle,
		SessionID:         uuid.NewString(),
	})

	return a, nil
}

// Run starts capture, the HTTP surface and the keyboard reader, then runs
// the processing loop until it stops. The session log is flushed before
// Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(ctx)

	a.camera.Start()
	defer a.camera.Stop()

	warmup, cancelWarmup := context.WithTimeout(ctx, cameraWarmup)
	err := a.camera.WaitReady(warmup)
	cancelWarmup()
	if err != nil {
		return fmt.Errorf("camera %s produced no frame: %w", a.config.CameraSource, err)
	}

	var server *http.Server
	if a.config.Port > 0 {
		server = a.startServer(ctx)
	}

	keys := control.NewKeyReader(a.config.PrintKey, a.config.StopKey)
	go func() {
		if err := keys.Run(ctx, os.Stdin, a.manager.Control()); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warning("Keyboard input stopped: %v", err)
		}
	}()

	fmt.Printf("🚀 Trash Detector\n")
	fmt.Printf("📷 Camera: %s\n", a.config.CameraSource)
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)
	fmt.Printf("📁 Output: %s\n", a.config.RecordPath())
	fmt.Printf("⌨️  Press '%s' to save the log, '%s' to stop\n", a.config.PrintKey, a.config.StopKey)

	runErr := a.manager.Run(ctx)

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("HTTP shutdown: %v", err)
		}
		cancelShutdown()
	}

	frames, readErrors := a.camera.Stats()
	a.logger.Info("📷 %d frame(s) captured, %d read failure(s)", frames, readErrors)
	return runErr
}

func (a *App) startServer(ctx context.Context) *http.Server {
	handler := routes.SetupRoutes(ctx, routes.Dependencies{
		Session:       a.manager,
		Hub:           a.hub,
		Snapshots:     a.snapshots,
		EventRepo:     a.eventRepo,
		DetectionRepo: a.detectionRepo,
		Metrics:       a.metrics,
		AccessLog:     os.Stdout,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed: %v", err)
		}
	}()
	return server
}

// Close releases the model, camera, database, publisher and log files.
func (a *App) Close() error {
	var errs []error
	if a.camera != nil {
		a.camera.Stop()
	}
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}
