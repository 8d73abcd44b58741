package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
	"trashdetector/internal/control"
	"trashdetector/internal/logger"
	"trashdetector/internal/metrics"
	"trashdetector/internal/model"
	"trashdetector/internal/repository"
	"trashdetector/internal/repository/sqlite"
	"trashdetector/internal/service/notify"
	"trashdetector/internal/service/storage"
	"trashdetector/internal/session"

	"gocv.io/x/gocv"
)

// FrameSource hands out the latest camera frame. The caller closes it.
type FrameSource interface {
	Frame() (gocv.Mat, error)
}

// Detector finds objects in a frame and draws them.
type Detector interface {
	Detect(frame gocv.Mat) ([]model.Box, error)
	Annotate(frame gocv.Mat, boxes []model.Box) ([]byte, error)
}

// Options tune the processing loop.
type Options struct {
	Policy            session.Policy
	HourlyFlush       bool
	FrameInterval     time.Duration
	MaxFrameErrors    int // consecutive failures before the loop gives up, 0 = never
	NotificationTitle string
	SessionID         string
}

// Dependencies are the collaborators of the Manager. Events, Detections and
// Notifier may be nil.
type Dependencies struct {
	Source     FrameSource
	Detector   Detector
	Records    session.RecordWriter
	Snapshots  *storage.SnapshotStore
	Events     repository.EventRepository
	Detections repository.DetectionRepository
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
	Out        io.Writer // console banner output
}

// Manager runs the processing loop. The session log is owned by the Run
// goroutine; other goroutines talk to it through Control and Stop.
type Manager struct {
	source     FrameSource
	detector   Detector
	records    session.RecordWriter
	snapshots  *storage.SnapshotStore
	events     repository.EventRepository
	detections repository.DetectionRepository
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	logger     *logger.Logger
	out        io.Writer
	opts       Options

	log   *session.Log
	hours *session.HourWatch

	control   chan control.Event
	running   atomic.Bool
	published atomic.Pointer[[]model.Record]

	now          func() time.Time
	errorBackoff time.Duration
}

func NewManager(deps Dependencies, opts Options) *Manager {
	m := &Manager{
		source:       deps.Source,
		detector:     deps.Detector,
		records:      deps.Records,
		snapshots:    deps.Snapshots,
		events:       deps.Events,
		detections:   deps.Detections,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		out:          deps.Out,
		opts:         opts,
		log:          session.New(opts.Policy),
		control:      make(chan control.Event, 8),
		now:          time.Now,
		errorBackoff: 100 * time.Millisecond,
	}
	if m.out == nil {
		m.out = io.Discard
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}
	m.publish()
	return m
}

// Control is the queue read by the processing loop.
func (m *Manager) Control() chan<- control.Event {
	return m.control
}

// Stop asks the loop to finish after the current step. Safe from any goroutine.
func (m *Manager) Stop() {
	m.running.Store(false)
}

// Running reports whether Run is inside its loop.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Records returns the session log as of the last processing step.
func (m *Manager) Records() []model.Record {
	return *m.published.Load()
}

func (m *Manager) SessionID() string {
	return m.opts.SessionID
}

func (m *Manager) publish() {
	records := m.log.Records()
	m.published.Store(&records)
	m.metrics.SessionRecords.Store(int64(len(records)))
}

// Run processes frames until Stop, a Stop control event, ctx cancellation,
// or MaxFrameErrors consecutive failures. The log is flushed on every exit.
func (m *Manager) Run(ctx context.Context) (err error) {
	m.running.Store(true)
	m.hours = session.NewHourWatch(m.now())
	m.logger.Info("🎬 Processing started (policy %s, session %s)", m.opts.Policy, m.opts.SessionID)

	defer func() {
		m.running.Store(false)
		if flushErr := m.Flush(); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
		m.logger.Info("🛑 Processing stopped with %d record(s)", m.log.Len())
	}()

	failures := 0
	for m.running.Load() {
		if ctx.Err() != nil {
			m.logger.Info("Context done, stopping")
			return nil
		}
		m.drainControl()
		if !m.running.Load() {
			break
		}

		now := m.now()
		if stepErr := m.processFrame(ctx, now); stepErr != nil {
			failures++
			m.logger.Warning("Skipping frame: %v", stepErr)
			if m.opts.MaxFrameErrors > 0 && failures >= m.opts.MaxFrameErrors {
				return fmt.Errorf("giving up after %d consecutive frame errors: %w", failures, stepErr)
			}
			m.wait(ctx, m.errorBackoff)
		} else {
			failures = 0
		}

		if m.opts.HourlyFlush && m.hours.Due(now) {
			m.logger.Info("⏰ Hour changed, flushing")
			if flushErr := m.Flush(); flushErr != nil {
				m.logger.Error("Hourly flush failed: %v", flushErr)
			}
			m.hours.Mark(now)
		}

		m.wait(ctx, m.opts.FrameInterval)
	}
	return nil
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (m *Manager) drainControl() {
	for {
		select {
		case ev := <-m.control:
			m.handleControl(ev)
		default:
			return
		}
	}
}

func (m *Manager) handleControl(ev control.Event) {
	m.logger.Info("🎛️ %s requested via %s", ev.Kind, ev.Source)
	switch ev.Kind {
	case control.Flush:
		if err := m.Flush(); err != nil {
			m.logger.Error("Flush failed: %v", err)
		}
	case control.Stop:
		m.Stop()
	}
}

func (m *Manager) processFrame(ctx context.Context, now time.Time) error {
	frame, err := m.source.Frame()
	if err != nil {
		m.metrics.FrameErrors.Add(1)
		return fmt.Errorf("frame: %w", err)
	}
	defer frame.Close()
	m.metrics.FramesRead.Add(1)

	start := time.Now()
	boxes, err := m.detector.Detect(frame)
	m.metrics.ObserveInference(time.Since(start))
	if err != nil {
		m.metrics.InferenceErrors.Add(1)
		return fmt.Errorf("detect: %w", err)
	}
	m.metrics.FramesProcessed.Add(1)

	m.Step(ctx, now, frame, boxes)
	return nil
}

// Step feeds one processed frame to the session log and carries out the
// resulting effects. Failures of individual effects are logged; the record
// stays in the log either way.
func (m *Manager) Step(ctx context.Context, now time.Time, frame gocv.Mat, boxes []model.Box) session.Effects {
	effects := m.log.Process(model.Sample{Timestamp: now, Boxes: boxes})
	if effects.Empty() {
		if len(boxes) > 0 {
			m.metrics.DuplicatesSuppressed.Add(1)
		}
		return effects
	}

	record := *effects.Record
	m.metrics.EventsLogged.Add(1)
	m.metrics.LastCount.Store(int64(record.Count))
	m.logger.Info("🗑️ %s", record.Label)

	size := m.saveSnapshot(frame, boxes, effects.Snapshot)
	m.persist(record, effects.Snapshot, size, boxes)

	if m.notifier != nil {
		n := notify.New(m.opts.NotificationTitle, record, effects.Snapshot, now)
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.metrics.NotifyErrors.Add(1)
			m.logger.Warning("Notification failed: %v", err)
		}
	}

	m.publish()
	return effects
}

func (m *Manager) saveSnapshot(frame gocv.Mat, boxes []model.Box, name string) int64 {
	if m.snapshots == nil {
		return 0
	}
	jpeg, err := m.detector.Annotate(frame, boxes)
	if err != nil {
		m.logger.Error("Failed to annotate frame: %v", err)
		return 0
	}
	path, size, err := m.snapshots.Save(name, jpeg)
	if err != nil {
		m.logger.Error("Failed to save snapshot: %v", err)
		return 0
	}
	m.metrics.SnapshotsSaved.Add(1)
	m.logger.Debug("Snapshot saved to %s (%d bytes)", path, size)
	return size
}

func (m *Manager) persist(record model.Record, snapshot string, size int64, boxes []model.Box) {
	if m.events == nil {
		return
	}
	id, err := m.events.Insert(&model.Event{
		SessionID: m.opts.SessionID,
		Label:     record.Label,
		Count:     record.Count,
		Timestamp: record.Timestamp,
		Snapshot:  snapshot,
		FileSize:  size,
	})
	if errors.Is(err, sqlite.ErrDuplicate) {
		m.logger.Warning("Event %s already stored", record.Label)
		return
	}
	if err != nil {
		m.logger.Error("Failed to store event: %v", err)
		return
	}

	if m.detections == nil {
		return
	}
	rows := make([]model.Detection, len(boxes))
	for i, b := range boxes {
		rows[i] = model.Detection{
			EventID:    id,
			Class:      b.Class,
			X1:         int(b.X1),
			Y1:         int(b.Y1),
			X2:         int(b.X2),
			Y2:         int(b.Y2),
			Confidence: b.Confidence,
		}
	}
	if err := m.detections.InsertBatch(rows); err != nil {
		m.logger.Error("Failed to store detections: %v", err)
	}
}

// Flush writes the whole session log to the record file. Call it from the
// Run goroutine, or after Run has returned.
func (m *Manager) Flush() error {
	m.metrics.Flushes.Add(1)
	if err := session.Flush(m.log, m.records, m.out); err != nil {
		m.metrics.FlushErrors.Add(1)
		return err
	}
	m.logger.Info("💾 %d record(s) saved to %s", m.log.Len(), m.records.Name())
	return nil
}
