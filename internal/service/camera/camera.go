package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"trashdetector/internal/logger"

	"gocv.io/x/gocv"
)

var (
	// ErrNoFrame is returned before the first frame has been captured.
	ErrNoFrame = errors.New("no frame captured yet")
	// ErrStopped is returned once the capture loop has exited.
	ErrStopped = errors.New("camera stopped")
)

// Camera reads frames on its own goroutine and keeps only the latest one.
// Frame hands out copies, so callers never share the capture buffer.
type Camera struct {
	source  string
	capture *gocv.VideoCapture
	logger  *logger.Logger

	mu       sync.Mutex
	latest   gocv.Mat
	hasFrame bool

	ready     chan struct{}
	readyOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	started    atomic.Bool
	stopped    atomic.Bool
	readErrors atomic.Uint64
	frames     atomic.Uint64
}

// Open opens a device index ("0") or a file/stream URL.
func Open(source string, logger *logger.Logger) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %s is not available", source)
	}
	// Keep the driver queue short so the slot stays close to real time.
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	return &Camera{
		source:  source,
		capture: capture,
		logger:  logger,
		latest:  gocv.NewMat(),
		ready:   make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the capture loop. Later calls are no-ops.
func (c *Camera) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.loop()
	}
}

func (c *Camera) loop() {
	defer close(c.done)
	defer c.stopped.Store(true)

	c.logger.Info("📷 Capture started on %s", c.source)
	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-c.stop:
			c.logger.Info("📷 Capture stopped on %s", c.source)
			return
		default:
		}

		if ok := c.capture.Read(&frame); !ok || frame.Empty() {
			n := c.readErrors.Add(1)
			if n%100 == 1 {
				c.logger.Warning("Failed to read frame from %s (%d failures)", c.source, n)
			}
			// Back off a little so a dead device does not spin the CPU.
			select {
			case <-c.stop:
				return
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		c.mu.Lock()
		frame.CopyTo(&c.latest)
		c.hasFrame = true
		c.mu.Unlock()

		c.frames.Add(1)
		c.readyOnce.Do(func() { close(c.ready) })
	}
}

// WaitReady blocks until the first frame arrives or ctx is done.
func (c *Camera) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frame returns a copy of the most recent frame. The caller closes it.
// Calling faster than the capture rate returns the same frame again.
// On error the returned Mat is the zero value and must not be used.
func (c *Camera) Frame() (gocv.Mat, error) {
	if c.stopped.Load() {
		return gocv.Mat{}, ErrStopped
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasFrame {
		return gocv.Mat{}, ErrNoFrame
	}
	return c.latest.Clone(), nil
}

// Stats reports captured frames and read failures so far.
func (c *Camera) Stats() (frames, readErrors uint64) {
	return c.frames.Load(), c.readErrors.Load()
}

// Stop ends the capture loop, waits for it and releases the device.
// Safe to call more than once.
func (c *Camera) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		if c.started.Swap(true) {
			<-c.done
		} else {
			c.stopped.Store(true)
			close(c.done)
		}
		c.capture.Close()

		c.mu.Lock()
		c.latest.Close()
		c.hasFrame = false
		c.mu.Unlock()
	})
}
