package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"trafficwatch/internal/capture"
)

const (
	// readRetryDelay paces retries after a transient frame read failure.
	readRetryDelay = time.Second

	// frameYield bounds CPU usage between frames.
	frameYield = 10 * time.Millisecond

	// stopTimeout bounds how long Stop waits for the worker to exit.
	stopTimeout = 5 * time.Second

	// fpsWindow is how often the FPS figure is recomputed.
	fpsWindow = time.Second

	// statusWindow is the density/forecast horizon used in status snapshots.
	statusWindow = 5 * time.Minute
)

// StreamWorker owns one capture source and runs the cancellable
// capture-process loop on a dedicated goroutine. Status queries and the
// ad-hoc single-frame path run concurrently on caller goroutines; shared
// state lives behind the FrameProcessor's lock.
type StreamWorker struct {
	device    string
	opts      capture.Options
	processor *FrameProcessor

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
	source    capture.Source
	closeOnce *sync.Once

	frameCount atomic.Uint64
	fpsBits    atomic.Uint64 // math.Float64bits of the current FPS
}

// NewStreamWorker creates a worker for a capture device. The source itself
// is opened by Start.
func NewStreamWorker(device string, opts capture.Options, processor *FrameProcessor) *StreamWorker {
	return &StreamWorker{
		device:    device,
		opts:      opts,
		processor: processor,
	}
}

// Start opens the capture source and launches the worker goroutine.
// Returns ErrAlreadyRunning if a worker is already active; a source that
// cannot be opened is an initialization failure and aborts the start.
func (w *StreamWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyRunning
	}

	source, err := capture.Open(w.device, w.opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	w.source = source
	w.closeOnce = new(sync.Once)
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.run(w.source, w.stopCh, w.done)

	log.Printf("[StreamWorker] Started processing %s", w.device)
	return nil
}

// Stop requests cancellation, waits up to stopTimeout for the worker to
// exit and releases the capture source exactly once. Calling Stop on a
// stopped worker is a no-op.
func (w *StreamWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, done := w.stopCh, w.done
	source, closeOnce := w.source, w.closeOnce
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-done:
	case <-time.After(stopTimeout):
		// Worker is stuck in an in-flight call; release resources anyway.
		// Cancellation is cooperative, so the goroutine exits once the
		// blocking read fails after the source is closed.
		log.Printf("[StreamWorker] Worker for %s did not exit within %s", w.device, stopTimeout)
	}

	closeOnce.Do(func() {
		if err := source.Close(); err != nil {
			log.Printf("[StreamWorker] Error releasing capture source: %v", err)
		}
	})

	log.Printf("[StreamWorker] Stopped processing %s", w.device)
}

// IsRunning reports whether the worker loop is active.
func (w *StreamWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// FrameCount returns the total number of frames processed since creation.
func (w *StreamWorker) FrameCount() uint64 { return w.frameCount.Load() }

// FPS returns the most recent frames-per-second figure.
func (w *StreamWorker) FPS() float64 {
	return math.Float64frombits(w.fpsBits.Load())
}

// Status returns the externally queryable pipeline snapshot.
func (w *StreamWorker) Status() ProcessorStatus {
	_, vehicles, violations := w.processor.Snapshot()
	analyzer := w.processor.Analyzer()

	return ProcessorStatus{
		IsRunning:           w.IsRunning(),
		FPS:                 w.FPS(),
		FrameCount:          w.frameCount.Load(),
		CurrentVehicleCount: vehicles,
		CurrentViolations:   violations,
		TrafficDensity:      analyzer.Density(statusWindow),
		PredictedCongestion: analyzer.PredictCongestion(statusWindow),
	}
}

// LastFrame returns the most recent annotated frame, or nil before the
// first frame is processed.
func (w *StreamWorker) LastFrame() []byte {
	frame, _, _ := w.processor.Snapshot()
	return frame
}

// run is the capture-process loop. It exits only when the stop channel is
// closed; transient read failures are retried after a delay, never fatal.
func (w *StreamWorker) run(source capture.Source, stopCh, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	windowStart := time.Now()
	windowFrames := 0

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, err := source.Read()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			log.Printf("[StreamWorker] Failed to read frame from %s: %v", w.device, err)
			select {
			case <-stopCh:
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if _, err := w.processor.Process(ctx, frame); err != nil {
			log.Printf("[StreamWorker] Frame %d dropped: %v", frame.Seq, err)
		} else {
			w.frameCount.Add(1)
			windowFrames++
		}

		// Recompute FPS once per window
		if elapsed := time.Since(windowStart); elapsed >= fpsWindow {
			w.fpsBits.Store(math.Float64bits(float64(windowFrames) / elapsed.Seconds()))
			windowFrames = 0
			windowStart = time.Now()
		}

		// Brief yield so a fast source cannot pin the CPU
		select {
		case <-stopCh:
			return
		case <-time.After(frameYield):
		}
	}
}
