// Package recorder samples live trackers into PoseFrames recordings.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trackfit/autobone/pkg/core"
)

var (
	// ErrNoTrackers is returned when the source has nothing to record.
	ErrNoTrackers = errors.New("no trackers to record")
	// ErrAlreadyRecording is returned when a capture is still running.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrCancelled completes a capture that was cancelled.
	ErrCancelled = errors.New("recording cancelled")
)

// Source provides the live trackers to sample.
type Source interface {
	Trackers() []*core.Tracker
}

// Ticker is implemented by sources that advance on every sample.
type Ticker interface {
	Tick()
}

// ProgressFunc is called after each sampled frame.
type ProgressFunc func(frame, total int)

// PoseRecorder samples every tracker of a Source at a fixed rate.
type PoseRecorder struct {
	source Source
	logger *slog.Logger

	mu      sync.Mutex
	current *Capture
	stop    chan struct{}
	cancel  chan struct{}
	running bool
}

// New creates a recorder over source.
func New(source Source, logger *slog.Logger) *PoseRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoseRecorder{source: source, logger: logger}
}

// IsReadyToRecord reports whether there is at least one tracker.
func (r *PoseRecorder) IsReadyToRecord() bool {
	return r.source != nil && len(r.source.Trackers()) > 0
}

func (r *PoseRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// CurrentCapture returns the latest capture, running or finished, or nil.
func (r *PoseRecorder) CurrentCapture() *Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// StartCapture records count frames, one every interval, in the background.
func (r *PoseRecorder) StartCapture(count int, interval time.Duration, onProgress ProgressFunc) (*Capture, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid sample count %d", count)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid sample interval %s", interval)
	}
	if !r.IsReadyToRecord() {
		return nil, ErrNoTrackers
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	c := newCapture()
	stop := make(chan struct{})
	cancel := make(chan struct{})
	r.current = c
	r.stop = stop
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	trackers := r.source.Trackers()
	go r.run(c, trackers, count, interval, onProgress, stop, cancel)

	return c, nil
}

// StopCapture ends the running capture early, keeping the frames so far.
func (r *PoseRecorder) StopCapture() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

// CancelCapture aborts the running capture and discards its frames.
func (r *PoseRecorder) CancelCapture() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.cancel != nil {
		close(r.cancel)
		r.cancel = nil
	}
}

func (r *PoseRecorder) run(c *Capture, trackers []*core.Tracker, count int, interval time.Duration, onProgress ProgressFunc, stop, cancel <-chan struct{}) {
	frames, err := r.sample(trackers, count, interval, onProgress, stop, cancel)

	// The recorder is idle before waiters on the capture wake up.
	r.mu.Lock()
	r.running = false
	r.stop = nil
	r.cancel = nil
	r.mu.Unlock()

	c.complete(frames, err)
}

func (r *PoseRecorder) sample(trackers []*core.Tracker, count int, interval time.Duration, onProgress ProgressFunc, stop, cancel <-chan struct{}) (*core.PoseFrames, error) {
	buffers := make([]*core.TrackerFrames, len(trackers))
	for i, t := range trackers {
		buffers[i] = core.NewTrackerFrames(t.Name)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Recording started", "trackers", len(trackers), "frames", count, "interval", interval)

	for frame := 0; frame < count; {
		select {
		case <-cancel:
			r.logger.Info("Recording cancelled", "frames", frame)
			return nil, ErrCancelled
		case <-stop:
			r.logger.Info("Recording stopped early", "frames", frame)
			return core.NewPoseFrames(buffers...), nil
		case <-ticker.C:
		}

		if t, ok := r.source.(Ticker); ok {
			t.Tick()
		}
		for i, t := range trackers {
			f, err := core.FrameFromTracker(t)
			if err != nil {
				continue
			}
			buffers[i].Add(f)
		}
		frame++
		if onProgress != nil {
			onProgress(frame, count)
		}
	}

	r.logger.Info("Recording finished", "frames", count)
	return core.NewPoseFrames(buffers...), nil
}
