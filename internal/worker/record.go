package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/recorder"
	"github.com/trackfit/autobone/internal/storage/codec"
	"github.com/trackfit/autobone/pkg/core"
)

func (m *Manager) record(ctx context.Context) (string, error) {
	rec := m.deps.Recorder
	if rec == nil || !rec.IsReadyToRecord() {
		return "Not ready to record", autobone.ErrNotReady
	}

	cfg := m.deps.Engine.Config()
	interval := time.Duration(cfg.SampleRateMs) * time.Millisecond
	totalTime := (time.Duration(cfg.SampleCount) * interval).Seconds()

	m.log.Info("Starting recording", "samples", cfg.SampleCount, "interval", interval)
	capture, err := rec.StartCapture(cfg.SampleCount, interval, func(frame, total int) {
		eta := totalTime - float64(frame)/float64(total)*totalTime
		m.progress(ProcessRecord, "Recording...", frame, total, eta)
	})
	if err != nil {
		return "Failed to start recording", fmt.Errorf("%w: %w", autobone.ErrCaptureFailure, err)
	}

	frames, err := capture.Wait(ctx)
	if ctx.Err() != nil && err != nil {
		// Shutting down: no progress may follow the terminal event.
		rec.CancelCapture()
		<-capture.Done()
		return "Recording cancelled", fmt.Errorf("%w: %w", autobone.ErrCaptureFailure, ctx.Err())
	}
	if errors.Is(err, recorder.ErrCancelled) {
		return "Recording cancelled", fmt.Errorf("%w: %w", autobone.ErrCaptureFailure, err)
	}
	if err != nil {
		return "Recording failed", fmt.Errorf("%w: %w", autobone.ErrCaptureFailure, err)
	}
	if frames.MaxFrameCount() == 0 {
		return "Recording has no frames", fmt.Errorf("%w: recording has no frames", autobone.ErrEmptyRecording)
	}

	m.log.Info("Done recording", "trackers", frames.TrackerCount(), "frames", frames.MaxFrameCount())
	m.persist(ctx, frames, cfg.SaveRecordings)

	m.each(func(l Listener) { l.OnRecordingEnd(frames) })
	return "Done recording", nil
}

// persist writes the last recording and, when asked, a numbered copy.
// Failures are logged; the capture stays available in memory.
func (m *Manager) persist(ctx context.Context, frames *core.PoseFrames, permanent bool) {
	if m.deps.Backend == nil {
		return
	}
	if err := m.deps.Backend.WriteRecording(ctx, codec.LastRecordingName, frames); err != nil {
		m.log.Error("Failed to write last recording", "error", err)
	}
	if !permanent {
		return
	}
	name, err := m.deps.Backend.SaveRecording(ctx, frames)
	if err != nil {
		m.log.Error("Failed to save recording", "error", err)
		return
	}
	m.log.Info("Recording saved", "recording", name)
}
