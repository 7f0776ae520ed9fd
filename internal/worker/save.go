package worker

import (
	"context"
	"fmt"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/recorder"
)

func (m *Manager) save(ctx context.Context) (string, error) {
	var capture *recorder.Capture
	if m.deps.Recorder != nil {
		capture = m.deps.Recorder.CurrentCapture()
	}
	if capture == nil {
		return "No recording found", autobone.ErrNoRecordingFound
	}
	if m.deps.Backend == nil {
		return "No storage configured", fmt.Errorf("no storage configured")
	}

	frames, err := capture.Wait(ctx)
	if err != nil {
		return "Recording failed", fmt.Errorf("%w: %w", autobone.ErrCaptureFailure, err)
	}
	if frames.TrackerCount() == 0 || frames.MaxFrameCount() == 0 {
		return "Recording has no frames", fmt.Errorf("%w: recording has no frames", autobone.ErrEmptyRecording)
	}

	name, err := m.deps.Backend.SaveRecording(ctx, frames)
	if err != nil {
		return "Failed to save recording", fmt.Errorf("saving recording: %w", err)
	}
	m.log.Info("Recording saved", "recording", name)
	return fmt.Sprintf("Recording saved as %s", name), nil
}
