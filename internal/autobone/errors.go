package autobone

import "errors"

var (
	// ErrNotReady is returned when no trackers are available to record from.
	ErrNotReady = errors.New("not ready to record")
	// ErrEmptyRecording is returned for recordings with no trackers or frames.
	ErrEmptyRecording = errors.New("empty recording")
	// ErrNoRecordingFound is returned when there is nothing to save or process.
	ErrNoRecordingFound = errors.New("no recording found")
	// ErrCaptureFailure wraps failures of the recorder.
	ErrCaptureFailure = errors.New("capture failed")
	// ErrOptimizationFailure wraps failures of the engine.
	ErrOptimizationFailure = errors.New("optimization failed")
)

// ErrNoResults is returned when applying results before any run finished.
var ErrNoResults = errors.New("no optimization results")
