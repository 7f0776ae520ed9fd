// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/trackfit/autobone/pkg/core"
)

// Backend is the interface all recording stores must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// WriteRecording stores frames under name, replacing any previous
	// recording with that name.
	WriteRecording(ctx context.Context, name string, frames *core.PoseFrames) error
	// SaveRecording stores frames under the next free permanent name and
	// returns it.
	SaveRecording(ctx context.Context, frames *core.PoseFrames) (string, error)
	// LoadRecordings returns the recordings queued for processing.
	LoadRecordings(ctx context.Context) ([]core.Recording, error)
}
