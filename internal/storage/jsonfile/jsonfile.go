// Package jsonfile stores recordings as JSON documents, optionally
// gzip-compressed, in a save directory and reads them from a load directory.
package jsonfile

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trackfit/autobone/internal/config"
	"github.com/trackfit/autobone/internal/storage/codec"
	"github.com/trackfit/autobone/pkg/core"
)

const (
	jsonExt = ".json"
	gzipExt = ".json.gz"
)

// Backend stores recordings as files.
type Backend struct {
	cfg    config.JSONFileConfig
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a file backend. Directories are created on Init.
func New(cfg config.JSONFileConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Init ensures the save directory exists.
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.SaveDir, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}
	return nil
}

// Close is a no-op; every write is complete when it returns.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) fileName(name string) string {
	if b.cfg.Compress {
		return name + gzipExt
	}
	return name + jsonExt
}

// recordingName strips a known extension, reporting whether there was one.
func recordingName(file string) (string, bool) {
	if name, ok := strings.CutSuffix(file, gzipExt); ok {
		return name, true
	}
	return strings.CutSuffix(file, jsonExt)
}

// WriteRecording writes frames to <saveDir>/<name>.json[.gz] atomically.
func (b *Backend) WriteRecording(ctx context.Context, name string, frames *core.PoseFrames) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write(name, frames)
}

// SaveRecording writes frames under the next ABRecording<n> name.
func (b *Backend) SaveRecording(ctx context.Context, frames *core.PoseFrames) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.names(b.cfg.SaveDir)
	if err != nil {
		return "", err
	}
	name := codec.NextPermanentName(existing)
	if err := b.write(name, frames); err != nil {
		return "", err
	}
	return name, nil
}

func (b *Backend) write(name string, frames *core.PoseFrames) error {
	if err := os.MkdirAll(b.cfg.SaveDir, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}

	path := filepath.Join(b.cfg.SaveDir, b.fileName(name))
	tmp := path + ".tmp"
	doc := codec.Encode(frames)

	var err error
	if b.cfg.Compress {
		err = writeGzipJSON(tmp, doc)
	} else {
		err = writeJSON(tmp, doc)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move recording into place: %w", err)
	}

	b.logger.Info("Recording written", "recording", name, "path", path,
		"trackers", frames.TrackerCount(), "frames", frames.MaxFrameCount())
	return nil
}

// names lists the recording names in dir. A missing dir has none.
func (b *Backend) names(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := recordingName(e.Name()); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// LoadRecordings reads every recording in the load directory, sorted by name.
func (b *Backend) LoadRecordings(ctx context.Context) ([]core.Recording, error) {
	entries, err := os.ReadDir(b.cfg.LoadDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", b.cfg.LoadDir, err)
	}

	var recs []core.Recording
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := recordingName(e.Name())
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frames, err := ReadFile(filepath.Join(b.cfg.LoadDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("recording %s: %w", name, err)
		}
		b.logger.Info("Recording loaded", "recording", name,
			"trackers", frames.TrackerCount(), "frames", frames.MaxFrameCount())
		recs = append(recs, core.Recording{Name: name, Frames: frames})
	}
	codec.SortRecordings(recs)
	return recs, nil
}

// ReadFile decodes one recording file. Paths ending in .gz are gunzipped.
func ReadFile(path string) (*core.PoseFrames, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, gzipExt) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var doc codec.RecordingJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return codec.Decode(doc)
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return f.Sync()
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return f.Sync()
}
