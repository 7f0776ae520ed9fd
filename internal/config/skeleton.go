package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/trackfit/autobone/pkg/core"
)

const offsetsKey = "skeleton.offsets."

// SkeletonStore keeps skeleton offsets under skeleton.offsets.<key> in the
// config file.
type SkeletonStore struct {
	path string
	mu   sync.Mutex
}

// NewSkeletonStore persists offsets into the config file at path.
func NewSkeletonStore(path string) *SkeletonStore {
	return &SkeletonStore{path: path}
}

// LoadOffsets returns every offset that is set in the config.
func (s *SkeletonStore) LoadOffsets() (map[core.SkeletonConfigOffset]float64, error) {
	out := make(map[core.SkeletonConfigOffset]float64)
	for _, o := range core.AllOffsets {
		key := offsetsKey + o.ConfigKey()
		if viper.IsSet(key) {
			out[o] = viper.GetFloat64(key)
		}
	}
	return out, nil
}

// SaveOffsets updates the offsets and rewrites the config file. The file
// is replaced atomically; on failure both the file and the in-memory
// values keep their previous state.
func (s *SkeletonStore) SaveOffsets(offsets map[core.SkeletonConfigOffset]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for o, v := range offsets {
		if v <= 0 {
			return fmt.Errorf("offset %s must be positive, got %f", o, v)
		}
	}

	previous := make(map[string]any)
	for o, v := range offsets {
		key := offsetsKey + o.ConfigKey()
		previous[key] = viper.Get(key)
		viper.Set(key, v)
	}

	if err := s.write(); err != nil {
		for key, v := range previous {
			viper.Set(key, v)
		}
		return err
	}
	return nil
}

func (s *SkeletonStore) write() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// viper picks the encoder from the extension, so the temp file keeps .json.
	tmp := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".tmp.json"
	if err := viper.WriteConfigAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
