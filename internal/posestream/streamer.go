package posestream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/player"
	"github.com/trackfit/autobone/pkg/core"
)

// Streamer replays frames through a skeleton built with fixed offsets.
type Streamer struct {
	player   *player.TrackerFramesPlayer
	skeleton autobone.Skeleton
}

// NewStreamer builds the player and skeleton for frames. Offsets missing
// from offsets keep the skeleton defaults.
func NewStreamer(frames *core.PoseFrames, factory autobone.SkeletonFactory, offsets map[core.SkeletonConfigOffset]float64) *Streamer {
	p := player.NewTrackerFramesPlayer(frames)
	sk := factory(p.Trackers())
	for o, v := range offsets {
		sk.SetOffset(o, v)
	}
	sk.Update()
	return &Streamer{player: p, skeleton: sk}
}

// StreamAll writes every frame to sink and closes it.
func (s *Streamer) StreamAll(ctx context.Context, sink Sink) (err error) {
	defer func() {
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
	}()

	if err := sink.WriteHeader(core.AllBones); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	n := s.player.MaxFrameCount()
	poses := make(map[core.BoneType]core.BoneState, len(core.AllBones))
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.player.SetCursors(i)
		s.skeleton.Update()
		for _, b := range core.AllBones {
			poses[b] = s.skeleton.Bone(b)
		}
		if err := sink.WriteFrame(i, poses); err != nil {
			return fmt.Errorf("writing frame %d: %w", i, err)
		}
	}
	return nil
}

// CSVExporter writes <Dir>/<recording>.csv for each processed recording.
type CSVExporter struct {
	Dir     string
	Factory autobone.SkeletonFactory
	Logger  *slog.Logger
}

// Export streams frames with the adjusted offsets into a CSV file.
func (e *CSVExporter) Export(ctx context.Context, name string, frames *core.PoseFrames, offsets map[core.SkeletonConfigOffset]float64) error {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.Dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := NewStreamer(frames, e.Factory, offsets).StreamAll(ctx, NewCSVSink(f)); err != nil {
		return err
	}
	if e.Logger != nil {
		e.Logger.Info("Exported poses", "recording", name, "path", path)
	}
	return nil
}
