package recorder

import (
	"sync"

	"github.com/trackfit/autobone/internal/player"
	"github.com/trackfit/autobone/pkg/core"
)

// ReplaySource plays a stored recording as if its trackers were live.
// Every Tick advances one frame and wraps at the end.
type ReplaySource struct {
	mu     sync.Mutex
	player *player.TrackerFramesPlayer
	cursor int
	count  int
}

// NewReplaySource creates a source positioned before the first frame.
func NewReplaySource(frames *core.PoseFrames) *ReplaySource {
	return &ReplaySource{
		player: player.NewTrackerFramesPlayer(frames),
		cursor: -1,
		count:  frames.MaxFrameCount(),
	}
}

func (s *ReplaySource) Trackers() []*core.Tracker {
	return s.player.Trackers()
}

func (s *ReplaySource) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return
	}
	s.cursor = (s.cursor + 1) % s.count
	s.player.SetCursors(s.cursor)
}

// Cursor returns the index of the frame currently applied.
func (s *ReplaySource) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
