package autobone

import (
	"github.com/trackfit/autobone/internal/player"
	"github.com/trackfit/autobone/internal/stats"
	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/num/quat"
)

// TrackerCalibration is the mounting correction applied to a tracker pair.
type TrackerCalibration struct {
	Mounting   float64
	Attachment quat.Number
}

// TrackerAdjustment pairs the players of the same tracker in both playbacks.
type TrackerAdjustment struct {
	Tracker1    *player.PlayerTracker
	Tracker2    *player.PlayerTracker
	Calibration TrackerCalibration
}

// Position returns the body position both trackers are mounted at.
func (a TrackerAdjustment) Position() core.TrackerPosition {
	return a.Tracker1.Tracker().Position
}

// Apply pushes the calibration to both players.
func (a TrackerAdjustment) Apply() {
	for _, p := range []*player.PlayerTracker{a.Tracker1, a.Tracker2} {
		p.SetMounting(a.Calibration.Mounting)
		p.SetAttachment(a.Calibration.Attachment)
	}
}

// Step holds the state of one optimization run over a recording: two
// independent playbacks and skeletons sampled at Cursor1 and Cursor2.
type Step struct {
	Config       Config
	TargetHeight float64
	Frames       *core.PoseFrames

	Player1   *player.TrackerFramesPlayer
	Player2   *player.TrackerFramesPlayer
	Skeleton1 Skeleton
	Skeleton2 Skeleton

	Adjustments []TrackerAdjustment

	Cursor1 int
	Cursor2 int

	Epoch      int
	AdjustRate float64
	ErrorStats stats.Calculator
}

// NewStep builds both playbacks over frames and loads baseConfig into both
// skeletons.
func NewStep(cfg Config, targetHeight float64, frames *core.PoseFrames, baseConfig map[core.SkeletonConfigOffset]float64, newSkeleton SkeletonFactory) *Step {
	s := &Step{
		Config:       cfg,
		TargetHeight: targetHeight,
		Frames:       frames,
		Player1:      player.NewTrackerFramesPlayer(frames),
		Player2:      player.NewTrackerFramesPlayer(frames),
	}

	scale := cfg.PositionScale
	if scale == 0 {
		scale = 1
	}
	s.Player1.SetScales(scale)
	s.Player2.SetScales(scale)

	s.Skeleton1 = newSkeleton(s.Player1.Trackers())
	s.Skeleton2 = newSkeleton(s.Player2.Trackers())
	for _, sk := range []Skeleton{s.Skeleton1, s.Skeleton2} {
		sk.LoadFromConfig(baseConfig)
		sk.SetLegTweaksEnabled(false)
	}

	s.Adjustments = matchTrackers(s.Player1.PlayerTrackers(), s.Player2.PlayerTrackers())
	return s
}

func matchTrackers(p1, p2 []*player.PlayerTracker) []TrackerAdjustment {
	var out []TrackerAdjustment
	for _, t1 := range p1 {
		pos := t1.Tracker().Position
		if pos == core.TrackerPositionNone {
			continue
		}
		for _, t2 := range p2 {
			if t2.Tracker().Position == pos {
				out = append(out, TrackerAdjustment{Tracker1: t1, Tracker2: t2})
				break
			}
		}
	}
	return out
}

// SetCursors moves both cursors and, when update is set, applies them.
func (s *Step) SetCursors(cursor1, cursor2 int, update bool) {
	s.Cursor1 = cursor1
	s.Cursor2 = cursor2
	if update {
		s.UpdatePlayerCursors()
	}
}

// UpdatePlayerCursors applies both cursors and recomputes both skeletons.
func (s *Step) UpdatePlayerCursors() {
	s.Player1.SetCursors(s.Cursor1)
	s.Player2.SetCursors(s.Cursor2)
	s.Skeleton1.Update()
	s.Skeleton2.Update()
}

// SetOffset changes an offset on both skeletons and recomputes them.
func (s *Step) SetOffset(o core.SkeletonConfigOffset, v float64) {
	s.Skeleton1.SetOffset(o, v)
	s.Skeleton2.SetOffset(o, v)
	s.Skeleton1.Update()
	s.Skeleton2.Update()
}

// CurrentHeight sums the height offsets of the active configuration.
func (s *Step) CurrentHeight() float64 {
	var h float64
	for _, o := range core.HeightOffsets {
		h += s.Skeleton1.Offset(o)
	}
	return h
}

// HeightOffset is the remaining distance to the target height.
func (s *Step) HeightOffset() float64 {
	return s.TargetHeight - s.CurrentHeight()
}

// Offsets returns the current configuration of the first skeleton.
func (s *Step) Offsets() map[core.SkeletonConfigOffset]float64 {
	out := make(map[core.SkeletonConfigOffset]float64, len(core.AllOffsets))
	for _, o := range core.AllOffsets {
		out[o] = s.Skeleton1.Offset(o)
	}
	return out
}

// ApplyCalibrations sets the calibration of every matched tracker found in cals.
func (s *Step) ApplyCalibrations(cals map[core.TrackerPosition]TrackerCalibration) {
	for i := range s.Adjustments {
		cal, ok := cals[s.Adjustments[i].Position()]
		if !ok {
			continue
		}
		s.Adjustments[i].Calibration = cal
		s.Adjustments[i].Apply()
	}
}
