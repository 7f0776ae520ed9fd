// Package player replays recorded tracker frames onto live trackers.
package player

import (
	"math"

	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// PlayerTracker drives one core.Tracker from a TrackerFrames list.
type PlayerTracker struct {
	frames  *core.TrackerFrames
	tracker *core.Tracker

	cursor     int
	scale      float64
	mounting   float64
	attachment quat.Number
}

// NewPlayerTracker creates a player positioned on frame 0.
func NewPlayerTracker(frames *core.TrackerFrames, tracker *core.Tracker) *PlayerTracker {
	p := &PlayerTracker{
		frames:  frames,
		tracker: tracker,
		scale:   1,
	}
	p.SetCursor(0)
	return p
}

func (p *PlayerTracker) Frames() *core.TrackerFrames { return p.frames }
func (p *PlayerTracker) Tracker() *core.Tracker      { return p.tracker }
func (p *PlayerTracker) Cursor() int                 { return p.cursor }
func (p *PlayerTracker) Scale() float64              { return p.scale }
func (p *PlayerTracker) Mounting() float64           { return p.mounting }
func (p *PlayerTracker) Attachment() quat.Number     { return p.attachment }

// SetCursor clamps i into the frame range and applies that frame.
func (p *PlayerTracker) SetCursor(i int) {
	n := p.frames.Len()
	switch {
	case n == 0:
		i = 0
	case i < 0:
		i = 0
	case i >= n:
		i = n - 1
	}
	p.cursor = i
	p.ApplyPose()
}

// SetScale changes the position/acceleration scale and re-applies the frame.
func (p *PlayerTracker) SetScale(s float64) {
	p.scale = s
	p.ApplyPose()
}

// SetMounting sets the mounting yaw term and re-applies the frame.
func (p *PlayerTracker) SetMounting(m float64) {
	p.mounting = m
	p.ApplyPose()
}

// SetAttachment sets the attachment fix (w, x, y, z) and re-applies the frame.
func (p *PlayerTracker) SetAttachment(q quat.Number) {
	p.attachment = q
	p.ApplyPose()
}

// ApplyPose writes the frame under the cursor to the tracker. Fields the
// frame lacks leave the tracker untouched.
func (p *PlayerTracker) ApplyPose() {
	f, ok := p.frames.TryGetFrame(p.cursor)
	if !ok {
		return
	}

	if tp, ok := f.TrackerPosition(); ok {
		p.tracker.Position = tp
	}

	if raw, ok := f.RawRotation(); ok {
		p.tracker.SetRotation(p.composeRotation(raw))
	}

	if pos, ok := f.Position(); ok {
		p.tracker.SetPosition(r3.Scale(p.scale, pos))
	}

	if acc, ok := f.Acceleration(); ok {
		p.tracker.SetAcceleration(r3.Scale(p.scale, acc))
	}
}

func (p *PlayerTracker) composeRotation(raw quat.Number) quat.Number {
	if p.mounting == 0 && p.attachment == (quat.Number{}) {
		return raw
	}
	mountOffset := core.UnitQuat(core.NewQuat(1-math.Abs(p.mounting), 0, p.mounting, 0))
	attachmentFix := core.UnitQuat(p.attachment)
	return core.MulQuat(core.InvQuat(mountOffset), core.UnitQuat(raw), attachmentFix, mountOffset)
}

// TrackerFramesPlayer owns one PlayerTracker per tracker of a recording.
type TrackerFramesPlayer struct {
	frames  *core.PoseFrames
	players []*PlayerTracker
}

// NewTrackerFramesPlayer creates fresh live trackers for every tracker in frames.
func NewTrackerFramesPlayer(frames *core.PoseFrames) *TrackerFramesPlayer {
	tfp := &TrackerFramesPlayer{frames: frames}
	for _, tf := range frames.Trackers() {
		pos, _ := tf.TrackerPosition()
		tfp.players = append(tfp.players, NewPlayerTracker(tf, core.NewTracker(tf.Name, pos)))
	}
	return tfp
}

func (t *TrackerFramesPlayer) PlayerTrackers() []*PlayerTracker {
	return t.players
}

// Trackers returns the live trackers driven by this player.
func (t *TrackerFramesPlayer) Trackers() []*core.Tracker {
	out := make([]*core.Tracker, len(t.players))
	for i, p := range t.players {
		out[i] = p.tracker
	}
	return out
}

func (t *TrackerFramesPlayer) MaxFrameCount() int {
	return t.frames.MaxFrameCount()
}

// SetCursors moves every tracker to frame i.
func (t *TrackerFramesPlayer) SetCursors(i int) {
	for _, p := range t.players {
		p.SetCursor(i)
	}
}

// SetScales applies s to every tracker.
func (t *TrackerFramesPlayer) SetScales(s float64) {
	for _, p := range t.players {
		p.SetScale(s)
	}
}
