// pkg/core/frames.go
package core

import (
	"errors"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyFrame is returned when a frame would carry no data at all.
var ErrEmptyFrame = errors.New("tracker frame has no data")

// DataFlags marks which optional fields a TrackerFrame carries.
type DataFlags uint8

const (
	FlagTrackerPosition DataFlags = 1 << iota
	FlagRotation
	FlagPosition
	FlagAcceleration
	FlagRawRotation
)

func (f DataFlags) Has(flag DataFlags) bool {
	return f&flag != 0
}

// TrackerFrame is one sample of one tracker. Every field is optional.
type TrackerFrame struct {
	flags           DataFlags
	trackerPosition TrackerPosition
	rotation        quat.Number
	rawRotation     quat.Number
	position        r3.Vec
	acceleration    r3.Vec
}

// FrameData holds the optional fields used to build a TrackerFrame.
// Nil pointers are treated as absent.
type FrameData struct {
	TrackerPosition *TrackerPosition
	Rotation        *quat.Number
	RawRotation     *quat.Number
	Position        *r3.Vec
	Acceleration    *r3.Vec
}

// NewTrackerFrame builds a frame from the present fields of d.
func NewTrackerFrame(d FrameData) (TrackerFrame, error) {
	var f TrackerFrame
	if d.TrackerPosition != nil {
		f.flags |= FlagTrackerPosition
		f.trackerPosition = *d.TrackerPosition
	}
	if d.Rotation != nil {
		f.flags |= FlagRotation
		f.rotation = *d.Rotation
	}
	if d.RawRotation != nil {
		f.flags |= FlagRawRotation
		f.rawRotation = *d.RawRotation
	}
	if d.Position != nil {
		f.flags |= FlagPosition
		f.position = *d.Position
	}
	if d.Acceleration != nil {
		f.flags |= FlagAcceleration
		f.acceleration = *d.Acceleration
	}
	if f.flags == 0 {
		return TrackerFrame{}, ErrEmptyFrame
	}
	return f, nil
}

// FrameFromTracker samples the current state of a live tracker.
func FrameFromTracker(t *Tracker) (TrackerFrame, error) {
	var d FrameData
	if t.Position != TrackerPositionNone {
		p := t.Position
		d.TrackerPosition = &p
	}
	if t.HasRotation() {
		r := t.Rotation()
		d.Rotation = &r
		d.RawRotation = &r
	}
	if t.HasPosition() {
		p := t.PositionVec()
		d.Position = &p
	}
	if t.HasAcceleration() {
		a := t.Acceleration()
		d.Acceleration = &a
	}
	return NewTrackerFrame(d)
}

func (f TrackerFrame) Flags() DataFlags { return f.flags }

func (f TrackerFrame) TrackerPosition() (TrackerPosition, bool) {
	return f.trackerPosition, f.flags.Has(FlagTrackerPosition)
}

func (f TrackerFrame) Rotation() (quat.Number, bool) {
	return f.rotation, f.flags.Has(FlagRotation)
}

// RawRotation falls back to Rotation when no raw rotation was captured.
func (f TrackerFrame) RawRotation() (quat.Number, bool) {
	if f.flags.Has(FlagRawRotation) {
		return f.rawRotation, true
	}
	return f.Rotation()
}

func (f TrackerFrame) Position() (r3.Vec, bool) {
	return f.position, f.flags.Has(FlagPosition)
}

func (f TrackerFrame) Acceleration() (r3.Vec, bool) {
	return f.acceleration, f.flags.Has(FlagAcceleration)
}

// TrackerFrames is the ordered frame list of a single tracker.
type TrackerFrames struct {
	Name   string
	frames []TrackerFrame
}

func NewTrackerFrames(name string, frames ...TrackerFrame) *TrackerFrames {
	return &TrackerFrames{Name: name, frames: frames}
}

func (t *TrackerFrames) Add(f TrackerFrame) {
	t.frames = append(t.frames, f)
}

func (t *TrackerFrames) Len() int {
	return len(t.frames)
}

// Frames returns a copy of the frame list.
func (t *TrackerFrames) Frames() []TrackerFrame {
	out := make([]TrackerFrame, len(t.frames))
	copy(out, t.frames)
	return out
}

// TryGetFrame returns the frame at index i, or false when i is out of range.
func (t *TrackerFrames) TryGetFrame(i int) (TrackerFrame, bool) {
	if i < 0 || i >= len(t.frames) {
		return TrackerFrame{}, false
	}
	return t.frames[i], true
}

// TryGetFirstNotNilFrame returns the first frame that carries any data.
func (t *TrackerFrames) TryGetFirstNotNilFrame() (TrackerFrame, bool) {
	for _, f := range t.frames {
		if f.flags != 0 {
			return f, true
		}
	}
	return TrackerFrame{}, false
}

// TrackerPosition returns the body position recorded in the first frame
// that has one.
func (t *TrackerFrames) TrackerPosition() (TrackerPosition, bool) {
	for _, f := range t.frames {
		if p, ok := f.TrackerPosition(); ok {
			return p, true
		}
	}
	return TrackerPositionNone, false
}

// PoseFrames is the full recording: one TrackerFrames per tracker.
type PoseFrames struct {
	trackers []*TrackerFrames
}

func NewPoseFrames(trackers ...*TrackerFrames) *PoseFrames {
	return &PoseFrames{trackers: trackers}
}

func (p *PoseFrames) AddTracker(t *TrackerFrames) {
	p.trackers = append(p.trackers, t)
}

func (p *PoseFrames) Trackers() []*TrackerFrames {
	if p == nil {
		return nil
	}
	return p.trackers
}

func (p *PoseFrames) TrackerCount() int {
	if p == nil {
		return 0
	}
	return len(p.trackers)
}

// MaxFrameCount returns the frame count of the longest tracker.
func (p *PoseFrames) MaxFrameCount() int {
	if p == nil {
		return 0
	}
	maxFrames := 0
	for _, t := range p.trackers {
		if t.Len() > maxFrames {
			maxFrames = t.Len()
		}
	}
	return maxFrames
}

// TrackerForPosition finds the frames of the tracker mounted at pos.
func (p *PoseFrames) TrackerForPosition(pos TrackerPosition) (*TrackerFrames, bool) {
	for _, t := range p.Trackers() {
		if tp, ok := t.TrackerPosition(); ok && tp == pos {
			return t, true
		}
	}
	return nil, false
}

// Recording is a named, stored PoseFrames.
type Recording struct {
	Name   string
	Frames *PoseFrames
}
