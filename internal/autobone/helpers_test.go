package autobone

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trackfit/autobone/internal/skeleton"
	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func humanSkeleton(trackers []*core.Tracker) Skeleton {
	return skeleton.New(trackers)
}

type trackerSpec struct {
	name     string
	position core.TrackerPosition
	pos      func(i int) *r3.Vec
	rot      func(i int) *quat.Number
}

func buildRecording(t *testing.T, frames int, specs ...trackerSpec) *core.PoseFrames {
	t.Helper()
	pf := core.NewPoseFrames()
	for _, s := range specs {
		tf := core.NewTrackerFrames(s.name)
		for i := range frames {
			tp := s.position
			d := core.FrameData{TrackerPosition: &tp}
			if s.pos != nil {
				d.Position = s.pos(i)
			}
			if s.rot != nil {
				d.Rotation = s.rot(i)
			}
			f, err := core.NewTrackerFrame(d)
			require.NoError(t, err)
			tf.Add(f)
		}
		pf.AddTracker(tf)
	}
	return pf
}

func fixedPos(v r3.Vec) func(int) *r3.Vec {
	return func(int) *r3.Vec { return &v }
}

func fixedRot(q quat.Number) func(int) *quat.Number {
	return func(int) *quat.Number { return &q }
}

// standingRecording is four trackers standing still with the headset at headY.
func standingRecording(t *testing.T, frames int, headY float64) *core.PoseFrames {
	return buildRecording(t, frames,
		trackerSpec{"hmd", core.TrackerPositionHead, fixedPos(r3.Vec{Y: headY}), fixedRot(core.IdentityQuat)},
		trackerSpec{"chest", core.TrackerPositionChest, nil, fixedRot(core.IdentityQuat)},
		trackerSpec{"left_foot", core.TrackerPositionLeftFoot, fixedPos(r3.Vec{X: -0.13}), fixedRot(core.IdentityQuat)},
		trackerSpec{"right_foot", core.TrackerPositionRightFoot, fixedPos(r3.Vec{X: 0.13}), fixedRot(core.IdentityQuat)},
	)
}

type memoryStore struct {
	offsets map[core.SkeletonConfigOffset]float64
	saveErr error
	saves   int
}

func (m *memoryStore) LoadOffsets() (map[core.SkeletonConfigOffset]float64, error) {
	return copyOffsets(m.offsets), nil
}

func (m *memoryStore) SaveOffsets(o map[core.SkeletonConfigOffset]float64) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.offsets = copyOffsets(o)
	return nil
}

// fakeSkeleton exposes fixed bone poses for contribution tests.
type fakeSkeleton struct {
	bones   map[core.BoneType]core.BoneState
	offsets map[core.SkeletonConfigOffset]float64
}

func newFakeSkeleton() *fakeSkeleton {
	return &fakeSkeleton{
		bones:   make(map[core.BoneType]core.BoneState),
		offsets: core.DefaultOffsets(),
	}
}

func (f *fakeSkeleton) setTail(b core.BoneType, tail r3.Vec) {
	f.bones[b] = core.BoneState{Tail: tail, Rotation: core.IdentityQuat}
}

func (f *fakeSkeleton) LoadFromConfig(cfg map[core.SkeletonConfigOffset]float64) {
	for k, v := range cfg {
		f.offsets[k] = v
	}
}
func (f *fakeSkeleton) SetOffset(o core.SkeletonConfigOffset, v float64) { f.offsets[o] = v }
func (f *fakeSkeleton) Offset(o core.SkeletonConfigOffset) float64      { return f.offsets[o] }
func (f *fakeSkeleton) Bone(b core.BoneType) core.BoneState              { return f.bones[b] }
func (f *fakeSkeleton) ComputedTracker(core.TrackerRole) (r3.Vec, bool)  { return r3.Vec{}, false }
func (f *fakeSkeleton) Update()                                          {}
func (f *fakeSkeleton) SetLegTweaksEnabled(bool)                         {}
