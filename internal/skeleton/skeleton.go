// Package skeleton implements a rigid forward-kinematics body skeleton
// driven by tracker rotations and rooted at the head tracker.
package skeleton

import (
	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// boneTracker maps a bone to the tracker position whose rotation drives it.
var boneTracker = map[core.BoneType]core.TrackerPosition{
	core.BoneHead:          core.TrackerPositionHead,
	core.BoneNeck:          core.TrackerPositionNeck,
	core.BoneUpperChest:    core.TrackerPositionUpperChest,
	core.BoneChest:         core.TrackerPositionChest,
	core.BoneWaist:         core.TrackerPositionWaist,
	core.BoneHip:           core.TrackerPositionHip,
	core.BoneLeftUpperLeg:  core.TrackerPositionLeftUpperLeg,
	core.BoneRightUpperLeg: core.TrackerPositionRightUpperLeg,
	core.BoneLeftLowerLeg:  core.TrackerPositionLeftLowerLeg,
	core.BoneRightLowerLeg: core.TrackerPositionRightLowerLeg,
}

var (
	down = r3.Vec{Y: -1}
	back = r3.Vec{Z: 1}
	left = r3.Vec{X: -1}
)

// HumanSkeleton is a chain of rigid bones. Bones without a tracker inherit
// the rotation of their parent.
type HumanSkeleton struct {
	trackers map[core.TrackerPosition]*core.Tracker
	offsets  map[core.SkeletonConfigOffset]float64
	bones    map[core.BoneType]core.BoneState

	legTweaks bool
}

// New builds a skeleton over trackers with default offsets.
func New(trackers []*core.Tracker) *HumanSkeleton {
	s := &HumanSkeleton{
		trackers:  make(map[core.TrackerPosition]*core.Tracker),
		offsets:   core.DefaultOffsets(),
		bones:     make(map[core.BoneType]core.BoneState, len(core.AllBones)),
		legTweaks: true,
	}
	for _, t := range trackers {
		if t.Position == core.TrackerPositionNone {
			continue
		}
		if _, dup := s.trackers[t.Position]; !dup {
			s.trackers[t.Position] = t
		}
	}
	s.Update()
	return s
}

// LoadFromConfig replaces every known offset with the values in cfg.
// Offsets missing from cfg keep their current value.
func (s *HumanSkeleton) LoadFromConfig(cfg map[core.SkeletonConfigOffset]float64) {
	for o, v := range cfg {
		s.offsets[o] = v
	}
	s.Update()
}

// SetOffset changes one offset. Call Update to recompute bone poses.
func (s *HumanSkeleton) SetOffset(o core.SkeletonConfigOffset, v float64) {
	s.offsets[o] = v
}

func (s *HumanSkeleton) Offset(o core.SkeletonConfigOffset) float64 {
	return s.offsets[o]
}

// Offsets returns a copy of the current configuration.
func (s *HumanSkeleton) Offsets() map[core.SkeletonConfigOffset]float64 {
	out := make(map[core.SkeletonConfigOffset]float64, len(s.offsets))
	for k, v := range s.offsets {
		out[k] = v
	}
	return out
}

func (s *HumanSkeleton) SetLegTweaksEnabled(enabled bool) {
	s.legTweaks = enabled
}

func (s *HumanSkeleton) LegTweaksEnabled() bool {
	return s.legTweaks
}

func (s *HumanSkeleton) Bone(b core.BoneType) core.BoneState {
	return s.bones[b]
}

// ComputedTracker returns the position of a virtual tracker derived from
// the skeleton pose.
func (s *HumanSkeleton) ComputedTracker(role core.TrackerRole) (r3.Vec, bool) {
	switch role {
	case core.TrackerRoleHead:
		return s.bones[core.BoneHead].Position, true
	case core.TrackerRoleChest:
		return s.bones[core.BoneUpperChest].Tail, true
	case core.TrackerRoleHip:
		return s.bones[core.BoneHip].Tail, true
	case core.TrackerRoleLeftKnee:
		return s.bones[core.BoneLeftUpperLeg].Tail, true
	case core.TrackerRoleRightKnee:
		return s.bones[core.BoneRightUpperLeg].Tail, true
	case core.TrackerRoleLeftFoot:
		return s.bones[core.BoneLeftLowerLeg].Tail, true
	case core.TrackerRoleRightFoot:
		return s.bones[core.BoneRightLowerLeg].Tail, true
	}
	return r3.Vec{}, false
}

func (s *HumanSkeleton) trackerRotation(b core.BoneType, parent quat.Number) quat.Number {
	if t, ok := s.trackers[boneTracker[b]]; ok && t.HasRotation() {
		return t.Rotation()
	}
	return parent
}

// Update recomputes every bone from the current tracker state.
func (s *HumanSkeleton) Update() {
	var root r3.Vec
	if head, ok := s.trackers[core.TrackerPositionHead]; ok && head.HasPosition() {
		root = head.PositionVec()
	}

	headRot := s.trackerRotation(core.BoneHead, core.IdentityQuat)
	headTail := s.place(core.BoneHead, root, headRot, back, s.offsets[core.OffsetHead])

	neckRot := s.trackerRotation(core.BoneNeck, headRot)
	tail := s.place(core.BoneNeck, headTail, neckRot, down, s.offsets[core.OffsetNeck])

	rot := neckRot
	for _, spine := range []struct {
		bone   core.BoneType
		offset core.SkeletonConfigOffset
	}{
		{core.BoneUpperChest, core.OffsetUpperChest},
		{core.BoneChest, core.OffsetChest},
		{core.BoneWaist, core.OffsetWaist},
		{core.BoneHip, core.OffsetHip},
	} {
		rot = s.trackerRotation(spine.bone, rot)
		tail = s.place(spine.bone, tail, rot, down, s.offsets[spine.offset])
	}
	hipTail, hipRot := tail, rot

	halfWidth := s.offsets[core.OffsetHipsWidth] / 2
	leftHip := s.place(core.BoneLeftHip, hipTail, hipRot, left, halfWidth)
	rightHip := s.place(core.BoneRightHip, hipTail, hipRot, r3.Scale(-1, left), halfWidth)

	s.leg(leftHip, hipRot, core.BoneLeftUpperLeg, core.BoneLeftLowerLeg)
	s.leg(rightHip, hipRot, core.BoneRightUpperLeg, core.BoneRightLowerLeg)
}

func (s *HumanSkeleton) leg(from r3.Vec, parent quat.Number, upper, lower core.BoneType) {
	upperRot := s.trackerRotation(upper, parent)
	knee := s.place(upper, from, upperRot, down, s.offsets[core.OffsetUpperLeg])
	lowerRot := s.trackerRotation(lower, upperRot)
	s.place(lower, knee, lowerRot, down, s.offsets[core.OffsetLowerLeg])
}

func (s *HumanSkeleton) place(b core.BoneType, from r3.Vec, rot quat.Number, dir r3.Vec, length float64) r3.Vec {
	tail := r3.Add(from, r3.Scale(length, core.RotateVec(rot, dir)))
	s.bones[b] = core.BoneState{Position: from, Tail: tail, Rotation: rot}
	return tail
}
