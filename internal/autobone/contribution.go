package autobone

import (
	"context"
	"fmt"

	"github.com/trackfit/autobone/internal/stats"
	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinSlideDist is the movement below which a slide or bone direction is
// treated as zero.
const MinSlideDist = 0.002

var (
	// MidBones are offsets on the body mid-line, each driving a single bone.
	MidBones = []core.SkeletonConfigOffset{
		core.OffsetHead, core.OffsetNeck, core.OffsetUpperChest,
		core.OffsetChest, core.OffsetWaist, core.OffsetHip,
	}
	// SymmetricOffsets drive a left and a right bone.
	SymmetricOffsets = []core.SkeletonConfigOffset{
		core.OffsetHipsWidth, core.OffsetUpperLeg, core.OffsetLowerLeg,
	}
	LeftBones  = []core.BoneType{core.BoneLeftHip, core.BoneLeftUpperLeg, core.BoneLeftLowerLeg}
	RightBones = []core.BoneType{core.BoneRightHip, core.BoneRightUpperLeg, core.BoneRightLowerLeg}
)

func init() {
	for _, o := range MidBones {
		if n := len(o.AffectedBones()); n != 1 {
			panic(fmt.Sprintf("mid-line offset %s must affect exactly one bone, has %d", o, n))
		}
	}
	for _, o := range SymmetricOffsets {
		if n := len(o.AffectedBones()); n != 2 {
			panic(fmt.Sprintf("symmetric offset %s must affect exactly two bones, has %d", o, n))
		}
	}
}

func isSymmetric(o core.SkeletonConfigOffset) bool {
	for _, s := range SymmetricOffsets {
		if s == o {
			return true
		}
	}
	return false
}

// BoneLocalTail is the bone vector from head to tail after rotation.
func BoneLocalTail(s Skeleton, b core.BoneType) r3.Vec {
	return s.Bone(b).LocalTail()
}

// BoneLocalTailDir is the unit direction the bone tail moved between the
// two skeletons, or nil if it moved less than MinSlideDist.
func BoneLocalTailDir(s1, s2 Skeleton, b core.BoneType) *r3.Vec {
	off := r3.Sub(BoneLocalTail(s2, b), BoneLocalTail(s1, b))
	n := r3.Norm(off)
	if n <= MinSlideDist {
		return nil
	}
	dir := r3.Scale(1/n, off)
	return &dir
}

// unitSlide normalizes a slide vector, returning nil below MinSlideDist.
func unitSlide(v r3.Vec) *r3.Vec {
	n := r3.Norm(v)
	if n <= MinSlideDist {
		return nil
	}
	u := r3.Scale(1/n, v)
	return &u
}

// SlideDot predicts how much offset contributes to the left and right foot
// slides. Missing slides or directions count as zero and the sum is always
// halved.
func SlideDot(s1, s2 Skeleton, offset core.SkeletonConfigOffset, slideL, slideR *r3.Vec) float64 {
	bones := offset.AffectedBones()
	if len(bones) == 0 {
		return 0
	}

	var dot float64
	var boneOffL *r3.Vec

	if slideL != nil {
		boneOffL = BoneLocalTailDir(s1, s2, bones[0])
		if boneOffL != nil {
			dot += r3.Dot(*slideL, *boneOffL)
		}
	}

	if slideR != nil {
		var boneOffR *r3.Vec
		switch {
		case isSymmetric(offset):
			boneOffR = BoneLocalTailDir(s1, s2, bones[1])
		case slideL != nil:
			boneOffR = boneOffL
		default:
			boneOffR = BoneLocalTailDir(s1, s2, bones[0])
		}
		if boneOffR != nil {
			dot += r3.Dot(*slideR, *boneOffR)
		}
	}

	return dot / 2
}

// footSlides returns the unit slide of each foot between the two skeletons.
func footSlides(s *Step) (left, right *r3.Vec) {
	return unitSlide(FootSlide(s, core.TrackerRoleLeftFoot)),
		unitSlide(FootSlide(s, core.TrackerRoleRightFoot))
}

// ComputeContributingBones correlates each bone's movement with foot slide
// over one randomized pass of frames. Mid-line offsets are keyed by their
// single bone; leg bones are keyed per side.
func ComputeContributingBones(ctx context.Context, cfg Config, frames *core.PoseFrames, baseConfig map[core.SkeletonConfigOffset]float64, newSkeleton SkeletonFactory) (map[core.BoneType]*stats.Calculator, error) {
	if err := validateFrames(frames, cfg); err != nil {
		return nil, err
	}

	cfg.CalcInitError = false
	cfg.RandomizeFrameOrder = true

	step := NewStep(cfg, 0, frames, baseConfig, newSkeleton)
	boneMap := make(map[core.BoneType]*stats.Calculator)
	get := func(b core.BoneType) *stats.Calculator {
		c, ok := boneMap[b]
		if !ok {
			c = &stats.Calculator{}
			boneMap[b] = c
		}
		return c
	}

	for _, pair := range NewFrameIterator(cfg, frames.MaxFrameCount()).Pairs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step.SetCursors(pair.Cursor1, pair.Cursor2, true)
		slideL, slideR := footSlides(step)

		for _, o := range MidBones {
			get(o.AffectedBones()[0]).AddValue(SlideDot(step.Skeleton1, step.Skeleton2, o, slideL, slideR))
		}
		sideDots(step, LeftBones, slideL, get)
		sideDots(step, RightBones, slideR, get)
	}

	return boneMap, nil
}

func sideDots(step *Step, bones []core.BoneType, slide *r3.Vec, get func(core.BoneType) *stats.Calculator) {
	for _, b := range bones {
		var v float64
		if dir := BoneLocalTailDir(step.Skeleton1, step.Skeleton2, b); slide != nil && dir != nil {
			v = r3.Dot(*slide, *dir)
		}
		get(b).AddValue(v)
	}
}
