package autobone

import (
	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Skeleton is the body model the engine tunes.
type Skeleton interface {
	LoadFromConfig(cfg map[core.SkeletonConfigOffset]float64)
	SetOffset(o core.SkeletonConfigOffset, v float64)
	Offset(o core.SkeletonConfigOffset) float64
	Bone(b core.BoneType) core.BoneState
	ComputedTracker(role core.TrackerRole) (r3.Vec, bool)
	Update()
	SetLegTweaksEnabled(enabled bool)
}

// SkeletonFactory creates a skeleton driven by the given trackers.
type SkeletonFactory func(trackers []*core.Tracker) Skeleton

// ConfigStore persists skeleton offsets.
type ConfigStore interface {
	LoadOffsets() (map[core.SkeletonConfigOffset]float64, error)
	SaveOffsets(offsets map[core.SkeletonConfigOffset]float64) error
}
